package features

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"phishguard/internal/metrics"
)

// phishingPhrases are matched against visible page text only.
var phishingPhrases = []string{
	"verify your account",
	"login required",
	"password reset",
	"update your billing",
	"confirm your identity",
	"suspend",
	"security alert",
	"verify now",
}

// PageFeatures are the structural signals of a fetched document. The zero
// value is the baseline for a missing or unreadable page.
type PageFeatures struct {
	FormCount       int
	PasswordFields  int
	ScriptsExternal int
	Images          int
	HiddenInputs    int
	KeywordHits     int
	HasBase64       bool
}

func (p PageFeatures) apply(v Vector) {
	v.set(FormCount, float64(p.FormCount))
	v.set(PasswordFields, float64(p.PasswordFields))
	v.set(ScriptsExternal, float64(p.ScriptsExternal))
	v.set(Images, float64(p.Images))
	v.set(HiddenInputs, float64(p.HiddenInputs))
	v.set(KeywordHits, float64(p.KeywordHits))
	v.setFlag(HasBase64, p.HasBase64)
}

// PageFetcher downloads the HTML behind a URL.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (string, error)
}

// PageExtractor fetches a page and derives PageFeatures from it.
type PageExtractor struct {
	fetcher PageFetcher
	logger  *zap.Logger
}

func NewPageExtractor(fetcher PageFetcher, logger *zap.Logger) *PageExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageExtractor{fetcher: fetcher, logger: logger.Named("page")}
}

// Extract never fails: a fetch error means the empty document.
func (p *PageExtractor) Extract(ctx context.Context, url string) PageFeatures {
	content, err := p.fetcher.FetchPage(ctx, url)
	if err != nil {
		metrics.PageFetchFailures.Inc()
		p.logger.Debug("page fetch failed, scoring empty document",
			zap.String("url", url), zap.Error(err))
		content = ""
	}
	return ParsePage(content)
}

// ParsePage derives PageFeatures from raw HTML.
func ParsePage(content string) PageFeatures {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return PageFeatures{}
	}

	external := 0
	doc.Find("script").Each(func(i int, s *goquery.Selection) {
		if src, _ := s.Attr("src"); src != "" {
			external++
		}
	})

	text := strings.ToLower(visibleText(doc))
	hits := 0
	for _, phrase := range phishingPhrases {
		if strings.Contains(text, phrase) {
			hits++
		}
	}

	return PageFeatures{
		FormCount:       doc.Find("form").Length(),
		PasswordFields:  doc.Find("input[type=password]").Length(),
		ScriptsExternal: external,
		Images:          doc.Find("img").Length(),
		HiddenInputs:    doc.Find("input[type=hidden]").Length(),
		KeywordHits:     hits,
		HasBase64:       strings.Contains(strings.ToLower(content), "base64"),
	}
}

// visibleText joins the document's text nodes with single spaces, skipping
// anything a browser would not render as text.
func visibleText(doc *goquery.Document) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			parts = append(parts, strings.Fields(n.Data)...)
			return
		case html.CommentNode:
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}
	return strings.Join(parts, " ")
}
