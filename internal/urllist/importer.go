// Package urllist reads URL and domain lists: batch inputs and trusted
// domain feeds.
package urllist

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	FormatText  = "text"
	FormatCSV   = "csv"
	FormatHosts = "hosts"
)

// DefaultColumn is the CSV header looked up when Source.TargetColumn is empty.
const DefaultColumn = "url"

// Source describes the layout of a URL list.
type Source struct {
	Format       string
	TargetColumn string
}

// ParseAndStream sends every entry of reader to outChan and closes it.
// Blank lines and '#' comments are skipped.
func ParseAndStream(reader io.Reader, outChan chan<- string, src Source) error {
	defer close(outChan)

	switch src.Format {
	case FormatCSV:
		return parseCSV(reader, outChan, src)
	case FormatHosts:
		return parseHosts(reader, outChan)
	case FormatText, "":
		return parseText(reader, outChan)
	default:
		return fmt.Errorf("unknown url list format %q", src.Format)
	}
}

// ReadAll collects a whole list.
func ReadAll(reader io.Reader, src Source) ([]string, error) {
	ch := make(chan string, 64)
	errc := make(chan error, 1)
	go func() { errc <- ParseAndStream(reader, ch, src) }()

	var urls []string
	for u := range ch {
		urls = append(urls, u)
	}
	return urls, <-errc
}

// Chunk splits urls into consecutive slices of at most size entries.
func Chunk(urls []string, size int) [][]string {
	if size <= 0 {
		size = len(urls)
	}
	var out [][]string
	for len(urls) > 0 {
		n := min(size, len(urls))
		out = append(out, urls[:n:n])
		urls = urls[n:]
	}
	return out
}

// hosts file layout ("0.0.0.0 domain.com"), second field kept
func parseHosts(reader io.Reader, outChan chan<- string) error {
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) >= 2 {
			outChan <- parts[1]
		}
	}
	return scanner.Err()
}

// one entry per line
func parseText(reader io.Reader, outChan chan<- string) error {
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		outChan <- line
	}
	return scanner.Err()
}

// column aware, first row is the header
func parseCSV(reader io.Reader, outChan chan<- string, src Source) error {
	csvReader := csv.NewReader(reader)
	csvReader.Comment = '#'
	csvReader.FieldsPerRecord = -1

	header, err := csvReader.Read()
	if err != nil {
		return fmt.Errorf("read csv header: %w", err)
	}

	targetCol := strings.ToLower(src.TargetColumn)
	if targetCol == "" {
		targetCol = DefaultColumn
	}
	targetIndex := -1
	for i, col := range header {
		if strings.ToLower(strings.TrimSpace(col)) == targetCol {
			targetIndex = i
			break
		}
	}
	if targetIndex == -1 {
		return fmt.Errorf("column %q not found in csv header", targetCol)
	}

	for {
		record, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read csv: %w", err)
		}

		if len(record) > targetIndex {
			if u := strings.TrimSpace(record[targetIndex]); u != "" {
				outChan <- u
			}
		}
	}
}
