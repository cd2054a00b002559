package inference

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"phishguard/internal/features"
	"phishguard/internal/metrics"
)

// ErrClassifierUnavailable wraps model load failures. It is not recoverable
// per request.
var ErrClassifierUnavailable = errors.New("inference: classifier unavailable")

// Prediction is the classifier output for one row. Probability is P(label=1),
// the phishing class.
type Prediction struct {
	Label       int
	Probability float64
}

// Classifier is a trained binary model over numeric feature rows laid out
// in FeatureOrder.
type Classifier interface {
	FeatureOrder() []string
	Predict(rows [][]float32) ([]Prediction, error)
}

// Loader builds a Classifier, typically by reading a model artifact.
type Loader func() (Classifier, error)

// ONNXLoader returns a Loader opening spec with onnxruntime.
func ONNXLoader(spec ModelSpec) Loader {
	return func() (Classifier, error) {
		return NewPredictor(spec)
	}
}

// Handle loads a classifier on first use and shares it afterwards. A failed
// load is remembered: every later Get returns the same error.
type Handle struct {
	once sync.Once
	load Loader
	c    Classifier
	err  error
}

func NewHandle(load Loader) *Handle {
	return &Handle{load: load}
}

// Get returns the loaded classifier. Safe for concurrent use.
func (h *Handle) Get() (Classifier, error) {
	h.once.Do(func() {
		if h.load == nil {
			h.err = fmt.Errorf("%w: no loader configured", ErrClassifierUnavailable)
			return
		}
		c, err := h.load()
		if err != nil {
			h.err = fmt.Errorf("%w: %w", ErrClassifierUnavailable, err)
			return
		}
		h.c = c
	})
	return h.c, h.err
}

// Close releases the classifier if it was loaded.
func (h *Handle) Close() {
	if h == nil || h.c == nil {
		return
	}
	if closer, ok := h.c.(interface{ Close() }); ok {
		closer.Close()
	}
}

// Adapter feeds feature vectors to a classifier. Only the numeric values in
// the classifier's column order reach the model; Domain never does.
type Adapter struct {
	name   string
	handle *Handle
}

func NewAdapter(name string, handle *Handle) *Adapter {
	return &Adapter{name: name, handle: handle}
}

// Classify runs the whole set of vectors through the classifier at once and
// returns predictions in input order.
func (a *Adapter) Classify(vectors []features.Vector) ([]Prediction, error) {
	c, err := a.handle.Get()
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	order := c.FeatureOrder()
	rows := make([][]float32, len(vectors))
	for i, v := range vectors {
		rows[i] = v.Flatten(order)
	}

	start := time.Now()
	preds, err := c.Predict(rows)
	metrics.InferenceDuration.WithLabelValues(a.name).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%s model: %w", a.name, err)
	}
	if len(preds) != len(vectors) {
		return nil, fmt.Errorf("%s model returned %d predictions for %d rows", a.name, len(preds), len(vectors))
	}
	return preds, nil
}
