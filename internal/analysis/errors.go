package analysis

import (
	"errors"
	"fmt"
)

// MaxBatchSize is the hard cap on URLs per batch call.
const MaxBatchSize = 200

var (
	ErrNoURLs      = errors.New("no URLs provided")
	ErrTooManyURLs = fmt.Errorf("too many URLs (max %d)", MaxBatchSize)
)

// InputError rejects a batch because of one bad entry.
type InputError struct {
	Index int
	URL   string
	Err   error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("url #%d (%q): %v", e.Index, e.URL, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// IsInputError reports whether err is a client-side validation failure.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.Is(err, ErrNoURLs) || errors.Is(err, ErrTooManyURLs) || errors.As(err, &ie)
}
