package stitch

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/leafstitch/internal/raster"
)

// Kind tags the variant carried by an Outcome.
type Kind int

const (
	// KindProgress reports a completed pair during multi-image composition.
	KindProgress Kind = iota
	// KindSuccess carries the composite image.
	KindSuccess
	// KindError carries a failure description.
	KindError
)

// Outcome is the tagged result of a stitch invocation. Exactly one terminal
// variant (success or error) is produced per invocation; progress variants,
// when streamed, precede it.
type Outcome struct {
	Kind    Kind          `json:"kind"`
	Image   *raster.Image `json:"-"`
	Message string        `json:"message,omitempty"`
	Pair    int           `json:"pair,omitempty"`
	Total   int           `json:"total,omitempty"`
}

// Success wraps a composite image in a terminal outcome.
func Success(img *raster.Image) Outcome {
	return Outcome{Kind: KindSuccess, Image: img}
}

// Errorf builds a terminal error outcome.
func Errorf(format string, args ...any) Outcome {
	return Outcome{Kind: KindError, Message: fmt.Sprintf(format, args...)}
}

// Progress reports that pair of total seams has been composited.
func Progress(pair, total int) Outcome {
	return Outcome{Kind: KindProgress, Pair: pair, Total: total}
}

// Err converts an error outcome into an error value; nil otherwise.
func (o Outcome) Err() error {
	if o.Kind == KindError {
		return errors.New(o.Message)
	}
	return nil
}

// Terminal reports whether the outcome ends a stitch invocation.
func (o Outcome) Terminal() bool { return o.Kind != KindProgress }
