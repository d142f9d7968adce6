//go:build !cgo

package resolver

import (
	"context"
	"fmt"
)

// TreeSitter is a stub when building without cgo; structural resolution is
// unavailable and every change fails with a described error instead of a crash.
type TreeSitter struct {
	lang Language
}

func NewTreeSitter(lang Language) *TreeSitter {
	return &TreeSitter{lang: lang}
}

func (r *TreeSitter) Resolve(_ context.Context, _ []byte, _ []string) (Span, error) {
	return Span{}, fmt.Errorf("%w: built without cgo", ErrUnsupported)
}
