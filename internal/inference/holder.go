package inference

import (
	"sync/atomic"

	"github.com/yourusername/race-edge/internal/ml"
)

// BundleSource hands out the model bundle a prediction should use
type BundleSource interface {
	Current() *ml.Bundle
}

// BundleHolder publishes the active bundle. Readers take the pointer once and
// keep using it even if a reload swaps in a new bundle mid-request.
type BundleHolder struct {
	current atomic.Pointer[ml.Bundle]
}

// NewBundleHolder creates a holder publishing b, which may be nil
func NewBundleHolder(b *ml.Bundle) *BundleHolder {
	h := &BundleHolder{}
	if b != nil {
		h.current.Store(b)
	}
	return h
}

// Current returns the active bundle, or nil before the first load
func (h *BundleHolder) Current() *ml.Bundle {
	return h.current.Load()
}

// Swap publishes b and returns the bundle it replaced
func (h *BundleHolder) Swap(b *ml.Bundle) *ml.Bundle {
	return h.current.Swap(b)
}

// Ready reports whether a bundle with at least one model is published
func (h *BundleHolder) Ready() bool {
	return h.Current().Ready()
}
