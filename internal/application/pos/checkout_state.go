package pos

import "sync/atomic"

// CheckoutState is the checkout orchestrator's state
type CheckoutState int32

const (
	CheckoutIdle CheckoutState = iota
	CheckoutSubmitting
	CheckoutSucceeded
	CheckoutFailed
)

func (s CheckoutState) String() string {
	switch s {
	case CheckoutIdle:
		return "idle"
	case CheckoutSubmitting:
		return "submitting"
	case CheckoutSucceeded:
		return "succeeded"
	case CheckoutFailed:
		return "failed"
	}
	return "unknown"
}

// checkoutGate is shared by Checkout and CartService. Only a successful
// compare-and-swap from Idle enters Submitting.
type checkoutGate struct {
	state atomic.Int32
}

func (g *checkoutGate) enter() bool {
	return g.state.CompareAndSwap(int32(CheckoutIdle), int32(CheckoutSubmitting))
}

func (g *checkoutGate) set(s CheckoutState) {
	g.state.Store(int32(s))
}

func (g *checkoutGate) release() {
	g.state.Store(int32(CheckoutIdle))
}

func (g *checkoutGate) current() CheckoutState {
	return CheckoutState(g.state.Load())
}

func (g *checkoutGate) busy() bool {
	return g.current() != CheckoutIdle
}
