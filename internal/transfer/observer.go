// Package transfer fetches release assets with curl, deriving live progress
// from the transfer's trace stream when one is available.
package transfer

// Observer receives progress signals derived from the transfer's trace
// stream. Implementations must be cheap: callbacks run on the trace-follower
// goroutine and must never block the transfer itself.
type Observer interface {
	// TotalLength reports the declared content length. It is called at most
	// once per transfer and resets the received count.
	TotalLength(total int64)

	// Received reports the size of one received data chunk.
	Received(delta int64)
}

// NopObserver discards all progress signals. Used where trace access is
// unavailable or progress display is unwanted.
type NopObserver struct{}

// TotalLength does nothing.
func (NopObserver) TotalLength(int64) {}

// Received does nothing.
func (NopObserver) Received(int64) {}
