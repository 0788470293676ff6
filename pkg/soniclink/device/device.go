// Package device defines the boundary to the audio hardware. The modem core
// never touches a sound card directly; it plays finite sample buffers
// through an Output and consumes fixed-size capture blocks from an Input.
package device

import "context"

// Output plays a finite mono sample buffer once at the device's sample rate
// and returns when playback completed. Implementations must release the
// playback device on every exit path.
type Output interface {
	Play(ctx context.Context, samples []float32) error
	Close() error
}

// Input streams capture blocks into samples until the context is canceled
// or Stop is called. Each block is owned by the receiver once sent.
// Implementations must release the capture device on every exit path.
type Input interface {
	Start(ctx context.Context, samples chan<- []float32) error
	Stop() error
}
