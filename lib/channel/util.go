package channel

import (
	"context"
)

// ReadMessage reads one whole frame from ep, chunk bytes per call, and
// consumes its boundary marker. An empty frame yields an empty, non-nil slice.
func ReadMessage(ctx context.Context, ep IEndpoint, chunk int) ([]byte, error) {
	if chunk <= 0 {
		chunk = DefaultBufferSize
	}
	msg := make([]byte, 0, chunk)
	buf := make([]byte, chunk)
	for {
		n, err := ep.Read(ctx, buf)
		if err != nil {
			return msg, err
		}
		if n == 0 {
			return msg, nil
		}
		msg = append(msg, buf[:n]...)
	}
}
