package audio

import "context"

// Player renders a buffer to an output. Play blocks until the buffer has
// been rendered or ctx is done, in which case output stops and ctx.Err()
// is returned.
type Player interface {
	Play(ctx context.Context, buf Buffer) error
	Close() error
}
