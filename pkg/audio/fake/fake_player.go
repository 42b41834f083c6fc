// Package fake provides an in-memory audio.Player for tests.
package fake

import (
	"context"
	"sync"

	"github.com/chriscow/ambient-agents-go/pkg/audio"
)

// FakePlayer records every buffer it is asked to play.
type FakePlayer struct {
	mu      sync.Mutex
	played  []audio.Buffer
	closed  bool
	started chan struct{}

	// Err is returned from Play when set.
	Err error
	// Block makes Play wait until Release is called or ctx is done.
	Block   bool
	release chan struct{}
}

// NewFakePlayer creates a new fake player.
func NewFakePlayer() *FakePlayer {
	return &FakePlayer{
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

// Play records buf and returns immediately unless Block is set.
func (p *FakePlayer) Play(ctx context.Context, buf audio.Buffer) error {
	p.mu.Lock()
	p.played = append(p.played, buf)
	block, err := p.Block, p.Err
	p.mu.Unlock()

	select {
	case p.started <- struct{}{}:
	default:
	}

	if err != nil {
		return err
	}
	if !block {
		return ctx.Err()
	}

	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Started receives once for each call to Play.
func (p *FakePlayer) Started() <-chan struct{} {
	return p.started
}

// Release unblocks every pending and future Play call.
func (p *FakePlayer) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.release:
	default:
		close(p.release)
	}
}

// Played returns the buffers passed to Play so far.
func (p *FakePlayer) Played() []audio.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]audio.Buffer(nil), p.played...)
}

// Close marks the player closed.
func (p *FakePlayer) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (p *FakePlayer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
