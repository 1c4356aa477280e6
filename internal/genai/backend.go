package genai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrUnavailable is returned by Backend.Get when the backend could not be
// initialized. Callers distinguish "backend never came up" from failures of
// individual calls with errors.Is.
var ErrUnavailable = errors.New("genai: backend unavailable")

type backendState int

const (
	stateUninitialized backendState = iota
	stateReady
	stateFailed
)

// Backend is a process-wide, lazily-initialized handle to an inference
// client. The lifecycle is uninitialized -> ready, or uninitialized ->
// failed with the failure cached so every call does not re-dial a dead
// backend. An explicit WarmUp clears a cached failure and retries.
//
// Initialization is guarded by a mutex: exactly one attempt proceeds while
// concurrent first callers wait for its outcome.
type Backend struct {
	mu      sync.Mutex
	state   backendState
	client  *Client
	initErr error
	dial    func() (*Client, error)
}

// NewBackend creates an uninitialized Backend that will construct its
// client with dial on first use or on WarmUp.
func NewBackend(dial func() (*Client, error)) *Backend {
	return &Backend{dial: dial}
}

// Dialer returns a dial function that constructs a client for baseURL and
// verifies the backend is reachable before handing it out.
func Dialer(baseURL, model string, opts ...Option) func() (*Client, error) {
	return func() (*Client, error) {
		c := NewClient(baseURL, model, opts...)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.Ping(ctx); err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Get returns the ready client, initializing it on first call. A cached
// initialization failure is returned immediately without re-dialing.
func (b *Backend) Get() (*Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateReady:
		return b.client, nil
	case stateFailed:
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, b.initErr)
	}
	return b.initLocked()
}

// WarmUp eagerly initializes the backend, clearing any cached failure
// first so a previously failed backend gets a fresh attempt. Returns true
// when the backend is ready.
func (b *Backend) WarmUp() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateFailed {
		b.state = stateUninitialized
		b.initErr = nil
	}
	if b.state == stateReady {
		return true
	}
	_, err := b.initLocked()
	return err == nil
}

// initLocked runs the single guarded initialization attempt. The caller
// must hold b.mu.
func (b *Backend) initLocked() (*Client, error) {
	client, err := b.dial()
	if err != nil {
		b.state = stateFailed
		b.initErr = err
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	b.state = stateReady
	b.client = client
	return client, nil
}
