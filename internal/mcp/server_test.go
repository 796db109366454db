package mcp

import (
	"context"
	"io"
	"testing"
	"time"
)

func TestServe_StopsOnContextCancel(t *testing.T) {
	s := NewServer(&fakeService{})

	// Reader that never delivers input, like an idle stdin.
	blocked, _ := io.Pipe()
	t.Cleanup(func() { _ = blocked.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.serve(ctx, blocked, io.Discard) }()

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return after context cancellation")
	}
}

func TestServe_StopsOnInputEOF(t *testing.T) {
	s := NewServer(&fakeService{})

	done := make(chan error, 1)
	go func() {
		r, w := io.Pipe()
		_ = w.Close() // immediate EOF
		done <- s.serve(context.Background(), r, io.Discard)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return on input EOF")
	}
}
