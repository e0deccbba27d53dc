package lanimport_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/oonf-go/godlep/internal/lanimport"
)

type recordingSink struct {
	mu       sync.Mutex
	imported []lanimport.ImportedRoute
}

func (s *recordingSink) ImportRoute(r lanimport.ImportedRoute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.imported = append(s.imported, r)
}

func (s *recordingSink) snapshot() []lanimport.ImportedRoute {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]lanimport.ImportedRoute, len(s.imported))
	copy(out, s.imported)
	return out
}

type chanSource struct {
	events []lanimport.RouteEvent
}

func (c *chanSource) Watch(ctx context.Context, out chan<- lanimport.RouteEvent) error {
	for _, ev := range c.events {
		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestImporterForwardsMatchesToSink(t *testing.T) {
	t.Parallel()

	src := &chanSource{events: []lanimport.RouteEvent{
		{Dst: mustPrefix(t, "10.0.0.0/24"), Set: true},
		{Dst: mustPrefix(t, "224.0.0.1/32"), Set: true}, // filtered out: multicast
	}}
	sink := &recordingSink{}
	entries := []lanimport.Entry{{Name: "default", Domain: 0, PrefixLength: -1}}

	im := lanimport.NewImporter(src, entries, sink, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := im.Run(ctx)
	if err != context.DeadlineExceeded && err != context.Canceled {
		t.Fatalf("Run() error = %v, want a context error", err)
	}

	got := sink.snapshot()
	if len(got) != 1 {
		t.Fatalf("sink recorded %d routes, want 1 (multicast should be filtered)", len(got))
	}
	if got[0].Entry != "default" {
		t.Errorf("imported route entry = %q, want %q", got[0].Entry, "default")
	}
}
