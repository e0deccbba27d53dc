package lanimport

import (
	"context"
	"log/slog"
)

// RouteSource feeds route addition/withdrawal events to an Importer.
// Watch blocks until ctx is canceled or the source errors; every observed
// route, not just ones a filter might accept, is sent down events.
type RouteSource interface {
	Watch(ctx context.Context, events chan<- RouteEvent) error
}

// Sink receives the filtered, domain-tagged import results. Production
// wiring implements this against the DLEP local-neighbor/LAN-advertisement
// path; tests use a recording fake.
type Sink interface {
	ImportRoute(r ImportedRoute)
}

// Importer runs a RouteSource and applies a fixed set of Entry filters to
// every observed route, forwarding matches to a Sink.
type Importer struct {
	source  RouteSource
	entries []Entry
	sink    Sink
	log     *slog.Logger
}

// NewImporter creates an Importer. If logger is nil, slog.Default() is
// used.
func NewImporter(source RouteSource, entries []Entry, sink Sink, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{source: source, entries: entries, sink: sink, log: logger}
}

// Run subscribes to the importer's RouteSource and applies the configured
// filters to every event until ctx is canceled or the source returns an
// error.
func (im *Importer) Run(ctx context.Context) error {
	events := make(chan RouteEvent, 64)

	errCh := make(chan error, 1)
	go func() {
		errCh <- im.source.Watch(ctx, events)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case ev, ok := <-events:
			if !ok {
				return <-errCh
			}
			im.handle(ev)
		}
	}
}

func (im *Importer) handle(ev RouteEvent) {
	matches := Apply(im.entries, ev)
	if len(matches) == 0 {
		im.log.Debug("route did not match any import entry", "dst", ev.Dst, "set", ev.Set)
		return
	}
	for _, m := range matches {
		im.log.Info("importing route", "entry", m.Entry, "domain", m.Domain, "dst", m.Dst, "set", m.Set)
		im.sink.ImportRoute(m)
	}
}
