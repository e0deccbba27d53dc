package lanimport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"

	apipb "github.com/osrg/gobgp/v3/api"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/anypb"
)

// Sentinel errors for the GoBGP-backed route source.
var (
	// ErrDialFailed indicates the gRPC dial to GoBGP failed.
	ErrDialFailed = errors.New("lanimport: gobgp gRPC dial failed")

	// ErrUnsupportedNLRI indicates a path update carried an NLRI type
	// this source does not know how to convert to a prefix.
	ErrUnsupportedNLRI = errors.New("lanimport: unsupported NLRI type")
)

// GoBGPSourceConfig holds connection parameters for the GoBGP gRPC client.
type GoBGPSourceConfig struct {
	// Addr is the GoBGP gRPC listen address (e.g., "127.0.0.1:50051").
	Addr string
}

// GoBGPSource is a RouteSource backed by a local GoBGP speaker's gRPC API.
// It subscribes to best-path table events and translates every announced
// or withdrawn path into a RouteEvent.
type GoBGPSource struct {
	conn *grpc.ClientConn
	api  apipb.GobgpApiClient
	log  *slog.Logger
}

// NewGoBGPSource dials GoBGP's gRPC API. The connection uses insecure
// credentials, matching the typical localhost-only deployment of GoBGP's
// API.
func NewGoBGPSource(cfg GoBGPSourceConfig, logger *slog.Logger) (*GoBGPSource, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("create gobgp route source: %w: empty address", ErrDialFailed)
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := grpc.NewClient(
		cfg.Addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("create gobgp route source to %s: %w: %w", cfg.Addr, ErrDialFailed, err)
	}

	return &GoBGPSource{
		conn: conn,
		api:  apipb.NewGobgpApiClient(conn),
		log:  logger.With(slog.String("component", "lanimport.gobgp"), slog.String("addr", cfg.Addr)),
	}, nil
}

// Close releases the underlying gRPC connection.
func (g *GoBGPSource) Close() error {
	return g.conn.Close()
}

// Watch streams best-path table events from GoBGP and converts each path
// update to a RouteEvent, sent to events until ctx is canceled or the
// stream ends.
func (g *GoBGPSource) Watch(ctx context.Context, events chan<- RouteEvent) error {
	stream, err := g.api.WatchEvent(ctx, &apipb.WatchEventRequest{
		Table: &apipb.WatchEventRequest_Table{
			Filters: []*apipb.WatchEventRequest_Table_Filter{
				{Type: apipb.WatchEventRequest_Table_Filter_BEST},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("watch gobgp table events: %w", err)
	}

	for {
		resp, err := stream.Recv()
		if err != nil {
			return fmt.Errorf("receive gobgp table event: %w", err)
		}

		table := resp.GetTable()
		if table == nil {
			continue
		}

		for _, path := range table.GetPaths() {
			ev, err := pathToRouteEvent(path)
			if err != nil {
				g.log.Warn("skipping unconvertible path", "error", err)
				continue
			}

			select {
			case events <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func pathToRouteEvent(path *apipb.Path) (RouteEvent, error) {
	nlri := &apipb.IPAddressPrefix{}
	if err := anypb.UnmarshalTo(path.GetNlri(), nlri, nil); err != nil {
		return RouteEvent{}, fmt.Errorf("%w: %v", ErrUnsupportedNLRI, err)
	}

	addr, err := netip.ParseAddr(nlri.GetPrefix())
	if err != nil {
		return RouteEvent{}, fmt.Errorf("%w: parse prefix %q: %v", ErrUnsupportedNLRI, nlri.GetPrefix(), err)
	}

	dst := netip.PrefixFrom(addr, int(nlri.GetPrefixLen()))

	return RouteEvent{
		Dst:      dst,
		Protocol: int32(apipb.Family_AFI_IP),
		Set:      !path.GetIsWithdraw(),
	}, nil
}
