package remotecontrol

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
)

// Server accepts TCP connections and runs one Registry command per line,
// replying inline, the same telnet-style shape as the command contract
// itself: connect, send a line, read the response, repeat until "quit" or
// the connection closes.
type Server struct {
	addr     string
	registry *Registry
	log      *slog.Logger
}

// NewServer creates a remote-control line server listening on addr,
// dispatching every line received to registry.
func NewServer(addr string, registry *Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:     addr,
		registry: registry,
		log:      logger.With(slog.String("component", "remotecontrol.server")),
	}
}

// Run listens on the server's address and serves connections until ctx is
// canceled.
func (s *Server) Run(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	s.log.Info("remote-control server listening", slog.String("addr", s.addr))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("accept on %s: %w", s.addr, err)
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		result, stop, err := s.registry.Execute(line, conn)
		if err != nil && result != ResultUnknownCommand {
			fmt.Fprintf(conn, "error: %v\n", err)
		} else if err != nil {
			fmt.Fprintf(conn, "%v\n", err)
		}

		if result == ResultQuit {
			return
		}
		if result == ResultContinuous && stop != nil {
			// The stream writes directly to conn until the connection
			// closes; Registry.StopAllContinuous cleans it up on
			// server shutdown.
			continue
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		s.log.Debug("connection read error", slog.String("error", err.Error()))
	}
}
