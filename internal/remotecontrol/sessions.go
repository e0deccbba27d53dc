package remotecontrol

import (
	"fmt"
	"io"
	"strings"

	"github.com/oonf-go/godlep/internal/dlep"
)

// SessionSource exposes the live sessions of one configured interface,
// satisfied by *iface.Interface. It is an interface here rather than a
// direct dependency so this package stays usable without pulling in
// socket and discovery machinery.
type SessionSource interface {
	// Name returns the interface's configured name, e.g. "wlan0".
	Name() string

	// Sessions returns a snapshot of the interface's live sessions.
	Sessions() []*dlep.Session
}

// RegisterSessionCommands adds "sessions" and "neighbors" commands to r,
// reporting on every session currently tracked across sources. sources is
// read on every invocation, so interfaces brought up or torn down after
// registration are reflected automatically.
func RegisterSessionCommands(r *Registry, sources func() []SessionSource) {
	r.Add(Command{
		Name: "sessions",
		Help: "\"sessions\": list active DLEP sessions across all interfaces",
		Run: func(_ string, out io.Writer) (Result, StopFunc, error) {
			return listSessions(sources(), out)
		},
	})
	r.Add(Command{
		Name: "neighbors",
		Help: "\"neighbors <interface>\": list local neighbors of every session on an interface",
		Run: func(param string, out io.Writer) (Result, StopFunc, error) {
			return listNeighbors(sources(), strings.TrimSpace(param), out)
		},
	})
}

func listSessions(sources []SessionSource, out io.Writer) (Result, StopFunc, error) {
	for _, src := range sources {
		for _, s := range src.Sessions() {
			line := fmt.Sprintf("%-12s %-8s %-8s %-12s neighbors=%d\n",
				src.Name(), s.ID(), s.Role(), s.State(), len(s.Neighbors().All()))
			if _, err := io.WriteString(out, line); err != nil {
				return ResultActive, nil, fmt.Errorf("%w: %v", ErrWrite, err)
			}
		}
	}
	return ResultActive, nil, nil
}

func listNeighbors(sources []SessionSource, ifaceName string, out io.Writer) (Result, StopFunc, error) {
	for _, src := range sources {
		if ifaceName != "" && src.Name() != ifaceName {
			continue
		}
		for _, s := range src.Sessions() {
			for _, n := range s.Neighbors().All() {
				line := fmt.Sprintf("%-12s %-8s %-17s %-10s\n",
					src.Name(), s.ID(), fmtMAC(n.EndpointMAC), n.State)
				if _, err := io.WriteString(out, line); err != nil {
					return ResultActive, nil, fmt.Errorf("%w: %v", ErrWrite, err)
				}
			}
		}
	}
	return ResultActive, nil, nil
}

func fmtMAC(mac []byte) string {
	if len(mac) == 0 {
		return "-"
	}
	parts := make([]string, len(mac))
	for i, b := range mac {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(parts, ":")
}
