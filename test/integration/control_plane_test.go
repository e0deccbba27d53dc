//go:build integration

package integration_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/oonf-go/godlep/internal/dlep"
	"github.com/oonf-go/godlep/internal/httpbridge"
	"github.com/oonf-go/godlep/internal/remotecontrol"
)

// fakeInterface satisfies remotecontrol.SessionSource without pulling in
// any socket machinery, the same minimal shape cmd/dlepd wires
// *iface.Interface through.
type fakeInterface struct {
	name     string
	sessions []*dlep.Session
}

func (f *fakeInterface) Name() string              { return f.name }
func (f *fakeInterface) Sessions() []*dlep.Session { return f.sessions }

// newControlPlaneEnv starts an in-process HTTP bridge backed by a real
// remotecontrol.Registry, the in-process equivalent of running dlepctl
// against a live dlepd: this mirrors the handshake test's sessions
// instead of a daemon actually listening on a socket.
func newControlPlaneEnv(t *testing.T, sources []remotecontrol.SessionSource) *httptest.Server {
	t.Helper()

	registry := remotecontrol.NewRegistry()
	remotecontrol.RegisterSessionCommands(registry, func() []remotecontrol.SessionSource {
		return sources
	})

	handler := httpbridge.NewHandler(registry, nil)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func getCommand(t *testing.T, srv *httptest.Server, command, param string) (int, string) {
	t.Helper()

	url := srv.URL + "/?c=" + command
	if param != "" {
		url += "&p=" + param
	}
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("http.Get(%s): %v", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	return resp.StatusCode, string(body)
}

// TestControlPlaneSessionsAndNeighbors exercises the "sessions" and
// "neighbors" remote-control commands through the HTTP bridge exactly as
// dlepctl's HTTP client reaches them.
func TestControlPlaneSessionsAndNeighbors(t *testing.T) {
	registry := newFullRegistry()
	mac := []byte{0x02, 0, 0, 0, 0, 0x30}

	router := dlep.NewSession("wlan0/10.0.0.2:1234", dlep.RoleRouter, registry,
		dlep.WithOfferedExtensions(registry.IDs()))
	radio := dlep.NewSession("wlan0/10.0.0.1:1234", dlep.RoleRadio, registry)
	router.SetSend(bridge(t, radio))
	radio.SetSend(bridge(t, router))

	if err := router.EmitSignal(dlep.SignalPeerInitialization, nil); err != nil {
		t.Fatalf("handshake error = %v", err)
	}
	if err := radio.EmitSignal(dlep.SignalDestinationUp, mac); err != nil {
		t.Fatalf("EmitSignal(DestinationUp) error = %v", err)
	}
	t.Cleanup(func() {
		router.Close()
		radio.Close()
	})

	sources := []remotecontrol.SessionSource{
		&fakeInterface{name: "wlan0", sessions: []*dlep.Session{router}},
	}
	srv := newControlPlaneEnv(t, sources)

	status, body := getCommand(t, srv, "sessions", "")
	if status != http.StatusOK {
		t.Fatalf("GET sessions: status = %d, body = %q", status, body)
	}
	if !strings.Contains(body, "wlan0") || !strings.Contains(body, router.ID()) {
		t.Fatalf("sessions output missing expected fields: %q", body)
	}
	if !strings.Contains(body, "neighbors=1") {
		t.Fatalf("sessions output should report one neighbor: %q", body)
	}

	status, body = getCommand(t, srv, "neighbors", "wlan0")
	if status != http.StatusOK {
		t.Fatalf("GET neighbors: status = %d, body = %q", status, body)
	}
	wantMAC := fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", mac[0], mac[1], mac[2], mac[3], mac[4], mac[5])
	if !strings.Contains(body, wantMAC) {
		t.Fatalf("neighbors output missing MAC %s: %q", wantMAC, body)
	}

	status, body = getCommand(t, srv, "neighbors", "eth1")
	if status != http.StatusOK {
		t.Fatalf("GET neighbors(eth1): status = %d, body = %q", status, body)
	}
	if strings.TrimSpace(body) != "" {
		t.Fatalf("neighbors output for an unrelated interface should be empty: %q", body)
	}
}

// TestControlPlaneUnknownCommandReturns404 verifies the HTTP bridge
// translates remotecontrol.ResultUnknownCommand into a 404, the
// boundary dlepctl relies on to distinguish a bad command from a
// daemon-side failure.
func TestControlPlaneUnknownCommandReturns404(t *testing.T) {
	srv := newControlPlaneEnv(t, nil)

	status, body := getCommand(t, srv, "no-such-command", "")
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, body = %q", status, body)
	}
}
