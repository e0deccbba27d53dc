package httpbridge_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/oonf-go/godlep/internal/httpbridge"
	"github.com/oonf-go/godlep/internal/remotecontrol"
)

func newTestServer(t *testing.T) (*httptest.Server, *remotecontrol.Registry) {
	t.Helper()

	registry := remotecontrol.NewRegistry()
	registry.Add(remotecontrol.Command{
		Name: "echo",
		Run: func(param string, out io.Writer) (remotecontrol.Result, remotecontrol.StopFunc, error) {
			io.WriteString(out, param)
			return remotecontrol.ResultActive, nil, nil
		},
	})
	registry.Add(remotecontrol.Command{
		Name: "tail",
		Run: func(param string, out io.Writer) (remotecontrol.Result, remotecontrol.StopFunc, error) {
			return remotecontrol.ResultContinuous, func() {}, nil
		},
	})

	handler := httpbridge.NewHandler(registry, nil)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, registry
}

func TestServeHTTPRunsCommandAndReturns200(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/?c=echo&p=hello")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "hello") {
		t.Errorf("body = %q, want it to contain %q", body, "hello")
	}
}

func TestServeHTTPUnknownCommandReturns404(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/?c=bogus")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestServeHTTPMissingCommandReturns400(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestServeHTTPContinuousCommandReturns400(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/?c=tail")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 (continuous commands are unsupported over HTTP)", resp.StatusCode)
	}
}
