// Package httpbridge exposes internal/remotecontrol commands over HTTP:
// one request runs one command and returns its output as the response
// body, translating the command's Result into an HTTP status code.
package httpbridge

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/oonf-go/godlep/internal/remotecontrol"
)

// Handler adapts a remotecontrol.Registry to http.Handler. Requests carry
// the command in the "c" query parameter and its parameter text in "p",
// e.g. GET /?c=sessions or GET /?c=neighbors&p=wlan0.
type Handler struct {
	registry *remotecontrol.Registry
	log      *slog.Logger
}

// NewHandler creates an http.Handler backed by registry. If logger is nil,
// slog.Default() is used.
func NewHandler(registry *remotecontrol.Registry, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{registry: registry, log: logger}
}

// ServeHTTP runs one remote-control command per request.
//
//   - ResultActive / ResultQuit -> 200, command output as the body.
//   - ResultUnknownCommand      -> 404, the error message as the body.
//   - ResultContinuous or any other outcome (a continuous stream makes no
//     sense over a single request/response cycle) -> 400.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cmd := r.URL.Query().Get("c")
	if cmd == "" {
		http.Error(w, "missing required query parameter \"c\"", http.StatusBadRequest)
		return
	}
	if param := r.URL.Query().Get("p"); param != "" {
		cmd = cmd + " " + param
	}

	var body bytes.Buffer
	result, stop, err := h.registry.Execute(cmd, &body)

	switch result {
	case remotecontrol.ResultActive, remotecontrol.ResultQuit:
		if err != nil {
			h.log.Warn("remote-control command reported an error", "command", cmd, "error", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body.Bytes())

	case remotecontrol.ResultUnknownCommand:
		http.Error(w, err.Error(), http.StatusNotFound)

	default:
		if stop != nil {
			stop()
		}
		http.Error(w, "command requires a continuous connection, unsupported over HTTP", http.StatusBadRequest)
	}
}
