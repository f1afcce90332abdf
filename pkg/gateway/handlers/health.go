package handlers

import (
	"net/http"
	"sort"

	"github.com/vango-go/vai-spy/pkg/core/types"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// ReadyHandler reports which speech providers are usable. The process is
// ready when at least one recognizer is available and it is not draining.
type ReadyHandler struct {
	Capabilities func() map[string]types.Capability
	Draining     func() bool
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK        bool                        `json:"ok"`
		Providers map[string]types.Capability `json:"providers"`
		Issues    []string                    `json:"issues,omitempty"`
	}

	caps := map[string]types.Capability{}
	if h.Capabilities != nil {
		caps = h.Capabilities()
	}

	var issues []string
	canListen := false
	for name, c := range caps {
		if !c.Available {
			issues = append(issues, name+": "+c.Reason)
			continue
		}
		if name == "stt.cloud" || name == "stt.device" {
			canListen = true
		}
	}
	sort.Strings(issues)
	if !canListen {
		issues = append(issues, "no speech recognizer available")
	}
	draining := h.Draining != nil && h.Draining()
	if draining {
		issues = append(issues, "draining")
	}

	ok := canListen && !draining
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, readyResp{OK: ok, Providers: caps, Issues: issues})
}
