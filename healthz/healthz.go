// Package healthz serves liveness and readiness probes.
package healthz

import (
	"fmt"
	"net/http"

	"github.com/golang/glog"
)

// Check reports an error while the process is not able to serve.
type Check func() error

type Handler struct {
	checks []Check
}

// New returns a probe handler that answers 200 while every check passes.
// With no checks it always answers 200.
func New(checks ...Check) *Handler {
	return &Handler{checks: checks}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	for _, c := range h.checks {
		if err := c(); err != nil {
			glog.V(1).Infof("Probe %s failed: %v", r.URL.Path, err)
			http.Error(w, fmt.Sprintf("503 Service Unavailable: %v", err), http.StatusServiceUnavailable)
			return
		}
	}
	w.Write([]byte("200 OK"))
}
