package daemon

import (
	"time"

	"github.com/ankittk/postcraft/internal/config"
)

// StartOptions configures the background server.
type StartOptions struct {
	Home       string
	Settings   config.Settings
	Addr       string // overrides Settings.HTTP.Addr
	Dev        bool
	PprofAddr  string
	Offline    bool // never call remote models
	EnableOtel bool // OTel meter provider with Prometheus exporter on /metrics
	Now        func() time.Time
}

// StatusInfo is the result of Status (running or not, PID, listen addr).
type StatusInfo struct {
	Running bool
	PID     int
	Addr    string
}
