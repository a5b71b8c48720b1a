package worker

import (
	"io"
	"runtime"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// DefaultHeartbeatInterval is how often the worker writes a HEARTBEAT
// envelope on its master connection.
const DefaultHeartbeatInterval = 3 * time.Second

// Config encapsulates the configuration options for a Worker.
type Config struct {
	// WorkerID is this worker's self-chosen identifier, carried as the
	// "from" field of REGISTER_WORKER and every subsequent envelope.
	WorkerID string

	// MasterAddress is the "host:port" the worker dials on startup.
	MasterAddress string

	// AdvertiseHost/AdvertisePort are reported to the master in
	// REGISTER_WORKER; they are informational only.
	AdvertiseHost string
	AdvertisePort string

	// Memory is the advertised memory figure, carried as an opaque int64
	// and never consulted by placement or recovery decisions.
	Memory int64

	// HeartbeatInterval defaults to DefaultHeartbeatInterval.
	HeartbeatInterval time.Duration

	// ComputePoolSize bounds concurrent kernel execution. Defaults to
	// runtime.NumCPU().
	ComputePoolSize int

	Logger *logrus.Entry
}

// Validate fills in defaults and rejects missing required fields.
func (cfg *Config) Validate() error {
	var err error
	if cfg.WorkerID == "" {
		err = multierror.Append(err, xerrors.Errorf("worker id not specified"))
	}
	if cfg.MasterAddress == "" {
		err = multierror.Append(err, xerrors.Errorf("master address not specified"))
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.ComputePoolSize <= 0 {
		cfg.ComputePoolSize = runtime.NumCPU()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard, Formatter: new(logrus.JSONFormatter), Level: logrus.InfoLevel})
	}
	return err
}
