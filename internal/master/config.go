package master

import (
	"io"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// DefaultReplicationFactor is the total number of copies of each segment
// (primary + replicas) used when Config.ReplicationFactor is unset.
const DefaultReplicationFactor = 2

// DefaultHeartbeatTimeout is how long a worker may stay silent before the
// health monitor declares it dead.
const DefaultHeartbeatTimeout = 10 * time.Second

// DefaultHealthCheckInterval is how often the health monitor sweeps the
// registry for expired workers.
const DefaultHealthCheckInterval = 5 * time.Second

// Config encapsulates the configuration options for a Master.
type Config struct {
	// ListenAddress is the TCP address the master listens on for both
	// worker and client connections. It is required: Validate rejects an
	// empty address and does not fill in a default port.
	ListenAddress string

	// MetricsAddress, if non-empty, serves Prometheus metrics on this
	// HTTP address.
	MetricsAddress string

	// ReplicationFactor is the total number of copies (primary +
	// replicas) placed for each segment. Defaults to
	// DefaultReplicationFactor.
	ReplicationFactor int

	// HeartbeatTimeout is how long a worker may go silent before being
	// declared dead. Defaults to DefaultHeartbeatTimeout.
	HeartbeatTimeout time.Duration

	// HealthCheckInterval is the health monitor's tick period. Defaults
	// to DefaultHealthCheckInterval.
	HealthCheckInterval time.Duration

	// MaxConcurrentHandlers bounds the number of simultaneously active
	// connection handlers (client requests and worker read loops).
	// Defaults to 20.
	MaxConcurrentHandlers int

	// Logger is used for all structured log output. If unset, a
	// discarding logger is installed.
	Logger *logrus.Entry
}

// Validate fills in defaults and rejects missing required fields.
func (cfg *Config) Validate() error {
	var err error
	if cfg.ListenAddress == "" {
		err = multierror.Append(err, xerrors.Errorf("listen address not specified"))
	}
	if cfg.ReplicationFactor <= 0 {
		cfg.ReplicationFactor = DefaultReplicationFactor
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = DefaultHealthCheckInterval
	}
	if cfg.MaxConcurrentHandlers <= 0 {
		cfg.MaxConcurrentHandlers = 20
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard, Formatter: new(logrus.JSONFormatter), Level: logrus.InfoLevel})
	}
	return err
}
