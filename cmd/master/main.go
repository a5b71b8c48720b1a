package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/vela-systems/distarray/internal/master"
)

var (
	appName = "distarray-master"
	appSha  = "populated-at-link-time"
	logger  *logrus.Entry
)

func main() {
	host, _ := os.Hostname()
	rootLogger := logrus.New()
	rootLogger.SetFormatter(new(logrus.JSONFormatter))
	logger = rootLogger.WithFields(logrus.Fields{
		"app":  appName,
		"sha":  appSha,
		"host": host,
	})

	if err := makeApp().Run(os.Args); err != nil {
		logger.WithField("err", err).Error("shutting down due to error")
		_ = os.Stderr.Sync()
		os.Exit(1)
	}
}

func makeApp() *cli.App {
	app := cli.NewApp()
	app.Name = appName
	app.Version = appSha
	app.Usage = "runs the distarray master node"
	app.ArgsUsage = "<port>"
	app.Flags = []cli.Flag{
		cli.IntFlag{
			Name:   "replication-factor",
			Value:  master.DefaultReplicationFactor,
			EnvVar: "REPLICATION_FACTOR",
			Usage:  "total copies of each segment, including the primary",
		},
		cli.DurationFlag{
			Name:   "heartbeat-timeout",
			Value:  master.DefaultHeartbeatTimeout,
			EnvVar: "HEARTBEAT_TIMEOUT",
			Usage:  "how long a worker may stay silent before being declared dead",
		},
		cli.DurationFlag{
			Name:   "health-check-interval",
			Value:  master.DefaultHealthCheckInterval,
			EnvVar: "HEALTH_CHECK_INTERVAL",
			Usage:  "period of the health monitor's liveness sweep",
		},
		cli.StringFlag{
			Name:   "metrics-addr",
			EnvVar: "METRICS_ADDR",
			Usage:  "address to serve Prometheus metrics on; disabled if unset",
		},
	}
	app.Action = runMain
	return app
}

func runMain(appCtx *cli.Context) error {
	if appCtx.NArg() != 1 {
		return fmt.Errorf("usage: master <port>")
	}
	port := appCtx.Args().Get(0)

	cfg := master.Config{
		ListenAddress:       fmt.Sprintf(":%s", port),
		MetricsAddress:      appCtx.String("metrics-addr"),
		ReplicationFactor:   appCtx.Int("replication-factor"),
		HeartbeatTimeout:    appCtx.Duration("heartbeat-timeout"),
		HealthCheckInterval: appCtx.Duration("health-check-interval"),
		Logger:              logger,
	}

	m, err := master.New(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigCh:
			logger.WithField("signal", sig.String()).Info("shutting down due to signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := m.Run(ctx); err != nil {
		return err
	}
	logger.Info("master shut down cleanly")
	return nil
}
