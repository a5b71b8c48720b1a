package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/vela-systems/distarray/internal/worker"
)

var (
	appName = "distarray-worker"
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
	app.Usage = "runs a distarray worker node"
	app.ArgsUsage = "<workerId> <masterHost> <masterPort>"
	app.Flags = []cli.Flag{
		cli.Int64Flag{
			Name:   "memory",
			EnvVar: "WORKER_MEMORY",
			Usage:  "advertised memory figure in mebibytes, informational only",
		},
	}
	app.Action = runMain
	return app
}

func runMain(appCtx *cli.Context) error {
	if appCtx.NArg() != 3 {
		return fmt.Errorf("usage: worker <workerId> <masterHost> <masterPort>")
	}
	workerID := appCtx.Args().Get(0)
	masterHost := appCtx.Args().Get(1)
	masterPort := appCtx.Args().Get(2)

	cfg := worker.Config{
		WorkerID:      workerID,
		MasterAddress: fmt.Sprintf("%s:%s", masterHost, masterPort),
		Memory:        appCtx.Int64("memory"),
		Logger:        logger.WithField("workerId", workerID),
	}

	w, err := worker.New(cfg)
	if err != nil {
		return err
	}
	if err := w.Dial(); err != nil {
		return err
	}
	defer w.Close()

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

	if err := w.Run(ctx); err != nil {
		return err
	}
	logger.Info("worker shut down cleanly")
	return nil
}
