package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"orbexecutor/cmd/barcache"
	"orbexecutor/src/connectors"
	"orbexecutor/src/controller"
	"orbexecutor/src/database"
	"orbexecutor/src/executor"
	"orbexecutor/src/executors"
	"orbexecutor/src/server"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "ORB CMD"
	app.Usage = "The ORB executor command line interface"

	app.Commands = []cli.Command{
		runCMD,
		reportCMD,
		barCacheCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	runCMD = cli.Command{
		Name:        "run",
		Usage:       "run one trade cycle",
		Action:      runAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run one signal-to-exit trade cycle against the gateway`,
	}
	reportCMD = cli.Command{
		Name:        "report",
		Usage:       "serve the trade report API",
		Action:      reportAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Serve the read-only trade report API`,
	}
	barCacheCMD = cli.Command{
		Name:        "barcache",
		Usage:       "refresh the daily bar cache",
		Action:      barCacheAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Refresh the local daily bar cache from the reference exchange`,
	}
)

func runAction(_ *cli.Context) error {
	logrus.Info("Starting run CMD")

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	config := connectors.GetConfig()
	client := connectors.NewIBGatewayClient(config.GatewayAccountID, config.GatewayBaseURL, config.GatewayInsecure)

	err := executors.RunCycle(context.Background(), client, executor.RealClock{})
	if errors.Is(err, controller.ErrNoSignal) {
		logrus.Info("no tradable signal, exiting clean")
		return nil
	}
	return err
}

func reportAction(_ *cli.Context) error {
	logrus.Info("Starting report CMD")

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	config := server.GetConfig()
	server.StartServer(config.Port)
	return nil
}

func barCacheAction(_ *cli.Context) error {
	logrus.Info("Starting bar cache CMD")

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	cache := &barcache.BarCache{
		Log: logrus.WithField("cmd", "barcache"),
		DB:  database.MainDB,
	}
	if err := cache.Start(); err != nil {
		logrus.WithError(err).Error("Starting bar cache CMD")
		return err
	}
	return nil
}
