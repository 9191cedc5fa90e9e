package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"orbexecutor/src/connectors"
	"orbexecutor/src/controller"
	"orbexecutor/src/database"
	"orbexecutor/src/executor"
	"orbexecutor/src/executors"
)

var (
	APP_NAME    = os.Getenv("APP_NAME")
	USE_WS_FEED = os.Getenv("USE_WS_FEED")
)

func SetupLogger() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))

	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		level = logger.DebugLevel
	}

	logger.SetLevel(level)
	logger.SetFormatter(&logger.TextFormatter{
		FullTimestamp: true,
	})
}

func main() {
	SetupLogger()

	if err := database.InitMainDB(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	config := connectors.GetConfig()
	client := connectors.NewIBGatewayClient(config.GatewayAccountID, config.GatewayBaseURL, config.GatewayInsecure)
	defer handlePanic(client)

	ctx := context.Background()

	if USE_WS_FEED == "true" {
		stream := connectors.NewMarketDataStream(config.GatewayWSURL, config.GatewayInsecure)
		if err := stream.Connect(ctx); err != nil {
			logger.WithError(err).Warn("market data stream unavailable, snapshots only")
		} else {
			client = client.WithStream(stream)
			defer stream.Close()
		}
	}

	err := executors.RunCycle(ctx, client, executor.RealClock{})

	switch {
	case err == nil:
		logger.Info("cycle completed")
	case errors.Is(err, controller.ErrNoSignal):
		logger.Info("no tradable signal, exiting clean")
	default:
		logger.WithError(err).Error("cycle failed")
		os.Exit(1)
	}
}

// handlePanic logs the panic and sweeps any orders the crashed cycle left at
// the venue before exiting non-zero.
func handlePanic(session connectors.Session) {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error(fmt.Sprintf("Application %s panic", APP_NAME))

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := executor.CancelAllOpenOrders(ctx, session, executor.RealClock{}); err != nil {
			logger.WithError(err).Error("failed to cancel open orders during panic cleanup")
		}

		os.Exit(1)
	}
}
