package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"orbexecutor/src/repository"
)

// Handler builds the read-only trade report router.
func Handler(tradeRepo *repository.TradeRepository) http.Handler {
	r := chi.NewRouter()

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, req *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("/healthcheck write error")
		}
	})

	r.Get("/api/trades", func(w http.ResponseWriter, req *http.Request) {
		records, err := tradeRepo.FindAll(req.Context())
		if err != nil {
			logger.WithError(err).Error("failed to load trade records")
			http.Error(w, "failed to load trade records", http.StatusInternalServerError)
			return
		}
		writeJSON(w, records)
	})

	r.Get("/api/summary", func(w http.ResponseWriter, req *http.Request) {
		summary, err := tradeRepo.Summarize(req.Context())
		if err != nil {
			logger.WithError(err).Error("failed to summarize trades")
			http.Error(w, "failed to summarize trades", http.StatusInternalServerError)
			return
		}
		writeJSON(w, summary)
	})

	return r
}

// StartServer serves the trade report API until SIGINT/SIGTERM.
func StartServer(port string) {
	// Graceful server
	addr := ":" + port
	srv := &http.Server{
		Addr:    addr,
		Handler: Handler(repository.NewTradeRepository()),
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	// Shutdown on SIGINT or SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}
