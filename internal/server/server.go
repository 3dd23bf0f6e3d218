// Package server exposes a read-only status API over the watermark store.
package server

import (
	"context"
	"encoding/csv"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"feedwatch/relay/internal/models"
	"feedwatch/relay/internal/server/api"
	"feedwatch/relay/internal/state"
)

// apiKeyMiddleware checks for the X-API-Key header and validates it against the provided key.
// If key is empty, it allows all requests.
func apiKeyMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			reqAPIKey := r.Header.Get("X-API-Key")
			if reqAPIKey == "" {
				http.Error(w, "API key required", http.StatusUnauthorized)
				return
			}

			if reqAPIKey != apiKey {
				http.Error(w, "Invalid API key", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// NewHandler builds the routed, logged handler. /health stays open when an
// API key is configured; everything under /v1 requires it.
func NewHandler(store state.Store, feeds []models.Feed, logger zerolog.Logger, apiKey string) http.Handler {
	watermarks := api.NewWatermarksHandler(store)

	r := chi.NewRouter()
	r.Use(
		hlog.NewHandler(logger),
		hlog.MethodHandler("method"),
		hlog.URLHandler("url"),
		hlog.RemoteAddrHandler("remote_addr"),
		hlog.UserAgentHandler("user_agent"),
		hlog.RequestIDHandler("req_id", "Request-Id"),
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Info().
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("HTTP Request")
		}),
	)

	r.Get("/health", healthCheckHandler)
	r.Route("/v1", func(r chi.Router) {
		r.Use(apiKeyMiddleware(apiKey))
		r.Get("/watermarks", watermarks.GetWatermarks)
		r.Get("/feeds", exportFeedsHandler(feeds))
	})

	if apiKey != "" {
		logger.Info().Msg("API key authentication enabled")
	} else {
		logger.Info().Msg("API key authentication disabled")
	}
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, store state.Store, feeds []models.Feed, listenAddr string, logger zerolog.Logger, apiKey string) error {
	logger = logger.With().Str("service", "relay-status").Logger()

	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           NewHandler(store, feeds, logger, apiKey),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("address", listenAddr).Msg("Status server starting")
		err := httpServer.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
		return nil

	case <-ctx.Done():
		logger.Info().Msg("Shutting down status server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("HTTP server shutdown error")
			if err := httpServer.Close(); err != nil {
				logger.Error().Err(err).Msg("HTTP server force close error")
			}
		}
		if err := <-serverErr; err != nil {
			logger.Error().Err(err).Msg("ListenAndServe error during shutdown")
		}
	}

	logger.Info().Msg("Server exiting.")
	return nil
}

// healthCheckHandler responds with a plain 200 OK for monitoring systems.
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Error writing health check response")
	}
}

// exportFeedsHandler returns the monitored feed table as CSV, in the same
// layout the feed table loader reads.
func exportFeedsHandler(feeds []models.Feed) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := hlog.FromRequest(r)

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=feeds.csv")

		csvWriter := csv.NewWriter(w)
		if err := csvWriter.Write([]string{"url", "color", "name"}); err != nil {
			log.Error().Err(err).Msg("Failed to write CSV header")
			return
		}
		for _, f := range feeds {
			if err := csvWriter.Write([]string{f.URL, strconv.Itoa(f.Color), f.Name}); err != nil {
				log.Error().Err(err).Msg("Failed to write CSV record")
				return
			}
		}

		csvWriter.Flush()
		if err := csvWriter.Error(); err != nil {
			log.Error().Err(err).Msg("Error flushing CSV data")
			return
		}
		log.Debug().Int("feed_count", len(feeds)).Msg("Exported feeds as CSV")
	}
}
