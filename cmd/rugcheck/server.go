package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"eth-rugcheck/internal/pair"
	"eth-rugcheck/internal/render"
	"eth-rugcheck/internal/risk"
	"eth-rugcheck/internal/store"

	"github.com/ethereum/go-ethereum/common"
)

type reportFunc func(ctx context.Context, token common.Address) (*risk.RiskReport, error)

type server struct {
	check   reportFunc
	metrics http.Handler

	// Set when a report archive is configured.
	latest reportFunc
	list   func(ctx context.Context, limit int) ([]store.Summary, error)
}

func newServer(check reportFunc, metricsHandler http.Handler) *server {
	return &server{check: check, metrics: metricsHandler}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/report", s.handleReport)
	mux.HandleFunc("/reports", s.handleReports)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	return loggingMiddleware(mux)
}

func (s *server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token, ok := risk.ParseAddress(r.URL.Query().Get("token"))
	if !ok {
		writeError(w, http.StatusBadRequest, "token must be a 0x-prefixed address")
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = render.FormatJSON
	}
	contentType, ok := contentTypes[format]
	if !ok {
		writeError(w, http.StatusBadRequest, "format must be json, text or md")
		return
	}

	var report *risk.RiskReport
	if s.latest != nil && r.URL.Query().Get("cached") == "1" {
		cached, err := s.latest(r.Context(), token)
		switch {
		case err == nil:
			report = cached
		case !errors.Is(err, store.ErrNotFound):
			log.Printf("Archive lookup for %s failed: %v", token.Hex(), err)
		}
	}
	if report == nil {
		var err error
		report, err = s.check(r.Context(), token)
		switch {
		case errors.Is(err, pair.ErrPairNotFound):
			writeError(w, http.StatusNotFound, err.Error())
			return
		case err != nil:
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
	}

	w.Header().Set("Content-Type", contentType)
	if err := render.Write(w, format, report); err != nil {
		log.Printf("Render %s report failed: %v", format, err)
	}
}

var contentTypes = map[string]string{
	render.FormatJSON:     "application/json",
	render.FormatText:     "text/plain; charset=utf-8",
	render.FormatMarkdown: "text/markdown; charset=utf-8",
}

func (s *server) handleReports(w http.ResponseWriter, r *http.Request) {
	if s.list == nil {
		writeError(w, http.StatusNotFound, "no report archive configured")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	rows, err := s.list(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []store.Summary{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rows)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s took %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// serve runs s on addr until ctx is cancelled.
func serve(ctx context.Context, addr string, s *server) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Println("Shutdown signal received, stopping...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		log.Println("Graceful shutdown complete")
		return nil
	}
}
