// Package api exposes the registry's published prices over HTTP and,
// optionally, streams accepted publications over WebSocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openfeeds/oracle-aggregator/pkg/logging"
	"github.com/openfeeds/oracle-aggregator/pkg/registry"
)

// PriceEntry is the JSON representation of one asset's published state.
type PriceEntry struct {
	Asset     string `json:"asset"`
	Price     string `json:"price"`
	Timestamp string `json:"timestamp"`
	Valid     bool   `json:"valid"`
	Fresh     bool   `json:"fresh"`
}

// Server serves read-only price endpoints backed by the registry.
type Server struct {
	addr     string
	assets   []string
	registry registry.Registry
	logger   *logging.Logger
	server   *http.Server
	hub      *WebSocketHub // optional streaming hub, mounted at /ws
}

// NewServer creates a read API server for the given assets.
func NewServer(addr string, assets []string, reg registry.Registry, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Server{
		addr:     addr,
		assets:   assets,
		registry: reg,
		logger:   logger,
	}
}

// SetWebSocketHub mounts a streaming hub at /ws. Must be called before Start.
func (s *Server) SetWebSocketHub(hub *WebSocketHub) {
	s.hub = hub
}

// Start runs the HTTP server until Stop is called.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/prices", s.handlePrices)
	mux.HandleFunc("/v1/prices/", s.handlePrice)
	if s.hub != nil {
		mux.HandleFunc("/ws", s.hub.handleWebSocket)
		go s.hub.run()
	}

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("Starting API server", "addr", s.addr, "websocket", s.hub != nil)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("API server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server and the streaming hub.
func (s *Server) Stop(ctx context.Context) error {
	if s.hub != nil {
		s.hub.stop()
	}
	if s.server != nil {
		s.logger.Info("Stopping API server")
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleHealth reports registry connectivity.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.registry.Ping(ctx); err != nil {
		http.Error(w, "registry unreachable", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handlePrices returns the published state of every tracked asset. Assets
// without a published value yet are omitted.
func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	entries := make([]PriceEntry, 0, len(s.assets))
	for _, asset := range s.assets {
		entry, err := s.readEntry(ctx, asset)
		if err != nil {
			if errors.Is(err, registry.ErrAssetNotFound) {
				continue
			}
			s.logger.Error("Failed to read asset state", "asset", asset, "error", err.Error())
			http.Error(w, "registry unavailable", http.StatusServiceUnavailable)
			return
		}
		entries = append(entries, entry)
	}

	s.sendJSON(w, entries)
}

// handlePrice returns the published state of a single asset.
func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	asset := strings.TrimPrefix(r.URL.Path, "/v1/prices/")
	if asset == "" || strings.Contains(asset, "/") {
		http.NotFound(w, r)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	entry, err := s.readEntry(ctx, asset)
	if err != nil {
		if errors.Is(err, registry.ErrAssetNotFound) {
			http.Error(w, "no published price for "+asset, http.StatusNotFound)
			return
		}
		s.logger.Error("Failed to read asset state", "asset", asset, "error", err.Error())
		http.Error(w, "registry unavailable", http.StatusServiceUnavailable)
		return
	}

	s.sendJSON(w, entry)
}

// readEntry builds the response entry for one asset, deriving freshness at
// read time.
func (s *Server) readEntry(ctx context.Context, asset string) (PriceEntry, error) {
	state, err := s.registry.ReadState(ctx, asset)
	if err != nil {
		return PriceEntry{}, err
	}

	fresh, err := s.registry.IsFresh(ctx, asset)
	if err != nil {
		return PriceEntry{}, err
	}

	return PriceEntry{
		Asset:     asset,
		Price:     state.Price.String(),
		Timestamp: state.Timestamp.UTC().Format(time.RFC3339),
		Valid:     state.Valid,
		Fresh:     fresh,
	}, nil
}

// sendJSON sends a JSON response.
func (s *Server) sendJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err.Error())
	}
}
