package server

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"tokendash/pkg/logger"
	"tokendash/pkg/models"
	"tokendash/pkg/validator"
	"tokendash/pkg/watcher"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: allowedOrigin,
}

// Controller is the part of the watcher the API exposes.
type Controller interface {
	Snapshot() models.Snapshot
	History() []models.TransactionRecord
	TransferTo(ctx context.Context, recipient, amount string) (common.Hash, error)
	Mint(ctx context.Context) (common.Hash, error)
	Subscribe() watcher.Subscriber
	Unsubscribe(ch watcher.Subscriber)
}

type transferRequest struct {
	Recipient string `json:"recipient" validate:"required,eth_addr"`
	Amount    string `json:"amount" validate:"required,numeric"`
}

type writeResponse struct {
	TxHash string `json:"tx_hash"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Server struct {
	controller Controller
	clients    map[*websocket.Conn]bool
	mu         sync.Mutex
	mux        *http.ServeMux
}

func NewServer(c Controller) *Server {
	s := &Server{
		controller: c,
		clients:    make(map[*websocket.Conn]bool),
		mux:        http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/status", localOnly(s.handleStatus))
	s.mux.HandleFunc("GET /api/history", localOnly(s.handleHistory))
	s.mux.HandleFunc("POST /api/transfer", localOnly(requireJSON(s.handleTransfer)))
	s.mux.HandleFunc("POST /api/mint", localOnly(requireJSON(s.handleMint)))
	s.mux.HandleFunc("/ws", s.handleWS)
}

// allowedOrigin accepts requests without an Origin header (curl, scripts)
// and requests from pages served on a loopback host.
func allowedOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func localOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowedOrigin(r) {
			logger.Warn(r.Context(), "rejected cross-origin request", "origin", r.Header.Get("Origin"), "path", r.URL.Path)
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "cross-origin requests are not allowed"})
			return
		}
		next(w, r)
	}
}

// requireJSON turns away form and text/plain posts, which browsers send
// cross-origin without a preflight.
func requireJSON(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "application/json" {
			writeJSON(w, http.StatusUnsupportedMediaType, errorResponse{Error: "Content-Type must be application/json"})
			return
		}
		next(w, r)
	}
}

// Start serves the API on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	go s.listenToWatcher(ctx)

	srv := &http.Server{Addr: addr, Handler: s.mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info(ctx, "API server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.History())
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}
	if err := validator.Validate(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	hash, err := s.controller.TransferTo(r.Context(), req.Recipient, req.Amount)
	s.writeResult(w, r, "transfer", hash, err)
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	hash, err := s.controller.Mint(r.Context())
	s.writeResult(w, r, "mint", hash, err)
}

func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, action string, hash common.Hash, err error) {
	if err == nil {
		writeJSON(w, http.StatusAccepted, writeResponse{TxHash: hash.Hex()})
		return
	}

	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Warn(r.Context(), "API write failed", "action", action, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, watcher.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, watcher.ErrMetadataPending),
		errors.Is(err, watcher.ErrNotConnected),
		errors.Is(err, watcher.ErrWriteInFlight):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	// Register under the lock together with the initial write so a broadcast
	// cannot interleave with it.
	s.mu.Lock()
	s.clients[conn] = true
	err = conn.WriteJSON(map[string]interface{}{
		"type": "initial",
		"data": s.controller.Snapshot(),
	})
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
	}()
	if err != nil {
		return
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) listenToWatcher(ctx context.Context) {
	sub := s.controller.Subscribe()
	defer s.controller.Unsubscribe(sub)

	for {
		select {
		case event, ok := <-sub:
			if !ok {
				return
			}
			s.broadcast(event)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) broadcast(event watcher.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for client := range s.clients {
		if err := client.WriteJSON(event); err != nil {
			_ = client.Close()
			delete(s.clients, client)
		}
	}
}
