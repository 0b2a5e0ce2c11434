package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"limitlesswork/core"
	"limitlesswork/core/events"
	"limitlesswork/observability"
	"limitlesswork/storage/eventlog"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	txSeenTTL       = 15 * time.Minute
	limiterIdleTTL  = 10 * time.Minute
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeForbidden      = -32003
	codeConflict       = -32004
	codeNotFound       = -32005
	codeFunds          = -32006
	codeDuplicateTx    = -32010
	codeRateLimited    = -32020
)

// EventSource lists persisted events for escrow_listEvents.
type EventSource interface {
	List(ctx context.Context, f eventlog.Filter) ([]eventlog.Entry, error)
}

// ServerConfig tunes authentication, throttling and timeouts.
type ServerConfig struct {
	// JWTSecret verifies HS256 bearer tokens on market_sendTransaction. An
	// empty secret disables submission.
	JWTSecret    string
	RateLimit    float64 // submissions per second per client; zero is unlimited
	RateBurst    int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Logger       *slog.Logger
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type Server struct {
	processor *core.StateProcessor
	events    EventSource
	hub       *events.Hub
	cfg       ServerConfig
	logger    *slog.Logger
	methods   map[string]method
	router    http.Handler
	now       func() time.Time

	mu       sync.Mutex
	txSeen   map[string]time.Time
	limiters map[string]*clientLimiter
}

// NewServer exposes processor over JSON-RPC. events and hub may be nil, in
// which case escrow_listEvents and /ws/events report the feature unavailable.
func NewServer(processor *core.StateProcessor, source EventSource, hub *events.Hub, cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}
	s := &Server{
		processor: processor,
		events:    source,
		hub:       hub,
		cfg:       cfg,
		logger:    logger.With("component", "rpc"),
		now:       time.Now,
		txSeen:    make(map[string]time.Time),
		limiters:  make(map[string]*clientLimiter),
	}
	s.methods = s.methodTable()
	s.router = s.buildRouter()
	return s
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Post("/", s.handle)
	r.Get("/ws/events", s.handleEventsWS)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return otelhttp.NewHandler(r, "marketd.rpc")
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("json-rpc server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	HTTPStatus int         `json:"-"`
	Code       int         `json:"code"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidParams(message string, data interface{}) *RPCError {
	return &RPCError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: message, Data: data}
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// handle decodes one JSON-RPC request and dispatches it to the method table.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, nil)
		return
	}

	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON-RPC request", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}

	m, ok := s.methods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method), nil)
		observability.ModuleMetrics().Observe("unknown", req.Method, codeMethodNotFound, 0)
		return
	}

	start := s.now()
	result, err := m.handler(r, req.Params)
	duration := s.now().Sub(start)
	if err != nil {
		rpcErr := toRPCError(err)
		if rpcErr.Code == codeServerError {
			s.logger.Error("rpc method failed", "method", req.Method, "error", err)
		}
		observability.ModuleMetrics().Observe(m.module, req.Method, rpcErr.Code, duration)
		writeError(w, rpcErr.HTTPStatus, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	observability.ModuleMetrics().Observe(m.module, req.Method, 0, duration)
	writeResult(w, req.ID, result)
}

type healthResult struct {
	Status      string `json:"status"`
	ChainID     uint64 `json:"chainId"`
	Subscribers int    `json:"subscribers"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	res := healthResult{Status: "ok", ChainID: s.processor.ChainID()}
	if s.hub != nil {
		res.Subscribers = s.hub.Subscribers()
	}
	_ = json.NewEncoder(w).Encode(res)
}

func clientSource(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

func (s *Server) allowSource(source string, now time.Time) bool {
	if s.cfg.RateLimit <= 0 {
		return true
	}
	if source == "" {
		source = "unknown"
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, entry := range s.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(s.limiters, id)
		}
	}
	entry, ok := s.limiters[source]
	if !ok {
		entry = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(s.cfg.RateLimit), s.cfg.RateBurst)}
		s.limiters[source] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// seenTx reports whether hash was accepted recently.
func (s *Server) seenTx(hash string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for h, seenAt := range s.txSeen {
		if now.Sub(seenAt) > txSeenTTL {
			delete(s.txSeen, h)
		}
	}
	_, exists := s.txSeen[hash]
	return exists
}

func (s *Server) rememberTx(hash string, now time.Time) {
	s.mu.Lock()
	s.txSeen[hash] = now
	s.mu.Unlock()
}
