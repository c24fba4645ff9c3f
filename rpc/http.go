package rpc

import (
	"bytes"
	"crypto/subtle"
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
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"creditmanager/native/common"
	"creditmanager/native/credit"
	"creditmanager/native/params"
	"creditmanager/observability/metrics"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

// Server is the JSON-RPC front end of the credit daemon. A single POST
// endpoint carries every method; health and metrics are plain HTTP.
type Server struct {
	engine   *credit.Engine
	registry *params.Registry
	logger   *slog.Logger

	authToken    string
	quota        common.Quota
	epochSeconds uint32

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	usage    map[string]common.QuotaNow

	now func() time.Time
}

// ServerConfig wires the RPC server.
type ServerConfig struct {
	Engine   *credit.Engine
	Registry *params.Registry
	Logger   *slog.Logger

	// AuthToken guards the privileged methods; empty disables them entirely.
	AuthToken string

	MaxRequestsPerMin uint32
	QuotaEpochSeconds uint32
}

func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	epochSeconds := cfg.QuotaEpochSeconds
	if epochSeconds == 0 {
		epochSeconds = 60
	}
	return &Server{
		engine:   cfg.Engine,
		registry: cfg.Registry,
		logger:   logger.With("component", "rpc"),
		authToken: strings.TrimSpace(cfg.AuthToken),
		quota: common.Quota{
			MaxRequestsPerMin: cfg.MaxRequestsPerMin,
			EpochSeconds:      epochSeconds,
		},
		epochSeconds: epochSeconds,
		limiters:     make(map[string]*rate.Limiter),
		usage:        make(map[string]common.QuotaNow),
		now:          time.Now,
	}
}

// Router assembles the HTTP mux: JSON-RPC on /, liveness on /healthz and
// Prometheus metrics on /metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Post("/", s.handle)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	return r
}

// requestID tags every request with a correlation ID, honouring one supplied
// by the caller.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
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

// handle is the main request handler that routes to specific handlers.
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
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	if err := s.throttle(r); err != nil {
		metrics.RPCRequests.WithLabelValues(req.Method, "throttled").Inc()
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", err.Error())
		return
	}

	started := s.now()
	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.route(recorder, r, req)
	metrics.RPCDuration.WithLabelValues(req.Method).Observe(time.Since(started).Seconds())
	outcome := "ok"
	if recorder.status >= 400 {
		outcome = "error"
	}
	metrics.RPCRequests.WithLabelValues(req.Method, outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) route(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	switch req.Method {
	case "credit_createAccount":
		s.handleCreateAccount(w, r, req)
	case "credit_updateAccount":
		s.handleUpdateAccount(w, r, req)
	case "credit_repayFromWallet":
		s.handleRepayFromWallet(w, r, req)
	case "credit_positions":
		s.handlePositions(w, r, req)
	case "credit_health":
		s.handleHealth(w, r, req)
	case "credit_vaultPositionValue":
		s.handleVaultPositionValue(w, r, req)
	case "credit_allCoinBalances":
		s.handleAllCoinBalances(w, r, req)
	case "credit_totalDebtShares":
		s.handleTotalDebtShares(w, r, req)
	case "credit_allTotalDebtShares":
		s.handleAllTotalDebtShares(w, r, req)
	case "credit_estimateMaxWithdraw":
		s.handleEstimateMaxWithdraw(w, r, req)
	case "credit_estimateMaxSwap":
		s.handleEstimateMaxSwap(w, r, req)
	case "credit_config":
		s.handleGetConfig(w, r, req)
	case "credit_updateOwner":
		s.withAuth(w, r, req, s.handleUpdateOwner)
	case "credit_acceptOwnership":
		s.withAuth(w, r, req, s.handleAcceptOwnership)
	case "credit_updateConfig":
		s.withAuth(w, r, req, s.handleUpdateConfig)
	case "credit_updateNftConfig":
		s.withAuth(w, r, req, s.handleUpdateNftConfig)
	case "params_setAsset":
		s.withAuth(w, r, req, s.handleSetAssetParams)
	case "params_setVault":
		s.withAuth(w, r, req, s.handleSetVaultConfig)
	case "params_setCloseFactor":
		s.withAuth(w, r, req, s.handleSetCloseFactor)
	case "params_setTargetHealthFactor":
		s.withAuth(w, r, req, s.handleSetTargetHealthFactor)
	case "params_setPaused":
		s.withAuth(w, r, req, s.handleSetPaused)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
	}
}

type handlerFunc func(http.ResponseWriter, *http.Request, *RPCRequest)

func (s *Server) withAuth(w http.ResponseWriter, r *http.Request, req *RPCRequest, next handlerFunc) {
	if s.authToken == "" {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "privileged methods disabled", nil)
		return
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.authToken)) != 1 {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "invalid or missing bearer token", nil)
		return
	}
	next(w, r, req)
}

// throttle enforces both the short-window rate limiter and the per-epoch
// request quota for the calling address.
func (s *Server) throttle(r *http.Request) error {
	if s.quota.MaxRequestsPerMin == 0 {
		return nil
	}
	caller := clientKey(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, ok := s.limiters[caller]
	if !ok {
		perSecond := rate.Limit(float64(s.quota.MaxRequestsPerMin) / 60.0)
		limiter = rate.NewLimiter(perSecond, int(s.quota.MaxRequestsPerMin))
		s.limiters[caller] = limiter
	}
	if !limiter.Allow() {
		return fmt.Errorf("caller %s exceeded burst limit", caller)
	}

	epoch := uint64(s.now().Unix()) / uint64(s.epochSeconds)
	next, err := common.CheckQuota(s.quota, epoch, s.usage[caller], 1, 0)
	if err != nil {
		return err
	}
	s.usage[caller] = next
	return nil
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
