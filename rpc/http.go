package rpc

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"lendchain/crypto"
	"lendchain/native/common"
	"lendchain/native/lending"
	"lendchain/native/lendpool"
	"lendchain/observability/metrics"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB

	mutationRatePerSecond = 2
	mutationBurst         = 5
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

// Server exposes the lending and pool engines over JSON-RPC.
type Server struct {
	lending *lending.Engine
	pool    *lendpool.Engine
	logger  *slog.Logger

	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	authToken string

	httpServer *http.Server
}

// NewServer builds a server around the two engines. The mutation auth token is
// read from LEND_RPC_TOKEN; when unset every mutating method is rejected.
func NewServer(lendingEngine *lending.Engine, poolEngine *lendpool.Engine, logger *slog.Logger) *Server {
	token := strings.TrimSpace(os.Getenv("LEND_RPC_TOKEN"))
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		lending:   lendingEngine,
		pool:      poolEngine,
		logger:    logger,
		limiters:  make(map[string]*rate.Limiter),
		authToken: token,
	}
}

// SetAuthToken overrides the environment-sourced mutation token.
func (s *Server) SetAuthToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authToken = strings.TrimSpace(token)
}

// Start serves JSON-RPC on addr until the listener fails or Shutdown is
// called.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	s.httpServer = &http.Server{Addr: addr, Handler: mux}
	s.logger.Info("starting JSON-RPC server", "addr", addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
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

	switch req.Method {
	case "lending_listAsset":
		s.handleMutation(w, r, req, s.handleListAsset)
	case "lending_createOffer":
		s.handleMutation(w, r, req, s.handleCreateOffer)
	case "lending_createPoolOffer":
		s.handleMutation(w, r, req, s.handleCreatePoolOffer)
	case "lending_acceptOffer":
		s.handleMutation(w, r, req, s.handleAcceptOffer)
	case "lending_repayLend":
		s.handleMutation(w, r, req, s.handleRepayLend)
	case "lending_redeemCollateral":
		s.handleMutation(w, r, req, s.handleRedeemCollateral)
	case "lending_cancelOffer":
		s.handleMutation(w, r, req, s.handleCancelOffer)
	case "lending_getOffer":
		s.handleGetOffer(w, r, req)
	case "lending_getOffersByAsset":
		s.handleGetOffersByAsset(w, r, req)
	case "lending_getListed":
		s.handleGetListed(w, r, req)
	case "lending_getInterest":
		s.handleGetInterest(w, r, req)
	case "lendpool_deposit":
		s.handleMutation(w, r, req, s.handlePoolDeposit)
	case "lendpool_withdraw":
		s.handleMutation(w, r, req, s.handlePoolWithdraw)
	case "lendpool_get":
		s.handlePoolGet(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method), nil)
	}
}

// handleMutation wraps a state-changing handler with auth and per-source rate
// limiting.
func (s *Server) handleMutation(w http.ResponseWriter, r *http.Request, req *RPCRequest, next func(http.ResponseWriter, *http.Request, *RPCRequest)) {
	if authErr := s.requireAuth(r); authErr != nil {
		metrics.Lending().ObserveError(req.Method)
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	if !s.allowSource(clientSource(r)) {
		metrics.Lending().ObserveError(req.Method)
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", nil)
		return
	}
	next(w, r, req)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	s.mu.Lock()
	token := s.authToken
	s.mu.Unlock()
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	presented := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if presented == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

func (s *Server) allowSource(source string) bool {
	if source == "" {
		source = "unknown"
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, ok := s.limiters[source]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(mutationRatePerSecond), mutationBurst)
		s.limiters[source] = limiter
	}
	return limiter.Allow()
}

func clientSource(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			candidate := strings.TrimSpace(parts[0])
			if candidate != "" {
				return candidate
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeEngineError translates engine failures into JSON-RPC errors.
func (s *Server) writeEngineError(w http.ResponseWriter, req *RPCRequest, err error) {
	metrics.Lending().ObserveError(req.Method)
	switch {
	case errors.Is(err, lending.ErrNotOwner), errors.Is(err, lending.ErrUnauthorized):
		writeError(w, http.StatusForbidden, req.ID, codeUnauthorized, err.Error(), nil)
	case errors.Is(err, lending.ErrInvalidTerms):
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
	case errors.Is(err, lending.ErrNotListed), errors.Is(err, lending.ErrOfferNotFound):
		writeError(w, http.StatusNotFound, req.ID, codeServerError, err.Error(), nil)
	case errors.Is(err, lending.ErrInsufficientBalance),
		errors.Is(err, lending.ErrInvalidState),
		errors.Is(err, lendpool.ErrInvalidAmount),
		errors.Is(err, lendpool.ErrInsufficientBalance),
		errors.Is(err, lendpool.ErrInsufficientLiquidity):
		writeError(w, http.StatusConflict, req.ID, codeServerError, err.Error(), nil)
	case errors.Is(err, common.ErrModulePaused), errors.Is(err, common.ErrReentrancy):
		writeError(w, http.StatusServiceUnavailable, req.ID, codeServerError, err.Error(), nil)
	default:
		s.logger.Error("rpc handler failed", "method", req.Method, "err", err)
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "internal error", nil)
	}
}

func decodeAddressParam(raw, field string) (crypto.Address, *RPCError) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(raw))
	if err != nil {
		return crypto.Address{}, &RPCError{Code: codeInvalidParams, Message: fmt.Sprintf("invalid %s", field), Data: err.Error()}
	}
	return addr, nil
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("amount must be a base-10 integer")
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

func singleObjectParams(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) != 1 {
		return &RPCError{Code: codeInvalidParams, Message: "expected parameter object"}
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "invalid parameter object", Data: err.Error()}
	}
	return nil
}
