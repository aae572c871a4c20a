package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"arenapool/native/pool"
	"arenapool/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	authTokenEnv    = "ARENAPOOL_RPC_TOKEN"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000

	codeNotFound = -32022
	codeAuth     = -32023
	codeState    = -32024
	codeFunds    = -32026
	codeTransfer = -32027
)

// Server exposes the pool engine over JSON-RPC 2.0. Admin-only methods
// additionally require the bearer token configured via ARENAPOOL_RPC_TOKEN.
type Server struct {
	engine  *pool.Engine
	logger  *slog.Logger
	metrics *observability.EngineMetrics

	authToken string
	handlers  map[string]handlerFunc
}

type handlerFunc func(params []json.RawMessage) (interface{}, *RPCError)

// NewServer wires the engine behind the RPC method table.
func NewServer(engine *pool.Engine, logger *slog.Logger) *Server {
	s := &Server{
		engine:    engine,
		logger:    logger,
		metrics:   observability.Metrics(),
		authToken: strings.TrimSpace(os.Getenv(authTokenEnv)),
	}
	s.handlers = map[string]handlerFunc{
		"pool_create":               s.handleCreate,
		"pool_register":             s.handleRegister,
		"pool_unregister":           s.handleUnregister,
		"pool_start":                s.handleStart,
		"pool_fundIncentive":        s.handleFundIncentive,
		"pool_distributeRewards":    s.handleDistributeRewards,
		"pool_cancel":               s.handleCancel,
		"pool_claimAbandonedRefund": s.handleClaimAbandonedRefund,
		"pool_claimRefund":          s.handleClaimRefund,
		"pool_reclaimStale":         s.handleReclaimStale,
		"pool_withdrawFees":         s.handleWithdrawFees,
		"pool_get":                  s.handleGetPool,
		"pool_participants":         s.handleParticipants,
		"pool_nonce":                s.handleNonce,
		"pool_claimable":            s.handleClaimable,
		"pool_platformFees":         s.handlePlatformFees,
		"pool_count":                s.handlePoolCount,
		"pool_reclaimPointer":       s.handleReclaimPointer,
		"pool_balance":              s.handleBalance,
	}
	return s
}

// adminMethods require the bearer token in addition to the engine's own
// caller checks.
var adminMethods = map[string]bool{
	"pool_create":            true,
	"pool_distributeRewards": true,
	"pool_cancel":            true,
	"pool_reclaimStale":      true,
	"pool_withdrawFees":      true,
}

// Start blocks serving the RPC endpoint.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	if s.logger != nil {
		s.logger.Info("starting JSON-RPC server", slog.String("addr", addr))
	}
	return http.ListenAndServe(addr, mux)
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
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	requestID := uuid.NewString()
	logger := s.logger
	if logger != nil {
		logger = logger.With(slog.String("requestId", requestID))
	}

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "invalid_request", "POST required")
		return
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "parse_error", "failed to read request body")
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "parse_error", err.Error())
		return
	}
	if req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "invalid_request", "jsonrpc must be 2.0")
		return
	}
	handler, ok := s.handlers[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method_not_found", req.Method)
		return
	}
	if adminMethods[req.Method] {
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
	}

	start := time.Now()
	result, rpcErr := handler(req.Params)
	s.metrics.Observe(req.Method, start, errFromRPC(rpcErr))
	if rpcErr != nil {
		if logger != nil {
			logger.Info("rpc request failed",
				slog.String("method", req.Method),
				slog.Int("code", rpcErr.Code),
				slog.String("reason", rpcErr.Message))
		}
		writeError(w, httpStatusFor(rpcErr.Code), req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	if logger != nil {
		logger.Info("rpc request served", slog.String("method", req.Method))
	}
	writeResult(w, req.ID, result)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "rpc auth token not configured"}
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "bearer token required"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "invalid token"}
	}
	return nil
}

func httpStatusFor(code int) int {
	switch code {
	case codeUnauthorized, codeAuth:
		return http.StatusUnauthorized
	case codeNotFound:
		return http.StatusNotFound
	case codeMethodNotFound:
		return http.StatusNotFound
	case codeState, codeFunds, codeTransfer:
		return http.StatusConflict
	case codeServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func errFromRPC(rpcErr *RPCError) error {
	if rpcErr == nil {
		return nil
	}
	return errors.New(rpcErr.Message)
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
