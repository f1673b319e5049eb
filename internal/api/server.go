package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zer0-os/ZAI/internal/agent"
	"github.com/zer0-os/ZAI/internal/auth"
	"github.com/zer0-os/ZAI/internal/observability/metrics"
	"github.com/zer0-os/ZAI/internal/stream"
	"github.com/zer0-os/ZAI/internal/txwatch"
	"github.com/zer0-os/ZAI/internal/wallet"
	"github.com/zer0-os/ZAI/internal/web3"
	"github.com/zer0-os/ZAI/pkg/logger"
)

// ChainStatus 提供当前链的诊断信息。
type ChainStatus interface {
	FetchChainSnapshot(ctx context.Context) (web3.ChainSnapshot, error)
}

// closeCodePolicyViolation 在连接数超限时用于关闭握手。
const closeCodePolicyViolation = 1008

// Server 负责暴露聊天与钱包查询接口。
type Server struct {
	addr      string
	staticDir string
	runtime   *agent.Runtime
	wallet    *wallet.Wallet
	txService *txwatch.Service
	chain     ChainStatus
	guard     *auth.Guard
	manager   *ConnectionManager
	upgrader  websocket.Upgrader
	log       *slog.Logger
}

// Option 定义服务可选配置。
type Option func(*Server)

// WithStaticDir 指定静态页面目录，为空时返回内置欢迎页。
func WithStaticDir(dir string) Option {
	return func(s *Server) {
		s.staticDir = dir
	}
}

// WithTxService 挂载交易记录查询服务。
func WithTxService(service *txwatch.Service) Option {
	return func(s *Server) {
		s.txService = service
	}
}

// WithChainStatus 挂载链状态查询后端。
func WithChainStatus(chain ChainStatus) Option {
	return func(s *Server) {
		s.chain = chain
	}
}

// WithGuard 挂载认证守卫。
func WithGuard(guard *auth.Guard) Option {
	return func(s *Server) {
		s.guard = guard
	}
}

// WithMaxConnections 覆盖 websocket 连接数上限。
func WithMaxConnections(limit int) Option {
	return func(s *Server) {
		s.manager = NewConnectionManager(limit)
	}
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, runtime *agent.Runtime, w *wallet.Wallet, opts ...Option) *Server {
	s := &Server{
		addr:    addr,
		runtime: runtime,
		wallet:  w,
		manager: NewConnectionManager(0),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 前端与守护进程可能跑在不同端口。
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: logger.Named("api"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", s.handleChatSocket)
	mux.Handle("/api/v1/chat", s.protect(http.HandlerFunc(s.handleChat)))
	mux.Handle("/api/v1/wallet/address", s.protect(http.HandlerFunc(s.handleWalletAddress)))
	mux.Handle("/api/v1/wallet/balances", s.protect(http.HandlerFunc(s.handleWalletBalances)))
	mux.Handle("/api/v1/transactions", s.protect(http.HandlerFunc(s.handleTransactions)))
	mux.Handle("/api/v1/chain", s.protect(http.HandlerFunc(s.handleChainStatus)))
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/", s.handleIndex)

	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// protect 按配置启用认证并记录请求指标。
func (s *Server) protect(next http.Handler) http.Handler {
	instrumented := s.instrument(next)
	if s.guard == nil {
		return instrumented
	}
	return s.guard.Middleware(instrumented)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		metrics.ObserveHTTPRequest(r.URL.Path, r.Method, recorder.status, time.Since(started))
	})
}

// handleChatSocket 把一条 websocket 连接升级为交互式会话。
func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	if s.guard != nil && !s.guard.Allow(r) {
		http.Error(w, "未授权的请求", http.StatusUnauthorized)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket 升级失败", "error", err)
		return
	}

	if !s.manager.Acquire() {
		message := websocket.FormatCloseMessage(closeCodePolicyViolation, "connection limit reached")
		_ = conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}
	defer s.manager.Release()

	ws := stream.NewWebSocketStream(conn)
	defer ws.Close()

	sessionID := uuid.NewString()
	s.log.Info("websocket 会话建立", "session", sessionID, "remote", r.RemoteAddr)
	s.serveStream(r.Context(), sessionID, ws)
	s.log.Info("websocket 会话结束", "session", sessionID)
}

// serveStream 在一条消息流上循环处理用户输入。
func (s *Server) serveStream(ctx context.Context, sessionID string, ms stream.MessageStream) {
	for {
		text, err := ms.Receive(ctx)
		if err != nil {
			return
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		replyCtx := stream.WithNotifier(ctx, func(msg stream.Message) {
			_ = ms.SendPartial(ctx, msg)
		})
		reply, err := s.runtime.ProcessMessage(replyCtx, sessionID, text)
		if err != nil {
			s.log.Warn("处理消息失败", "session", sessionID, "error", err)
			_ = ms.Send(ctx, stream.Message{Type: stream.TypeError, Content: err.Error()})
			continue
		}
		if err := ms.Send(ctx, stream.Message{Type: stream.TypeMessage, Content: reply}); err != nil {
			return
		}
	}
}

// handleChat 处理一次性的 REST 聊天请求。
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "消息内容不能为空", http.StatusBadRequest)
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	reply, err := s.runtime.ProcessMessage(r.Context(), sessionID, req.Message)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]string{
		"session_id": sessionID,
		"reply":      reply,
	})
}

func (s *Server) handleWalletAddress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	addr, err := s.wallet.Address()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]string{"address": addr.Hex()})
}

func (s *Server) handleWalletBalances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	balances, err := s.wallet.Balances(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, balances)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.txService == nil {
		http.Error(w, "交易记录服务未启用", http.StatusServiceUnavailable)
		return
	}

	var opts []txwatch.ListOption
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			opts = append(opts, txwatch.WithLimit(parsed))
		}
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		opts = append(opts, txwatch.WithStatuses(txwatch.Status(raw)))
	}
	if raw := r.URL.Query().Get("kind"); raw != "" {
		opts = append(opts, txwatch.WithKind(raw))
	}

	records, err := s.txService.List(r.Context(), opts...)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*txwatch.Record{}
	}
	writeJSON(w, records)
}

// handleChainStatus 返回当前链的连接诊断信息。
func (s *Server) handleChainStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.chain == nil {
		http.Error(w, "链状态查询未启用", http.StatusServiceUnavailable)
		return
	}
	snapshot, err := s.chain.FetchChainSnapshot(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]string{
		"name":         snapshot.Name,
		"chain_id":     snapshot.ChainID,
		"block_number": snapshot.BlockNumber,
		"notes":        snapshot.Notes,
	})
}

// handleIndex 返回静态页面；未配置静态目录时输出内置欢迎页。
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		if s.staticDir != "" {
			http.FileServer(http.Dir(s.staticDir)).ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
		return
	}
	if s.staticDir != "" {
		index := filepath.Join(s.staticDir, "index.html")
		if file, err := os.Open(index); err == nil {
			defer file.Close()
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = io.Copy(w, file)
			return
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, "<!DOCTYPE html><html><head><title>ZAI</title></head>"+
		"<body><h1>ZAI</h1><p>Connect to /chat via websocket to talk to the agent.</p></body></html>")
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
