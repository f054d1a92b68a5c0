package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"market-mirror/pkg/types"
)

// Dashboard 服务端依赖的会话能力
type Dashboard interface {
	Snapshot() *types.Snapshot
	Alerts() []types.AlertEvent
	Selection() types.Selection
	SetSelection(sel types.Selection) (types.Selection, error)
	ClearCache(ctx context.Context)
	CacheStats() map[string]interface{}
}

// SymbolCatalog 各市场的参考交易对
type SymbolCatalog interface {
	SupportedSymbols(market types.MarketType) []string
}

// Trigger 请求一次刷新
type Trigger interface {
	Trigger()
}

// Server 只读看板的HTTP/WebSocket入口
type Server struct {
	addr      string
	dashboard Dashboard
	catalog   SymbolCatalog
	trigger   Trigger
	hub       *Hub
	server    *http.Server
}

func NewServer(addr string, dashboard Dashboard, catalog SymbolCatalog, trigger Trigger, hub *Hub) *Server {
	if hub == nil {
		hub = NewHub()
	}
	return &Server{
		addr:      addr,
		dashboard: dashboard,
		catalog:   catalog,
		trigger:   trigger,
		hub:       hub,
	}
}

// Handler 注册所有路由
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/alerts", s.handleAlerts)
	mux.HandleFunc("GET /api/symbols", s.handleSymbols)
	mux.HandleFunc("GET /api/selection", s.handleGetSelection)
	mux.HandleFunc("PUT /api/selection", s.handlePutSelection)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("DELETE /api/cache", s.handleClearCache)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		s.hub.ServeWS(w, r, s.dashboard.Snapshot())
	})
	return mux
}

// Start 启动HTTP服务，阻塞直到服务关闭
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	zap.L().Info("🌐 HTTP服务启动", zap.String("addr", s.addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 优雅关闭HTTP服务与所有WebSocket连接
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot := s.dashboard.Snapshot()
	if snapshot == nil {
		writeError(w, http.StatusServiceUnavailable, "no snapshot available yet")
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := s.dashboard.Alerts()
	if alerts == nil {
		alerts = []types.AlertEvent{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("market")
	if raw == "" {
		raw = string(s.dashboard.Selection().Market)
	}
	market, err := types.ParseMarketType(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"market":  market,
		"symbols": s.catalog.SupportedSymbols(market),
	})
}

func (s *Server) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dashboard.Selection())
}

// selectionRequest 省略的字段沿用当前选择
type selectionRequest struct {
	Market    *string  `json:"market"`
	Symbols   []string `json:"symbols"`
	TimeRange *string  `json:"time_range"`
	Threshold *float64 `json:"threshold"`
}

func (s *Server) handlePutSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid selection body: "+err.Error())
		return
	}

	sel := s.dashboard.Selection()
	if req.Market != nil {
		sel.Market = types.MarketType(*req.Market)
	}
	if req.Symbols != nil {
		sel.Symbols = req.Symbols
	}
	if req.TimeRange != nil {
		sel.TimeRange = types.TimeRange(*req.TimeRange)
	}
	if req.Threshold != nil {
		sel.Threshold = *req.Threshold
	}

	updated, err := s.dashboard.SetSelection(sel)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.trigger.Trigger()
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.trigger.Trigger()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refresh scheduled"})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.dashboard.ClearCache(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":     "ok",
		"cache":      s.dashboard.CacheStats(),
		"ws_clients": s.hub.ClientCount(),
	}
	if snapshot := s.dashboard.Snapshot(); snapshot != nil {
		body["last_cycle_id"] = snapshot.CycleID
		body["last_refresh"] = snapshot.GeneratedAt
		body["source"] = snapshot.Source
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("⚠️ 写入响应失败", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
