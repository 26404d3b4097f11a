// Package httpapi 提供回测服务的 HTTP API。
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"huice/internal/backtest"
	"huice/internal/market"
)

// Server 暴露回测任务与行情数据的管理接口。
type Server struct {
	addr    string
	svc     *backtest.Service
	results *backtest.ResultStore
	bars    *market.Store
	router  *gin.Engine
}

// Config 描述 HTTP Server 的依赖。
type Config struct {
	Addr    string
	Svc     *backtest.Service
	Results *backtest.ResultStore
	Bars    *market.Store
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Svc == nil {
		return nil, errors.New("service 不能为空")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9991"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		addr:    cfg.Addr,
		svc:     cfg.Svc,
		results: cfg.Results,
		bars:    cfg.Bars,
		router:  router,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	api := s.router.Group("/api/backtest")
	api.POST("/runs", s.handleRunStart)
	api.GET("/runs", s.handleRunList)
	api.GET("/runs/:id", s.handleRunDetail)
	api.DELETE("/runs/:id", s.handleRunCancel)
	api.GET("/runs/:id/trades", s.handleRunTrades)
	api.GET("/runs/:id/snapshots", s.handleRunSnapshots)
	api.GET("/runs/:id/compliance", s.handleRunCompliance)

	data := s.router.Group("/api/data")
	data.GET("/bars", s.handleBars)
	data.GET("/manifest", s.handleManifest)
	data.POST("/import", s.handleImport)
}

func (s *Server) handleRunStart(c *gin.Context) {
	var req backtest.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	run, err := s.svc.StartRun(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run": run})
}

func (s *Server) handleRunList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := s.svc.Runs(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleRunDetail(c *gin.Context) {
	run, err := s.svc.RunByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}

func (s *Server) handleRunCancel(c *gin.Context) {
	if !s.svc.Cancel(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run 不在运行中"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelling"})
}

func (s *Server) handleRunTrades(c *gin.Context) {
	if s.results == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "结果存储未启用"})
		return
	}
	trades, err := s.results.TradeViews(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) handleRunSnapshots(c *gin.Context) {
	if s.results == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "结果存储未启用"})
		return
	}
	snaps, err := s.results.SnapshotViews(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snaps})
}

func (s *Server) handleRunCompliance(c *gin.Context) {
	if s.results == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "结果存储未启用"})
		return
	}
	report, err := s.results.ComplianceReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"compliance": report})
}

func (s *Server) handleBars(c *gin.Context) {
	if s.bars == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "行情存储未启用"})
		return
	}
	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol 必填"})
		return
	}
	start, _ := strconv.ParseInt(c.Query("start_ts"), 10, 64)
	end, err := strconv.ParseInt(c.DefaultQuery("end_ts", strconv.FormatInt(time.Now().Unix(), 10)), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_ts 非法"})
		return
	}
	bars, err := s.bars.RangeBars(c.Request.Context(), symbol, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bars": bars})
}

func (s *Server) handleManifest(c *gin.Context) {
	if s.bars == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "行情存储未启用"})
		return
	}
	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol 必填"})
		return
	}
	info, err := s.bars.Manifest(c.Request.Context(), symbol)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"manifest": info})
}

func (s *Server) handleImport(c *gin.Context) {
	if s.bars == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "行情存储未启用"})
		return
	}
	var req struct {
		Symbol string `json:"symbol" binding:"required"`
		Path   string `json:"path" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	count, err := market.ImportCSV(c.Request.Context(), s.bars, req.Symbol, req.Path)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": count})
}

// Start 启动 HTTP 服务，阻塞直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
