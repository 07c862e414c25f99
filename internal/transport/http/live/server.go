// Package livehttp 提供运行时的只读查询接口、交易启停控制、
// Prometheus 指标与余额曲线图。
package livehttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"talon/internal/engine"
	"talon/internal/gateway/exchange"
	"talon/internal/logger"
	"talon/internal/market"
	"talon/internal/store/gormstore"
	"talon/internal/watchlist"
)

// TradingEngine 是 HTTP 层依赖的引擎操作面。
type TradingEngine interface {
	Status() engine.Status
	Enable()
	Disable()
}

// QueryStore 提供历史数据查询。
type QueryStore interface {
	GetRecentTrades(ctx context.Context, days int) ([]gormstore.TradeRecord, error)
	AggregateStats(ctx context.Context) (gormstore.Stats, error)
	BalanceHistory(ctx context.Context, days int) ([]gormstore.BalanceSnapshot, error)
}

// ServerConfig 描述 HTTP 服务依赖。
type ServerConfig struct {
	Addr        string
	Engine      TradingEngine
	Broker      exchange.Broker
	Store       QueryStore
	Source      market.Source
	Instruments []watchlist.Instrument
}

// Server 封装 gin 引擎与监听地址。
type Server struct {
	addr   string
	router *gin.Engine
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engine == nil || cfg.Broker == nil || cfg.Store == nil {
		return nil, errors.New("live http server requires engine, broker and store")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9982"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r := newRouter(cfg)
	r.register(router.Group("/api"))
	router.GET("/chart/equity", r.handleEquityChart)

	return &Server{addr: cfg.Addr, router: router}, nil
}

// Addr 返回监听地址。
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Handler 暴露底层 handler，供测试直接调用。
func (s *Server) Handler() http.Handler { return s.router }

// Start 启动服务，直到 ctx 取消或监听失败。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("http: listening on %s", s.addr)

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

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}
