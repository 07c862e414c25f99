package livehttp

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"talon/internal/gateway/exchange"
	"talon/internal/indicator"
	"talon/internal/market"
	"talon/internal/watchlist"
)

type router struct {
	engine      TradingEngine
	broker      exchange.Broker
	store       QueryStore
	source      market.Source
	instruments []watchlist.Instrument
}

func newRouter(cfg ServerConfig) *router {
	return &router{
		engine:      cfg.Engine,
		broker:      cfg.Broker,
		store:       cfg.Store,
		source:      cfg.Source,
		instruments: cfg.Instruments,
	}
}

func (r *router) register(group *gin.RouterGroup) {
	group.GET("/status", r.handleStatus)
	group.GET("/positions", r.handlePositions)
	group.GET("/trades", r.handleTrades)
	group.GET("/stats", r.handleStats)
	group.GET("/balance/history", r.handleBalanceHistory)
	group.GET("/indicators/:symbol", r.handleIndicators)
	group.POST("/trading/start", r.handleStart)
	group.POST("/trading/stop", r.handleStop)
}

func (r *router) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, r.engine.Status())
}

func (r *router) handlePositions(c *gin.Context) {
	positions, err := r.broker.OpenPositions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

func (r *router) handleTrades(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))
	if days <= 0 {
		days = 7
	}
	if days > 365 {
		days = 365
	}
	trades, err := r.store.GetRecentTrades(c.Request.Context(), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "trades": trades})
}

func (r *router) handleStats(c *gin.Context) {
	stats, err := r.store.AggregateStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (r *router) handleBalanceHistory(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	snapshots, err := r.store.BalanceHistory(c.Request.Context(), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snapshots})
}

// handleIndicators 返回诊断指标快照（MACD/ATR/布林带等），仅观测用。
func (r *router) handleIndicators(c *gin.Context) {
	if r.source == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "market source unavailable"})
		return
	}
	symbol := c.Param("symbol")
	interval := "1h"
	for _, ins := range r.instruments {
		if ins.Symbol == symbol {
			interval = ins.Interval
			break
		}
	}
	candles, err := r.source.FetchHistory(c.Request.Context(), symbol, interval, 100)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	snap, err := indicator.ComputeSnapshot(candles, indicator.SnapshotSettings{
		Symbol:   symbol,
		Interval: interval,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (r *router) handleStart(c *gin.Context) {
	r.engine.Enable()
	c.JSON(http.StatusOK, gin.H{"enabled": true})
}

func (r *router) handleStop(c *gin.Context) {
	r.engine.Disable()
	c.JSON(http.StatusOK, gin.H{"enabled": false})
}
