package engine

import (
	"context"
	"sync"
	"time"

	"talon/internal/gateway/exchange"
	"talon/internal/strategy"
)

// positionCache 在一次处理周期内共享实时持仓快照：信号判定与风控
// 敞口检查看到同一份数据，也省掉一次重复的 API 调用。TTL 很短，
// 跨周期仍然以交易所报告为准。
type positionCache struct {
	broker exchange.Broker
	ttl    time.Duration

	mu     sync.Mutex
	cached []exchange.Position
	at     time.Time
}

func newPositionCache(broker exchange.Broker) *positionCache {
	return &positionCache{broker: broker, ttl: 2 * time.Second}
}

func (c *positionCache) snapshot(ctx context.Context) ([]exchange.Position, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Since(c.at) < c.ttl && c.cached != nil {
		return c.cached, nil
	}
	list, err := c.broker.OpenPositions(ctx)
	if err != nil {
		return nil, err
	}
	c.cached = list
	c.at = time.Now()
	return list, nil
}

// invalidate 在任何订单成交后调用，下一次读取强制回源。
func (c *positionCache) invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.at = time.Time{}
	c.mu.Unlock()
}

// OpenPositions 实现 strategy.PositionReader。
func (c *positionCache) OpenPositions(ctx context.Context) ([]strategy.Position, error) {
	list, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]strategy.Position, 0, len(list))
	for _, p := range list {
		out = append(out, strategy.Position{
			Symbol:     p.Symbol,
			Side:       p.Side,
			Quantity:   p.Quantity,
			EntryPrice: p.EntryPrice,
			OpenedAt:   p.OpenedAt,
		})
	}
	return out, nil
}
