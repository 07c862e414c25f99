package market

import "context"

// SourceStats 记录行情源的连接健康状况，供状态接口展示。
type SourceStats struct {
	FetchErrors int
	LastError   string
}

// Source 抽象历史 K 线与最新价的获取。
type Source interface {
	FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)

	LatestPrice(ctx context.Context, symbol string) (float64, error)

	Stats() SourceStats

	Close() error
}
