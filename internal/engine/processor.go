package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"talon/internal/gateway/exchange"
	"talon/internal/gateway/notifier"
	"talon/internal/logger"
	"talon/internal/metrics"
	"talon/internal/pkg/trading"
	"talon/internal/risk"
	"talon/internal/store/gormstore"
	"talon/internal/strategy"
	"talon/internal/watchlist"
)

func (e *Engine) processInstrument(ctx context.Context, ins watchlist.Instrument) error {
	analyzer, ok := e.analyzers[ins.Symbol]
	if !ok {
		return fmt.Errorf("no analyzer for %s", ins.Symbol)
	}
	sig, err := analyzer.Analyze(ctx, ins.Symbol)
	if err != nil {
		return err
	}
	e.recordSignal(sig)
	logger.Debugf("engine: %s signal=%s confidence=%.2f reason=%s",
		sig.Symbol, sig.Kind, sig.Confidence, sig.Reason)

	positions, err := e.positions.snapshot(ctx)
	if err != nil {
		return fmt.Errorf("fetching positions for execution: %w", err)
	}
	current := findPosition(positions, ins.Symbol)
	metrics.OpenPositionsCount.Set(float64(len(positions)))

	switch sig.Kind {
	case strategy.SignalBuy:
		if current != nil {
			// 信号与持仓状态竞争的保护：已有持仓不再重复开多。
			return nil
		}
		return e.executeEntry(ctx, sig, "BUY", "LONG", positions)
	case strategy.SignalAddPosition:
		return e.executeEntry(ctx, sig, "BUY", "LONG", positions)
	case strategy.SignalSell:
		if current != nil {
			return e.executeExit(ctx, sig, current)
		}
		return e.executeEntry(ctx, sig, "SELL", "SHORT", positions)
	default:
		return nil
	}
}

func findPosition(positions []exchange.Position, symbol string) *exchange.Position {
	for i := range positions {
		if positions[i].Symbol == symbol {
			return &positions[i]
		}
	}
	return nil
}

// executeEntry 跑完风控闸门后用市价单开仓，再挂保护性止损单。
func (e *Engine) executeEntry(ctx context.Context, sig strategy.Signal, orderSide, posSide string, positions []exchange.Position) error {
	balance, err := e.broker.AccountBalance(ctx)
	if err != nil {
		return fmt.Errorf("fetching balance: %w", err)
	}
	metrics.AccountBalance.Set(balance.Available)

	amount, approved := e.risk.SizePosition(sig.Confidence, balance.Available)
	if !approved {
		metrics.RiskRejectionsTotal.WithLabelValues("below minimum notional").Inc()
		logger.Infof("engine: %s %s rejected: sized amount below minimum notional", sig.Symbol, sig.Kind)
		return nil
	}

	exposures := make([]risk.Exposure, 0, len(positions))
	for _, p := range positions {
		exposures = append(exposures, risk.Exposure{Symbol: p.Symbol, Notional: p.Notional()})
	}
	approved, reason := e.risk.CanPlaceTrade(sig.Symbol, amount, balance.Available, exposures)
	if !approved {
		metrics.RiskRejectionsTotal.WithLabelValues(reason).Inc()
		logger.Infof("engine: %s %s rejected by risk gate: %s", sig.Symbol, sig.Kind, reason)
		e.notifyRejection(sig, amount, reason)
		return nil
	}

	quantity := trading.QuantityFromNotional(amount, sig.EntryPrice)
	if quantity <= 0 {
		return fmt.Errorf("cannot derive quantity from amount=%v price=%v", amount, sig.EntryPrice)
	}

	order, err := e.broker.PlaceMarketOrder(ctx, exchange.MarketOrderRequest{
		Symbol:   sig.Symbol,
		Side:     orderSide,
		Quantity: quantity,
	})
	if err != nil {
		metrics.OrdersTotal.WithLabelValues(orderSide, "failed").Inc()
		return fmt.Errorf("placing %s market order: %w", orderSide, err)
	}
	metrics.OrdersTotal.WithLabelValues(orderSide, "filled").Inc()
	e.risk.RecordTradePlaced()
	e.positions.invalidate()

	fillPrice := order.AvgPrice
	if fillPrice <= 0 {
		fillPrice = sig.EntryPrice
	}
	fillQty := order.Quantity
	if fillQty <= 0 {
		fillQty = quantity
	}

	sigJSON, _ := json.Marshal(sig)
	rec := &gormstore.TradeRecord{
		Symbol:     sig.Symbol,
		Side:       orderSide,
		Quantity:   fillQty,
		Price:      fillPrice,
		Notional:   fillQty * fillPrice,
		Confidence: sig.Confidence,
		Reason:     sig.Reason,
		OrderID:    order.ID,
		Signal:     sigJSON,
		OpenedAt:   e.nowFn(),
	}
	if err := e.store.SaveTradeRecord(ctx, rec); err != nil {
		// 订单已成交，记录失败只能告警，绝不能当成下单失败处理。
		logger.Errorf("engine: order %d filled but trade record failed: %v", order.ID, err)
	}

	stopOrderID := e.placeProtectiveStop(ctx, sig, posSide, fillQty, fillPrice)
	if stopOrderID != 0 && rec.ID != "" {
		if err := e.store.UpdateTradeRecord(ctx, rec.ID, map[string]any{"stop_order_id": stopOrderID}); err != nil {
			logger.Warnf("engine: attaching stop order id to trade %s failed: %v", rec.ID, err)
		}
	}

	e.notifyEntry(sig, orderSide, fillQty, fillPrice, amount)
	return nil
}

// placeProtectiveStop 挂止损单。失败不回滚开仓，只告警，下一轮扫描的
// 止损阈值判断仍然兜底。
func (e *Engine) placeProtectiveStop(ctx context.Context, sig strategy.Signal, posSide string, quantity, fillPrice float64) int64 {
	stopPrice := e.risk.StopLossPrice(fillPrice, posSide)
	closeSide := "SELL"
	if posSide == "SHORT" {
		closeSide = "BUY"
	}
	order, err := e.broker.PlaceStopOrder(ctx, exchange.StopOrderRequest{
		Symbol:     sig.Symbol,
		Side:       closeSide,
		Quantity:   quantity,
		StopPrice:  stopPrice,
		ReduceOnly: true,
	})
	if err != nil {
		logger.Warnf("engine: %s protective stop failed (position stays open): %v", sig.Symbol, err)
		e.notifyText(fmt.Sprintf("⚠️ %s 止损单挂单失败，仓位无保护：%v", sig.Symbol, err))
		return 0
	}
	return order.ID
}

// executeExit 用只减仓市价单平掉整个持仓，并结算全部未平仓成交记录。
func (e *Engine) executeExit(ctx context.Context, sig strategy.Signal, pos *exchange.Position) error {
	closeSide := "SELL"
	if pos.Side == "SHORT" {
		closeSide = "BUY"
	}
	order, err := e.broker.PlaceMarketOrder(ctx, exchange.MarketOrderRequest{
		Symbol:     pos.Symbol,
		Side:       closeSide,
		Quantity:   pos.Quantity,
		ReduceOnly: true,
	})
	if err != nil {
		metrics.OrdersTotal.WithLabelValues(closeSide, "failed").Inc()
		return fmt.Errorf("closing %s position: %w", pos.Symbol, err)
	}
	metrics.OrdersTotal.WithLabelValues(closeSide, "filled").Inc()
	e.positions.invalidate()

	exitPrice := order.AvgPrice
	if exitPrice <= 0 {
		exitPrice = sig.EntryPrice
	}

	totalPnL := e.settleOpenTrades(ctx, pos, exitPrice)
	e.notifyExit(sig, pos, exitPrice, totalPnL)
	return nil
}

// settleOpenTrades 把该交易对的全部未平仓成交标记为已平仓并计算盈亏。
func (e *Engine) settleOpenTrades(ctx context.Context, pos *exchange.Position, exitPrice float64) float64 {
	open, err := e.store.GetOpenTrades(ctx, pos.Symbol)
	if err != nil {
		logger.Errorf("engine: reading open trades for settlement failed: %v", err)
		return trading.RealizedPnL(pos.Side, pos.Quantity, pos.EntryPrice, exitPrice)
	}
	total := 0.0
	closedAt := e.nowFn()
	for _, tr := range open {
		// 仓位已平，遗留的止损单会变成裸挂单，先撤掉。
		if tr.StopOrderID != 0 {
			if err := e.broker.CancelOrder(ctx, pos.Symbol, tr.StopOrderID); err != nil {
				logger.Warnf("engine: canceling stop order %d for %s failed: %v", tr.StopOrderID, pos.Symbol, err)
			}
		}
		pnl := trading.RealizedPnL(tr.Side, tr.Quantity, tr.Price, exitPrice)
		total += pnl
		if err := e.store.CloseTradeRecord(ctx, tr.ID, exitPrice, pnl, closedAt); err != nil {
			logger.Errorf("engine: closing trade record %s failed: %v", tr.ID, err)
		}
	}
	if len(open) == 0 {
		// 没有本地记录（例如重启丢了 JSON 导入），按持仓均价估算。
		total = trading.RealizedPnL(pos.Side, pos.Quantity, pos.EntryPrice, exitPrice)
	}
	return total
}

func (e *Engine) notifyEntry(sig strategy.Signal, side string, quantity, price, amount float64) {
	msg := notifier.Message{
		Icon:  "✅",
		Title: fmt.Sprintf("开仓 %s %s", sig.Symbol, side),
		Sections: []notifier.Section{{
			Lines: []string{
				fmt.Sprintf("数量 %.6f @ %.4f", quantity, price),
				fmt.Sprintf("名义价值 %.2f USDT", amount),
				fmt.Sprintf("信心 %.2f", sig.Confidence),
				fmt.Sprintf("理由 %s", sig.Reason),
			},
		}},
		Timestamp: e.nowFn(),
	}
	e.notifyText(msg.RenderMarkdown())
}

func (e *Engine) notifyExit(sig strategy.Signal, pos *exchange.Position, exitPrice, pnl float64) {
	icon := "🟢"
	if pnl < 0 {
		icon = "🔴"
	}
	msg := notifier.Message{
		Icon:  icon,
		Title: fmt.Sprintf("平仓 %s %s", pos.Symbol, pos.Side),
		Sections: []notifier.Section{{
			Lines: []string{
				fmt.Sprintf("数量 %.6f @ %.4f", pos.Quantity, exitPrice),
				fmt.Sprintf("盈亏 %+.2f USDT", pnl),
				fmt.Sprintf("理由 %s", sig.Reason),
			},
		}},
		Timestamp: e.nowFn(),
	}
	e.notifyText(msg.RenderMarkdown())
}

func (e *Engine) notifyRejection(sig strategy.Signal, amount float64, reason string) {
	msg := notifier.Message{
		Icon:  "🚫",
		Title: fmt.Sprintf("风控拒单 %s %s", sig.Symbol, sig.Kind),
		Sections: []notifier.Section{{
			Lines: []string{
				fmt.Sprintf("金额 %.2f USDT", amount),
				fmt.Sprintf("原因 %s", reason),
			},
		}},
		Timestamp: e.nowFn(),
	}
	e.notifyText(msg.RenderMarkdown())
}

func (e *Engine) notifyText(text string) {
	if err := e.notify.SendText(text); err != nil {
		logger.Warnf("engine: notification failed: %v", err)
	}
}
