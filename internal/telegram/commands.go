package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"talon/internal/pkg/trading"
)

const helpText = `*Talon 命令*
/status - 引擎状态与最近信号
/balance - 账户余额
/positions - 当前持仓
/trades - 近 7 天成交
/stats - 累计交易统计
/start\_trading - 开启自动交易
/stop\_trading - 停止自动交易`

func (b *Bot) handleCommand(ctx context.Context, text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	cmd := fields[0]
	// 群聊里命令会带 @botname 后缀。
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}

	switch cmd {
	case "/start", "/help":
		return helpText
	case "/status":
		return b.renderStatus()
	case "/balance":
		return b.renderBalance(ctx)
	case "/positions":
		return b.renderPositions(ctx)
	case "/trades":
		return b.renderTrades(ctx)
	case "/stats":
		return b.renderStats(ctx)
	case "/start_trading":
		b.deps.Engine.Enable()
		return "✅ 自动交易已开启"
	case "/stop_trading":
		b.deps.Engine.Disable()
		return "🛑 自动交易已停止"
	default:
		return ""
	}
}

func (b *Bot) renderStatus() string {
	st := b.deps.Engine.Status()
	state := "🟢 运行中"
	if !st.Enabled {
		state = "🔴 已停止"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "*引擎状态* %s\n", state)
	if !st.LastScanAt.IsZero() {
		fmt.Fprintf(&sb, "上次扫描: %s (%s)\n", st.LastScanAt.Format("15:04:05"), st.LastScanTook)
	}
	fmt.Fprintf(&sb, "交易对: %s\n", strings.Join(st.Instruments, ", "))
	fmt.Fprintf(&sb, "日内交易: %d/%d\n", st.Risk.DailyTradeCount, st.Risk.MaxDailyTrades)
	if len(st.LastSignals) > 0 {
		sb.WriteString("\n*最近信号*\n```\n")
		for sym, sig := range st.LastSignals {
			fmt.Fprintf(&sb, "%-10s %-14s %.2f %s\n", sym, sig.Kind, sig.Confidence, sig.Reason)
		}
		sb.WriteString("```")
	}
	return sb.String()
}

func (b *Bot) renderBalance(ctx context.Context) string {
	bal, err := b.deps.Broker.AccountBalance(ctx)
	if err != nil {
		return fmt.Sprintf("⚠️ 查询余额失败: %v", err)
	}
	return fmt.Sprintf("*账户余额*\n总额: %.2f USDT\n可用: %.2f USDT\n未实现盈亏: %+.2f USDT",
		bal.Total, bal.Available, bal.UnrealizedPnL)
}

func (b *Bot) renderPositions(ctx context.Context) string {
	positions, err := b.deps.Broker.OpenPositions(ctx)
	if err != nil {
		return fmt.Sprintf("⚠️ 查询持仓失败: %v", err)
	}
	if len(positions) == 0 {
		return "当前无持仓"
	}
	var sb strings.Builder
	sb.WriteString("*当前持仓*\n```\n")
	for _, p := range positions {
		fmt.Fprintf(&sb, "%-10s %-5s %.6f @ %.4f pnl %+.2f\n",
			p.Symbol, p.Side, p.Quantity, p.EntryPrice, p.UnrealizedPnL)
	}
	sb.WriteString("```")
	return sb.String()
}

func (b *Bot) renderTrades(ctx context.Context) string {
	trades, err := b.deps.Store.GetRecentTrades(ctx, 7)
	if err != nil {
		return fmt.Sprintf("⚠️ 查询成交失败: %v", err)
	}
	if len(trades) == 0 {
		return "近 7 天无成交"
	}
	var sb strings.Builder
	sb.WriteString("*近 7 天成交*\n```\n")
	const maxRows = 20
	for i, tr := range trades {
		if i >= maxRows {
			fmt.Fprintf(&sb, "... 共 %d 笔\n", len(trades))
			break
		}
		line := fmt.Sprintf("%s %-10s %-4s %.6f @ %.4f",
			tr.OpenedAt.Format("01-02 15:04"), tr.Symbol, tr.Side, tr.Quantity, tr.Price)
		if tr.Status == "closed" {
			line += fmt.Sprintf(" pnl %+.2f", tr.PnL)
		}
		sb.WriteString(line + "\n")
	}
	sb.WriteString("```")
	return sb.String()
}

func (b *Bot) renderStats(ctx context.Context) string {
	stats, err := b.deps.Store.AggregateStats(ctx)
	if err != nil {
		return fmt.Sprintf("⚠️ 查询统计失败: %v", err)
	}
	return fmt.Sprintf("*交易统计* (%s)\n已平仓: %d\n盈利/亏损: %d/%d\n胜率: %.1f%%\n累计盈亏: %+.2f USDT",
		time.Now().Format("2006-01-02"), stats.TotalTrades, stats.Winning, stats.Losing,
		trading.WinRate(stats.Winning, stats.Losing), stats.TotalPnL)
}
