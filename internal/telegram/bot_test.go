package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talon/internal/engine"
	"talon/internal/gateway/exchange"
	"talon/internal/store/gormstore"
)

type fakeEngine struct {
	enabled bool
	status  engine.Status
}

func (f *fakeEngine) Status() engine.Status { return f.status }
func (f *fakeEngine) Enable()               { f.enabled = true }
func (f *fakeEngine) Disable()              { f.enabled = false }
func (f *fakeEngine) Enabled() bool         { return f.enabled }

type fakeBroker struct {
	balance   exchange.Balance
	positions []exchange.Position
}

func (f *fakeBroker) OpenPositions(ctx context.Context) ([]exchange.Position, error) {
	return f.positions, nil
}
func (f *fakeBroker) AccountBalance(ctx context.Context) (exchange.Balance, error) {
	return f.balance, nil
}
func (f *fakeBroker) PlaceMarketOrder(ctx context.Context, req exchange.MarketOrderRequest) (exchange.Order, error) {
	return exchange.Order{}, nil
}
func (f *fakeBroker) PlaceStopOrder(ctx context.Context, req exchange.StopOrderRequest) (exchange.Order, error) {
	return exchange.Order{}, nil
}
func (f *fakeBroker) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	return nil
}
func (f *fakeBroker) Close() error { return nil }

type fakeStore struct {
	trades []gormstore.TradeRecord
	stats  gormstore.Stats
}

func (f *fakeStore) GetRecentTrades(ctx context.Context, days int) ([]gormstore.TradeRecord, error) {
	return f.trades, nil
}
func (f *fakeStore) AggregateStats(ctx context.Context) (gormstore.Stats, error) {
	return f.stats, nil
}

// fakeAPI 模拟 Telegram Bot API：返回一批 update，记录所有回复。
type fakeAPI struct {
	updates string
	sent    []map[string]any
}

func (f *fakeAPI) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "getUpdates"):
			fmt.Fprintf(w, `{"ok":true,"result":%s}`, f.updates)
			f.updates = "[]"
		case strings.Contains(r.URL.Path, "sendMessage"):
			var payload map[string]any
			_ = json.NewDecoder(r.Body).Decode(&payload)
			f.sent = append(f.sent, payload)
			fmt.Fprint(w, `{"ok":true}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func updateJSON(updateID, chatID int64, text string) string {
	return fmt.Sprintf(`[{"update_id":%d,"message":{"chat":{"id":%d},"text":"%s"}}]`,
		updateID, chatID, text)
}

func newTestBot(t *testing.T, api *fakeAPI, eng *fakeEngine) *Bot {
	t.Helper()
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)
	bot, err := NewBot(Config{
		BotToken:       "test-token",
		ChatID:         "1001",
		AllowedChatIDs: []int64{2002},
		PollTimeoutSec: 1,
		BaseURL:        srv.URL,
	}, Deps{
		Engine: eng,
		Broker: &fakeBroker{balance: exchange.Balance{Total: 1234.5, Available: 1000, UnrealizedPnL: 7.25}},
		Store: &fakeStore{
			trades: []gormstore.TradeRecord{{Symbol: "ETHUSDT", Side: "BUY", Quantity: 0.5, Price: 2000, Status: "closed", PnL: 12.5, OpenedAt: time.Now()}},
			stats:  gormstore.Stats{TotalTrades: 4, Winning: 3, Losing: 1, TotalPnL: 55.5},
		},
	})
	require.NoError(t, err)
	return bot
}

func TestPollAnswersStatusCommand(t *testing.T) {
	api := &fakeAPI{updates: updateJSON(7, 1001, "/status")}
	eng := &fakeEngine{enabled: true, status: engine.Status{Enabled: true, Instruments: []string{"ETHUSDT"}}}
	bot := newTestBot(t, api, eng)

	require.NoError(t, bot.pollOnce(context.Background()))

	require.Len(t, api.sent, 1)
	assert.Equal(t, float64(1001), api.sent[0]["chat_id"])
	assert.Contains(t, api.sent[0]["text"], "引擎状态")
	assert.Contains(t, api.sent[0]["text"], "ETHUSDT")
	// offset 必须推进到 update_id+1，否则会重复消费。
	assert.Equal(t, int64(8), bot.offset)
}

func TestPollIgnoresUnauthorizedChat(t *testing.T) {
	api := &fakeAPI{updates: updateJSON(1, 9999, "/stop_trading")}
	eng := &fakeEngine{enabled: true}
	bot := newTestBot(t, api, eng)

	require.NoError(t, bot.pollOnce(context.Background()))

	assert.Empty(t, api.sent)
	assert.True(t, eng.enabled, "unauthorized chat must not control the engine")
}

func TestStartStopCommands(t *testing.T) {
	eng := &fakeEngine{enabled: true}
	api := &fakeAPI{updates: updateJSON(1, 2002, "/stop_trading")}
	bot := newTestBot(t, api, eng)

	require.NoError(t, bot.pollOnce(context.Background()))
	assert.False(t, eng.enabled)

	api.updates = updateJSON(2, 2002, "/start_trading")
	require.NoError(t, bot.pollOnce(context.Background()))
	assert.True(t, eng.enabled)
}

func TestHandleCommandRouting(t *testing.T) {
	eng := &fakeEngine{enabled: true}
	bot := newTestBot(t, &fakeAPI{updates: "[]"}, eng)
	ctx := context.Background()

	assert.Contains(t, bot.handleCommand(ctx, "/help"), "/status")
	assert.Contains(t, bot.handleCommand(ctx, "/balance"), "1234.50")
	assert.Contains(t, bot.handleCommand(ctx, "/balance"), "+7.25")
	assert.Contains(t, bot.handleCommand(ctx, "/trades"), "ETHUSDT")
	assert.Contains(t, bot.handleCommand(ctx, "/stats"), "75.0%")
	// 带 @botname 后缀的群聊命令。
	assert.Contains(t, bot.handleCommand(ctx, "/help@talon_bot"), "/status")
	// 未知命令静默忽略。
	assert.Empty(t, bot.handleCommand(ctx, "hello there"))
	assert.Empty(t, bot.handleCommand(ctx, "   "))
}
