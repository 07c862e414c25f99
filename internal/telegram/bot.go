// Package telegram 实现操作员命令通道：长轮询 getUpdates，只响应
// 白名单内的 chat，把查询与启停命令转交给交易引擎。
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"talon/internal/engine"
	"talon/internal/gateway/exchange"
	"talon/internal/logger"
	"talon/internal/store/gormstore"
)

const defaultBaseURL = "https://api.telegram.org"

// Controller 是机器人需要的引擎操作面。
type Controller interface {
	Status() engine.Status
	Enable()
	Disable()
	Enabled() bool
}

// TradeStore 提供历史查询。
type TradeStore interface {
	GetRecentTrades(ctx context.Context, days int) ([]gormstore.TradeRecord, error)
	AggregateStats(ctx context.Context) (gormstore.Stats, error)
}

// Config 是机器人自身的参数，依赖走 Deps。
type Config struct {
	BotToken       string
	ChatID         string
	AllowedChatIDs []int64
	PollTimeoutSec int
	// BaseURL 仅测试时覆盖。
	BaseURL string
}

// Deps 汇集命令处理需要的下游。
type Deps struct {
	Engine Controller
	Broker exchange.Broker
	Store  TradeStore
}

type Bot struct {
	cfg    Config
	deps   Deps
	client *http.Client
	offset int64
}

func NewBot(cfg Config, deps Deps) (*Bot, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.PollTimeoutSec <= 0 {
		cfg.PollTimeoutSec = 30
	}
	return &Bot{
		cfg:  cfg,
		deps: deps,
		// 长轮询超时之外留出网络余量。
		client: &http.Client{Timeout: time.Duration(cfg.PollTimeoutSec+10) * time.Second},
	}, nil
}

// Run 持续轮询直到 ctx 取消。单次轮询失败退避后重试，不向上冒泡。
func (b *Bot) Run(ctx context.Context) error {
	logger.Infof("telegram: command bot started, poll timeout %ds", b.cfg.PollTimeoutSec)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := b.pollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warnf("telegram: poll failed: %v", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
		}
	}
}

func (b *Bot) pollOnce(ctx context.Context) error {
	url := fmt.Sprintf("%s/bot%s/getUpdates?timeout=%d&offset=%d",
		b.cfg.BaseURL, b.cfg.BotToken, b.cfg.PollTimeoutSec, b.offset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("getUpdates status=%d", resp.StatusCode)
	}
	if !gjson.GetBytes(body, "ok").Bool() {
		return fmt.Errorf("getUpdates not ok: %s", gjson.GetBytes(body, "description").String())
	}

	for _, update := range gjson.GetBytes(body, "result").Array() {
		updateID := update.Get("update_id").Int()
		if updateID >= b.offset {
			b.offset = updateID + 1
		}
		chatID := update.Get("message.chat.id").Int()
		text := update.Get("message.text").String()
		if text == "" {
			continue
		}
		if !b.authorized(chatID) {
			logger.Warnf("telegram: ignoring command from unauthorized chat %d", chatID)
			continue
		}
		reply := b.handleCommand(ctx, text)
		if reply == "" {
			continue
		}
		if err := b.sendMessage(ctx, chatID, reply); err != nil {
			logger.Warnf("telegram: reply failed: %v", err)
		}
	}
	return nil
}

// authorized 校验来源 chat。主 chat 和白名单之外的消息全部丢弃。
func (b *Bot) authorized(chatID int64) bool {
	if chatID == 0 {
		return false
	}
	if b.cfg.ChatID == fmt.Sprintf("%d", chatID) {
		return true
	}
	for _, id := range b.cfg.AllowedChatIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string) error {
	payload, _ := json.Marshal(map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	url := fmt.Sprintf("%s/bot%s/sendMessage", b.cfg.BaseURL, b.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("sendMessage status=%d", resp.StatusCode)
	}
	return nil
}
