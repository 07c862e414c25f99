// Package importer 把旧版机器人留下的 trading_data.json 导入 SQLite。
// 主文件解析或校验失败时回退到 .backup 文件，和旧版的恢复逻辑一致。
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"talon/internal/logger"
	"talon/internal/store/gormstore"
	"talon/internal/store/model"
)

// 旧文件里只校验我们真正搬运的部分，未知键一律放行。
const legacySchema = `{
	"type": "object",
	"required": ["trades"],
	"properties": {
		"trades": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["symbol", "side"],
				"properties": {
					"id": {"type": "integer"},
					"symbol": {"type": "string", "minLength": 1},
					"side": {"type": "string"},
					"quantity": {"type": "number"},
					"price": {"type": "number"},
					"status": {"type": "string"},
					"pnl": {"type": "number"},
					"timestamp": {"type": "string"}
				}
			}
		},
		"balance_history": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"balance": {"type": "number"},
					"timestamp": {"type": "string"}
				}
			}
		}
	}
}`

type legacyTrade struct {
	ID        int     `json:"id"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	Quantity  float64 `json:"quantity"`
	Price     float64 `json:"price"`
	Status    string  `json:"status"`
	PnL       float64 `json:"pnl"`
	ExitPrice float64 `json:"exit_price"`
	Reason    string  `json:"reason"`
	Timestamp string  `json:"timestamp"`
}

type legacyBalance struct {
	Balance   float64 `json:"balance"`
	Timestamp string  `json:"timestamp"`
}

type legacyData struct {
	Trades         []legacyTrade   `json:"trades"`
	BalanceHistory []legacyBalance `json:"balance_history"`
}

// Result 汇总一次导入搬运了多少数据。
type Result struct {
	Trades           int
	BalanceSnapshots int
	UsedBackup       bool
}

// Run 读取 path 指向的旧数据文件并写入 store。主文件坏掉时自动尝试
// path+".backup"。
func Run(ctx context.Context, store *gormstore.Store, path string) (Result, error) {
	data, usedBackup, err := loadLegacy(path)
	if err != nil {
		return Result{}, err
	}

	var res Result
	res.UsedBackup = usedBackup
	for _, t := range data.Trades {
		if strings.TrimSpace(t.Symbol) == "" {
			continue
		}
		status := model.TradeStatusOpen
		if strings.EqualFold(t.Status, "closed") {
			status = model.TradeStatusClosed
		}
		rec := &gormstore.TradeRecord{
			Symbol:   strings.ReplaceAll(strings.ToUpper(t.Symbol), "/", ""),
			Side:     strings.ToUpper(t.Side),
			Quantity: t.Quantity,
			Price:    t.Price,
			Notional: t.Quantity * t.Price,
			Status:   status,
			PnL:      t.PnL,
			Reason:   t.Reason,
			OpenedAt: parseLegacyTime(t.Timestamp),
		}
		if err := store.SaveTradeRecord(ctx, rec); err != nil {
			return res, fmt.Errorf("importing trade %d: %w", t.ID, err)
		}
		if status == model.TradeStatusClosed {
			closedAt := rec.OpenedAt
			if err := store.CloseTradeRecord(ctx, rec.ID, t.ExitPrice, t.PnL, closedAt); err != nil {
				return res, fmt.Errorf("closing imported trade %d: %w", t.ID, err)
			}
		}
		res.Trades++
	}

	for _, b := range data.BalanceHistory {
		if b.Balance <= 0 {
			continue
		}
		if err := store.SaveBalanceSnapshot(ctx, b.Balance, b.Balance, b.Balance); err != nil {
			return res, fmt.Errorf("importing balance snapshot: %w", err)
		}
		res.BalanceSnapshots++
	}
	return res, nil
}

func loadLegacy(path string) (legacyData, bool, error) {
	data, err := readAndValidate(path)
	if err == nil {
		return data, false, nil
	}
	logger.Warnf("legacy data file %s unusable (%v), trying backup", path, err)

	backup := path + ".backup"
	data, backupErr := readAndValidate(backup)
	if backupErr != nil {
		return legacyData{}, false, fmt.Errorf("main file: %v; backup file: %w", err, backupErr)
	}
	return data, true, nil
}

func readAndValidate(path string) (legacyData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return legacyData{}, err
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return legacyData{}, fmt.Errorf("invalid JSON: %w", err)
	}
	schema := jsonschema.MustCompileString("legacy.json", legacySchema)
	if err := schema.Validate(generic); err != nil {
		return legacyData{}, fmt.Errorf("schema validation failed: %w", err)
	}

	var data legacyData
	if err := json.Unmarshal(raw, &data); err != nil {
		return legacyData{}, err
	}
	return data, nil
}

// parseLegacyTime 解析 Python isoformat 时间戳，解析不了就用当前时间，
// 导入数据至少保持可排序。
func parseLegacyTime(s string) time.Time {
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Now()
}
