// Package watchlist 从 YAML 文件加载扫描的交易对清单。
package watchlist

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	symbolpkg "talon/internal/pkg/symbol"
)

// Instrument 是扫描清单里的一个交易对。
type Instrument struct {
	Symbol   string `yaml:"symbol"`
	Interval string `yaml:"interval"`
}

type fileFormat struct {
	Instruments []Instrument `yaml:"instruments"`
}

// Load 读取并校验清单文件。非 USDT 本位合约对直接报错，
// 宁可启动失败也不要扫一个下不了单的符号。
func Load(path string) ([]Instrument, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading watchlist: %w", err)
	}
	return Parse(raw)
}

// Parse 解析清单内容，交易对统一成币安写法。
func Parse(raw []byte) ([]Instrument, error) {
	var f fileFormat
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parsing watchlist: %w", err)
	}
	if len(f.Instruments) == 0 {
		return nil, fmt.Errorf("watchlist has no instruments")
	}

	seen := make(map[string]bool, len(f.Instruments))
	out := make([]Instrument, 0, len(f.Instruments))
	for i, ins := range f.Instruments {
		sym := strings.TrimSpace(ins.Symbol)
		if sym == "" {
			return nil, fmt.Errorf("watchlist entry %d has empty symbol", i)
		}
		if !symbolpkg.Valid(sym) {
			return nil, fmt.Errorf("watchlist entry %q is not a tradable USDT perpetual", sym)
		}
		clean := symbolpkg.ToExchange(sym)
		if seen[clean] {
			continue
		}
		seen[clean] = true
		interval := strings.ToLower(strings.TrimSpace(ins.Interval))
		if interval == "" {
			interval = "1h"
		}
		out = append(out, Instrument{Symbol: clean, Interval: interval})
	}
	return out, nil
}
