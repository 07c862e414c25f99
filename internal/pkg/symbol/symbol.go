// Package symbol 处理交易对的两种写法：内部统一用 "ETH/USDT"，
// 币安合约 API 用 "ETHUSDT"。
package symbol

import "strings"

// DefaultQuoteCurrency 合约账户的计价币种。
const DefaultQuoteCurrency = "USDT"

// 无分隔符写法按已知计价币后缀猜分界，顺序即匹配优先级。
var quoteCurrencies = []string{"USDT", "BUSD", "USDC", "TUSD", "BTC", "ETH", "BNB"}

type Symbol struct {
	Base  string
	Quote string
}

// Internal 返回 "BASE/QUOTE" 写法；不完整的符号返回空串。
func (s Symbol) Internal() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + "/" + s.Quote
}

// Binance 返回币安合约 API 使用的拼接写法。
func (s Symbol) Binance() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + s.Quote
}

// Parse 接受 "eth/usdt"、"ETHUSDT"、"ETH/USDT:USDT" 等写法，
// 解析失败返回零值。
func Parse(raw string) Symbol {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return Symbol{}
	}
	// 剥掉结算币后缀（"ETH/USDT:USDT"）。
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	if parts := strings.SplitN(s, "/", 2); len(parts) == 2 {
		return Symbol{Base: strings.TrimSpace(parts[0]), Quote: strings.TrimSpace(parts[1])}
	}
	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{Base: s[:len(s)-len(quote)], Quote: quote}
		}
	}
	return Symbol{}
}

// ToExchange 把任意写法转成币安写法。解析不出来时原样大写返回，
// 交给交易所报错。
func ToExchange(raw string) string {
	if sym := Parse(raw); sym.Base != "" {
		return sym.Binance()
	}
	return strings.ToUpper(strings.TrimSpace(raw))
}

// FromExchange 把币安写法转回内部写法。
func FromExchange(raw string) string {
	return Parse(raw).Internal()
}

// Valid 报告该符号是否是可交易的 USDT 本位合约对。
func Valid(raw string) bool {
	sym := Parse(raw)
	return sym.Base != "" && sym.Quote == DefaultQuoteCurrency
}
