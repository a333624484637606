package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position 某一资产的带符号持仓。数量为正表示多头，为负表示空头。
type Position struct {
	Asset        Asset           `json:"asset"`
	Quantity     decimal.Decimal `json:"quantity"`
	AvgPrice     decimal.Decimal `json:"avg_price"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	RealizedPnL  decimal.Decimal `json:"realized_pnl"`
	OpenedAt     time.Time       `json:"opened_at"`
}

func (p Position) IsLong() bool {
	return p.Quantity.IsPositive()
}

func (p Position) IsShort() bool {
	return p.Quantity.IsNegative()
}

// MarketValue 按当前价计算的带符号市值。
func (p Position) MarketValue() decimal.Decimal {
	return p.CurrentPrice.Mul(p.Quantity).Mul(p.Asset.Multiplier())
}

// CostBasis 持仓成本，始终非负。
func (p Position) CostBasis() decimal.Decimal {
	return p.AvgPrice.Mul(p.Quantity.Abs()).Mul(p.Asset.Multiplier())
}

// UnrealizedPnL 浮动盈亏，空头方向取反。
func (p Position) UnrealizedPnL() decimal.Decimal {
	return p.CurrentPrice.Sub(p.AvgPrice).Mul(p.Quantity).Mul(p.Asset.Multiplier())
}

func (p Position) TotalPnL() decimal.Decimal {
	return p.UnrealizedPnL().Add(p.RealizedPnL)
}

// Quote 价格快照。
type Quote struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

// OptionQuote 期权报价快照。Greeks 由调用方通过 WithGreeks 显式合并，
// 引擎本身不修改报价对象。
type OptionQuote struct {
	Quote
	Bid             decimal.Decimal `json:"bid"`
	Ask             decimal.Decimal `json:"ask"`
	UnderlyingPrice decimal.Decimal `json:"underlying_price"`
	Greeks          *OptionGreeks   `json:"greeks,omitempty"`
}

// WithGreeks 返回附加了 Greeks 的报价副本。
func (q OptionQuote) WithGreeks(g *OptionGreeks) OptionQuote {
	q.Greeks = g
	return q
}
