package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type StrategyType string
type Direction string
type SpreadType string

const (
	StrategyTypeAsset   StrategyType = "ASSET"
	StrategyTypeCovered StrategyType = "COVERED"
	StrategyTypeSpread  StrategyType = "SPREAD"
	StrategyTypeOffset  StrategyType = "OFFSET"
	StrategyTypeComplex StrategyType = "COMPLEX"

	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"

	SpreadTypeCredit SpreadType = "CREDIT"
	SpreadTypeDebit  SpreadType = "DEBIT"
)

// ClassificationError 分类不变量被破坏时返回，属于调用方数据错误，不做静默修正。
type ClassificationError struct {
	Reason string
}

func (e *ClassificationError) Error() string {
	return "classification invariant violation: " + e.Reason
}

func classificationErrorf(format string, args ...any) error {
	return &ClassificationError{Reason: fmt.Sprintf(format, args...)}
}

// StrategyLeg 策略腿：资产与带符号数量。
type StrategyLeg struct {
	Asset    Asset           `json:"asset"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Strategy 交易策略闭合标签联合。分类器输出的策略对象是临时的，
// 每次分类都基于持仓快照重建，引擎不持久化。
type Strategy interface {
	StrategyType() StrategyType
	Underlying() string
	// Legs 返回带符号的腿数量，用于守恒校验与盈亏归集。
	Legs() []StrategyLeg
	Describe() string
	sealed()
}

// AssetStrategy 单资产裸头寸（股票或裸期权）。
type AssetStrategy struct {
	Asset     Asset           `json:"asset"`
	Quantity  decimal.Decimal `json:"quantity"`
	Direction Direction       `json:"direction"`
}

func NewAssetStrategy(asset Asset, quantity decimal.Decimal) *AssetStrategy {
	dir := DirectionLong
	if quantity.IsNegative() {
		dir = DirectionShort
	}
	return &AssetStrategy{Asset: asset, Quantity: quantity, Direction: dir}
}

func (s *AssetStrategy) StrategyType() StrategyType { return StrategyTypeAsset }
func (s *AssetStrategy) Underlying() string         { return s.Asset.Underlying }
func (s *AssetStrategy) Legs() []StrategyLeg {
	return []StrategyLeg{{Asset: s.Asset, Quantity: s.Quantity}}
}
func (s *AssetStrategy) Describe() string {
	return fmt.Sprintf("ASSET %s %s x%s", s.Direction, s.Asset.Symbol, s.Quantity.Abs().String())
}
func (s *AssetStrategy) sealed() {}

// CoveredStrategy 备兑策略：100 股股票对 1 张卖出期权。
// 备兑看涨为多头股票 + 卖 Call；备兑看跌为空头股票 + 卖 Put（EquityQuantity 为 -100）。
type CoveredStrategy struct {
	Asset          Asset           `json:"asset"`
	EquityQuantity decimal.Decimal `json:"equity_quantity"`
	SellOption     Asset           `json:"sell_option"`
}

func NewCoveredStrategy(asset Asset, equityQuantity decimal.Decimal, sellOption Asset) (*CoveredStrategy, error) {
	if !sellOption.IsOption() {
		return nil, classificationErrorf("covered strategy sell leg %s is not an option", sellOption.Symbol)
	}
	if asset.Symbol != sellOption.Underlying {
		return nil, classificationErrorf("covered strategy asset %s does not match option underlying %s",
			asset.Symbol, sellOption.Underlying)
	}
	return &CoveredStrategy{Asset: asset, EquityQuantity: equityQuantity, SellOption: sellOption}, nil
}

func (s *CoveredStrategy) StrategyType() StrategyType { return StrategyTypeCovered }
func (s *CoveredStrategy) Underlying() string         { return s.Asset.Symbol }
func (s *CoveredStrategy) Legs() []StrategyLeg {
	return []StrategyLeg{
		{Asset: s.Asset, Quantity: s.EquityQuantity},
		{Asset: s.SellOption, Quantity: decimal.NewFromInt(-1)},
	}
}
func (s *CoveredStrategy) Describe() string {
	return fmt.Sprintf("COVERED %s short %s", s.Asset.Symbol, s.SellOption.Symbol)
}
func (s *CoveredStrategy) sealed() {}

// SpreadStrategy 两腿价差：卖一腿买一腿，同类型同标的，执行价不同。
type SpreadStrategy struct {
	SellOption Asset           `json:"sell_option"`
	BuyOption  Asset           `json:"buy_option"`
	OptionType OptionType      `json:"option_type"`
	SpreadType SpreadType      `json:"spread_type"`
	Quantity   decimal.Decimal `json:"quantity"`
}

func NewSpreadStrategy(sellOption, buyOption Asset, quantity decimal.Decimal) (*SpreadStrategy, error) {
	if !sellOption.IsOption() || !buyOption.IsOption() {
		return nil, classificationErrorf("spread legs must both be options")
	}
	if sellOption.OptionType != buyOption.OptionType {
		return nil, classificationErrorf("spread legs have mismatched option types %s/%s",
			sellOption.OptionType, buyOption.OptionType)
	}
	if sellOption.Underlying != buyOption.Underlying {
		return nil, classificationErrorf("spread legs have mismatched underlyings %s/%s",
			sellOption.Underlying, buyOption.Underlying)
	}
	if sellOption.Strike.Equal(buyOption.Strike) {
		return nil, classificationErrorf("spread legs must have distinct strikes")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, classificationErrorf("spread quantity must be positive")
	}
	return &SpreadStrategy{
		SellOption: sellOption,
		BuyOption:  buyOption,
		OptionType: sellOption.OptionType,
		SpreadType: spreadTypeFor(sellOption, buyOption),
		Quantity:   quantity,
	}, nil
}

// spreadTypeFor 价差方向：卖出的腿权利金更高即为收入价差。
// Call: 卖低买高为 CREDIT；Put: 卖高买低为 CREDIT。
func spreadTypeFor(sell, buy Asset) SpreadType {
	if sell.OptionType == OptionTypeCall {
		if sell.Strike.LessThan(buy.Strike) {
			return SpreadTypeCredit
		}
		return SpreadTypeDebit
	}
	if sell.Strike.GreaterThan(buy.Strike) {
		return SpreadTypeCredit
	}
	return SpreadTypeDebit
}

// StrikeWidth 执行价间距，始终为正。
func (s *SpreadStrategy) StrikeWidth() decimal.Decimal {
	return s.SellOption.Strike.Sub(s.BuyOption.Strike).Abs()
}

func (s *SpreadStrategy) StrategyType() StrategyType { return StrategyTypeSpread }
func (s *SpreadStrategy) Underlying() string         { return s.SellOption.Underlying }
func (s *SpreadStrategy) Legs() []StrategyLeg {
	return []StrategyLeg{
		{Asset: s.SellOption, Quantity: s.Quantity.Neg()},
		{Asset: s.BuyOption, Quantity: s.Quantity},
	}
}
func (s *SpreadStrategy) Describe() string {
	return fmt.Sprintf("SPREAD %s sell %s buy %s x%s",
		s.SpreadType, s.SellOption.Symbol, s.BuyOption.Symbol, s.Quantity.String())
}
func (s *SpreadStrategy) sealed() {}

// OffsetStrategy 同一期权的多空对冲对，净敞口为零。
type OffsetStrategy struct {
	Asset Asset `json:"asset"`
}

func NewOffsetStrategy(asset Asset) *OffsetStrategy {
	return &OffsetStrategy{Asset: asset}
}

func (s *OffsetStrategy) StrategyType() StrategyType { return StrategyTypeOffset }
func (s *OffsetStrategy) Underlying() string         { return s.Asset.Underlying }
func (s *OffsetStrategy) Legs() []StrategyLeg {
	return []StrategyLeg{
		{Asset: s.Asset, Quantity: decimal.NewFromInt(1)},
		{Asset: s.Asset, Quantity: decimal.NewFromInt(-1)},
	}
}
func (s *OffsetStrategy) Describe() string {
	return fmt.Sprintf("OFFSET %s", s.Asset.Symbol)
}
func (s *OffsetStrategy) sealed() {}

// ComplexStrategy 多腿复合策略（简化表示）。
type ComplexStrategy struct {
	LegList []StrategyLeg `json:"legs"`
	Subtype string        `json:"subtype"`
}

func NewComplexStrategy(legs []StrategyLeg, subtype string) (*ComplexStrategy, error) {
	if len(legs) == 0 {
		return nil, classificationErrorf("complex strategy requires at least one leg")
	}
	return &ComplexStrategy{LegList: legs, Subtype: subtype}, nil
}

func (s *ComplexStrategy) StrategyType() StrategyType { return StrategyTypeComplex }
func (s *ComplexStrategy) Underlying() string {
	return s.LegList[0].Asset.Underlying
}
func (s *ComplexStrategy) Legs() []StrategyLeg { return s.LegList }
func (s *ComplexStrategy) Describe() string {
	return fmt.Sprintf("COMPLEX %s (%d legs)", s.Subtype, len(s.LegList))
}
func (s *ComplexStrategy) sealed() {}
