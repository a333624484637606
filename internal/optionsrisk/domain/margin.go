// 变更说明：按策略类型分派的维持保证金计算器。
// 规则为行业近似值而非监管精确规则；保证金恒为非负。
package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrQuoteUnavailable 行情缺失。裸卖期权缺标的价时上抛，缺权利金时降级为零。
var ErrQuoteUnavailable = errors.New("quote unavailable")

// QuoteProvider 行情查询能力，由调用方注入。
type QuoteProvider interface {
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// 保证金计算方法标识
const (
	MethodLongNoMargin       = "long_no_margin"
	MethodShortStockFull     = "short_stock_full_value"
	MethodNakedCall          = "naked_call"
	MethodNakedPut           = "naked_put"
	MethodCreditSpreadWidth  = "credit_spread_width"
	MethodDebitSpreadNone    = "debit_spread_no_margin"
	MethodCoveredNone        = "covered_no_margin"
	MethodOffsetNone         = "offset_no_margin"
	MethodComplexUnsupported = "complex_unsupported"
)

var (
	nakedBaseRate    = decimal.NewFromFloat(0.20)
	nakedMinimumRate = decimal.NewFromFloat(0.10)
)

// MarginRequirement 单策略保证金要求。
type MarginRequirement struct {
	StrategyID        string                     `json:"strategy_id"`
	StrategyType      StrategyType               `json:"strategy_type"`
	Underlying        string                     `json:"underlying"`
	MarginRequirement decimal.Decimal            `json:"margin_requirement"`
	Method            string                     `json:"calculation_method"`
	Details           map[string]decimal.Decimal `json:"details,omitempty"`
}

// MarginResult 组合保证金汇总。单策略失败只记入警告并按零计入，不影响其余策略。
type MarginResult struct {
	TotalMargin  decimal.Decimal            `json:"total_margin"`
	Requirements []*MarginRequirement       `json:"requirements"`
	Warnings     []string                   `json:"warnings"`
	ByUnderlying map[string]decimal.Decimal `json:"by_underlying"`
}

// MarginCalculator 保证金计算器。
type MarginCalculator struct {
	quotes QuoteProvider
}

func NewMarginCalculator(quotes QuoteProvider) *MarginCalculator {
	return &MarginCalculator{quotes: quotes}
}

// Calculate 计算单个策略的维持保证金。
func (c *MarginCalculator) Calculate(ctx context.Context, s Strategy) (*MarginRequirement, error) {
	req := &MarginRequirement{
		StrategyID:        s.Describe(),
		StrategyType:      s.StrategyType(),
		Underlying:        s.Underlying(),
		MarginRequirement: decimal.Zero,
	}

	switch st := s.(type) {
	case *AssetStrategy:
		if err := c.assetMargin(ctx, st, req); err != nil {
			return nil, err
		}
	case *SpreadStrategy:
		c.spreadMargin(st, req)
	case *CoveredStrategy:
		req.Method = MethodCoveredNone
	case *OffsetStrategy:
		req.Method = MethodOffsetNone
	case *ComplexStrategy:
		req.Method = MethodComplexUnsupported
	default:
		return nil, fmt.Errorf("unknown strategy type %s", s.StrategyType())
	}

	if req.MarginRequirement.IsNegative() {
		req.MarginRequirement = decimal.Zero
	}
	return req, nil
}

// CalculateBatch 批量计算。一条坏行情不会中断整个批次。
func (c *MarginCalculator) CalculateBatch(ctx context.Context, strategies []Strategy) *MarginResult {
	result := &MarginResult{
		TotalMargin:  decimal.Zero,
		Requirements: make([]*MarginRequirement, 0, len(strategies)),
		ByUnderlying: make(map[string]decimal.Decimal),
	}

	for i, s := range strategies {
		req, err := c.Calculate(ctx, s)
		if err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("strategy %d (%s): %v", i+1, s.Describe(), err))
			continue
		}
		req.StrategyID = fmt.Sprintf("%d:%s", i+1, req.StrategyID)
		result.Requirements = append(result.Requirements, req)
		result.TotalMargin = result.TotalMargin.Add(req.MarginRequirement)

		prev, ok := result.ByUnderlying[req.Underlying]
		if !ok {
			prev = decimal.Zero
		}
		result.ByUnderlying[req.Underlying] = prev.Add(req.MarginRequirement)
	}
	return result
}

func (c *MarginCalculator) assetMargin(ctx context.Context, s *AssetStrategy, req *MarginRequirement) error {
	if s.Direction == DirectionLong {
		req.Method = MethodLongNoMargin
		return nil
	}

	if !s.Asset.IsOption() {
		price, err := c.quotes.GetPrice(ctx, s.Asset.Symbol)
		if err != nil {
			return fmt.Errorf("short stock %s: %w", s.Asset.Symbol, ErrQuoteUnavailable)
		}
		req.Method = MethodShortStockFull
		req.MarginRequirement = s.Quantity.Abs().Mul(price)
		req.Details = map[string]decimal.Decimal{"price": price}
		return nil
	}

	return c.nakedOptionMargin(ctx, s, req)
}

// nakedOptionMargin 裸卖期权：权利金 + max(20%标的 − 虚值额, 10%最低基数)，乘以合约乘数与张数。
// Call 最低基数为标的价，Put 为执行价。
func (c *MarginCalculator) nakedOptionMargin(ctx context.Context, s *AssetStrategy, req *MarginRequirement) error {
	underlyingPrice, err := c.quotes.GetPrice(ctx, s.Asset.Underlying)
	if err != nil {
		return fmt.Errorf("naked option %s underlying %s: %w",
			s.Asset.Symbol, s.Asset.Underlying, ErrQuoteUnavailable)
	}

	// 权利金缺失按零降级，不中断计算。
	premium, err := c.quotes.GetPrice(ctx, s.Asset.Symbol)
	if err != nil {
		premium = decimal.Zero
	}

	strike := s.Asset.Strike
	// 折减额取执行价与标的价的距离：虚值时即虚值额，实值时同样折减，
	// 由 10% 最低基数托底。
	otm := strike.Sub(underlyingPrice).Abs()
	var minimum decimal.Decimal
	if s.Asset.IsCall() {
		minimum = nakedMinimumRate.Mul(underlyingPrice)
		req.Method = MethodNakedCall
	} else {
		minimum = nakedMinimumRate.Mul(strike)
		req.Method = MethodNakedPut
	}

	base := decimal.Max(nakedBaseRate.Mul(underlyingPrice).Sub(otm), minimum)
	req.MarginRequirement = premium.Add(base).
		Mul(s.Asset.Multiplier()).
		Mul(s.Quantity.Abs())
	req.Details = map[string]decimal.Decimal{
		"premium":          premium,
		"underlying_price": underlyingPrice,
		"strike":           strike,
		"otm_amount":       otm,
	}
	return nil
}

// spreadMargin 收入价差按执行价间距计提，支出价差无保证金要求。
func (c *MarginCalculator) spreadMargin(s *SpreadStrategy, req *MarginRequirement) {
	if s.SpreadType == SpreadTypeDebit {
		req.Method = MethodDebitSpreadNone
		return
	}
	width := s.StrikeWidth()
	req.Method = MethodCreditSpreadWidth
	req.MarginRequirement = width.Mul(s.SellOption.Multiplier()).Mul(s.Quantity)
	req.Details = map[string]decimal.Decimal{"strike_width": width}
}
