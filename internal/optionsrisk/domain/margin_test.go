package domain

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubQuotes struct {
	prices map[string]float64
}

func (s stubQuotes) GetPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	p, ok := s.prices[symbol]
	if !ok {
		return decimal.Zero, ErrQuoteUnavailable
	}
	return decimal.NewFromFloat(p), nil
}

func TestMarginNakedCall(t *testing.T) {
	// 卖 1 张裸 Call，K=150，S=155，权利金 6.00
	// margin = (6.00 + max(0.20*155 - 5, 0.10*155)) * 100 = 3200
	opt := mustOption(t, "XYZ", 150, OptionTypeCall)
	calc := NewMarginCalculator(stubQuotes{prices: map[string]float64{
		"XYZ":      155,
		opt.Symbol: 6.00,
	}})

	req, err := calc.Calculate(context.Background(), NewAssetStrategy(opt, decimal.NewFromInt(-1)))
	require.NoError(t, err)
	assert.Equal(t, MethodNakedCall, req.Method)
	assert.True(t, req.MarginRequirement.Equal(decimal.NewFromInt(3200)),
		"got %s", req.MarginRequirement)
}

func TestMarginNakedPutMinimumFloor(t *testing.T) {
	// 深度虚值 Put：20% 基数扣减后低于 10% 执行价下限，按下限计提
	opt := mustOption(t, "XYZ", 50, OptionTypePut)
	calc := NewMarginCalculator(stubQuotes{prices: map[string]float64{
		"XYZ":      100,
		opt.Symbol: 0.50,
	}})

	req, err := calc.Calculate(context.Background(), NewAssetStrategy(opt, decimal.NewFromInt(-2)))
	require.NoError(t, err)
	assert.Equal(t, MethodNakedPut, req.Method)
	// (0.50 + max(0.20*100-50, 0.10*50)) * 100 * 2 = (0.50 + 5) * 200 = 1100
	assert.True(t, req.MarginRequirement.Equal(decimal.NewFromInt(1100)),
		"got %s", req.MarginRequirement)
}

func TestMarginNakedOptionMissingPremiumDegrades(t *testing.T) {
	opt := mustOption(t, "XYZ", 150, OptionTypeCall)
	calc := NewMarginCalculator(stubQuotes{prices: map[string]float64{"XYZ": 155}})

	req, err := calc.Calculate(context.Background(), NewAssetStrategy(opt, decimal.NewFromInt(-1)))
	require.NoError(t, err)
	// 权利金缺失按零：max(0.20*155-5, 15.5)*100 = 2600
	assert.True(t, req.MarginRequirement.Equal(decimal.NewFromInt(2600)),
		"got %s", req.MarginRequirement)
	assert.True(t, req.Details["premium"].IsZero())
}

func TestMarginNakedOptionMissingUnderlyingFails(t *testing.T) {
	opt := mustOption(t, "XYZ", 150, OptionTypeCall)
	calc := NewMarginCalculator(stubQuotes{prices: map[string]float64{opt.Symbol: 6.00}})

	_, err := calc.Calculate(context.Background(), NewAssetStrategy(opt, decimal.NewFromInt(-1)))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQuoteUnavailable)
}

func TestMarginShortStock(t *testing.T) {
	calc := NewMarginCalculator(stubQuotes{prices: map[string]float64{"AAPL": 180}})

	req, err := calc.Calculate(context.Background(),
		NewAssetStrategy(NewStock("AAPL"), decimal.NewFromInt(-50)))
	require.NoError(t, err)
	assert.Equal(t, MethodShortStockFull, req.Method)
	assert.True(t, req.MarginRequirement.Equal(decimal.NewFromInt(9000)),
		"got %s", req.MarginRequirement)
}

func TestMarginShortStockMissingQuoteFails(t *testing.T) {
	calc := NewMarginCalculator(stubQuotes{})

	_, err := calc.Calculate(context.Background(),
		NewAssetStrategy(NewStock("AAPL"), decimal.NewFromInt(-50)))
	assert.ErrorIs(t, err, ErrQuoteUnavailable)
}

func TestMarginCreditPutSpread(t *testing.T) {
	sell := mustOption(t, "SPY", 150, OptionTypePut)
	buy := mustOption(t, "SPY", 140, OptionTypePut)
	spread, err := NewSpreadStrategy(sell, buy, decimal.NewFromInt(2))
	require.NoError(t, err)
	require.Equal(t, SpreadTypeCredit, spread.SpreadType)

	calc := NewMarginCalculator(stubQuotes{})
	req, err := calc.Calculate(context.Background(), spread)
	require.NoError(t, err)
	assert.Equal(t, MethodCreditSpreadWidth, req.Method)
	assert.True(t, req.MarginRequirement.Equal(decimal.NewFromInt(2000)),
		"got %s", req.MarginRequirement)
}

func TestMarginDebitSpreadZero(t *testing.T) {
	sell := mustOption(t, "SPY", 140, OptionTypePut)
	buy := mustOption(t, "SPY", 150, OptionTypePut)
	spread, err := NewSpreadStrategy(sell, buy, decimal.NewFromInt(1))
	require.NoError(t, err)
	require.Equal(t, SpreadTypeDebit, spread.SpreadType)

	calc := NewMarginCalculator(stubQuotes{})
	req, err := calc.Calculate(context.Background(), spread)
	require.NoError(t, err)
	assert.True(t, req.MarginRequirement.IsZero())
}

func TestMarginCoveredAndLongZero(t *testing.T) {
	opt := mustOption(t, "AAPL", 150, OptionTypeCall)
	covered, err := NewCoveredStrategy(NewStock("AAPL"), decimal.NewFromInt(100), opt)
	require.NoError(t, err)

	calc := NewMarginCalculator(stubQuotes{})

	req, err := calc.Calculate(context.Background(), covered)
	require.NoError(t, err)
	assert.True(t, req.MarginRequirement.IsZero())
	assert.Equal(t, MethodCoveredNone, req.Method)

	long, err := calc.Calculate(context.Background(),
		NewAssetStrategy(opt, decimal.NewFromInt(3)))
	require.NoError(t, err)
	assert.True(t, long.MarginRequirement.IsZero())
	assert.Equal(t, MethodLongNoMargin, long.Method)
}

func TestMarginBatchLongOnlyPortfolioIsZero(t *testing.T) {
	positions := []Position{
		pos(NewStock("AAPL"), 100),
		pos(mustOption(t, "AAPL", 150, OptionTypeCall), -1), // covered
		pos(mustOption(t, "SPY", 450, OptionTypeCall), 2),   // long
		pos(mustOption(t, "SPY", 440, OptionTypePut), -1),   // debit spread sell440 buy450? strikes differ
		pos(mustOption(t, "SPY", 450, OptionTypePut), 1),
	}
	strategies, err := ClassifyPositions(positions)
	require.NoError(t, err)

	calc := NewMarginCalculator(stubQuotes{})
	result := calc.CalculateBatch(context.Background(), strategies)

	assert.True(t, result.TotalMargin.IsZero(), "total %s", result.TotalMargin)
	assert.Empty(t, result.Warnings)
	for _, req := range result.Requirements {
		assert.False(t, req.MarginRequirement.IsNegative())
	}
}

func TestMarginBatchIsolatesFailures(t *testing.T) {
	nakedNoQuote := NewAssetStrategy(mustOption(t, "ZZZ", 100, OptionTypeCall), decimal.NewFromInt(-1))
	sell := mustOption(t, "SPY", 450, OptionTypeCall)
	buy := mustOption(t, "SPY", 460, OptionTypeCall)
	spread, err := NewSpreadStrategy(sell, buy, decimal.NewFromInt(1))
	require.NoError(t, err)

	calc := NewMarginCalculator(stubQuotes{})
	result := calc.CalculateBatch(context.Background(), []Strategy{nakedNoQuote, spread})

	// 坏行情的策略记入警告并按零计入，不影响价差计算
	require.Len(t, result.Warnings, 1)
	require.Len(t, result.Requirements, 1)
	assert.True(t, result.TotalMargin.Equal(decimal.NewFromInt(1000)),
		"got %s", result.TotalMargin)
	assert.True(t, result.ByUnderlying["SPY"].Equal(decimal.NewFromInt(1000)))
}

func TestMarginNonNegativeAcrossStrategies(t *testing.T) {
	opt := mustOption(t, "XYZ", 10, OptionTypeCall)
	calc := NewMarginCalculator(stubQuotes{prices: map[string]float64{
		"XYZ":      1000, // 深度实值，扣减远超 20% 基数
		opt.Symbol: 990,
	}})

	req, err := calc.Calculate(context.Background(), NewAssetStrategy(opt, decimal.NewFromInt(-1)))
	require.NoError(t, err)
	assert.False(t, req.MarginRequirement.IsNegative())
}
