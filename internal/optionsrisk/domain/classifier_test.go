package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testExpiry = time.Date(2026, 12, 18, 0, 0, 0, 0, time.UTC)

func mustOption(t *testing.T, underlying string, strike float64, optType OptionType) Asset {
	t.Helper()
	a, err := NewOption(underlying, decimal.NewFromFloat(strike), testExpiry, optType)
	require.NoError(t, err)
	return a
}

func mustOptionExpiry(t *testing.T, underlying string, strike float64, optType OptionType, expiry time.Time) Asset {
	t.Helper()
	a, err := NewOption(underlying, decimal.NewFromFloat(strike), expiry, optType)
	require.NoError(t, err)
	return a
}

func pos(asset Asset, qty float64) Position {
	return Position{Asset: asset, Quantity: decimal.NewFromFloat(qty)}
}

func TestClassifyCoveredCall(t *testing.T) {
	positions := []Position{
		pos(NewStock("AAPL"), 100),
		pos(mustOption(t, "AAPL", 150, OptionTypeCall), -1),
	}

	strategies, err := ClassifyPositions(positions)
	require.NoError(t, err)
	require.Len(t, strategies, 1)

	covered, ok := strategies[0].(*CoveredStrategy)
	require.True(t, ok)
	assert.Equal(t, StrategyTypeCovered, covered.StrategyType())
	assert.Equal(t, "AAPL", covered.Asset.Symbol)
	assert.True(t, covered.EquityQuantity.Equal(decimal.NewFromInt(100)))
}

func TestClassifyCoveredCallWithResidualEquity(t *testing.T) {
	positions := []Position{
		pos(NewStock("AAPL"), 150),
		pos(mustOption(t, "AAPL", 150, OptionTypeCall), -1),
	}

	strategies, err := ClassifyPositions(positions)
	require.NoError(t, err)
	require.Len(t, strategies, 2)

	assert.Equal(t, StrategyTypeCovered, strategies[0].StrategyType())
	residual, ok := strategies[1].(*AssetStrategy)
	require.True(t, ok)
	assert.True(t, residual.Quantity.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, DirectionLong, residual.Direction)
}

func TestClassifyMultiContractPartialCover(t *testing.T) {
	// 100 股只能备兑 1 张，其余 2 张裸卖（合并为一个条目）
	positions := []Position{
		pos(NewStock("TSLA"), 100),
		pos(mustOption(t, "TSLA", 300, OptionTypeCall), -3),
	}

	strategies, err := ClassifyPositions(positions)
	require.NoError(t, err)
	require.Len(t, strategies, 2)

	assert.Equal(t, StrategyTypeCovered, strategies[0].StrategyType())
	naked, ok := strategies[1].(*AssetStrategy)
	require.True(t, ok)
	assert.True(t, naked.Quantity.Equal(decimal.NewFromInt(-2)))
	assert.Equal(t, DirectionShort, naked.Direction)
}

func TestClassifyCallCreditSpread(t *testing.T) {
	positions := []Position{
		pos(mustOption(t, "SPY", 450, OptionTypeCall), -1),
		pos(mustOption(t, "SPY", 460, OptionTypeCall), 1),
	}

	strategies, err := ClassifyPositions(positions)
	require.NoError(t, err)
	require.Len(t, strategies, 1)

	spread, ok := strategies[0].(*SpreadStrategy)
	require.True(t, ok)
	assert.Equal(t, SpreadTypeCredit, spread.SpreadType)
	assert.Equal(t, OptionTypeCall, spread.OptionType)
	assert.True(t, spread.StrikeWidth().Equal(decimal.NewFromInt(10)))
}

func TestClassifyPutDebitSpread(t *testing.T) {
	// 卖低买高的 Put 价差为支出价差
	positions := []Position{
		pos(mustOption(t, "SPY", 440, OptionTypePut), -1),
		pos(mustOption(t, "SPY", 450, OptionTypePut), 1),
	}

	strategies, err := ClassifyPositions(positions)
	require.NoError(t, err)
	require.Len(t, strategies, 1)

	spread, ok := strategies[0].(*SpreadStrategy)
	require.True(t, ok)
	assert.Equal(t, SpreadTypeDebit, spread.SpreadType)
	assert.Equal(t, OptionTypePut, spread.OptionType)
}

func TestClassifyCoveredPutViaShortEquity(t *testing.T) {
	positions := []Position{
		pos(NewStock("NVDA"), -100),
		pos(mustOption(t, "NVDA", 500, OptionTypePut), -1),
	}

	strategies, err := ClassifyPositions(positions)
	require.NoError(t, err)
	require.Len(t, strategies, 1)

	covered, ok := strategies[0].(*CoveredStrategy)
	require.True(t, ok)
	assert.True(t, covered.EquityQuantity.Equal(decimal.NewFromInt(-100)))
	assert.True(t, covered.SellOption.IsPut())
}

func TestClassifyOffsetPair(t *testing.T) {
	opt := mustOption(t, "MSFT", 400, OptionTypeCall)
	positions := []Position{
		pos(opt, -1),
		pos(opt, 1),
	}

	strategies, err := ClassifyPositions(positions)
	require.NoError(t, err)
	require.Len(t, strategies, 1)
	assert.Equal(t, StrategyTypeOffset, strategies[0].StrategyType())
}

func TestClassifyLeftoverLongsStandalone(t *testing.T) {
	positions := []Position{
		pos(mustOption(t, "AMD", 120, OptionTypeCall), 2),
		pos(mustOption(t, "AMD", 110, OptionTypePut), 1),
	}

	strategies, err := ClassifyPositions(positions)
	require.NoError(t, err)
	require.Len(t, strategies, 2)

	for _, s := range strategies {
		as, ok := s.(*AssetStrategy)
		require.True(t, ok)
		assert.Equal(t, DirectionLong, as.Direction)
	}
}

func TestClassifyConservation(t *testing.T) {
	positions := []Position{
		pos(NewStock("AAPL"), 250),
		pos(mustOption(t, "AAPL", 150, OptionTypeCall), -2),
		pos(mustOption(t, "AAPL", 160, OptionTypeCall), 1),
		pos(mustOption(t, "AAPL", 140, OptionTypePut), -3),
		pos(mustOption(t, "AAPL", 130, OptionTypePut), 2),
		pos(NewStock("SPY"), -200),
		pos(mustOption(t, "SPY", 450, OptionTypePut), -1),
		pos(mustOption(t, "SPY", 430, OptionTypePut), 4),
	}

	strategies, err := ClassifyPositions(positions)
	require.NoError(t, err)

	input := make(map[string]decimal.Decimal)
	for _, p := range positions {
		input[p.Asset.Symbol] = input[p.Asset.Symbol].Add(p.Quantity)
	}
	output := make(map[string]decimal.Decimal)
	for _, s := range strategies {
		for _, leg := range s.Legs() {
			output[leg.Asset.Symbol] = output[leg.Asset.Symbol].Add(leg.Quantity)
		}
	}

	require.Equal(t, len(input), len(output))
	for symbol, want := range input {
		assert.True(t, want.Equal(output[symbol]),
			"symbol %s: input %s output %s", symbol, want, output[symbol])
	}
}

func TestClassifyDeterminism(t *testing.T) {
	positions := []Position{
		pos(NewStock("AAPL"), 120),
		pos(mustOption(t, "AAPL", 155, OptionTypeCall), -1),
		pos(mustOption(t, "AAPL", 150, OptionTypeCall), -1),
		pos(mustOption(t, "AAPL", 165, OptionTypeCall), 2),
		pos(mustOption(t, "AAPL", 140, OptionTypePut), -2),
	}

	first, err := ClassifyPositions(positions)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := ClassifyPositions(positions)
		require.NoError(t, err)
		require.Len(t, again, len(first))
		for j := range first {
			assert.Equal(t, first[j].Describe(), again[j].Describe(), "run %d index %d", i, j)
		}
	}
}

func TestClassifyShortCallPairingOrder(t *testing.T) {
	// 卖出 Call 按执行价升序处理：150 先备兑，155 与 165 配对成价差
	positions := []Position{
		pos(NewStock("AAPL"), 100),
		pos(mustOption(t, "AAPL", 155, OptionTypeCall), -1),
		pos(mustOption(t, "AAPL", 150, OptionTypeCall), -1),
		pos(mustOption(t, "AAPL", 165, OptionTypeCall), 1),
	}

	strategies, err := ClassifyPositions(positions)
	require.NoError(t, err)
	require.Len(t, strategies, 2)

	covered, ok := strategies[0].(*CoveredStrategy)
	require.True(t, ok)
	assert.True(t, covered.SellOption.Strike.Equal(decimal.NewFromInt(150)))

	spread, ok := strategies[1].(*SpreadStrategy)
	require.True(t, ok)
	assert.True(t, spread.SellOption.Strike.Equal(decimal.NewFromInt(155)))
	assert.True(t, spread.BuyOption.Strike.Equal(decimal.NewFromInt(165)))
}

func TestClassifyUnderlyingsIndependent(t *testing.T) {
	positions := []Position{
		pos(NewStock("AAPL"), 100),
		pos(mustOption(t, "MSFT", 400, OptionTypeCall), -1),
	}

	strategies, err := ClassifyPositions(positions)
	require.NoError(t, err)
	require.Len(t, strategies, 2)

	// MSFT 的卖 Call 不能用 AAPL 股票备兑
	naked, ok := strategies[1].(*AssetStrategy)
	require.True(t, ok)
	assert.Equal(t, "MSFT", naked.Asset.Underlying)
	assert.Equal(t, DirectionShort, naked.Direction)
}

func TestClassifyFractionalOptionQuantityRejected(t *testing.T) {
	positions := []Position{
		pos(mustOption(t, "AAPL", 150, OptionTypeCall), -1.5),
	}

	_, err := ClassifyPositions(positions)
	require.Error(t, err)
	var cerr *ClassificationError
	assert.ErrorAs(t, err, &cerr)
}

func TestClassifyZeroQuantitySkipped(t *testing.T) {
	positions := []Position{
		pos(NewStock("AAPL"), 0),
		pos(mustOption(t, "AAPL", 150, OptionTypeCall), 0),
	}

	strategies, err := ClassifyPositions(positions)
	require.NoError(t, err)
	assert.Empty(t, strategies)
}

func TestClassifyCalendarLegsNotSpread(t *testing.T) {
	// 执行价相同但到期不同：既非价差（执行价需不同）也非对冲（非同一合约），退化为裸卖
	near := mustOptionExpiry(t, "AAPL", 150, OptionTypeCall, testExpiry)
	far := mustOptionExpiry(t, "AAPL", 150, OptionTypeCall, testExpiry.AddDate(0, 3, 0))
	positions := []Position{
		pos(near, -1),
		pos(far, 1),
	}

	strategies, err := ClassifyPositions(positions)
	require.NoError(t, err)
	require.Len(t, strategies, 2)
	assert.Equal(t, StrategyTypeAsset, strategies[0].StrategyType())
	assert.Equal(t, StrategyTypeAsset, strategies[1].StrategyType())
}
