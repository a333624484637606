package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func optQuote(symbol string, price, underlying float64, greeks *OptionGreeks) *OptionQuote {
	return &OptionQuote{
		Quote:           Quote{Symbol: symbol, Price: decimal.NewFromFloat(price)},
		UnderlyingPrice: decimal.NewFromFloat(underlying),
		Greeks:          greeks,
	}
}

func TestAggregateStrategyGreeks(t *testing.T) {
	call := mustOption(t, "AAPL", 150, OptionTypeCall)
	put := mustOption(t, "AAPL", 140, OptionTypePut)

	positions := []Position{
		pos(call, 2),  // 2 张多头
		pos(put, -1),  // 1 张空头
		pos(NewStock("AAPL"), 100), // 股票不计入
	}
	quotes := map[string]*OptionQuote{
		call.Symbol: optQuote(call.Symbol, 5.0, 150, &OptionGreeks{Delta: 0.5, Gamma: 0.02, Theta: -0.05, Vega: 0.3, Rho: 0.1}),
		put.Symbol:  optQuote(put.Symbol, 2.0, 150, &OptionGreeks{Delta: -0.3, Gamma: 0.01, Theta: -0.03, Vega: 0.2, Rho: -0.05}),
	}

	agg := AggregateStrategyGreeks(positions, quotes)

	// delta = 0.5*200 + (-0.3)*(-100) = 130
	assert.InDelta(t, 130, agg.Delta, 1e-9)
	// gamma = 0.02*200 + 0.01*(-100) = 3
	assert.InDelta(t, 3, agg.Gamma, 1e-9)
	// theta = -0.05*200 + (-0.03)*(-100) = -7
	assert.InDelta(t, -7, agg.Theta, 1e-9)
	// vega = 0.3*200 + 0.2*(-100) = 40
	assert.InDelta(t, 40, agg.Vega, 1e-9)

	// dollar delta = delta 逐仓乘以标的价（均为 150）
	assert.InDelta(t, 130*150, agg.DollarDelta, 1e-6)

	// 总市值 = 200*5 + 100*2 = 1200；每 1000 美元 delta = 130/1200*1000
	assert.InDelta(t, 1200, agg.TotalAbsValue, 1e-9)
	assert.InDelta(t, 130.0/1200*1000, agg.NormalizedDelta, 1e-9)
	assert.Equal(t, 2, agg.PositionsIncluded)
}

func TestAggregateExcludesPositionsWithoutGreeks(t *testing.T) {
	call := mustOption(t, "AAPL", 150, OptionTypeCall)
	noGreeks := mustOption(t, "AAPL", 160, OptionTypeCall)

	positions := []Position{
		pos(call, 1),
		pos(noGreeks, 5),
	}
	quotes := map[string]*OptionQuote{
		call.Symbol:     optQuote(call.Symbol, 4.0, 150, &OptionGreeks{Delta: 0.6}),
		noGreeks.Symbol: optQuote(noGreeks.Symbol, 2.0, 150, nil),
	}

	agg := AggregateStrategyGreeks(positions, quotes)

	assert.InDelta(t, 60, agg.Delta, 1e-9)
	// 缺 Greeks 的持仓同时从分母剔除
	assert.InDelta(t, 400, agg.TotalAbsValue, 1e-9)
	assert.Equal(t, 1, agg.PositionsIncluded)
}

func TestAggregateEmptyPortfolio(t *testing.T) {
	agg := AggregateStrategyGreeks(nil, nil)
	assert.Zero(t, agg.Delta)
	assert.Zero(t, agg.NormalizedDelta)
	assert.Zero(t, agg.PositionsIncluded)
}

func TestAnalyzeStrategyPnL(t *testing.T) {
	call := mustOption(t, "AAPL", 150, OptionTypeCall)
	positions := []Position{
		{
			Asset:        call,
			Quantity:     decimal.NewFromInt(2),
			AvgPrice:     decimal.NewFromFloat(3.00),
			CurrentPrice: decimal.NewFromFloat(4.50),
			RealizedPnL:  decimal.NewFromInt(50),
		},
		{
			Asset:        NewStock("AAPL"),
			Quantity:     decimal.NewFromInt(-100),
			AvgPrice:     decimal.NewFromInt(150),
			CurrentPrice: decimal.NewFromInt(155),
		},
	}

	pnl := AnalyzeStrategyPnL(positions, 30)

	// cost = 3*2*100 + 150*100 = 15600; mv = 4.5*2*100 + 155*100 = 16400
	assert.True(t, pnl.CostBasis.Equal(decimal.NewFromInt(15600)), "cost %s", pnl.CostBasis)
	assert.True(t, pnl.MarketValue.Equal(decimal.NewFromInt(16400)), "mv %s", pnl.MarketValue)
	assert.True(t, pnl.UnrealizedPnL.Equal(decimal.NewFromInt(800)))
	assert.True(t, pnl.TotalPnL.Equal(decimal.NewFromInt(850)))

	wantPct := decimal.NewFromInt(850).Div(decimal.NewFromInt(15600)).Mul(decimal.NewFromInt(100))
	assert.True(t, pnl.PnLPercent.Sub(wantPct).Abs().LessThan(decimal.NewFromFloat(1e-9)))

	wantAnnual := wantPct.Div(decimal.NewFromInt(30)).Mul(decimal.NewFromInt(365))
	assert.True(t, pnl.AnnualizedReturn.Sub(wantAnnual).Abs().LessThan(decimal.NewFromFloat(1e-6)))
}

func TestAnalyzeStrategyPnLZeroCostBasis(t *testing.T) {
	pnl := AnalyzeStrategyPnL(nil, 10)
	assert.True(t, pnl.PnLPercent.IsZero())
	assert.True(t, pnl.AnnualizedReturn.IsZero())
}

func TestGenerateRecommendationsThresholds(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name    string
		greeks  *StrategyGreeks
		actions []string
	}{
		{"quiet", &StrategyGreeks{Delta: 500, Theta: -50, Vega: 100}, nil},
		{"delta_breach", &StrategyGreeks{Delta: 1500}, []string{"HEDGE_DELTA"}},
		{"delta_breach_negative", &StrategyGreeks{Delta: -1200}, []string{"HEDGE_DELTA"}},
		{"theta_breach", &StrategyGreeks{Theta: -150}, []string{"ROLL_POSITIONS"}},
		{"vega_breach", &StrategyGreeks{Vega: -600}, []string{"HEDGE_VEGA"}},
		{
			"all_breached",
			&StrategyGreeks{Delta: 2000, Theta: -200, Vega: 800},
			[]string{"HEDGE_DELTA", "ROLL_POSITIONS", "HEDGE_VEGA"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			recs := GenerateRecommendations(tc.greeks, nil, now)
			var actions []string
			for _, r := range recs {
				actions = append(actions, r.Action)
			}
			assert.Equal(t, tc.actions, actions)
		})
	}
}

func TestGenerateRecommendationsExpiringShortOption(t *testing.T) {
	now := time.Now()
	soon, err := NewOption("AAPL", decimal.NewFromInt(150), now.AddDate(0, 0, 5), OptionTypeCall)
	require.NoError(t, err)
	far, err := NewOption("AAPL", decimal.NewFromInt(160), now.AddDate(0, 0, 60), OptionTypeCall)
	require.NoError(t, err)

	positions := []Position{
		pos(soon, -1),
		pos(far, -1),
		pos(soon, 2), // 多头临期不告警
	}

	recs := GenerateRecommendations(&StrategyGreeks{}, positions, now)
	require.Len(t, recs, 1)
	assert.Equal(t, "ROLL_OR_CLOSE", recs[0].Action)
	assert.Equal(t, soon.Symbol, recs[0].Symbol)
}
