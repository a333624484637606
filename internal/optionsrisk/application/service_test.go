package application

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/optionsanalytics/internal/optionsrisk/domain"
)

type fakeQuotes struct {
	prices map[string]float64
}

func (f fakeQuotes) GetPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	p, ok := f.prices[symbol]
	if !ok {
		return decimal.Zero, domain.ErrQuoteUnavailable
	}
	return decimal.NewFromFloat(p), nil
}

type memSnapshots struct {
	saved []*domain.MarginSnapshot
}

func (m *memSnapshots) Save(_ context.Context, s *domain.MarginSnapshot) error {
	m.saved = append(m.saved, s)
	return nil
}

func (m *memSnapshots) GetLatestByAccount(_ context.Context, accountID string) (*domain.MarginSnapshot, error) {
	for i := len(m.saved) - 1; i >= 0; i-- {
		if m.saved[i].AccountID == accountID {
			return m.saved[i], nil
		}
	}
	return nil, nil
}

func (m *memSnapshots) ListByAccount(_ context.Context, accountID string, limit int) ([]*domain.MarginSnapshot, error) {
	var out []*domain.MarginSnapshot
	for i := len(m.saved) - 1; i >= 0 && len(out) < limit; i-- {
		if m.saved[i].AccountID == accountID {
			out = append(out, m.saved[i])
		}
	}
	return out, nil
}

type memPublisher struct {
	marginEvents []domain.MarginComputedEvent
	alertEvents  []domain.RiskAlertGeneratedEvent
}

func (m *memPublisher) PublishMarginComputed(e domain.MarginComputedEvent) error {
	m.marginEvents = append(m.marginEvents, e)
	return nil
}

func (m *memPublisher) PublishRiskAlertGenerated(e domain.RiskAlertGeneratedEvent) error {
	m.alertEvents = append(m.alertEvents, e)
	return nil
}

func optionSymbol(t *testing.T, underlying string, strike float64, expiration string, optType domain.OptionType) string {
	t.Helper()
	exp, err := time.Parse("2006-01-02", expiration)
	require.NoError(t, err)
	asset, err := domain.NewOption(underlying, decimal.NewFromFloat(strike), exp, optType)
	require.NoError(t, err)
	return asset.Symbol
}

func TestCalculateMarginPersistsSnapshotAndPublishesEvent(t *testing.T) {
	expiration := "2027-01-15"
	symbol := optionSymbol(t, "XYZ", 150, expiration, domain.OptionTypeCall)

	snapshots := &memSnapshots{}
	publisher := &memPublisher{}
	svc := NewAnalyticsService(fakeQuotes{prices: map[string]float64{
		"XYZ":  155,
		symbol: 6.00,
	}}, snapshots, publisher)

	result, err := svc.CalculateMargin(context.Background(), &MarginRequest{
		AccountID: "acct-1",
		Positions: []PositionDTO{{
			AssetType:  "OPTION",
			Underlying: "XYZ",
			Strike:     "150",
			Expiration: expiration,
			OptionType: "CALL",
			Quantity:   "-1",
		}},
	})
	require.NoError(t, err)

	// (6.00 + max(0.20*155-5, 0.10*155)) * 100 = 3200
	assert.Equal(t, "3200", result.TotalMargin)
	assert.Equal(t, "acct-1", result.AccountID)
	assert.Empty(t, result.Warnings)

	require.Len(t, snapshots.saved, 1)
	assert.Equal(t, "acct-1", snapshots.saved[0].AccountID)
	assert.True(t, snapshots.saved[0].TotalMargin.Equal(decimal.NewFromInt(3200)))
	assert.NotEmpty(t, snapshots.saved[0].ID)

	require.Len(t, publisher.marginEvents, 1)
	assert.Equal(t, 1, publisher.marginEvents[0].Strategies)
}

func TestClassifyPortfolioCoveredCall(t *testing.T) {
	svc := NewAnalyticsService(fakeQuotes{}, &memSnapshots{}, &memPublisher{})

	strategies, err := svc.ClassifyPortfolio(context.Background(), &ClassifyRequest{
		AccountID: "acct-1",
		Positions: []PositionDTO{
			{AssetType: "STOCK", Symbol: "AAPL", Quantity: "100"},
			{
				AssetType:  "OPTION",
				Underlying: "AAPL",
				Strike:     "150",
				Expiration: "2027-01-15",
				OptionType: "CALL",
				Quantity:   "-1",
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, strategies, 1)
	assert.Equal(t, string(domain.StrategyTypeCovered), strategies[0].StrategyType)
	assert.Equal(t, "AAPL", strategies[0].Underlying)
	assert.Len(t, strategies[0].Legs, 2)
}

func TestClassifyPortfolioRejectsBadPosition(t *testing.T) {
	svc := NewAnalyticsService(fakeQuotes{}, &memSnapshots{}, &memPublisher{})

	_, err := svc.ClassifyPortfolio(context.Background(), &ClassifyRequest{
		AccountID: "acct-1",
		Positions: []PositionDTO{
			{AssetType: "OPTION", Underlying: "AAPL", Strike: "abc", Expiration: "2027-01-15", OptionType: "CALL", Quantity: "1"},
		},
	})
	require.Error(t, err)
}

func TestComputeGreeksRoundTrip(t *testing.T) {
	svc := NewAnalyticsService(fakeQuotes{}, &memSnapshots{}, &memPublisher{})

	days := 91
	price := domain.BlackScholesPrice("CALL", 100, 100, float64(days)/365.0, domain.RiskFreeRate, 0, 0.25)

	greeks, err := svc.ComputeGreeks(&GreeksRequest{
		OptionType:       "CALL",
		Strike:           100,
		UnderlyingPrice:  100,
		DaysToExpiration: days,
		OptionPrice:      price,
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, greeks.ImpliedVolatility, 1e-4)
	assert.Greater(t, greeks.Delta, 0.0)
}

func TestComputeGreeksInvalidInput(t *testing.T) {
	svc := NewAnalyticsService(fakeQuotes{}, &memSnapshots{}, &memPublisher{})

	_, err := svc.ComputeGreeks(&GreeksRequest{
		OptionType:       "CALL",
		Strike:           -1,
		UnderlyingPrice:  100,
		DaysToExpiration: 30,
		OptionPrice:      5,
	})
	assert.ErrorIs(t, err, ErrInvalidGreeksInput)
}

func TestAnalyzePortfolioEnrichesMissingGreeks(t *testing.T) {
	expiration := time.Now().AddDate(0, 3, 0).Format("2006-01-02")
	symbol := optionSymbol(t, "AAPL", 150, expiration, domain.OptionTypeCall)

	publisher := &memPublisher{}
	svc := NewAnalyticsService(fakeQuotes{}, &memSnapshots{}, publisher)

	price := domain.BlackScholesPrice("CALL", 150, 150, 0.25, domain.RiskFreeRate, 0, 0.30)

	analysis, err := svc.AnalyzePortfolio(context.Background(), &AnalyzeRequest{
		AccountID: "acct-1",
		Positions: []PositionDTO{{
			AssetType:    "OPTION",
			Underlying:   "AAPL",
			Strike:       "150",
			Expiration:   expiration,
			OptionType:   "CALL",
			Quantity:     "2",
			AvgPrice:     "3.00",
			CurrentPrice: "4.00",
		}},
		Quotes: []OptionQuoteDTO{{
			Symbol:          symbol,
			Price:           decimal.NewFromFloat(price).String(),
			UnderlyingPrice: "150",
		}},
		DaysHeld: 10,
	})
	require.NoError(t, err)

	// 报价未带 Greeks，服务端按合约参数即时计算后聚合
	require.NotNil(t, analysis.Greeks)
	assert.Equal(t, 1, analysis.Greeks.PositionsIncluded)
	assert.Greater(t, analysis.Greeks.Delta, 0.0)

	require.NotNil(t, analysis.PnL)
	assert.Equal(t, 10, analysis.PnL.DaysHeld)

	assert.Len(t, publisher.alertEvents, len(analysis.Recommendations))
}
