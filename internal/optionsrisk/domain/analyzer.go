// 变更说明：组合风险分析。聚合组合 Greeks、计算策略盈亏、
// 输出基于阈值规则的风险优化建议。
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// 建议规则阈值
const (
	deltaHedgeThreshold  = 1000.0
	thetaDecayThreshold  = -100.0
	vegaHedgeThreshold   = 500.0
	expiryWarningDays    = 7
	normalizationDollars = 1000.0
)

// StrategyGreeks 组合级 Greeks 聚合。Dollar 口径乘以标的价，
// Normalized 口径为每 1000 美元持仓市值的敏感度。
type StrategyGreeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`

	DollarDelta float64 `json:"dollar_delta"`
	DollarGamma float64 `json:"dollar_gamma"`
	DollarTheta float64 `json:"dollar_theta"`
	DollarVega  float64 `json:"dollar_vega"`
	DollarRho   float64 `json:"dollar_rho"`

	NormalizedDelta float64 `json:"normalized_delta"`
	NormalizedGamma float64 `json:"normalized_gamma"`
	NormalizedTheta float64 `json:"normalized_theta"`
	NormalizedVega  float64 `json:"normalized_vega"`
	NormalizedRho   float64 `json:"normalized_rho"`

	TotalAbsValue     float64 `json:"total_abs_value"`
	PositionsIncluded int     `json:"positions_included"`
}

// StrategyPnL 策略盈亏汇总。
type StrategyPnL struct {
	CostBasis        decimal.Decimal `json:"cost_basis"`
	MarketValue      decimal.Decimal `json:"market_value"`
	UnrealizedPnL    decimal.Decimal `json:"unrealized_pnl"`
	RealizedPnL      decimal.Decimal `json:"realized_pnl"`
	TotalPnL         decimal.Decimal `json:"total_pnl"`
	PnLPercent       decimal.Decimal `json:"pnl_percent"`
	AnnualizedReturn decimal.Decimal `json:"annualized_return"`
	DaysHeld         int             `json:"days_held"`
}

// Recommendation 风险优化建议。
type Recommendation struct {
	Rule    string `json:"rule"`
	Action  string `json:"action"`
	Symbol  string `json:"symbol,omitempty"`
	Message string `json:"message"`
}

// AggregateStrategyGreeks 聚合期权持仓的组合 Greeks。
// 每张合约的敏感度按 数量×100 加权求和；缺少 Greeks 的持仓
// 同时从分子与分母中剔除。
func AggregateStrategyGreeks(positions []Position, quotes map[string]*OptionQuote) *StrategyGreeks {
	agg := &StrategyGreeks{}

	for _, pos := range positions {
		if !pos.Asset.IsOption() {
			continue
		}
		quote, ok := quotes[pos.Asset.Symbol]
		if !ok || quote == nil || quote.Greeks == nil {
			continue
		}

		qty, _ := pos.Quantity.Float64()
		weight := qty * 100
		underlying, _ := quote.UnderlyingPrice.Float64()
		price, _ := quote.Price.Float64()
		g := quote.Greeks

		agg.Delta += g.Delta * weight
		agg.Gamma += g.Gamma * weight
		agg.Theta += g.Theta * weight
		agg.Vega += g.Vega * weight
		agg.Rho += g.Rho * weight

		agg.DollarDelta += g.Delta * weight * underlying
		agg.DollarGamma += g.Gamma * weight * underlying
		agg.DollarTheta += g.Theta * weight * underlying
		agg.DollarVega += g.Vega * weight * underlying
		agg.DollarRho += g.Rho * weight * underlying

		if weight < 0 {
			agg.TotalAbsValue += -weight * price
		} else {
			agg.TotalAbsValue += weight * price
		}
		agg.PositionsIncluded++
	}

	if agg.TotalAbsValue > 0 {
		scale := normalizationDollars / agg.TotalAbsValue
		agg.NormalizedDelta = agg.Delta * scale
		agg.NormalizedGamma = agg.Gamma * scale
		agg.NormalizedTheta = agg.Theta * scale
		agg.NormalizedVega = agg.Vega * scale
		agg.NormalizedRho = agg.Rho * scale
	}
	return agg
}

// AnalyzeStrategyPnL 计算一组持仓的盈亏指标。
func AnalyzeStrategyPnL(positions []Position, daysHeld int) *StrategyPnL {
	pnl := &StrategyPnL{
		CostBasis:        decimal.Zero,
		MarketValue:      decimal.Zero,
		RealizedPnL:      decimal.Zero,
		PnLPercent:       decimal.Zero,
		AnnualizedReturn: decimal.Zero,
		DaysHeld:         daysHeld,
	}

	for _, pos := range positions {
		mult := pos.Asset.Multiplier()
		absQty := pos.Quantity.Abs()
		pnl.CostBasis = pnl.CostBasis.Add(pos.AvgPrice.Mul(absQty).Mul(mult))
		pnl.MarketValue = pnl.MarketValue.Add(pos.CurrentPrice.Mul(absQty).Mul(mult))
		pnl.RealizedPnL = pnl.RealizedPnL.Add(pos.RealizedPnL)
	}

	pnl.UnrealizedPnL = pnl.MarketValue.Sub(pnl.CostBasis)
	pnl.TotalPnL = pnl.UnrealizedPnL.Add(pnl.RealizedPnL)

	if !pnl.CostBasis.IsZero() {
		hundred := decimal.NewFromInt(100)
		pnl.PnLPercent = pnl.TotalPnL.Div(pnl.CostBasis).Mul(hundred)
		if daysHeld > 0 {
			pnl.AnnualizedReturn = pnl.TotalPnL.
				Div(pnl.CostBasis).
				Div(decimal.NewFromInt(int64(daysHeld))).
				Mul(decimal.NewFromInt(365)).
				Mul(hundred)
		}
	}
	return pnl
}

// GenerateRecommendations 基于独立阈值规则生成建议，输出顺序稳定。
func GenerateRecommendations(greeks *StrategyGreeks, positions []Position, now time.Time) []Recommendation {
	recs := []Recommendation{}

	if greeks != nil {
		if greeks.Delta > deltaHedgeThreshold || greeks.Delta < -deltaHedgeThreshold {
			recs = append(recs, Recommendation{
				Rule:    "delta_exposure",
				Action:  "HEDGE_DELTA",
				Message: fmt.Sprintf("portfolio delta %.2f exceeds +/-%.0f, consider delta hedge", greeks.Delta, deltaHedgeThreshold),
			})
		}
		if greeks.Theta < thetaDecayThreshold {
			recs = append(recs, Recommendation{
				Rule:    "theta_decay",
				Action:  "ROLL_POSITIONS",
				Message: fmt.Sprintf("portfolio theta %.2f/day below %.0f, consider rolling decaying positions", greeks.Theta, thetaDecayThreshold),
			})
		}
		if greeks.Vega > vegaHedgeThreshold || greeks.Vega < -vegaHedgeThreshold {
			recs = append(recs, Recommendation{
				Rule:    "vega_exposure",
				Action:  "HEDGE_VEGA",
				Message: fmt.Sprintf("portfolio vega %.2f exceeds +/-%.0f, consider volatility hedge", greeks.Vega, vegaHedgeThreshold),
			})
		}
	}

	for _, pos := range positions {
		if !pos.Asset.IsOption() || !pos.IsShort() {
			continue
		}
		days := pos.Asset.DaysToExpiration(now)
		if days <= expiryWarningDays {
			recs = append(recs, Recommendation{
				Rule:    "short_option_expiry",
				Action:  "ROLL_OR_CLOSE",
				Symbol:  pos.Asset.Symbol,
				Message: fmt.Sprintf("short option %s expires in %d days, roll or close", pos.Asset.Symbol, days),
			})
		}
	}
	return recs
}
