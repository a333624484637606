package application

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/optionsanalytics/internal/optionsrisk/domain"
)

// PositionDTO 持仓传输对象。金额与数量使用字符串十进制，避免浮点精度损失。
type PositionDTO struct {
	AssetType    string `json:"asset_type" binding:"required"` // STOCK / OPTION
	Symbol       string `json:"symbol,omitempty"`
	Underlying   string `json:"underlying,omitempty"`
	Strike       string `json:"strike,omitempty"`
	Expiration   string `json:"expiration,omitempty"` // 2006-01-02
	OptionType   string `json:"option_type,omitempty"`
	Quantity     string `json:"quantity" binding:"required"`
	AvgPrice     string `json:"avg_price,omitempty"`
	CurrentPrice string `json:"current_price,omitempty"`
	RealizedPnL  string `json:"realized_pnl,omitempty"`
}

// OptionQuoteDTO 期权报价传输对象。
type OptionQuoteDTO struct {
	Symbol          string   `json:"symbol" binding:"required"`
	Price           string   `json:"price" binding:"required"`
	Bid             string   `json:"bid,omitempty"`
	Ask             string   `json:"ask,omitempty"`
	UnderlyingPrice string   `json:"underlying_price" binding:"required"`
	VolatilityGuess *float64 `json:"volatility_guess,omitempty"`
}

// ClassifyRequest 策略分类请求。
type ClassifyRequest struct {
	AccountID string        `json:"account_id" binding:"required"`
	Positions []PositionDTO `json:"positions" binding:"required"`
}

// MarginRequest 组合保证金计算请求。
type MarginRequest struct {
	AccountID string        `json:"account_id" binding:"required"`
	Positions []PositionDTO `json:"positions" binding:"required"`
}

// GreeksRequest 单期权 Greeks 计算请求。
type GreeksRequest struct {
	OptionType       string  `json:"option_type" binding:"required"`
	Strike           float64 `json:"strike" binding:"required"`
	UnderlyingPrice  float64 `json:"underlying_price" binding:"required"`
	DaysToExpiration int     `json:"days_to_expiration" binding:"required"`
	OptionPrice      float64 `json:"option_price" binding:"required"`
	VolatilityGuess  float64 `json:"volatility_guess,omitempty"`
	DividendYield    float64 `json:"dividend_yield,omitempty"`
}

// AnalyzeRequest 组合分析请求。
type AnalyzeRequest struct {
	AccountID string           `json:"account_id" binding:"required"`
	Positions []PositionDTO    `json:"positions" binding:"required"`
	Quotes    []OptionQuoteDTO `json:"quotes,omitempty"`
	DaysHeld  int              `json:"days_held,omitempty"`
}

// StrategyLegDTO 策略腿。
type StrategyLegDTO struct {
	Symbol   string `json:"symbol"`
	Quantity string `json:"quantity"`
}

// StrategyDTO 策略分类结果条目。
type StrategyDTO struct {
	StrategyType string           `json:"strategy_type"`
	Underlying   string           `json:"underlying"`
	Description  string           `json:"description"`
	Legs         []StrategyLegDTO `json:"legs"`
}

// MarginRequirementDTO 单策略保证金明细。
type MarginRequirementDTO struct {
	StrategyID        string            `json:"strategy_id"`
	StrategyType      string            `json:"strategy_type"`
	Underlying        string            `json:"underlying"`
	MarginRequirement string            `json:"margin_requirement"`
	Method            string            `json:"calculation_method"`
	Details           map[string]string `json:"details,omitempty"`
}

// MarginResultDTO 组合保证金汇总结果。
type MarginResultDTO struct {
	AccountID    string                  `json:"account_id"`
	TotalMargin  string                  `json:"total_margin"`
	Requirements []*MarginRequirementDTO `json:"requirements"`
	Warnings     []string                `json:"warnings"`
	ByUnderlying map[string]string       `json:"by_underlying"`
	CalculatedAt time.Time               `json:"calculated_at"`
}

// AnalysisDTO 组合分析结果：Greeks 聚合、盈亏与优化建议。
type AnalysisDTO struct {
	AccountID       string                   `json:"account_id"`
	Greeks          *domain.StrategyGreeks   `json:"greeks"`
	PnL             *StrategyPnLDTO          `json:"pnl"`
	Recommendations []domain.Recommendation  `json:"recommendations"`
}

// StrategyPnLDTO 盈亏汇总。
type StrategyPnLDTO struct {
	CostBasis        string `json:"cost_basis"`
	MarketValue      string `json:"market_value"`
	UnrealizedPnL    string `json:"unrealized_pnl"`
	RealizedPnL      string `json:"realized_pnl"`
	TotalPnL         string `json:"total_pnl"`
	PnLPercent       string `json:"pnl_percent"`
	AnnualizedReturn string `json:"annualized_return"`
	DaysHeld         int    `json:"days_held"`
}

func decimalFromString(raw, field string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	return d, nil
}

func decimalFromStringOptional(raw, field string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimalFromString(raw, field)
}

func toDomainPosition(dto PositionDTO) (domain.Position, error) {
	qty, err := decimalFromString(dto.Quantity, "quantity")
	if err != nil {
		return domain.Position{}, err
	}
	avg, err := decimalFromStringOptional(dto.AvgPrice, "avg_price")
	if err != nil {
		return domain.Position{}, err
	}
	current, err := decimalFromStringOptional(dto.CurrentPrice, "current_price")
	if err != nil {
		return domain.Position{}, err
	}
	realized, err := decimalFromStringOptional(dto.RealizedPnL, "realized_pnl")
	if err != nil {
		return domain.Position{}, err
	}

	var asset domain.Asset
	switch dto.AssetType {
	case string(domain.AssetTypeStock):
		if dto.Symbol == "" {
			return domain.Position{}, fmt.Errorf("stock position requires symbol")
		}
		asset = domain.NewStock(dto.Symbol)
	case string(domain.AssetTypeOption):
		optType, ok := domain.ParseOptionType(dto.OptionType)
		if !ok {
			return domain.Position{}, fmt.Errorf("invalid option_type %q", dto.OptionType)
		}
		strike, err := decimal.NewFromString(dto.Strike)
		if err != nil {
			return domain.Position{}, fmt.Errorf("invalid strike %q: %w", dto.Strike, err)
		}
		expiration, err := time.Parse("2006-01-02", dto.Expiration)
		if err != nil {
			return domain.Position{}, fmt.Errorf("invalid expiration %q: %w", dto.Expiration, err)
		}
		asset, err = domain.NewOption(dto.Underlying, strike, expiration, optType)
		if err != nil {
			return domain.Position{}, err
		}
	default:
		return domain.Position{}, fmt.Errorf("invalid asset_type %q", dto.AssetType)
	}

	return domain.Position{
		Asset:        asset,
		Quantity:     qty,
		AvgPrice:     avg,
		CurrentPrice: current,
		RealizedPnL:  realized,
	}, nil
}

func toDomainPositions(dtos []PositionDTO) ([]domain.Position, error) {
	positions := make([]domain.Position, 0, len(dtos))
	for i, dto := range dtos {
		p, err := toDomainPosition(dto)
		if err != nil {
			return nil, fmt.Errorf("position %d: %w", i, err)
		}
		positions = append(positions, p)
	}
	return positions, nil
}

func toStrategyDTO(s domain.Strategy) *StrategyDTO {
	legs := s.Legs()
	legDTOs := make([]StrategyLegDTO, 0, len(legs))
	for _, leg := range legs {
		legDTOs = append(legDTOs, StrategyLegDTO{
			Symbol:   leg.Asset.Symbol,
			Quantity: leg.Quantity.String(),
		})
	}
	return &StrategyDTO{
		StrategyType: string(s.StrategyType()),
		Underlying:   s.Underlying(),
		Description:  s.Describe(),
		Legs:         legDTOs,
	}
}

func toMarginResultDTO(accountID string, result *domain.MarginResult, at time.Time) *MarginResultDTO {
	reqs := make([]*MarginRequirementDTO, 0, len(result.Requirements))
	for _, r := range result.Requirements {
		details := make(map[string]string, len(r.Details))
		for k, v := range r.Details {
			details[k] = v.String()
		}
		reqs = append(reqs, &MarginRequirementDTO{
			StrategyID:        r.StrategyID,
			StrategyType:      string(r.StrategyType),
			Underlying:        r.Underlying,
			MarginRequirement: r.MarginRequirement.String(),
			Method:            r.Method,
			Details:           details,
		})
	}
	byUnderlying := make(map[string]string, len(result.ByUnderlying))
	for k, v := range result.ByUnderlying {
		byUnderlying[k] = v.String()
	}
	return &MarginResultDTO{
		AccountID:    accountID,
		TotalMargin:  result.TotalMargin.String(),
		Requirements: reqs,
		Warnings:     result.Warnings,
		ByUnderlying: byUnderlying,
		CalculatedAt: at,
	}
}

func toStrategyPnLDTO(pnl *domain.StrategyPnL) *StrategyPnLDTO {
	return &StrategyPnLDTO{
		CostBasis:        pnl.CostBasis.String(),
		MarketValue:      pnl.MarketValue.String(),
		UnrealizedPnL:    pnl.UnrealizedPnL.String(),
		RealizedPnL:      pnl.RealizedPnL.String(),
		TotalPnL:         pnl.TotalPnL.String(),
		PnLPercent:       pnl.PnLPercent.String(),
		AnnualizedReturn: pnl.AnnualizedReturn.String(),
		DaysHeld:         pnl.DaysHeld,
	}
}
