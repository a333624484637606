// 变更说明：期权风险分析应用服务。编排分类、保证金、Greeks 与组合分析，
// 留痕保证金快照并发布领域事件。
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wyfcoding/optionsanalytics/internal/optionsrisk/domain"
	"github.com/wyfcoding/pkg/idgen"
	"github.com/wyfcoding/pkg/logging"
)

// ErrInvalidGreeksInput Greeks 引擎对非法输入软失败，应用层转为显式错误返回调用方。
var ErrInvalidGreeksInput = errors.New("invalid option parameters for greeks calculation")

// AnalyticsService 期权风险与保证金分析服务。
type AnalyticsService struct {
	quotes     domain.QuoteProvider
	marginCalc *domain.MarginCalculator
	snapshots  domain.MarginSnapshotRepository
	publisher  domain.EventPublisher
}

// NewAnalyticsService 构造函数。
func NewAnalyticsService(
	quotes domain.QuoteProvider,
	snapshots domain.MarginSnapshotRepository,
	publisher domain.EventPublisher,
) *AnalyticsService {
	return &AnalyticsService{
		quotes:     quotes,
		marginCalc: domain.NewMarginCalculator(quotes),
		snapshots:  snapshots,
		publisher:  publisher,
	}
}

// ClassifyPortfolio 将持仓快照分类为策略列表。
func (s *AnalyticsService) ClassifyPortfolio(ctx context.Context, req *ClassifyRequest) ([]*StrategyDTO, error) {
	positions, err := toDomainPositions(req.Positions)
	if err != nil {
		return nil, err
	}

	strategies, err := domain.ClassifyPositions(positions)
	if err != nil {
		return nil, err
	}

	dtos := make([]*StrategyDTO, 0, len(strategies))
	for _, st := range strategies {
		dtos = append(dtos, toStrategyDTO(st))
	}
	return dtos, nil
}

// CalculateMargin 计算组合维持保证金，保存审计快照并发布事件。
func (s *AnalyticsService) CalculateMargin(ctx context.Context, req *MarginRequest) (*MarginResultDTO, error) {
	positions, err := toDomainPositions(req.Positions)
	if err != nil {
		return nil, err
	}

	strategies, err := domain.ClassifyPositions(positions)
	if err != nil {
		return nil, err
	}

	result := s.marginCalc.CalculateBatch(ctx, strategies)
	now := time.Now()

	snapshot := &domain.MarginSnapshot{
		ID:           fmt.Sprintf("MARGIN-%d", idgen.GenID()),
		AccountID:    req.AccountID,
		TotalMargin:  result.TotalMargin,
		Strategies:   len(strategies),
		Warnings:     result.Warnings,
		ByUnderlying: result.ByUnderlying,
		CalculatedAt: now,
	}
	if s.snapshots != nil {
		if err := s.snapshots.Save(ctx, snapshot); err != nil {
			logging.Error(ctx, "AnalyticsService: failed to save margin snapshot",
				"account_id", req.AccountID, "error", err)
		}
	}

	if s.publisher != nil {
		event := domain.MarginComputedEvent{
			AccountID:    req.AccountID,
			TotalMargin:  result.TotalMargin,
			Strategies:   len(strategies),
			Warnings:     len(result.Warnings),
			CalculatedAt: now,
		}
		if err := s.publisher.PublishMarginComputed(event); err != nil {
			logging.Error(ctx, "AnalyticsService: failed to publish margin event",
				"account_id", req.AccountID, "error", err)
		}
	}

	return toMarginResultDTO(req.AccountID, result, now), nil
}

// ComputeGreeks 计算单期权 Greeks 与隐含波动率。
func (s *AnalyticsService) ComputeGreeks(req *GreeksRequest) (*domain.OptionGreeks, error) {
	greeks := domain.CalculateOptionGreeks(domain.GreeksInput{
		OptionType:       req.OptionType,
		Strike:           req.Strike,
		UnderlyingPrice:  req.UnderlyingPrice,
		DaysToExpiration: req.DaysToExpiration,
		OptionPrice:      req.OptionPrice,
		VolatilityGuess:  req.VolatilityGuess,
		DividendYield:    req.DividendYield,
	})
	if greeks == nil {
		return nil, ErrInvalidGreeksInput
	}
	return greeks, nil
}

// AnalyzePortfolio 聚合组合 Greeks、计算盈亏并生成优化建议。
// 报价未携带 Greeks 时基于报价参数即时计算后显式合并。
func (s *AnalyticsService) AnalyzePortfolio(ctx context.Context, req *AnalyzeRequest) (*AnalysisDTO, error) {
	positions, err := toDomainPositions(req.Positions)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	quotes, err := s.buildQuoteMap(ctx, req.Quotes, positions, now)
	if err != nil {
		return nil, err
	}

	greeks := domain.AggregateStrategyGreeks(positions, quotes)
	pnl := domain.AnalyzeStrategyPnL(positions, req.DaysHeld)
	recommendations := domain.GenerateRecommendations(greeks, positions, now)

	if s.publisher != nil {
		for _, rec := range recommendations {
			event := domain.RiskAlertGeneratedEvent{
				AccountID:   req.AccountID,
				Rule:        rec.Rule,
				Action:      rec.Action,
				Message:     rec.Message,
				GeneratedAt: now,
			}
			if err := s.publisher.PublishRiskAlertGenerated(event); err != nil {
				logging.Error(ctx, "AnalyticsService: failed to publish risk alert",
					"account_id", req.AccountID, "rule", rec.Rule, "error", err)
			}
		}
	}

	return &AnalysisDTO{
		AccountID:       req.AccountID,
		Greeks:          greeks,
		PnL:             toStrategyPnLDTO(pnl),
		Recommendations: recommendations,
	}, nil
}

// buildQuoteMap 构建期权报价索引。缺 Greeks 的报价按持仓合约参数即时计算，
// 计算失败的报价保持无 Greeks 状态，由聚合阶段剔除。
func (s *AnalyticsService) buildQuoteMap(
	ctx context.Context,
	quoteDTOs []OptionQuoteDTO,
	positions []domain.Position,
	now time.Time,
) (map[string]*domain.OptionQuote, error) {
	assets := make(map[string]domain.Asset, len(positions))
	for _, p := range positions {
		if p.Asset.IsOption() {
			assets[p.Asset.Symbol] = p.Asset
		}
	}

	quotes := make(map[string]*domain.OptionQuote, len(quoteDTOs))
	for i, dto := range quoteDTOs {
		quote, err := toDomainOptionQuote(dto)
		if err != nil {
			return nil, fmt.Errorf("quote %d: %w", i, err)
		}

		if asset, ok := assets[dto.Symbol]; ok && quote.Greeks == nil {
			strike, _ := asset.Strike.Float64()
			underlying, _ := quote.UnderlyingPrice.Float64()
			price, _ := quote.Price.Float64()
			guess := 0.0
			if dto.VolatilityGuess != nil {
				guess = *dto.VolatilityGuess
			}
			g := domain.CalculateOptionGreeks(domain.GreeksInput{
				OptionType:       string(asset.OptionType),
				Strike:           strike,
				UnderlyingPrice:  underlying,
				DaysToExpiration: asset.DaysToExpiration(now),
				OptionPrice:      price,
				VolatilityGuess:  guess,
			})
			if g == nil {
				logging.Warn(ctx, "AnalyticsService: greeks unavailable for quote",
					"symbol", dto.Symbol)
			} else {
				merged := quote.WithGreeks(g)
				quote = &merged
			}
		}
		quotes[dto.Symbol] = quote
	}
	return quotes, nil
}

// GetMarginHistory 查询账户保证金计算历史。
func (s *AnalyticsService) GetMarginHistory(ctx context.Context, accountID string, limit int) ([]*domain.MarginSnapshot, error) {
	if s.snapshots == nil {
		return nil, nil
	}
	return s.snapshots.ListByAccount(ctx, accountID, limit)
}

func toDomainOptionQuote(dto OptionQuoteDTO) (*domain.OptionQuote, error) {
	price, err := decimalFromString(dto.Price, "price")
	if err != nil {
		return nil, err
	}
	underlying, err := decimalFromString(dto.UnderlyingPrice, "underlying_price")
	if err != nil {
		return nil, err
	}
	bid, err := decimalFromStringOptional(dto.Bid, "bid")
	if err != nil {
		return nil, err
	}
	ask, err := decimalFromStringOptional(dto.Ask, "ask")
	if err != nil {
		return nil, err
	}

	return &domain.OptionQuote{
		Quote:           domain.Quote{Symbol: dto.Symbol, Price: price, Timestamp: time.Now()},
		Bid:             bid,
		Ask:             ask,
		UnderlyingPrice: underlying,
	}, nil
}
