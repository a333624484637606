// 变更说明：持仓策略分类器。将原始持仓列表按标的分组，
// 依确定性的优先级与配对规则归并为策略列表。
// 不变量：输出各策略腿的带符号数量之和与输入持仓逐资产严格相等（守恒），
// 相同输入必产生相同顺序的输出（可审计、可复现）。
package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

var lotSize = decimal.NewFromInt(100)

// optionSlot 单张合约槽位。多张合约的持仓拆为逐张槽位以支持部分配对。
type optionSlot struct {
	asset     Asset
	insertion int
	consumed  bool
}

type underlyingGroup struct {
	symbol     string
	longEquity decimal.Decimal
	shortEquity decimal.Decimal
	shortCalls []*optionSlot
	longCalls  []*optionSlot
	shortPuts  []*optionSlot
	longPuts   []*optionSlot
}

// ClassifyPositions 将持仓快照分类为策略列表。
// 标的按输入首次出现顺序独立处理；期权持仓数量必须为整数张。
func ClassifyPositions(positions []Position) ([]Strategy, error) {
	groups := make(map[string]*underlyingGroup)
	var order []string

	insertion := 0
	for _, pos := range positions {
		if pos.Quantity.IsZero() {
			continue
		}
		if err := validatePosition(pos); err != nil {
			return nil, err
		}

		underlying := pos.Asset.Underlying
		g, ok := groups[underlying]
		if !ok {
			g = &underlyingGroup{
				symbol:      underlying,
				longEquity:  decimal.Zero,
				shortEquity: decimal.Zero,
			}
			groups[underlying] = g
			order = append(order, underlying)
		}

		if !pos.Asset.IsOption() {
			if pos.Quantity.IsPositive() {
				g.longEquity = g.longEquity.Add(pos.Quantity)
			} else {
				g.shortEquity = g.shortEquity.Add(pos.Quantity.Abs())
			}
			continue
		}

		contracts := int(pos.Quantity.Abs().IntPart())
		short := pos.Quantity.IsNegative()
		for i := 0; i < contracts; i++ {
			slot := &optionSlot{asset: pos.Asset, insertion: insertion}
			insertion++
			switch {
			case pos.Asset.IsCall() && short:
				g.shortCalls = append(g.shortCalls, slot)
			case pos.Asset.IsCall():
				g.longCalls = append(g.longCalls, slot)
			case short:
				g.shortPuts = append(g.shortPuts, slot)
			default:
				g.longPuts = append(g.longPuts, slot)
			}
		}
	}

	var out []Strategy
	for _, symbol := range order {
		strategies, err := classifyUnderlying(groups[symbol])
		if err != nil {
			return nil, err
		}
		out = append(out, strategies...)
	}
	return out, nil
}

func validatePosition(pos Position) error {
	a := pos.Asset
	if !a.IsOption() {
		if a.Symbol == "" {
			return classificationErrorf("stock position missing symbol")
		}
		return nil
	}
	if a.Strike.LessThanOrEqual(decimal.Zero) {
		return classificationErrorf("option %s has non-positive strike", a.Symbol)
	}
	if a.Expiration.IsZero() {
		return classificationErrorf("option %s missing expiration", a.Symbol)
	}
	if a.OptionType != OptionTypeCall && a.OptionType != OptionTypePut {
		return classificationErrorf("option %s has invalid type %q", a.Symbol, a.OptionType)
	}
	if !pos.Quantity.IsInteger() {
		return classificationErrorf("option %s has fractional quantity %s", a.Symbol, pos.Quantity.String())
	}
	return nil
}

func classifyUnderlying(g *underlyingGroup) ([]Strategy, error) {
	// Call 槽位按执行价升序、Put 槽位按执行价降序，同价按插入序（稳定排序契约）。
	sortSlots(g.shortCalls, true)
	sortSlots(g.longCalls, true)
	sortSlots(g.shortPuts, false)
	sortSlots(g.longPuts, false)

	stock := NewStock(g.symbol)
	longRemaining := g.longEquity
	shortRemaining := g.shortEquity

	var out []Strategy

	// 卖出 Call：优先股票备兑，其次与买入 Call 配对成价差，否则裸卖。
	for _, slot := range g.shortCalls {
		if longRemaining.GreaterThanOrEqual(lotSize) {
			covered, err := NewCoveredStrategy(stock, lotSize, slot.asset)
			if err != nil {
				return nil, err
			}
			out = append(out, covered)
			longRemaining = longRemaining.Sub(lotSize)
			continue
		}
		out = pairOrNaked(out, slot, g.longCalls)
	}

	// 卖出 Put：空头股票备兑（约定同卖 Call 对称），其次价差，否则裸卖。
	for _, slot := range g.shortPuts {
		if shortRemaining.GreaterThanOrEqual(lotSize) {
			covered, err := NewCoveredStrategy(stock, lotSize.Neg(), slot.asset)
			if err != nil {
				return nil, err
			}
			out = append(out, covered)
			shortRemaining = shortRemaining.Sub(lotSize)
			continue
		}
		out = pairOrNaked(out, slot, g.longPuts)
	}

	// 未消耗的买入期权槽位归并为独立多头策略。
	out = appendLeftoverLongs(out, g.longCalls)
	out = appendLeftoverLongs(out, g.longPuts)

	// 剩余净股票头寸。
	net := longRemaining.Sub(shortRemaining)
	if !net.IsZero() {
		out = append(out, NewAssetStrategy(stock, net))
	}
	return out, nil
}

// pairOrNaked 为一个卖出槽位寻找买入配对腿。执行价不同成价差；
// 完全相同的合约互为对冲；无可配对腿则为裸卖头寸。
func pairOrNaked(out []Strategy, short *optionSlot, longs []*optionSlot) []Strategy {
	var identical *optionSlot
	for _, long := range longs {
		if long.consumed {
			continue
		}
		if !long.asset.Strike.Equal(short.asset.Strike) {
			long.consumed = true
			// 同组槽位类型与标的一致且执行价已验证不同，构造不会失败
			spread, err := NewSpreadStrategy(short.asset, long.asset, decimal.NewFromInt(1))
			if err != nil {
				long.consumed = false
				return appendNaked(out, short.asset, decimal.NewFromInt(-1))
			}
			return append(out, spread)
		}
		if identical == nil && long.asset.Symbol == short.asset.Symbol {
			identical = long
		}
	}
	if identical != nil {
		identical.consumed = true
		return append(out, NewOffsetStrategy(short.asset))
	}
	return appendNaked(out, short.asset, decimal.NewFromInt(-1))
}

func appendLeftoverLongs(out []Strategy, slots []*optionSlot) []Strategy {
	for _, slot := range slots {
		if slot.consumed {
			continue
		}
		out = appendNaked(out, slot.asset, decimal.NewFromInt(1))
	}
	return out
}

// appendNaked 追加裸头寸，相邻且同资产同方向的条目合并数量。
func appendNaked(out []Strategy, asset Asset, qty decimal.Decimal) []Strategy {
	if n := len(out); n > 0 {
		if last, ok := out[n-1].(*AssetStrategy); ok &&
			last.Asset.Symbol == asset.Symbol &&
			last.Quantity.Sign() == qty.Sign() {
			last.Quantity = last.Quantity.Add(qty)
			return out
		}
	}
	return append(out, NewAssetStrategy(asset, qty))
}

func sortSlots(slots []*optionSlot, ascending bool) {
	sort.SliceStable(slots, func(i, j int) bool {
		cmp := slots[i].asset.Strike.Cmp(slots[j].asset.Strike)
		if cmp == 0 {
			return slots[i].insertion < slots[j].insertion
		}
		if ascending {
			return cmp < 0
		}
		return cmp > 0
	})
}
