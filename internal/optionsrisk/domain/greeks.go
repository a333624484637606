// 变更说明：期权定价与 Greeks 计算引擎。基于 Black-Scholes 封闭解，
// 含隐含波动率 Newton-Raphson 求解与高阶 Greeks。
// 假设：无风险利率固定 2%，ACT/365 日历日计息。
package domain

import (
	"math"
)

// RiskFreeRate 无风险利率，引擎内固定使用。
const RiskFreeRate = 0.02

const (
	defaultVolatilityGuess = 0.2
	ivMaxIterations        = 100
	ivTolerance            = 1e-6
	ivMinVega              = 1e-10
	ivFloor                = 0.001
	ivCeiling              = 5.0
)

// GreeksInput 期权 Greeks 计算输入。
type GreeksInput struct {
	OptionType       string  // "call" / "put"，大小写不敏感
	Strike           float64 // 执行价，> 0
	UnderlyingPrice  float64 // 标的价，> 0
	DaysToExpiration int     // 距到期自然日数，> 0
	OptionPrice      float64 // 期权市场价，> 0
	VolatilityGuess  float64 // 隐含波动率初值，0 表示默认 0.2
	DividendYield    float64 // 连续股息率
}

// OptionGreeks 期权价格敏感度。全部为年化单位，Theta 为日历日单位。
type OptionGreeks struct {
	ImpliedVolatility float64 `json:"implied_volatility"`
	Delta             float64 `json:"delta"`
	Gamma             float64 `json:"gamma"`
	Theta             float64 `json:"theta"`
	Vega              float64 `json:"vega"`
	Rho               float64 `json:"rho"`
	Vanna             float64 `json:"vanna"`
	Charm             float64 `json:"charm"`
	Speed             float64 `json:"speed"`
	Zomma             float64 `json:"zomma"`
	Color             float64 `json:"color"`
	Veta              float64 `json:"veta"`
	Vomma             float64 `json:"vomma"`
	Ultima            float64 `json:"ultima"`
	DualDelta         float64 `json:"dual_delta"`
}

// CalculateOptionGreeks 计算隐含波动率及全部 Greeks。
// 输入非法或数值计算失败时返回 nil，永不 panic。
func CalculateOptionGreeks(input GreeksInput) (result *OptionGreeks) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
		}
	}()

	optType, ok := ParseOptionType(input.OptionType)
	if !ok {
		return nil
	}
	if input.Strike <= 0 || input.UnderlyingPrice <= 0 || input.DaysToExpiration <= 0 || input.OptionPrice <= 0 {
		return nil
	}

	guess := input.VolatilityGuess
	if guess <= 0 {
		guess = defaultVolatilityGuess
	}

	T := float64(input.DaysToExpiration) / 365.0
	S := input.UnderlyingPrice
	K := input.Strike
	r := RiskFreeRate
	q := input.DividendYield

	iv := impliedVolatility(optType, S, K, T, r, q, input.OptionPrice, guess)
	if iv <= 0 || math.IsNaN(iv) {
		return nil
	}

	g := computeGreeks(optType, S, K, T, r, q, iv)
	if math.IsNaN(g.Delta) || math.IsInf(g.Delta, 0) {
		return nil
	}
	return g
}

// BlackScholesPrice 计算欧式期权 Black-Scholes 理论价格（含连续股息率）。
func BlackScholesPrice(optType OptionType, S, K, T, r, q, sigma float64) float64 {
	d1, d2 := dValues(S, K, T, r, q, sigma)
	if optType == OptionTypeCall {
		return S*math.Exp(-q*T)*normCdf(d1) - K*math.Exp(-r*T)*normCdf(d2)
	}
	return K*math.Exp(-r*T)*normCdf(-d2) - S*math.Exp(-q*T)*normCdf(-d1)
}

// impliedVolatility Newton-Raphson 求解隐含波动率，导数取 Vega。
// 未完全收敛时返回当前最优解。
func impliedVolatility(optType OptionType, S, K, T, r, q, marketPrice, guess float64) float64 {
	sigma := guess
	for i := 0; i < ivMaxIterations; i++ {
		price := BlackScholesPrice(optType, S, K, T, r, q, sigma)
		diff := price - marketPrice
		if math.Abs(diff) < ivTolerance {
			break
		}
		d1, _ := dValues(S, K, T, r, q, sigma)
		vega := S * math.Exp(-q*T) * normPdf(d1) * math.Sqrt(T)
		if math.Abs(vega) < ivMinVega {
			break
		}
		sigma -= diff / vega
		if sigma <= ivFloor {
			sigma = ivFloor
		} else if sigma > ivCeiling {
			sigma = ivCeiling
		}
	}
	return sigma
}

// computeGreeks 按封闭解计算全部 Greeks。Theta 为年化公式除以 365。
func computeGreeks(optType OptionType, S, K, T, r, q, sigma float64) *OptionGreeks {
	d1, d2 := dValues(S, K, T, r, q, sigma)
	sqrtT := math.Sqrt(T)
	expQT := math.Exp(-q * T)
	expRT := math.Exp(-r * T)
	nd1 := normPdf(d1)

	g := &OptionGreeks{ImpliedVolatility: sigma}

	if optType == OptionTypeCall {
		g.Delta = expQT * normCdf(d1)
		g.Theta = (-S*expQT*nd1*sigma/(2*sqrtT) - r*K*expRT*normCdf(d2) + q*S*expQT*normCdf(d1)) / 365
		g.Rho = K * T * expRT * normCdf(d2)
		g.DualDelta = -expRT * normCdf(d2)
	} else {
		g.Delta = expQT * (normCdf(d1) - 1)
		g.Theta = (-S*expQT*nd1*sigma/(2*sqrtT) + r*K*expRT*normCdf(-d2) - q*S*expQT*normCdf(-d1)) / 365
		g.Rho = -K * T * expRT * normCdf(-d2)
		g.DualDelta = expRT * normCdf(-d2)
	}

	g.Gamma = expQT * nd1 / (S * sigma * sqrtT)
	g.Vega = S * expQT * nd1 * sqrtT

	// 二阶与三阶敏感度
	g.Vanna = -expQT * nd1 * d2 / sigma
	charmDrift := (2*(r-q)*T - d2*sigma*sqrtT) / (2 * T * sigma * sqrtT)
	if optType == OptionTypeCall {
		g.Charm = q*expQT*normCdf(d1) - expQT*nd1*charmDrift
	} else {
		g.Charm = -q*expQT*normCdf(-d1) - expQT*nd1*charmDrift
	}
	g.Speed = -g.Gamma / S * (d1/(sigma*sqrtT) + 1)
	g.Zomma = g.Gamma * (d1*d2 - 1) / sigma
	g.Color = -expQT * nd1 / (2 * S * T * sigma * sqrtT) *
		(2*q*T + 1 + (2*(r-q)*T-d2*sigma*sqrtT)/(sigma*sqrtT)*d1)
	g.Veta = -S * expQT * nd1 * sqrtT *
		(q + (r-q)*d1/(sigma*sqrtT) - (1+d1*d2)/(2*T))
	g.Vomma = g.Vega * d1 * d2 / sigma
	g.Ultima = -g.Vega / (sigma * sigma) * (d1*d2*(1-d1*d2) + d1*d1 + d2*d2)

	return g
}

func dValues(S, K, T, r, q, sigma float64) (float64, float64) {
	d1 := (math.Log(S/K) + (r-q+0.5*sigma*sigma)*T) / (sigma * math.Sqrt(T))
	return d1, d1 - sigma*math.Sqrt(T)
}

// normCdf 标准正态分布累积分布函数
func normCdf(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// normPdf 标准正态分布概率密度函数
func normPdf(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}
