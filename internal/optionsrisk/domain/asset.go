package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type AssetType string
type OptionType string

const (
	AssetTypeStock  AssetType = "STOCK"
	AssetTypeOption AssetType = "OPTION"

	OptionTypeCall OptionType = "CALL"
	OptionTypePut  OptionType = "PUT"
)

var (
	ErrInvalidStrike     = errors.New("option strike must be positive")
	ErrMissingExpiration = errors.New("option expiration is required")
	ErrInvalidOptionType = errors.New("option type must be CALL or PUT")
)

// ParseOptionType 解析期权类型，大小写不敏感。
func ParseOptionType(s string) (OptionType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CALL", "C":
		return OptionTypeCall, true
	case "PUT", "P":
		return OptionTypePut, true
	}
	return "", false
}

// Asset 标的资产：股票或期权。不可变值对象，以 Symbol 唯一标识。
type Asset struct {
	Symbol     string          `json:"symbol"`
	Type       AssetType       `json:"type"`
	Underlying string          `json:"underlying,omitempty"`
	Strike     decimal.Decimal `json:"strike,omitempty"`
	Expiration time.Time       `json:"expiration,omitempty"`
	OptionType OptionType      `json:"option_type,omitempty"`
}

// NewStock 创建股票资产。
func NewStock(symbol string) Asset {
	return Asset{Symbol: symbol, Type: AssetTypeStock, Underlying: symbol}
}

// NewOption 创建期权资产。Symbol 遵循 UNDERLYING-YYMMDD-STRIKE-C/P 约定。
func NewOption(underlying string, strike decimal.Decimal, expiration time.Time, optType OptionType) (Asset, error) {
	if strike.LessThanOrEqual(decimal.Zero) {
		return Asset{}, ErrInvalidStrike
	}
	if expiration.IsZero() {
		return Asset{}, ErrMissingExpiration
	}
	if optType != OptionTypeCall && optType != OptionTypePut {
		return Asset{}, ErrInvalidOptionType
	}
	suffix := "C"
	if optType == OptionTypePut {
		suffix = "P"
	}
	symbol := fmt.Sprintf("%s-%s-%s-%s", underlying, expiration.Format("060102"), strike.String(), suffix)
	return Asset{
		Symbol:     symbol,
		Type:       AssetTypeOption,
		Underlying: underlying,
		Strike:     strike,
		Expiration: expiration,
		OptionType: optType,
	}, nil
}

func (a Asset) IsOption() bool {
	return a.Type == AssetTypeOption
}

func (a Asset) IsCall() bool {
	return a.IsOption() && a.OptionType == OptionTypeCall
}

func (a Asset) IsPut() bool {
	return a.IsOption() && a.OptionType == OptionTypePut
}

// DaysToExpiration 距到期自然日数，向上取整到整日。
func (a Asset) DaysToExpiration(now time.Time) int {
	if !a.IsOption() {
		return 0
	}
	d := a.Expiration.Sub(now)
	days := int(d.Hours() / 24)
	if d > 0 && d%(24*time.Hour) != 0 {
		days++
	}
	return days
}

// Multiplier 合约乘数：期权 100，股票 1。
func (a Asset) Multiplier() decimal.Decimal {
	if a.IsOption() {
		return decimal.NewFromInt(100)
	}
	return decimal.NewFromInt(1)
}
