package table

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultVATRate is the Korean standard VAT rate.
const DefaultVATRate = "0.1"

// VATCalculator derives VAT from a supply amount, rounding up to the next won.
type VATCalculator struct {
	rate decimal.Decimal
}

// NewVATCalculator parses rate as an exact decimal. An empty rate means DefaultVATRate.
func NewVATCalculator(rate string) (VATCalculator, error) {
	rate = strings.TrimSpace(rate)
	if rate == "" {
		rate = DefaultVATRate
	}
	d, err := decimal.NewFromString(rate)
	if err != nil {
		return VATCalculator{}, fmt.Errorf("vat rate %q: %w", rate, err)
	}
	if d.IsNegative() {
		return VATCalculator{}, fmt.Errorf("vat rate %q: must not be negative", rate)
	}
	return VATCalculator{rate: d}, nil
}

// Of returns ceil(supply * rate), or 0 when supply is nil.
func (v VATCalculator) Of(supply *int64) int64 {
	if supply == nil {
		return 0
	}
	return decimal.NewFromInt(*supply).Mul(v.rate).Ceil().IntPart()
}

var defaultVAT = VATCalculator{rate: decimal.RequireFromString(DefaultVATRate)}

// VAT is Of at the default rate.
func VAT(supply *int64) int64 { return defaultVAT.Of(supply) }
