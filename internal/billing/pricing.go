package billing

import (
	"github.com/shopspring/decimal"

	"github.com/hackgods/hospital-scheduling/internal/config"
)

// Pricing supplies the two components of an invoice total.
type Pricing interface {
	BaseFee() decimal.Decimal
	PremiumFor(specialization string) decimal.Decimal
}

// StaticPricing is a fixed fee table. Specializations missing from the table are
// charged the fallback premium.
type StaticPricing struct {
	base     decimal.Decimal
	premiums map[string]decimal.Decimal
	fallback decimal.Decimal
}

func NewStaticPricing(base decimal.Decimal, premiums map[string]decimal.Decimal, fallback decimal.Decimal) *StaticPricing {
	table := make(map[string]decimal.Decimal, len(premiums))
	for name, amount := range premiums {
		table[name] = amount.Round(2)
	}
	return &StaticPricing{base: base.Round(2), premiums: table, fallback: fallback.Round(2)}
}

func PricingFromConfig(cfg config.Config) *StaticPricing {
	return NewStaticPricing(cfg.BaseConsultationFee, cfg.Premiums, cfg.DefaultPremium)
}

func (p *StaticPricing) BaseFee() decimal.Decimal {
	return p.base
}

func (p *StaticPricing) PremiumFor(specialization string) decimal.Decimal {
	if amount, ok := p.premiums[specialization]; ok {
		return amount
	}
	return p.fallback
}
