// Package rules implements the regulatory rule engines: risk-weighted assets,
// non-performing-loan classification, expected credit loss, capital adequacy
// and liquidity coverage. Engines are pure calculators over snapshot rows;
// persistence belongs to the pipeline stages.
package rules

import (
	"github.com/shopspring/decimal"

	"github.com/wisetech/rras/pkg/config"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Parameters is the immutable set of jurisdiction thresholds and rates the
// engines are constructed with. Weights, provisioning rates and minimum
// ratios are percent values; PD/LGD and the LTV limit are fractions.
type Parameters struct {
	SovereignCountry string

	SovereignWeight       decimal.Decimal
	BankWeight            decimal.Decimal
	CorporateWeight       decimal.Decimal
	PublicSectorWeight    decimal.Decimal
	MortgageWeight        decimal.Decimal
	HighLTVMortgageWeight decimal.Decimal
	RetailWeight          decimal.Decimal

	SMEThreshold     decimal.Decimal
	MortgageLTVLimit decimal.Decimal

	Stage1MinProvision decimal.Decimal
	Stage2MinProvision decimal.Decimal
	Stage3MinProvision decimal.Decimal

	Stage1DefaultPD decimal.Decimal
	Stage2DefaultPD decimal.Decimal
	Stage3DefaultPD decimal.Decimal
	UnsecuredLGD    decimal.Decimal

	MinCET1Ratio  decimal.Decimal
	MinTier1Ratio decimal.Decimal
	MinCARRatio   decimal.Decimal

	MinLCRRatio       decimal.Decimal
	DefaultRunOffRate decimal.Decimal
	DefaultInflowRate decimal.Decimal
	InflowCapRate     decimal.Decimal

	Workers int
}

// DefaultParameters returns the jurisdiction's published framework values.
func DefaultParameters() Parameters {
	return FromConfig(defaultRegulatoryConfig())
}

func defaultRegulatoryConfig() config.RegulatoryConfig {
	return config.RegulatoryConfig{
		SovereignCountry:          "Lesotho",
		SovereignRiskWeight:       0.0,
		BankRiskWeight:            20.0,
		CorporateRiskWeight:       100.0,
		PublicSectorRiskWeight:    50.0,
		RetailMortgageRiskWeight:  35.0,
		HighLTVMortgageRiskWeight: 50.0,
		RetailOtherRiskWeight:     75.0,
		SMERetailThreshold:        5_000_000,
		MortgageLTVLimit:          0.80,
		Stage1MinProvision:        1.0,
		Stage2MinProvision:        25.0,
		Stage3MinProvision:        100.0,
		Stage1DefaultPD:           0.01,
		Stage2DefaultPD:           0.15,
		Stage3DefaultPD:           1.00,
		UnsecuredLGD:              0.45,
		MinCET1Ratio:              8.0,
		MinTier1Ratio:             10.0,
		MinCARRatio:               15.0,
		MinLCRRatio:               100.0,
		DefaultRunOffRate:         1.0,
		DefaultInflowRate:         0.5,
		InflowCapRate:             0.75,
		CalcWorkers:               8,
	}
}

// FromConfig converts the externally configured rates into engine parameters.
func FromConfig(cfg config.RegulatoryConfig) Parameters {
	workers := cfg.CalcWorkers
	if workers < 1 {
		workers = 1
	}

	return Parameters{
		SovereignCountry:      cfg.SovereignCountry,
		SovereignWeight:       decimal.NewFromFloat(cfg.SovereignRiskWeight),
		BankWeight:            decimal.NewFromFloat(cfg.BankRiskWeight),
		CorporateWeight:       decimal.NewFromFloat(cfg.CorporateRiskWeight),
		PublicSectorWeight:    decimal.NewFromFloat(cfg.PublicSectorRiskWeight),
		MortgageWeight:        decimal.NewFromFloat(cfg.RetailMortgageRiskWeight),
		HighLTVMortgageWeight: decimal.NewFromFloat(cfg.HighLTVMortgageRiskWeight),
		RetailWeight:          decimal.NewFromFloat(cfg.RetailOtherRiskWeight),
		SMEThreshold:          decimal.NewFromFloat(cfg.SMERetailThreshold),
		MortgageLTVLimit:      decimal.NewFromFloat(cfg.MortgageLTVLimit),
		Stage1MinProvision:    decimal.NewFromFloat(cfg.Stage1MinProvision),
		Stage2MinProvision:    decimal.NewFromFloat(cfg.Stage2MinProvision),
		Stage3MinProvision:    decimal.NewFromFloat(cfg.Stage3MinProvision),
		Stage1DefaultPD:       decimal.NewFromFloat(cfg.Stage1DefaultPD),
		Stage2DefaultPD:       decimal.NewFromFloat(cfg.Stage2DefaultPD),
		Stage3DefaultPD:       decimal.NewFromFloat(cfg.Stage3DefaultPD),
		UnsecuredLGD:          decimal.NewFromFloat(cfg.UnsecuredLGD),
		MinCET1Ratio:          decimal.NewFromFloat(cfg.MinCET1Ratio),
		MinTier1Ratio:         decimal.NewFromFloat(cfg.MinTier1Ratio),
		MinCARRatio:           decimal.NewFromFloat(cfg.MinCARRatio),
		MinLCRRatio:           decimal.NewFromFloat(cfg.MinLCRRatio),
		DefaultRunOffRate:     decimal.NewFromFloat(cfg.DefaultRunOffRate),
		DefaultInflowRate:     decimal.NewFromFloat(cfg.DefaultInflowRate),
		InflowCapRate:         decimal.NewFromFloat(cfg.InflowCapRate),
		Workers:               workers,
	}
}

// MinProvisionRate returns the minimum provisioning rate (percent) for an
// IFRS 9 stage.
func (p Parameters) MinProvisionRate(stage int) decimal.Decimal {
	switch stage {
	case 2:
		return p.Stage2MinProvision
	case 3:
		return p.Stage3MinProvision
	default:
		return p.Stage1MinProvision
	}
}

// DefaultPD returns the fallback probability of default for a stage.
func (p Parameters) DefaultPD(stage int) decimal.Decimal {
	switch stage {
	case 2:
		return p.Stage2DefaultPD
	case 3:
		return p.Stage3DefaultPD
	default:
		return p.Stage1DefaultPD
	}
}

// percentage computes numerator / denominator * 100 at 2 dp half-up,
// returning zero when the denominator is zero.
func percentage(numerator, denominator decimal.Decimal) decimal.Decimal {
	if denominator.IsZero() {
		return decimal.Zero
	}
	return numerator.Mul(hundred).DivRound(denominator, 2)
}
