package rules

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/wisetech/rras/internal/domain"
	"github.com/wisetech/rras/internal/regerrors"
	"github.com/wisetech/rras/pkg/logger"
)

const StageCAR = "CAR_CALCULATION"

// CARRule describes the methodology on the audit record.
const CARRule = "Basel III capital adequacy: CET1 / Tier1 / total capital over RWA"

// CARResult aggregates the capital adequacy output for one snapshot.
type CARResult struct {
	CET1Capital  decimal.Decimal
	Tier1Capital decimal.Decimal
	TotalCapital decimal.Decimal

	CET1Ratio  decimal.Decimal
	Tier1Ratio decimal.Decimal
	CAR        decimal.Decimal

	CET1Surplus  decimal.Decimal
	Tier1Surplus decimal.Decimal
	CARSurplus   decimal.Decimal

	Compliant bool
}

// CAREngine builds the capital stack and measures it against the minimum
// ratios. It consumes the RWA stage's TOTAL_RWA aggregate.
type CAREngine struct {
	params Parameters
	logger *logger.Logger
}

// NewCAREngine creates a CAR engine with immutable parameters.
func NewCAREngine(params Parameters, log *logger.Logger) *CAREngine {
	return &CAREngine{params: params, logger: log}
}

// Calculate sums the capital components into the three tiers and computes the
// adequacy ratios. A missing or zero RWA base means the RWA stage has not run
// for this snapshot, which is an ordering violation rather than a result.
func (e *CAREngine) Calculate(ctx context.Context, snapshotID int64, components []domain.CapitalComponent, totalRWA decimal.Decimal) (*CARResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !totalRWA.IsPositive() {
		return nil, &regerrors.OrderingError{
			SnapshotID: snapshotID,
			Stage:      StageCAR,
			Requires:   StageRWA,
		}
	}

	cet1 := decimal.Zero
	at1 := decimal.Zero
	tier2 := decimal.Zero

	for i := range components {
		c := &components[i]
		switch c.ComponentType {
		case domain.CapitalCET1:
			cet1 = cet1.Add(c.Amount)
		case domain.CapitalAT1:
			at1 = at1.Add(c.Amount)
		case domain.CapitalTier2:
			tier2 = tier2.Add(c.Amount)
		default:
			e.logger.WithFields(map[string]interface{}{
				"snapshot_id":    snapshotID,
				"component_type": c.ComponentType,
				"component_name": c.ComponentName,
			}).Warn("Ignoring unknown capital component type")
		}
	}

	result := &CARResult{
		CET1Capital:  cet1,
		Tier1Capital: cet1.Add(at1),
		TotalCapital: cet1.Add(at1).Add(tier2),
	}

	result.CET1Ratio = percentage(result.CET1Capital, totalRWA)
	result.Tier1Ratio = percentage(result.Tier1Capital, totalRWA)
	result.CAR = percentage(result.TotalCapital, totalRWA)

	result.CET1Surplus = result.CET1Ratio.Sub(e.params.MinCET1Ratio)
	result.Tier1Surplus = result.Tier1Ratio.Sub(e.params.MinTier1Ratio)
	result.CARSurplus = result.CAR.Sub(e.params.MinCARRatio)

	result.Compliant = result.CET1Ratio.GreaterThanOrEqual(e.params.MinCET1Ratio) &&
		result.Tier1Ratio.GreaterThanOrEqual(e.params.MinTier1Ratio) &&
		result.CAR.GreaterThanOrEqual(e.params.MinCARRatio)

	return result, nil
}

// Metrics converts the aggregates into regulatory metric rows.
func (r *CARResult) Metrics(snapshotID int64) []domain.RegulatoryMetric {
	return []domain.RegulatoryMetric{
		{SnapshotID: snapshotID, Code: domain.MetricCET1Capital, Value: r.CET1Capital, Unit: domain.UnitCurrency},
		{SnapshotID: snapshotID, Code: domain.MetricTier1Capital, Value: r.Tier1Capital, Unit: domain.UnitCurrency},
		{SnapshotID: snapshotID, Code: domain.MetricTotalCapital, Value: r.TotalCapital, Unit: domain.UnitCurrency},
		{SnapshotID: snapshotID, Code: domain.MetricCET1Ratio, Value: r.CET1Ratio, Unit: domain.UnitPercentage},
		{SnapshotID: snapshotID, Code: domain.MetricTier1Ratio, Value: r.Tier1Ratio, Unit: domain.UnitPercentage},
		{SnapshotID: snapshotID, Code: domain.MetricCAR, Value: r.CAR, Unit: domain.UnitPercentage},
		{SnapshotID: snapshotID, Code: domain.MetricCET1Surplus, Value: r.CET1Surplus, Unit: domain.UnitPercentage},
		{SnapshotID: snapshotID, Code: domain.MetricTier1Surplus, Value: r.Tier1Surplus, Unit: domain.UnitPercentage},
		{SnapshotID: snapshotID, Code: domain.MetricCARSurplus, Value: r.CARSurplus, Unit: domain.UnitPercentage},
		{SnapshotID: snapshotID, Code: domain.MetricCARCompliant, Value: boolMetric(r.Compliant), Unit: domain.UnitBoolean},
	}
}

// boolMetric encodes a compliance flag as 1 or 0.
func boolMetric(b bool) decimal.Decimal {
	if b {
		return one
	}
	return decimal.Zero
}
