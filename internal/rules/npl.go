package rules

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/wisetech/rras/internal/domain"
	"github.com/wisetech/rras/pkg/logger"
)

const StageNPL = "NPL_CALCULATION"

// NPLRule describes the methodology on the audit record.
const NPLRule = "Supervisory NPL classification: NPL = Substandard + Doubtful + Loss, 90 DPD threshold"

// NPLDaysPastDueThreshold is where a loan becomes non-performing.
const NPLDaysPastDueThreshold = 90

// NPLBucket aggregates one severity classification.
type NPLBucket struct {
	Amount decimal.Decimal
	Count  int
	Ratio  decimal.Decimal
}

// NPLResult aggregates the NPL stage output for one snapshot.
type NPLResult struct {
	TotalLoans decimal.Decimal
	NPLAmount  decimal.Decimal
	NPLRatio   decimal.Decimal
	TotalCount int
	NPLCount   int

	// Buckets keyed by severity classification (substandard/doubtful/loss).
	Buckets map[domain.AssetClassification]NPLBucket
}

// NPLEngine classifies non-performing loans and computes bucket ratios.
type NPLEngine struct {
	params Parameters
	logger *logger.Logger
}

// NewNPLEngine creates an NPL engine with immutable parameters.
func NewNPLEngine(params Parameters, log *logger.Logger) *NPLEngine {
	return &NPLEngine{params: params, logger: log}
}

// Calculate walks the snapshot once, accumulating total and per-bucket
// balances. Classification depends only on loan attributes, never on scan
// order.
func (e *NPLEngine) Calculate(ctx context.Context, snapshotID int64, loans []domain.LoanExposure) (*NPLResult, error) {
	result := &NPLResult{
		TotalLoans: decimal.Zero,
		NPLAmount:  decimal.Zero,
		Buckets: map[domain.AssetClassification]NPLBucket{
			domain.AssetSubstandard: {Amount: decimal.Zero},
			domain.AssetDoubtful:    {Amount: decimal.Zero},
			domain.AssetLoss:        {Amount: decimal.Zero},
		},
	}

	for i := range loans {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		loan := &loans[i]
		if reason := malformedLoan(loan); reason != "" {
			e.logger.WithFields(map[string]interface{}{
				"snapshot_id": snapshotID,
				"loan_id":     loan.LoanID,
				"reason":      reason,
			}).Warn("Skipping loan with malformed input")
			continue
		}

		balance := loan.OutstandingBalance
		result.TotalLoans = result.TotalLoans.Add(balance)
		result.TotalCount++

		if loan.DaysPastDue < NPLDaysPastDueThreshold {
			continue
		}

		result.NPLAmount = result.NPLAmount.Add(balance)
		result.NPLCount++

		if bucket, ok := result.Buckets[loan.AssetClass]; ok {
			bucket.Amount = bucket.Amount.Add(balance)
			bucket.Count++
			result.Buckets[loan.AssetClass] = bucket
		}
	}

	result.NPLRatio = percentage(result.NPLAmount, result.TotalLoans)
	for class, bucket := range result.Buckets {
		bucket.Ratio = percentage(bucket.Amount, result.TotalLoans)
		result.Buckets[class] = bucket
	}

	return result, nil
}

// Metrics converts the aggregates into regulatory metric rows.
func (r *NPLResult) Metrics(snapshotID int64) []domain.RegulatoryMetric {
	metrics := []domain.RegulatoryMetric{
		{SnapshotID: snapshotID, Code: domain.MetricTotalLoans, Value: r.TotalLoans, Unit: domain.UnitCurrency},
		{SnapshotID: snapshotID, Code: domain.MetricNPLAmount, Value: r.NPLAmount, Unit: domain.UnitCurrency},
		{SnapshotID: snapshotID, Code: domain.MetricNPLRatio, Value: r.NPLRatio, Unit: domain.UnitPercentage},
		{SnapshotID: snapshotID, Code: domain.MetricNPLCount, Value: decimal.NewFromInt(int64(r.NPLCount)), Unit: domain.UnitCount},
	}

	for _, class := range []domain.AssetClassification{domain.AssetSubstandard, domain.AssetDoubtful, domain.AssetLoss} {
		bucket := r.Buckets[class]
		metrics = append(metrics,
			domain.RegulatoryMetric{SnapshotID: snapshotID, Code: string(class) + "_AMOUNT", Value: bucket.Amount, Unit: domain.UnitCurrency},
			domain.RegulatoryMetric{SnapshotID: snapshotID, Code: string(class) + "_RATIO", Value: bucket.Ratio, Unit: domain.UnitPercentage},
		)
	}

	metrics = append(metrics, domain.RegulatoryMetric{
		SnapshotID: snapshotID,
		Code:       domain.MetricLoanCount,
		Value:      decimal.NewFromInt(int64(r.TotalCount)),
		Unit:       domain.UnitCount,
	})

	return metrics
}
