package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wisetech/rras/internal/domain"
	"github.com/wisetech/rras/internal/regerrors"
	"github.com/wisetech/rras/internal/rules"
	"github.com/wisetech/rras/internal/store"
)

// runRWA weights the loan book and persists both the per-loan component rows
// and the TOTAL_RWA aggregate in one transaction.
func (o *Orchestrator) runRWA(ctx context.Context, run *domain.SnapshotRun) (map[string]decimal.Decimal, error) {
	started := time.Now()
	o.logger.WithField("snapshot_id", run.ID).Info("Running RWA calculation")

	loans, err := o.snapshots.LoanExposures(ctx, run.ID)
	if err != nil {
		return nil, err
	}

	result, err := o.rwa.Calculate(ctx, run.ID, loans)
	if err != nil {
		return nil, err
	}

	err = o.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := o.metrics.InsertComponents(ctx, result.Components(run.ID)); err != nil {
			return err
		}
		return o.metrics.SaveMetrics(ctx, []domain.RegulatoryMetric{{
			SnapshotID: run.ID,
			Code:       domain.MetricTotalRWA,
			Value:      result.TotalRWA,
			Unit:       domain.UnitCurrency,
		}})
	})
	if err != nil {
		return nil, err
	}

	o.trail.Record(ctx, run.ID, rules.StageRWA, rules.RWARule,
		map[string]interface{}{"loan_count": len(loans)},
		map[string]interface{}{"total_rwa": result.TotalRWA, "weighted_loans": len(result.Loans), "skipped": len(result.Skipped)},
		started)

	return map[string]decimal.Decimal{domain.MetricTotalRWA: result.TotalRWA}, nil
}

// runNPL classifies the loan book and persists the portfolio-quality
// aggregates.
func (o *Orchestrator) runNPL(ctx context.Context, run *domain.SnapshotRun) (map[string]decimal.Decimal, error) {
	started := time.Now()
	o.logger.WithField("snapshot_id", run.ID).Info("Running NPL classification")

	loans, err := o.snapshots.LoanExposures(ctx, run.ID)
	if err != nil {
		return nil, err
	}

	result, err := o.npl.Calculate(ctx, run.ID, loans)
	if err != nil {
		return nil, err
	}

	err = o.tx.WithinTx(ctx, func(ctx context.Context) error {
		return o.metrics.SaveMetrics(ctx, result.Metrics(run.ID))
	})
	if err != nil {
		return nil, err
	}

	o.trail.Record(ctx, run.ID, rules.StageNPL, rules.NPLRule,
		map[string]interface{}{"loan_count": len(loans)},
		map[string]interface{}{"npl_amount": result.NPLAmount, "npl_ratio": result.NPLRatio, "npl_count": result.NPLCount},
		started)

	return map[string]decimal.Decimal{
		domain.MetricNPLAmount: result.NPLAmount,
		domain.MetricNPLRatio:  result.NPLRatio,
	}, nil
}

// runECL stages the loan book and persists per-loan provisions plus the ECL
// aggregates. The NPL aggregate must already exist for the coverage ratio.
func (o *Orchestrator) runECL(ctx context.Context, run *domain.SnapshotRun) (map[string]decimal.Decimal, error) {
	started := time.Now()
	o.logger.WithField("snapshot_id", run.ID).Info("Running ECL calculation")

	nplAmount, err := o.prerequisite(ctx, run.ID, domain.MetricNPLAmount, rules.StageECL, rules.StageNPL)
	if err != nil {
		return nil, err
	}

	loans, err := o.snapshots.LoanExposures(ctx, run.ID)
	if err != nil {
		return nil, err
	}

	result, err := o.ecl.Calculate(ctx, run.ID, loans, nplAmount)
	if err != nil {
		return nil, err
	}

	err = o.tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, le := range result.Loans {
			if err := o.metrics.UpdateComponentECL(ctx, run.ID, le.LoanID, le.ECL, le.Stage); err != nil {
				return err
			}
		}
		return o.metrics.SaveMetrics(ctx, result.Metrics(run.ID))
	})
	if err != nil {
		return nil, err
	}

	o.trail.Record(ctx, run.ID, rules.StageECL, rules.ECLRule,
		map[string]interface{}{"loan_count": len(loans), "npl_amount": nplAmount},
		map[string]interface{}{"total_ecl": result.TotalECL, "coverage_ratio": result.CoverageRatio},
		started)

	return map[string]decimal.Decimal{domain.MetricTotalECL: result.TotalECL}, nil
}

// runCAR measures the capital stack against the RWA base.
func (o *Orchestrator) runCAR(ctx context.Context, run *domain.SnapshotRun) (map[string]decimal.Decimal, error) {
	started := time.Now()
	o.logger.WithField("snapshot_id", run.ID).Info("Running capital adequacy calculation")

	// A missing aggregate reaches the engine as zero and comes back as an
	// ordering violation.
	totalRWA, err := o.metrics.MetricValue(ctx, run.ID, domain.MetricTotalRWA)
	if err != nil && !errors.Is(err, store.ErrMetricNotFound) {
		return nil, err
	}

	capital, err := o.snapshots.CapitalComponents(ctx, run.ID)
	if err != nil {
		return nil, err
	}

	result, err := o.car.Calculate(ctx, run.ID, capital, totalRWA)
	if err != nil {
		return nil, err
	}

	err = o.tx.WithinTx(ctx, func(ctx context.Context) error {
		return o.metrics.SaveMetrics(ctx, result.Metrics(run.ID))
	})
	if err != nil {
		return nil, err
	}

	o.trail.Record(ctx, run.ID, rules.StageCAR, rules.CARRule,
		map[string]interface{}{"components": len(capital), "total_rwa": totalRWA},
		map[string]interface{}{"car": result.CAR, "cet1_ratio": result.CET1Ratio, "compliant": result.Compliant},
		started)

	return map[string]decimal.Decimal{
		domain.MetricCAR:       result.CAR,
		domain.MetricCET1Ratio: result.CET1Ratio,
	}, nil
}

// runLCR computes the liquidity coverage ratio from the frozen positions.
func (o *Orchestrator) runLCR(ctx context.Context, run *domain.SnapshotRun) (map[string]decimal.Decimal, error) {
	started := time.Now()
	o.logger.WithField("snapshot_id", run.ID).Info("Running liquidity coverage calculation")

	assets, err := o.snapshots.LiquidityAssets(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	flows, err := o.snapshots.CashFlows(ctx, run.ID)
	if err != nil {
		return nil, err
	}

	result, err := o.lcr.Calculate(ctx, run.ID, run.ReportingDate, assets, flows)
	if err != nil {
		return nil, err
	}

	err = o.tx.WithinTx(ctx, func(ctx context.Context) error {
		return o.metrics.SaveMetrics(ctx, result.Metrics(run.ID))
	})
	if err != nil {
		return nil, err
	}

	o.trail.Record(ctx, run.ID, rules.StageLCR, rules.LCRRule,
		map[string]interface{}{"assets": len(assets), "flows": len(flows)},
		map[string]interface{}{"lcr": result.LCR, "net_cash_outflow": result.NetCashOutflow, "compliant": result.Compliant},
		started)

	return map[string]decimal.Decimal{domain.MetricLCR: result.LCR}, nil
}

// prerequisite reads an aggregate a later stage depends on, converting a
// missing row into an ordering violation.
func (o *Orchestrator) prerequisite(ctx context.Context, snapshotID int64, code, stage, requires string) (decimal.Decimal, error) {
	value, err := o.metrics.MetricValue(ctx, snapshotID, code)
	if errors.Is(err, store.ErrMetricNotFound) {
		return decimal.Zero, &regerrors.OrderingError{SnapshotID: snapshotID, Stage: stage, Requires: requires}
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("read prerequisite %s: %w", code, err)
	}
	return value, nil
}
