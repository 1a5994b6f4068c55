package rules

import (
	"context"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/wisetech/rras/internal/domain"
	"github.com/wisetech/rras/internal/regerrors"
	"github.com/wisetech/rras/pkg/logger"
)

const StageECL = "ECL_CALCULATION"

// ECLRule describes the methodology on the audit record.
const ECLRule = "IFRS 9 ECL with local minimum provisioning floors"

// ECL stage-2 transfer threshold in days past due.
const eclStage2DPDThreshold = 30

// LoanECL is the per-loan outcome of the ECL engine. Provision equals the
// final ECL (the regulatory floor is already applied).
type LoanECL struct {
	LoanID int64
	Stage  int
	ECL    decimal.Decimal
}

// ECLResult aggregates the ECL stage output for one snapshot.
type ECLResult struct {
	Loans    []LoanECL
	TotalECL decimal.Decimal
	// StageECL and StageCount are indexed by stage-1 (index 0 = stage 1).
	StageECL      [3]decimal.Decimal
	StageCount    [3]int
	CoverageRatio decimal.Decimal
	Skipped       []int64
}

// ECLEngine assigns IFRS 9 stages and computes expected credit loss.
// It requires the NPL stage's NPL_AMOUNT aggregate for the coverage ratio;
// the caller enforces that ordering.
type ECLEngine struct {
	params Parameters
	logger *logger.Logger
}

// NewECLEngine creates an ECL engine with immutable parameters.
func NewECLEngine(params Parameters, log *logger.Logger) *ECLEngine {
	return &ECLEngine{params: params, logger: log}
}

// Calculate computes staging and ECL for every loan, then the coverage ratio
// against the NPL aggregate. Fan-out mirrors the RWA engine: one writer per
// slot, reduction after Wait.
func (e *ECLEngine) Calculate(ctx context.Context, snapshotID int64, loans []domain.LoanExposure, nplAmount decimal.Decimal) (*ECLResult, error) {
	perLoan := make([]*LoanECL, len(loans))
	skipReasons := make([]string, len(loans))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.params.Workers)

	for i := range loans {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			loan := &loans[i]
			if reason := malformedLoan(loan); reason != "" {
				skipReasons[i] = reason
				return nil
			}

			stage := e.Stage(loan)
			perLoan[i] = &LoanECL{
				LoanID: loan.LoanID,
				Stage:  stage,
				ECL:    e.loanECL(loan, stage),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &ECLResult{TotalECL: decimal.Zero}
	for i := range result.StageECL {
		result.StageECL[i] = decimal.Zero
	}

	for i, le := range perLoan {
		if le == nil {
			loan := &loans[i]
			result.Skipped = append(result.Skipped, loan.LoanID)
			e.logger.WithFields(map[string]interface{}{
				"snapshot_id": snapshotID,
				"loan_id":     loan.LoanID,
				"reason":      skipReasons[i],
			}).Warn("Skipping loan with malformed input")
			continue
		}
		result.Loans = append(result.Loans, *le)
		result.TotalECL = result.TotalECL.Add(le.ECL)
		result.StageECL[le.Stage-1] = result.StageECL[le.Stage-1].Add(le.ECL)
		result.StageCount[le.Stage-1]++
	}

	if len(loans) > 0 && len(result.Loans) == 0 {
		return nil, &regerrors.ComputationError{
			SnapshotID: snapshotID,
			LoanID:     loans[0].LoanID,
			Stage:      StageECL,
			Reason:     "no loan in the snapshot has a usable balance",
		}
	}

	result.CoverageRatio = percentage(result.TotalECL, nplAmount)
	return result, nil
}

// Stage assigns the IFRS 9 stage; the first matching rule wins.
func (e *ECLEngine) Stage(loan *domain.LoanExposure) int {
	// Stage 3: credit-impaired.
	if loan.DaysPastDue >= NPLDaysPastDueThreshold {
		return 3
	}
	if loan.AssetClass == domain.AssetDoubtful {
		return 3
	}

	// Stage 2: significant increase in credit risk.
	if loan.DaysPastDue >= eclStage2DPDThreshold {
		return 2
	}
	if loan.IsRestructured || loan.IsForborne {
		return 2
	}

	return 1
}

// loanECL computes max(model ECL, regulatory floor) for one loan.
// Model ECL = exposure x PD x LGD with stage/collateral fallbacks.
func (e *ECLEngine) loanECL(loan *domain.LoanExposure, stage int) decimal.Decimal {
	exposure := loan.OutstandingBalance

	pd := e.params.DefaultPD(stage)
	if loan.PD != nil {
		pd = *loan.PD
	}

	lgd := e.lgd(loan)

	modelECL := exposure.Mul(pd).Mul(lgd)
	floor := exposure.Mul(e.params.MinProvisionRate(stage)).DivRound(hundred, 2)

	if modelECL.GreaterThan(floor) {
		return modelECL
	}
	return floor
}

// lgd returns the loan's LGD, deriving one from collateral coverage when the
// source system has no model value.
func (e *ECLEngine) lgd(loan *domain.LoanExposure) decimal.Decimal {
	if loan.LGD != nil {
		return *loan.LGD
	}

	if loan.CollateralValue.IsPositive() && loan.OutstandingBalance.IsPositive() {
		recovery := loan.CollateralValue.DivRound(loan.OutstandingBalance, 4)
		if recovery.GreaterThan(one) {
			recovery = one
		}
		return one.Sub(recovery)
	}

	return e.params.UnsecuredLGD
}

// Metrics converts the aggregates into regulatory metric rows.
func (r *ECLResult) Metrics(snapshotID int64) []domain.RegulatoryMetric {
	metrics := []domain.RegulatoryMetric{
		{SnapshotID: snapshotID, Code: domain.MetricTotalECL, Value: r.TotalECL, Unit: domain.UnitCurrency},
		{SnapshotID: snapshotID, Code: "STAGE1_ECL", Value: r.StageECL[0], Unit: domain.UnitCurrency},
		{SnapshotID: snapshotID, Code: "STAGE2_ECL", Value: r.StageECL[1], Unit: domain.UnitCurrency},
		{SnapshotID: snapshotID, Code: "STAGE3_ECL", Value: r.StageECL[2], Unit: domain.UnitCurrency},
		{SnapshotID: snapshotID, Code: "STAGE1_COUNT", Value: decimal.NewFromInt(int64(r.StageCount[0])), Unit: domain.UnitCount},
		{SnapshotID: snapshotID, Code: "STAGE2_COUNT", Value: decimal.NewFromInt(int64(r.StageCount[1])), Unit: domain.UnitCount},
		{SnapshotID: snapshotID, Code: "STAGE3_COUNT", Value: decimal.NewFromInt(int64(r.StageCount[2])), Unit: domain.UnitCount},
		{SnapshotID: snapshotID, Code: domain.MetricNPLCoverageRatio, Value: r.CoverageRatio, Unit: domain.UnitPercentage},
	}
	return metrics
}
