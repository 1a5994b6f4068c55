package rules

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/wisetech/rras/internal/domain"
	"github.com/wisetech/rras/internal/regerrors"
	"github.com/wisetech/rras/pkg/logger"
)

const StageRWA = "RWA_CALCULATION"

// RWARule describes the methodology on the audit record.
const RWARule = "Basel III standardized approach with local jurisdiction overrides"

// WeightedLoan is the per-loan outcome of the RWA engine.
type WeightedLoan struct {
	LoanID         int64
	ExposureAmount decimal.Decimal
	// RiskWeight is a fraction (percentage / 100) at 4 dp.
	RiskWeight decimal.Decimal
	RWA        decimal.Decimal
}

// RWAResult aggregates the RWA stage output for one snapshot.
type RWAResult struct {
	Loans    []WeightedLoan
	TotalRWA decimal.Decimal
	Skipped  []int64
}

// RWAEngine assigns risk weights and computes risk-weighted assets.
type RWAEngine struct {
	params Parameters
	logger *logger.Logger
}

// NewRWAEngine creates an RWA engine with immutable parameters.
func NewRWAEngine(params Parameters, log *logger.Logger) *RWAEngine {
	return &RWAEngine{params: params, logger: log}
}

// Calculate computes RWA for every loan in the snapshot. Per-loan work fans
// out across workers; each result slot is written by exactly one worker and
// the total is reduced only after all workers finish, so the outcome is
// deterministic regardless of scheduling.
func (e *RWAEngine) Calculate(ctx context.Context, snapshotID int64, loans []domain.LoanExposure) (*RWAResult, error) {
	weighted := make([]*WeightedLoan, len(loans))
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

			weightPct := e.RiskWeightPercent(loan)
			weighted[i] = &WeightedLoan{
				LoanID:         loan.LoanID,
				ExposureAmount: loan.OutstandingBalance,
				RiskWeight:     weightPct.DivRound(hundred, 4),
				RWA:            loan.OutstandingBalance.Mul(weightPct).DivRound(hundred, 2),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &RWAResult{TotalRWA: decimal.Zero}
	for i, wl := range weighted {
		if wl == nil {
			loan := &loans[i]
			result.Skipped = append(result.Skipped, loan.LoanID)
			e.logger.WithFields(map[string]interface{}{
				"snapshot_id": snapshotID,
				"loan_id":     loan.LoanID,
				"reason":      skipReasons[i],
			}).Warn("Skipping loan with malformed input")
			continue
		}
		result.Loans = append(result.Loans, *wl)
		result.TotalRWA = result.TotalRWA.Add(wl.RWA)
	}

	if len(loans) > 0 && len(result.Loans) == 0 {
		return nil, &regerrors.ComputationError{
			SnapshotID: snapshotID,
			LoanID:     loans[0].LoanID,
			Stage:      StageRWA,
			Reason:     "no loan in the snapshot has a usable balance",
		}
	}

	return result, nil
}

// RiskWeightPercent applies the risk-weight decision table in precedence
// order; the first matching rule wins.
func (e *RWAEngine) RiskWeightPercent(loan *domain.LoanExposure) decimal.Decimal {
	// Sovereign exposure to the local government carries the configured
	// sovereign weight, zero under the published framework.
	if loan.CustomerType == domain.CustomerSovereign &&
		strings.EqualFold(loan.Country, e.params.SovereignCountry) {
		return e.params.SovereignWeight
	}

	if loan.CustomerType == domain.CustomerBank || loan.IsFinancialInstitution {
		return e.params.BankWeight
	}

	if loan.CustomerType == domain.CustomerCorporate {
		// Local override: reduced weight for public sector entities.
		if loan.IsPublicSector {
			return e.params.PublicSectorWeight
		}
		return e.params.CorporateWeight
	}

	if loan.CustomerType == domain.CustomerRetail &&
		strings.EqualFold(loan.ProductType, "MORTGAGE") &&
		strings.EqualFold(loan.LoanPurpose, "RESIDENTIAL") {
		if loan.LTVRatio != nil && loan.LTVRatio.LessThanOrEqual(e.params.MortgageLTVLimit) {
			return e.params.MortgageWeight
		}
		// Local override: high-LTV mortgages weigh more than the standard 35%.
		return e.params.HighLTVMortgageWeight
	}

	// SME exposures get retail treatment below the threshold.
	if loan.CustomerType == domain.CustomerSME {
		if loan.OutstandingBalance.LessThan(e.params.SMEThreshold) {
			return e.params.RetailWeight
		}
		return e.params.CorporateWeight
	}

	if loan.CustomerType == domain.CustomerRetail {
		return e.params.RetailWeight
	}

	// Conservative default for anything unclassified.
	return e.params.CorporateWeight
}

// Components converts the per-loan results into metric-component rows. The
// RWA engine owns the exposure/weight/rwa fields; ECL fields stay nil until
// the ECL stage updates them.
func (r *RWAResult) Components(snapshotID int64) []domain.MetricComponent {
	components := make([]domain.MetricComponent, 0, len(r.Loans))
	for _, wl := range r.Loans {
		components = append(components, domain.MetricComponent{
			SnapshotID:     snapshotID,
			LoanID:         wl.LoanID,
			ExposureAmount: wl.ExposureAmount,
			RiskWeight:     wl.RiskWeight,
			RWAValue:       wl.RWA,
		})
	}
	return components
}

// malformedLoan reports why a loan cannot be processed, or "" when it can.
func malformedLoan(loan *domain.LoanExposure) string {
	if !loan.OutstandingBalance.IsPositive() {
		return "non-positive outstanding balance"
	}
	return ""
}
