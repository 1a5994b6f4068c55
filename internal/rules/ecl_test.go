package rules

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wisetech/rras/internal/domain"
	"github.com/wisetech/rras/internal/regerrors"
	"github.com/wisetech/rras/pkg/logger"
)

func newECLEngine() *ECLEngine {
	return NewECLEngine(DefaultParameters(), logger.NewNop())
}

func TestECLEngine_Stage(t *testing.T) {
	engine := newECLEngine()

	tests := []struct {
		name   string
		modify func(*domain.LoanExposure)
		want   int
	}{
		{
			name:   "clean performing loan",
			modify: func(l *domain.LoanExposure) {},
			want:   1,
		},
		{
			name:   "29 days past due stays in stage 1",
			modify: func(l *domain.LoanExposure) { l.DaysPastDue = 29 },
			want:   1,
		},
		{
			name:   "30 days past due moves to stage 2",
			modify: func(l *domain.LoanExposure) { l.DaysPastDue = 30 },
			want:   2,
		},
		{
			name:   "restructured loan is stage 2",
			modify: func(l *domain.LoanExposure) { l.IsRestructured = true },
			want:   2,
		},
		{
			name:   "forborne loan is stage 2",
			modify: func(l *domain.LoanExposure) { l.IsForborne = true },
			want:   2,
		},
		{
			name:   "90 days past due is stage 3",
			modify: func(l *domain.LoanExposure) { l.DaysPastDue = 90 },
			want:   3,
		},
		{
			name:   "doubtful classification is stage 3 regardless of DPD",
			modify: func(l *domain.LoanExposure) { l.AssetClass = domain.AssetDoubtful },
			want:   3,
		},
		{
			name: "DPD threshold wins over restructuring",
			modify: func(l *domain.LoanExposure) {
				l.DaysPastDue = 95
				l.IsRestructured = true
			},
			want: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loan := retailLoan(1)
			tt.modify(&loan)
			assert.Equal(t, tt.want, engine.Stage(&loan))
		})
	}
}

func TestECLEngine_Calculate_FloorDominatesModel(t *testing.T) {
	engine := newECLEngine()

	// Stage 1 unsecured: model = 100,000 x 0.01 x 0.45 = 450,
	// floor = 100,000 x 1% = 1,000. Floor wins.
	loan := retailLoan(1)

	result, err := engine.Calculate(context.Background(), 1, []domain.LoanExposure{loan}, decimal.Zero)
	require.NoError(t, err)
	require.Len(t, result.Loans, 1)

	assert.Equal(t, 1, result.Loans[0].Stage)
	requireDecimal(t, "1000", result.Loans[0].ECL)
	requireDecimal(t, "1000", result.TotalECL)
	requireDecimal(t, "1000", result.StageECL[0])
	assert.Equal(t, 1, result.StageCount[0])
}

func TestECLEngine_Calculate_ModelDominatesFloor(t *testing.T) {
	engine := newECLEngine()

	// Model = 100,000 x 0.05 x 0.45 = 2,250 beats the 1,000 floor.
	loan := retailLoan(1)
	loan.PD = decPtr("0.05")
	loan.LGD = decPtr("0.45")

	result, err := engine.Calculate(context.Background(), 1, []domain.LoanExposure{loan}, decimal.Zero)
	require.NoError(t, err)

	requireDecimal(t, "2250", result.TotalECL)
}

func TestECLEngine_Calculate_Stage3FullProvision(t *testing.T) {
	engine := newECLEngine()

	// Fully collateralized stage 3 loan: model ECL is zero because derived
	// LGD is zero, but the 100% floor still provisions the full balance.
	loan := mortgageLoan(1, "0.70")
	loan.DaysPastDue = 95
	loan.AssetClass = domain.AssetDoubtful

	result, err := engine.Calculate(context.Background(), 1, []domain.LoanExposure{loan}, dec("100000"))
	require.NoError(t, err)
	require.Len(t, result.Loans, 1)

	assert.Equal(t, 3, result.Loans[0].Stage)
	requireDecimal(t, "100000", result.Loans[0].ECL)
	requireDecimal(t, "100000", result.StageECL[2])
	requireDecimal(t, "100", result.CoverageRatio)
}

func TestECLEngine_Calculate_DerivedLGDFromCollateral(t *testing.T) {
	engine := newECLEngine()

	// Collateral 40,000 against 100,000 gives LGD 0.60.
	// Stage 2 model = 100,000 x 0.15 x 0.60 = 9,000; floor = 25,000. Floor wins.
	loan := retailLoan(1)
	loan.DaysPastDue = 45
	loan.CollateralValue = dec("40000")

	result, err := engine.Calculate(context.Background(), 1, []domain.LoanExposure{loan}, decimal.Zero)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Loans[0].Stage)
	requireDecimal(t, "25000", result.Loans[0].ECL)
}

func TestECLEngine_Calculate_CoverageRatio(t *testing.T) {
	engine := newECLEngine()

	stage3 := retailLoan(1)
	stage3.DaysPastDue = 120
	stage3.AssetClass = domain.AssetDoubtful

	stage1 := retailLoan(2)
	stage1.OutstandingBalance = dec("400000")

	result, err := engine.Calculate(context.Background(), 1, []domain.LoanExposure{stage3, stage1}, dec("100000"))
	require.NoError(t, err)

	// 100,000 stage 3 + 4,000 stage 1 floor over 100,000 NPL.
	requireDecimal(t, "104000", result.TotalECL)
	requireDecimal(t, "104", result.CoverageRatio)
}

func TestECLEngine_Calculate_ZeroNPLAmount(t *testing.T) {
	engine := newECLEngine()

	loan := retailLoan(1)

	result, err := engine.Calculate(context.Background(), 1, []domain.LoanExposure{loan}, decimal.Zero)
	require.NoError(t, err)

	assert.True(t, result.CoverageRatio.IsZero())
}

func TestECLEngine_Calculate_AllMalformed(t *testing.T) {
	engine := newECLEngine()

	bad := retailLoan(9)
	bad.OutstandingBalance = dec("-1")

	_, err := engine.Calculate(context.Background(), 1, []domain.LoanExposure{bad}, decimal.Zero)
	var compErr *regerrors.ComputationError
	require.ErrorAs(t, err, &compErr)
	assert.Equal(t, StageECL, compErr.Stage)
}

func TestECLResult_Metrics(t *testing.T) {
	engine := newECLEngine()

	stage3 := retailLoan(1)
	stage3.DaysPastDue = 100
	stage3.AssetClass = domain.AssetDoubtful

	result, err := engine.Calculate(context.Background(), 7, []domain.LoanExposure{stage3}, dec("100000"))
	require.NoError(t, err)

	byCode := map[string]domain.RegulatoryMetric{}
	for _, m := range result.Metrics(7) {
		byCode[m.Code] = m
	}

	requireDecimal(t, "100000", byCode[domain.MetricTotalECL].Value)
	requireDecimal(t, "100000", byCode["STAGE3_ECL"].Value)
	requireDecimal(t, "0", byCode["STAGE1_ECL"].Value)
	requireDecimal(t, "1", byCode["STAGE3_COUNT"].Value)
	requireDecimal(t, "100", byCode[domain.MetricNPLCoverageRatio].Value)
}
