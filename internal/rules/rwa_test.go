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

func newRWAEngine() *RWAEngine {
	return NewRWAEngine(DefaultParameters(), logger.NewNop())
}

func TestRWAEngine_RiskWeightPercent(t *testing.T) {
	engine := newRWAEngine()

	tests := []struct {
		name   string
		modify func(*domain.LoanExposure)
		want   string
	}{
		{
			name: "local sovereign is zero weighted",
			modify: func(l *domain.LoanExposure) {
				l.CustomerType = domain.CustomerSovereign
				l.Country = "Lesotho"
			},
			want: "0",
		},
		{
			name: "sovereign country match is case insensitive",
			modify: func(l *domain.LoanExposure) {
				l.CustomerType = domain.CustomerSovereign
				l.Country = "LESOTHO"
			},
			want: "0",
		},
		{
			name: "foreign sovereign falls through to default",
			modify: func(l *domain.LoanExposure) {
				l.CustomerType = domain.CustomerSovereign
				l.Country = "Eswatini"
			},
			want: "100",
		},
		{
			name: "bank counterparty",
			modify: func(l *domain.LoanExposure) {
				l.CustomerType = domain.CustomerBank
			},
			want: "20",
		},
		{
			name: "financial institution flag overrides category",
			modify: func(l *domain.LoanExposure) {
				l.CustomerType = domain.CustomerCorporate
				l.IsFinancialInstitution = true
			},
			want: "20",
		},
		{
			name: "public sector corporate",
			modify: func(l *domain.LoanExposure) {
				l.CustomerType = domain.CustomerCorporate
				l.IsPublicSector = true
			},
			want: "50",
		},
		{
			name: "plain corporate",
			modify: func(l *domain.LoanExposure) {
				l.CustomerType = domain.CustomerCorporate
			},
			want: "100",
		},
		{
			name: "residential mortgage within LTV limit",
			modify: func(l *domain.LoanExposure) {
				l.ProductType = "MORTGAGE"
				l.LoanPurpose = "RESIDENTIAL"
				l.LTVRatio = decPtr("0.70")
			},
			want: "35",
		},
		{
			name: "residential mortgage at the LTV limit",
			modify: func(l *domain.LoanExposure) {
				l.ProductType = "MORTGAGE"
				l.LoanPurpose = "RESIDENTIAL"
				l.LTVRatio = decPtr("0.80")
			},
			want: "35",
		},
		{
			name: "high LTV residential mortgage",
			modify: func(l *domain.LoanExposure) {
				l.ProductType = "MORTGAGE"
				l.LoanPurpose = "RESIDENTIAL"
				l.LTVRatio = decPtr("0.85")
			},
			want: "50",
		},
		{
			name: "residential mortgage without LTV gets the high weight",
			modify: func(l *domain.LoanExposure) {
				l.ProductType = "MORTGAGE"
				l.LoanPurpose = "RESIDENTIAL"
				l.LTVRatio = nil
			},
			want: "50",
		},
		{
			name: "SME below the retail threshold",
			modify: func(l *domain.LoanExposure) {
				l.CustomerType = domain.CustomerSME
				l.OutstandingBalance = dec("4000000")
			},
			want: "75",
		},
		{
			name: "SME at the retail threshold",
			modify: func(l *domain.LoanExposure) {
				l.CustomerType = domain.CustomerSME
				l.OutstandingBalance = dec("5000000")
			},
			want: "100",
		},
		{
			name:   "retail other",
			modify: func(l *domain.LoanExposure) {},
			want:   "75",
		},
		{
			name: "unclassified category gets the conservative default",
			modify: func(l *domain.LoanExposure) {
				l.CustomerType = "UNKNOWN"
			},
			want: "100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loan := retailLoan(1)
			tt.modify(&loan)
			requireDecimal(t, tt.want, engine.RiskWeightPercent(&loan))
		})
	}
}

func TestRWAEngine_Calculate(t *testing.T) {
	engine := newRWAEngine()

	mortgage := mortgageLoan(1, "0.70")
	corp := retailLoan(2)
	corp.CustomerType = domain.CustomerCorporate
	corp.OutstandingBalance = dec("250000")

	result, err := engine.Calculate(context.Background(), 1, []domain.LoanExposure{mortgage, corp})
	require.NoError(t, err)
	require.Len(t, result.Loans, 2)

	// 100,000 at 35% and 250,000 at 100%.
	requireDecimal(t, "35000", result.Loans[0].RWA)
	requireDecimal(t, "0.35", result.Loans[0].RiskWeight)
	requireDecimal(t, "250000", result.Loans[1].RWA)
	requireDecimal(t, "285000", result.TotalRWA)
	assert.Empty(t, result.Skipped)
}

func TestRWAEngine_Calculate_Deterministic(t *testing.T) {
	engine := newRWAEngine()

	loans := make([]domain.LoanExposure, 200)
	for i := range loans {
		loans[i] = retailLoan(int64(i + 1))
		loans[i].OutstandingBalance = decimal.NewFromInt(int64(1000 + i))
	}

	first, err := engine.Calculate(context.Background(), 1, loans)
	require.NoError(t, err)

	for run := 0; run < 5; run++ {
		again, err := engine.Calculate(context.Background(), 1, loans)
		require.NoError(t, err)
		require.True(t, again.TotalRWA.Equal(first.TotalRWA))
		require.Len(t, again.Loans, len(first.Loans))
		for i := range first.Loans {
			assert.Equal(t, first.Loans[i].LoanID, again.Loans[i].LoanID)
			assert.True(t, first.Loans[i].RWA.Equal(again.Loans[i].RWA))
		}
	}
}

func TestRWAEngine_RiskWeightPercent_SovereignWeightConfigurable(t *testing.T) {
	params := DefaultParameters()
	params.SovereignWeight = dec("10")
	engine := NewRWAEngine(params, logger.NewNop())

	loan := retailLoan(1)
	loan.CustomerType = domain.CustomerSovereign
	loan.Country = "Lesotho"

	requireDecimal(t, "10", engine.RiskWeightPercent(&loan))
}

func TestRWAEngine_Calculate_SkipsMalformedLoans(t *testing.T) {
	engine := newRWAEngine()

	good := retailLoan(1)
	negative := retailLoan(2)
	negative.OutstandingBalance = dec("-100")
	zero := retailLoan(3)
	zero.OutstandingBalance = dec("0")

	result, err := engine.Calculate(context.Background(), 1, []domain.LoanExposure{good, negative, zero})
	require.NoError(t, err)
	require.Len(t, result.Loans, 1)
	assert.Equal(t, []int64{2, 3}, result.Skipped)
	requireDecimal(t, "75000", result.TotalRWA)
}

func TestRWAEngine_Calculate_AllMalformed(t *testing.T) {
	engine := newRWAEngine()

	bad := retailLoan(7)
	bad.OutstandingBalance = dec("-1")

	_, err := engine.Calculate(context.Background(), 1, []domain.LoanExposure{bad})
	var compErr *regerrors.ComputationError
	require.ErrorAs(t, err, &compErr)
	assert.Equal(t, StageRWA, compErr.Stage)
	assert.Equal(t, int64(7), compErr.LoanID)
}

func TestRWAEngine_Calculate_EmptySnapshot(t *testing.T) {
	engine := newRWAEngine()

	result, err := engine.Calculate(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Loans)
	assert.True(t, result.TotalRWA.IsZero())
}
