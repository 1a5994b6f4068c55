package rules

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/wisetech/rras/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, got.Equal(dec(want)), "want %s, got %s", want, got)
}

// retailLoan returns a performing retail loan with sane defaults that tests
// override per case.
func retailLoan(loanID int64) domain.LoanExposure {
	return domain.LoanExposure{
		SnapshotID:         1,
		LoanID:             loanID,
		CustomerID:         loanID,
		CustomerType:       domain.CustomerRetail,
		Country:            "Lesotho",
		PrincipalAmount:    dec("120000"),
		OutstandingBalance: dec("100000"),
		CollateralValue:    decimal.Zero,
		ProductType:        "TERM_LOAN",
		LoanPurpose:        "CONSUMER",
		AssetClass:         domain.AssetStandard,
		Currency:           "LSL",
	}
}

func mortgageLoan(loanID int64, ltv string) domain.LoanExposure {
	loan := retailLoan(loanID)
	loan.ProductType = "MORTGAGE"
	loan.LoanPurpose = "RESIDENTIAL"
	loan.LTVRatio = decPtr(ltv)
	loan.CollateralValue = dec("140000")
	loan.CollateralType = "PROPERTY"
	return loan
}
