package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CustomerCategory classifies the counterparty of a loan exposure.
type CustomerCategory string

const (
	CustomerRetail    CustomerCategory = "RETAIL"
	CustomerSME       CustomerCategory = "SME"
	CustomerCorporate CustomerCategory = "CORP"
	CustomerSovereign CustomerCategory = "SOVEREIGN"
	CustomerBank      CustomerCategory = "BANK"
)

// AssetClassification is the supervisory severity bucket of a loan.
//
// STANDARD 0-30 DPD, WATCH 31-60, SUBSTANDARD 61-90, DOUBTFUL 91-180,
// LOSS 180+.
type AssetClassification string

const (
	AssetStandard    AssetClassification = "STANDARD"
	AssetWatch       AssetClassification = "WATCH"
	AssetSubstandard AssetClassification = "SUBSTANDARD"
	AssetDoubtful    AssetClassification = "DOUBTFUL"
	AssetLoss        AssetClassification = "LOSS"
)

// LoanExposure is the frozen copy of one loan's attributes at snapshot
// creation time. Immutable once copied; keyed by (snapshot id, loan id).
type LoanExposure struct {
	SnapshotID int64
	LoanID     int64
	CustomerID int64

	CustomerType CustomerCategory
	Country      string

	// Risk inputs. PD and LGD are nil when the source system has no model
	// value; the ECL engine then falls back to stage/collateral defaults.
	PD  *decimal.Decimal
	LGD *decimal.Decimal

	IsFinancialInstitution bool
	IsPublicSector         bool

	PrincipalAmount    decimal.Decimal
	OutstandingBalance decimal.Decimal
	CollateralValue    decimal.Decimal
	CollateralType     string

	ProductType string
	LoanPurpose string
	// LTVRatio is a fraction (0.80 = 80%); nil when not applicable.
	LTVRatio *decimal.Decimal

	DaysPastDue    int
	AssetClass     AssetClassification
	IsRestructured bool
	IsForborne     bool

	MaturityDate *time.Time
	Currency     string
}
