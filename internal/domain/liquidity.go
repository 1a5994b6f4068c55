package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Capital component types of the Basel capital stack.
const (
	CapitalCET1  = "CET1"
	CapitalAT1   = "AT1"
	CapitalTier2 = "T2"
)

// CapitalComponent is a frozen capital-stack record for the reporting date.
type CapitalComponent struct {
	SnapshotID    int64
	ComponentType string
	ComponentName string
	Amount        decimal.Decimal
	Currency      string
}

// LiquidityAsset is a frozen liquid-asset position for the reporting date.
type LiquidityAsset struct {
	SnapshotID     int64
	AssetID        int64
	AssetType      string
	HQLAValue      decimal.Decimal
	HQLALevel      string
	IsUnencumbered bool
	Currency       string
}

// Cash flow directions for the LCR stress window.
const (
	FlowOutflow = "OUTFLOW"
	FlowInflow  = "INFLOW"
)

// CashFlow is a contractual flow inside the 30-day stress window.
// RunOffRate applies to outflows, InflowRate to inflows; either may be nil,
// in which case the engine applies the configured default.
type CashFlow struct {
	SnapshotID        int64
	FlowType          string
	ContractualAmount decimal.Decimal
	RunOffRate        *decimal.Decimal
	InflowRate        *decimal.Decimal
	ExpectedDate      time.Time
}
