package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// MetricUnit tags how a regulatory metric value is to be read.
type MetricUnit string

const (
	UnitCurrency   MetricUnit = "CURRENCY"
	UnitPercentage MetricUnit = "PERCENTAGE"
	UnitCount      MetricUnit = "COUNT"
	UnitBoolean    MetricUnit = "BOOLEAN"
)

// Metric codes emitted by the rule engines.
const (
	MetricTotalRWA         = "TOTAL_RWA"
	MetricTotalLoans       = "TOTAL_LOANS"
	MetricNPLAmount        = "NPL_AMOUNT"
	MetricNPLRatio         = "NPL_RATIO"
	MetricNPLCount         = "NPL_COUNT"
	MetricLoanCount        = "LOAN_COUNT"
	MetricTotalECL         = "TOTAL_ECL"
	MetricNPLCoverageRatio = "NPL_COVERAGE_RATIO"
	MetricCET1Capital      = "CET1_CAPITAL"
	MetricTier1Capital     = "TIER1_CAPITAL"
	MetricTotalCapital     = "TOTAL_CAPITAL"
	MetricCET1Ratio        = "CET1_RATIO"
	MetricTier1Ratio       = "TIER1_RATIO"
	MetricCAR              = "CAR"
	MetricCET1Surplus      = "CET1_SURPLUS"
	MetricTier1Surplus     = "TIER1_SURPLUS"
	MetricCARSurplus       = "CAR_SURPLUS"
	MetricCARCompliant     = "CAR_COMPLIANT"
	MetricHQLATotal        = "HQLA_TOTAL"
	MetricCashOutflows     = "CASH_OUTFLOWS"
	MetricCashInflows      = "CASH_INFLOWS"
	MetricNetCashOutflows  = "NET_CASH_OUTFLOWS"
	MetricLCR              = "LCR"
	MetricLCRCompliant     = "LCR_COMPLIANT"
)

// MetricComponent is the per-loan derived row shared by the RWA and ECL
// engines. Ownership contract: the RWA engine inserts the row and owns
// ExposureAmount/RiskWeight/RWAValue; the ECL engine is the sole writer of
// ECLAmount/ECLStage/ProvisionAmount via an in-place update.
type MetricComponent struct {
	SnapshotID     int64
	LoanID         int64
	ExposureAmount decimal.Decimal
	// RiskWeight is stored as a fraction (percentage / 100) at 4 dp.
	RiskWeight decimal.Decimal
	RWAValue   decimal.Decimal

	ECLAmount       *decimal.Decimal
	ECLStage        *int
	ProvisionAmount *decimal.Decimal
}

// RegulatoryMetric is a named numeric result attached to a snapshot.
// Append-only; (snapshot id, code) is unique under normal operation.
type RegulatoryMetric struct {
	ID           int64           `json:"metric_id"`
	SnapshotID   int64           `json:"snapshot_id"`
	Code         string          `json:"metric_code"`
	Value        decimal.Decimal `json:"value"`
	Unit         MetricUnit      `json:"unit"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CalculatedAt time.Time       `json:"calculated_at"`
}

// CalculationAudit is an immutable log entry for one stage invocation.
type CalculationAudit struct {
	ID              int64           `json:"audit_id"`
	SnapshotID      int64           `json:"snapshot_id"`
	Stage           string          `json:"stage"`
	InputData       json.RawMessage `json:"input_data"`
	OutputData      json.RawMessage `json:"output_data"`
	CalculationRule string          `json:"calculation_rule"`
	ExecutedAt      time.Time       `json:"executed_at"`
	ExecutionTimeMs int64           `json:"execution_time_ms"`
}
