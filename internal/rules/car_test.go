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

func newCAREngine() *CAREngine {
	return NewCAREngine(DefaultParameters(), logger.NewNop())
}

func capitalStack(cet1, at1, tier2 string) []domain.CapitalComponent {
	return []domain.CapitalComponent{
		{SnapshotID: 1, ComponentType: domain.CapitalCET1, ComponentName: "Paid-up capital", Amount: dec(cet1), Currency: "LSL"},
		{SnapshotID: 1, ComponentType: domain.CapitalAT1, ComponentName: "AT1 instruments", Amount: dec(at1), Currency: "LSL"},
		{SnapshotID: 1, ComponentType: domain.CapitalTier2, ComponentName: "Subordinated debt", Amount: dec(tier2), Currency: "LSL"},
	}
}

func TestCAREngine_Calculate_TierSums(t *testing.T) {
	engine := newCAREngine()

	components := capitalStack("160000", "40000", "50000")
	result, err := engine.Calculate(context.Background(), 1, components, dec("1000000"))
	require.NoError(t, err)

	requireDecimal(t, "160000", result.CET1Capital)
	requireDecimal(t, "200000", result.Tier1Capital)
	requireDecimal(t, "250000", result.TotalCapital)
	requireDecimal(t, "16", result.CET1Ratio)
	requireDecimal(t, "20", result.Tier1Ratio)
	requireDecimal(t, "25", result.CAR)
	requireDecimal(t, "8", result.CET1Surplus)
	requireDecimal(t, "10", result.Tier1Surplus)
	requireDecimal(t, "10", result.CARSurplus)
	assert.True(t, result.Compliant)
}

func TestCAREngine_Calculate_ExactlyAtMinimums(t *testing.T) {
	engine := newCAREngine()

	// 8% CET1, 10% Tier1, 15% total against 1,000,000 RWA.
	components := capitalStack("80000", "20000", "50000")
	result, err := engine.Calculate(context.Background(), 1, components, dec("1000000"))
	require.NoError(t, err)

	requireDecimal(t, "8", result.CET1Ratio)
	requireDecimal(t, "10", result.Tier1Ratio)
	requireDecimal(t, "15", result.CAR)
	assert.True(t, result.CET1Surplus.IsZero())
	assert.True(t, result.CARSurplus.IsZero())
	assert.True(t, result.Compliant)
}

func TestCAREngine_Calculate_OneBasisPointShort(t *testing.T) {
	engine := newCAREngine()

	// Total capital 149,900 over 1,000,000 RWA is a 14.99% CAR.
	components := capitalStack("80000", "20000", "49900")
	result, err := engine.Calculate(context.Background(), 1, components, dec("1000000"))
	require.NoError(t, err)

	requireDecimal(t, "14.99", result.CAR)
	requireDecimal(t, "-0.01", result.CARSurplus)
	assert.False(t, result.Compliant)
}

func TestCAREngine_Calculate_CET1ShortfallAlone(t *testing.T) {
	engine := newCAREngine()

	// Total capital comfortably above 15% but CET1 below 8%.
	components := capitalStack("70000", "40000", "60000")
	result, err := engine.Calculate(context.Background(), 1, components, dec("1000000"))
	require.NoError(t, err)

	requireDecimal(t, "7", result.CET1Ratio)
	requireDecimal(t, "17", result.CAR)
	assert.False(t, result.Compliant)
}

func TestCAREngine_Calculate_MissingRWABase(t *testing.T) {
	engine := newCAREngine()

	_, err := engine.Calculate(context.Background(), 3, capitalStack("80000", "20000", "50000"), decimal.Zero)
	var ordErr *regerrors.OrderingError
	require.ErrorAs(t, err, &ordErr)
	assert.Equal(t, StageCAR, ordErr.Stage)
	assert.Equal(t, StageRWA, ordErr.Requires)
}

func TestCAREngine_Calculate_IgnoresUnknownComponentType(t *testing.T) {
	engine := newCAREngine()

	components := append(capitalStack("80000", "20000", "50000"), domain.CapitalComponent{
		SnapshotID:    1,
		ComponentType: "T3",
		Amount:        dec("999999"),
	})

	result, err := engine.Calculate(context.Background(), 1, components, dec("1000000"))
	require.NoError(t, err)
	requireDecimal(t, "150000", result.TotalCapital)
}

func TestCARResult_Metrics(t *testing.T) {
	engine := newCAREngine()

	result, err := engine.Calculate(context.Background(), 5, capitalStack("80000", "20000", "49900"), dec("1000000"))
	require.NoError(t, err)

	byCode := map[string]domain.RegulatoryMetric{}
	for _, m := range result.Metrics(5) {
		assert.Equal(t, int64(5), m.SnapshotID)
		byCode[m.Code] = m
	}

	requireDecimal(t, "14.99", byCode[domain.MetricCAR].Value)
	requireDecimal(t, "0", byCode[domain.MetricCARCompliant].Value)
	assert.Equal(t, domain.UnitBoolean, byCode[domain.MetricCARCompliant].Unit)
}
