package store

import (
	"context"
	"fmt"

	"github.com/wisetech/rras/internal/domain"
	"github.com/wisetech/rras/pkg/database"
)

// SnapshotRepository reads frozen snapshot data back for the rule engines.
type SnapshotRepository struct {
	base
}

// NewSnapshotRepository creates a snapshot reader over the shared pool.
func NewSnapshotRepository(db *database.DB) *SnapshotRepository {
	return &SnapshotRepository{base{db: db}}
}

// LoanExposures returns every frozen loan of a snapshot ordered by loan id,
// so engine input order is stable across reads.
func (r *SnapshotRepository) LoanExposures(ctx context.Context, snapshotID int64) ([]domain.LoanExposure, error) {
	rows, err := r.querier(ctx).Query(ctx, `
		SELECT
			snapshot_id, loan_id, customer_id, customer_type, country,
			pd, lgd, is_financial_institution, is_public_sector,
			principal_amount, outstanding_balance, collateral_value, COALESCE(collateral_type, ''),
			product_type, loan_purpose, ltv_ratio,
			days_past_due, asset_classification, is_restructured, is_forborne,
			maturity_date, currency
		FROM snapshot_loan_exposures
		WHERE snapshot_id = $1
		ORDER BY loan_id`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("read loan exposures for snapshot %d: %w", snapshotID, err)
	}
	defer rows.Close()

	var loans []domain.LoanExposure
	for rows.Next() {
		var loan domain.LoanExposure
		err := rows.Scan(
			&loan.SnapshotID, &loan.LoanID, &loan.CustomerID, &loan.CustomerType, &loan.Country,
			&loan.PD, &loan.LGD, &loan.IsFinancialInstitution, &loan.IsPublicSector,
			&loan.PrincipalAmount, &loan.OutstandingBalance, &loan.CollateralValue, &loan.CollateralType,
			&loan.ProductType, &loan.LoanPurpose, &loan.LTVRatio,
			&loan.DaysPastDue, &loan.AssetClass, &loan.IsRestructured, &loan.IsForborne,
			&loan.MaturityDate, &loan.Currency,
		)
		if err != nil {
			return nil, fmt.Errorf("scan loan exposure: %w", err)
		}
		loans = append(loans, loan)
	}
	return loans, rows.Err()
}

// CapitalComponents returns the frozen capital stack of a snapshot.
func (r *SnapshotRepository) CapitalComponents(ctx context.Context, snapshotID int64) ([]domain.CapitalComponent, error) {
	rows, err := r.querier(ctx).Query(ctx, `
		SELECT snapshot_id, component_type, component_name, amount, currency
		FROM snapshot_capital_components
		WHERE snapshot_id = $1
		ORDER BY component_type, component_name`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("read capital components for snapshot %d: %w", snapshotID, err)
	}
	defer rows.Close()

	var components []domain.CapitalComponent
	for rows.Next() {
		var c domain.CapitalComponent
		if err := rows.Scan(&c.SnapshotID, &c.ComponentType, &c.ComponentName, &c.Amount, &c.Currency); err != nil {
			return nil, fmt.Errorf("scan capital component: %w", err)
		}
		components = append(components, c)
	}
	return components, rows.Err()
}

// LiquidityAssets returns the frozen liquid-asset positions of a snapshot.
func (r *SnapshotRepository) LiquidityAssets(ctx context.Context, snapshotID int64) ([]domain.LiquidityAsset, error) {
	rows, err := r.querier(ctx).Query(ctx, `
		SELECT snapshot_id, asset_id, asset_type, hqla_value, hqla_level,
			is_unencumbered, currency
		FROM snapshot_liquidity_assets
		WHERE snapshot_id = $1
		ORDER BY asset_id`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("read liquidity assets for snapshot %d: %w", snapshotID, err)
	}
	defer rows.Close()

	var assets []domain.LiquidityAsset
	for rows.Next() {
		var a domain.LiquidityAsset
		if err := rows.Scan(&a.SnapshotID, &a.AssetID, &a.AssetType, &a.HQLAValue, &a.HQLALevel, &a.IsUnencumbered, &a.Currency); err != nil {
			return nil, fmt.Errorf("scan liquidity asset: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// CashFlows returns the frozen stress-window flows of a snapshot.
func (r *SnapshotRepository) CashFlows(ctx context.Context, snapshotID int64) ([]domain.CashFlow, error) {
	rows, err := r.querier(ctx).Query(ctx, `
		SELECT snapshot_id, flow_type, contractual_amount, run_off_rate,
			inflow_rate, expected_date
		FROM snapshot_cash_flows
		WHERE snapshot_id = $1
		ORDER BY expected_date, flow_type`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("read cash flows for snapshot %d: %w", snapshotID, err)
	}
	defer rows.Close()

	var flows []domain.CashFlow
	for rows.Next() {
		var f domain.CashFlow
		if err := rows.Scan(&f.SnapshotID, &f.FlowType, &f.ContractualAmount, &f.RunOffRate, &f.InflowRate, &f.ExpectedDate); err != nil {
			return nil, fmt.Errorf("scan cash flow: %w", err)
		}
		flows = append(flows, f)
	}
	return flows, rows.Err()
}
