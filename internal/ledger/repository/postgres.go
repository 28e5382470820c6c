package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-inventory-ledger/internal/ledger"
	"github.com/fekuna/omnipos-inventory-ledger/internal/ledger/dto"
	"github.com/fekuna/omnipos-inventory-ledger/internal/model"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

var _ ledger.Repository = (*PGRepository)(nil)

func (r *PGRepository) RunInTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	tx, err := r.DB.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return mapError(err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	return mapError(tx.Commit())
}

func (r *PGRepository) GetStockRecord(ctx context.Context, productID string) (*model.StockRecord, error) {
	var rec model.StockRecord
	err := r.DB.GetContext(ctx, &rec, `SELECT * FROM stock_records WHERE product_id = $1`, productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *PGRepository) CreateStockRecord(ctx context.Context, rec *model.StockRecord) (bool, error) {
	query := `
        INSERT INTO stock_records (
            product_id, tenant_id, sku, on_hand, allocated, inbound,
            low_threshold, critical_threshold, max_threshold, alerts_enabled,
            version, created_at, updated_at
        )
        VALUES (
            :product_id, :tenant_id, :sku, :on_hand, :allocated, :inbound,
            :low_threshold, :critical_threshold, :max_threshold, :alerts_enabled,
            :version, :created_at, :updated_at
        )
        ON CONFLICT (product_id) DO NOTHING
    `
	res, err := r.DB.NamedExecContext(ctx, query, rec)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PGRepository) ListStockRecords(ctx context.Context, f *dto.StockFilters) ([]model.StockRecord, int, error) {
	var items []model.StockRecord

	conditions := []string{}
	args := map[string]interface{}{}

	if f.TenantID != "" {
		conditions = append(conditions, "tenant_id = :tenant_id")
		args["tenant_id"] = f.TenantID
	}
	if f.LowStock {
		conditions = append(conditions, "(on_hand - allocated) <= low_threshold AND low_threshold > 0")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	count, err := r.count(ctx, "SELECT count(*) FROM stock_records"+whereClause, args)
	if err != nil {
		return nil, 0, err
	}

	query := "SELECT * FROM stock_records" + whereClause + " ORDER BY updated_at DESC" + paginate(f.Page, f.PageSize)
	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer nstmt.Close()

	err = nstmt.SelectContext(ctx, &items, args)
	return items, count, err
}

func (r *PGRepository) ListAlertCandidates(ctx context.Context, checkedBefore time.Time, limit int) ([]model.StockRecord, error) {
	var items []model.StockRecord
	err := r.DB.SelectContext(ctx, &items, `
        SELECT * FROM stock_records
        WHERE alerts_enabled AND (last_checked_at IS NULL OR last_checked_at < $1)
        ORDER BY last_checked_at ASC NULLS FIRST
        LIMIT $2
    `, checkedBefore, limit)
	return items, err
}

func (r *PGRepository) TouchLastChecked(ctx context.Context, productID string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE stock_records SET last_checked_at = $2 WHERE product_id = $1`, productID, at)
	return err
}

func (r *PGRepository) ListEntries(ctx context.Context, f *dto.EntryFilters) ([]model.LedgerEntry, int, error) {
	var items []model.LedgerEntry

	conditions := []string{}
	args := map[string]interface{}{}

	addEq := func(column, value string) {
		if value != "" {
			conditions = append(conditions, fmt.Sprintf("%s = :%s", column, column))
			args[column] = value
		}
	}
	addEq("tenant_id", f.TenantID)
	addEq("product_id", f.ProductID)
	addEq("transaction_type", f.TransactionType)
	addEq("source_type", f.SourceType)
	addEq("source_id", f.SourceID)
	addEq("reference_number", f.ReferenceNumber)
	addEq("status", f.Status)
	if f.StartDate != nil {
		conditions = append(conditions, "occurred_at >= :start_date")
		args["start_date"] = *f.StartDate
	}
	if f.EndDate != nil {
		conditions = append(conditions, "occurred_at < :end_date")
		args["end_date"] = *f.EndDate
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	count, err := r.count(ctx, "SELECT count(*) FROM ledger_entries"+whereClause, args)
	if err != nil {
		return nil, 0, err
	}

	query := "SELECT * FROM ledger_entries" + whereClause + " ORDER BY occurred_at DESC, id" + paginate(f.Page, f.PageSize)
	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer nstmt.Close()

	err = nstmt.SelectContext(ctx, &items, args)
	return items, count, err
}

func (r *PGRepository) count(ctx context.Context, query string, args map[string]interface{}) (int, error) {
	var count int
	rows, err := r.DB.NamedQueryContext(ctx, query, args)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, err
		}
	}
	return count, rows.Err()
}

func paginate(page, pageSize int) string {
	if pageSize <= 0 {
		return ""
	}
	if page < 1 {
		page = 1
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)
}

type pgTx struct {
	tx *sqlx.Tx
}

func (t *pgTx) LockStockRecord(ctx context.Context, productID string) (*model.StockRecord, error) {
	var rec model.StockRecord
	err := t.tx.GetContext(ctx, &rec, `SELECT * FROM stock_records WHERE product_id = $1 FOR UPDATE`, productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, mapError(err)
	}
	return &rec, nil
}

func (t *pgTx) UpdateStockRecord(ctx context.Context, rec *model.StockRecord) error {
	// The row is locked by LockStockRecord, the version check only guards
	// against callers that skipped it.
	res, err := t.tx.NamedExecContext(ctx, `
        UPDATE stock_records
        SET on_hand = :on_hand, inbound = :inbound, version = version + 1, updated_at = :updated_at
        WHERE product_id = :product_id AND version = :version
    `, rec)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: stock record %s changed underneath", ledger.ErrConflict, rec.ProductID)
	}
	rec.Version++
	return nil
}

func (t *pgTx) InsertEntry(ctx context.Context, e *model.LedgerEntry) error {
	query := `
        INSERT INTO ledger_entries (
            id, tenant_id, product_id, sku, transaction_type, occurred_at,
            source_type, source_id, source_line_id, reference_number, reason,
            quantity_change, inbound_change,
            on_hand_before, on_hand_after, allocated_before, allocated_after,
            inbound_before, inbound_after, status, notes, created_by, created_at
        )
        VALUES (
            :id, :tenant_id, :product_id, :sku, :transaction_type, :occurred_at,
            :source_type, :source_id, :source_line_id, :reference_number, :reason,
            :quantity_change, :inbound_change,
            :on_hand_before, :on_hand_after, :allocated_before, :allocated_after,
            :inbound_before, :inbound_after, :status, :notes, :created_by, :created_at
        )
    `
	_, err := t.tx.NamedExecContext(ctx, query, e)
	return mapError(err)
}

func (t *pgTx) ListSourceEntries(ctx context.Context, sourceType model.SourceType, sourceID, productID string) ([]model.LedgerEntry, error) {
	var items []model.LedgerEntry
	query := `SELECT * FROM ledger_entries WHERE source_type = $1 AND source_id = $2`
	args := []interface{}{sourceType, sourceID}
	if productID != "" {
		query += ` AND product_id = $3`
		args = append(args, productID)
	}
	query += ` ORDER BY occurred_at, id`

	if err := t.tx.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, mapError(err)
	}
	return items, nil
}

func (t *pgTx) UpdateEntryStatus(ctx context.Context, u *dto.StatusUpdate) (int64, error) {
	query := `UPDATE ledger_entries SET status = $1 WHERE source_type = $2 AND source_id = $3 AND status = $4`
	args := []interface{}{u.To, u.SourceType, u.SourceID, u.From}
	if u.ProductID != "" {
		args = append(args, u.ProductID)
		query += fmt.Sprintf(" AND product_id = $%d", len(args))
	}
	if u.SourceLineID != "" {
		args = append(args, u.SourceLineID)
		query += fmt.Sprintf(" AND source_line_id = $%d", len(args))
	}
	if u.TransactionType != "" {
		args = append(args, u.TransactionType)
		query += fmt.Sprintf(" AND transaction_type = $%d", len(args))
	}

	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapError(err)
	}
	return res.RowsAffected()
}

func (t *pgTx) GetPurchaseOrder(ctx context.Context, id string) (*model.PurchaseOrder, error) {
	var po model.PurchaseOrder
	err := t.tx.GetContext(ctx, &po, `SELECT * FROM purchase_orders WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, mapError(err)
	}

	err = t.tx.SelectContext(ctx, &po.Lines, `
        SELECT * FROM purchase_order_lines WHERE purchase_order_id = $1 ORDER BY id
    `, id)
	if err != nil {
		return nil, mapError(err)
	}
	return &po, nil
}

func (t *pgTx) SetFulfillmentState(ctx context.Context, poID string, state model.FulfillmentState) error {
	_, err := t.tx.ExecContext(ctx, `
        UPDATE purchase_orders SET fulfillment_state = $2, updated_at = now() WHERE id = $1
    `, poID, state)
	return mapError(err)
}

// mapError turns postgres serialization and deadlock failures into
// ledger.ErrConflict so the writer can retry them.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected) {
		return fmt.Errorf("%w: %s", ledger.ErrConflict, pgErr.Message)
	}
	return err
}
