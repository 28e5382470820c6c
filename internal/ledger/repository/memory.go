package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fekuna/omnipos-inventory-ledger/internal/ledger"
	"github.com/fekuna/omnipos-inventory-ledger/internal/ledger/dto"
	"github.com/fekuna/omnipos-inventory-ledger/internal/model"
)

// MemoryRepository is an in-process ledger store. Transactions are fully
// serialised and roll back on error, which gives the same guarantees the
// PostgreSQL store gets from row locks.
type MemoryRepository struct {
	txMu sync.Mutex // held for the whole of RunInTx

	mu       sync.RWMutex // guards the maps below
	stock    map[string]model.StockRecord
	entries  []model.LedgerEntry
	orders   map[string]model.PurchaseOrder
	failures map[string][]error
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		stock:    map[string]model.StockRecord{},
		orders:   map[string]model.PurchaseOrder{},
		failures: map[string][]error{},
	}
}

var _ ledger.Repository = (*MemoryRepository)(nil)

// PutStockRecord seeds or replaces a stock record.
func (r *MemoryRepository) PutStockRecord(rec model.StockRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stock[rec.ProductID] = rec
}

// PutPurchaseOrder seeds or replaces a purchase order with its lines.
func (r *MemoryRepository) PutPurchaseOrder(po model.PurchaseOrder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if po.FulfillmentState == "" {
		po.FulfillmentState = model.FulfillmentNone
	}
	po.Lines = append([]model.PurchaseOrderLine(nil), po.Lines...)
	r.orders[po.ID] = po
}

func (r *MemoryRepository) PurchaseOrder(id string) (model.PurchaseOrder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	po, ok := r.orders[id]
	return po, ok
}

// Entries returns a copy of every ledger entry in write order.
func (r *MemoryRepository) Entries() []model.LedgerEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.LedgerEntry(nil), r.entries...)
}

// FailNext makes the next call of the named Tx operation return err.
// Calls queue up, so FailNext twice fails the next two calls.
func (r *MemoryRepository) FailNext(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[op] = append(r.failures[op], err)
}

func (r *MemoryRepository) RunInTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.RLock()
	snapStock := make(map[string]model.StockRecord, len(r.stock))
	for k, v := range r.stock {
		snapStock[k] = v
	}
	snapEntries := append([]model.LedgerEntry(nil), r.entries...)
	snapOrders := make(map[string]model.PurchaseOrder, len(r.orders))
	for k, v := range r.orders {
		snapOrders[k] = v
	}
	r.mu.RUnlock()

	if err := fn(ctx, &memoryTx{r: r}); err != nil {
		r.mu.Lock()
		r.stock, r.entries, r.orders = snapStock, snapEntries, snapOrders
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *MemoryRepository) GetStockRecord(ctx context.Context, productID string) (*model.StockRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.stock[productID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r *MemoryRepository) CreateStockRecord(ctx context.Context, rec *model.StockRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stock[rec.ProductID]; ok {
		return false, nil
	}
	r.stock[rec.ProductID] = *rec
	return true, nil
}

func (r *MemoryRepository) ListStockRecords(ctx context.Context, f *dto.StockFilters) ([]model.StockRecord, int, error) {
	r.mu.RLock()
	var items []model.StockRecord
	for _, rec := range r.stock {
		if f.TenantID != "" && rec.TenantID != f.TenantID {
			continue
		}
		if f.LowStock && (rec.LowThreshold <= 0 || rec.OnHand-rec.Allocated > rec.LowThreshold) {
			continue
		}
		items = append(items, rec)
	}
	r.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if !items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
			return items[i].UpdatedAt.After(items[j].UpdatedAt)
		}
		return items[i].ProductID < items[j].ProductID
	})
	return page(items, f.Page, f.PageSize), len(items), nil
}

func (r *MemoryRepository) ListAlertCandidates(ctx context.Context, checkedBefore time.Time, limit int) ([]model.StockRecord, error) {
	r.mu.RLock()
	var items []model.StockRecord
	for _, rec := range r.stock {
		if !rec.AlertsEnabled {
			continue
		}
		if rec.LastCheckedAt != nil && !rec.LastCheckedAt.Before(checkedBefore) {
			continue
		}
		items = append(items, rec)
	}
	r.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		a, b := items[i].LastCheckedAt, items[j].LastCheckedAt
		switch {
		case a == nil && b == nil:
			return items[i].ProductID < items[j].ProductID
		case a == nil:
			return true
		case b == nil:
			return false
		}
		return a.Before(*b)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (r *MemoryRepository) TouchLastChecked(ctx context.Context, productID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.stock[productID]; ok {
		rec.LastCheckedAt = &at
		r.stock[productID] = rec
	}
	return nil
}

func (r *MemoryRepository) ListEntries(ctx context.Context, f *dto.EntryFilters) ([]model.LedgerEntry, int, error) {
	r.mu.RLock()
	var items []model.LedgerEntry
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if !matchEntry(&e, f) {
			continue
		}
		items = append(items, e)
	}
	r.mu.RUnlock()
	return page(items, f.Page, f.PageSize), len(items), nil
}

func matchEntry(e *model.LedgerEntry, f *dto.EntryFilters) bool {
	eq := func(want, got string) bool { return want == "" || want == got }
	if !eq(f.TenantID, e.TenantID) || !eq(f.ProductID, e.ProductID) ||
		!eq(f.TransactionType, string(e.TransactionType)) || !eq(f.SourceType, string(e.SourceType)) ||
		!eq(f.SourceID, e.SourceID) || !eq(f.ReferenceNumber, e.ReferenceNumber) ||
		!eq(f.Status, string(e.Status)) {
		return false
	}
	if f.StartDate != nil && e.OccurredAt.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && !e.OccurredAt.Before(*f.EndDate) {
		return false
	}
	return true
}

func page[T any](items []T, page, pageSize int) []T {
	if pageSize <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []T{}
	}
	end := min(start+pageSize, len(items))
	return items[start:end]
}

type memoryTx struct {
	r *MemoryRepository
}

func (t *memoryTx) fail(op string) error {
	q := t.r.failures[op]
	if len(q) == 0 {
		return nil
	}
	t.r.failures[op] = q[1:]
	return q[0]
}

func (t *memoryTx) LockStockRecord(ctx context.Context, productID string) (*model.StockRecord, error) {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	if err := t.fail("LockStockRecord"); err != nil {
		return nil, err
	}
	rec, ok := t.r.stock[productID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (t *memoryTx) UpdateStockRecord(ctx context.Context, rec *model.StockRecord) error {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	if err := t.fail("UpdateStockRecord"); err != nil {
		return err
	}
	rec.Version++
	t.r.stock[rec.ProductID] = *rec
	return nil
}

func (t *memoryTx) InsertEntry(ctx context.Context, e *model.LedgerEntry) error {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	if err := t.fail("InsertEntry"); err != nil {
		return err
	}
	t.r.entries = append(t.r.entries, *e)
	return nil
}

func (t *memoryTx) ListSourceEntries(ctx context.Context, sourceType model.SourceType, sourceID, productID string) ([]model.LedgerEntry, error) {
	t.r.mu.RLock()
	defer t.r.mu.RUnlock()
	var items []model.LedgerEntry
	for _, e := range t.r.entries {
		if e.SourceType != sourceType || e.SourceID != sourceID {
			continue
		}
		if productID != "" && e.ProductID != productID {
			continue
		}
		items = append(items, e)
	}
	return items, nil
}

func (t *memoryTx) UpdateEntryStatus(ctx context.Context, u *dto.StatusUpdate) (int64, error) {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	if err := t.fail("UpdateEntryStatus"); err != nil {
		return 0, err
	}
	var n int64
	for i := range t.r.entries {
		e := &t.r.entries[i]
		if string(e.SourceType) != u.SourceType || e.SourceID != u.SourceID || string(e.Status) != u.From {
			continue
		}
		if u.ProductID != "" && e.ProductID != u.ProductID {
			continue
		}
		if u.SourceLineID != "" && (e.SourceLineID == nil || *e.SourceLineID != u.SourceLineID) {
			continue
		}
		if u.TransactionType != "" && string(e.TransactionType) != u.TransactionType {
			continue
		}
		e.Status = model.EntryStatus(u.To)
		n++
	}
	return n, nil
}

func (t *memoryTx) GetPurchaseOrder(ctx context.Context, id string) (*model.PurchaseOrder, error) {
	t.r.mu.RLock()
	defer t.r.mu.RUnlock()
	po, ok := t.r.orders[id]
	if !ok {
		return nil, nil
	}
	po.Lines = append([]model.PurchaseOrderLine(nil), po.Lines...)
	return &po, nil
}

func (t *memoryTx) SetFulfillmentState(ctx context.Context, poID string, state model.FulfillmentState) error {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	if err := t.fail("SetFulfillmentState"); err != nil {
		return err
	}
	po, ok := t.r.orders[poID]
	if !ok {
		return nil
	}
	po.FulfillmentState = state
	t.r.orders[poID] = po
	return nil
}
