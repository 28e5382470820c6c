package repository

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-inventory-ledger/internal/outbound"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

var _ outbound.CalendarEvents = (*PGRepository)(nil)

// Schedule creates the event or moves it to the new date.
func (r *PGRepository) Schedule(ctx context.Context, e outbound.CalendarEntity, date time.Time) error {
	_, err := r.DB.ExecContext(ctx, `
        INSERT INTO po_calendar_events (id, tenant_id, kind, entity_id, title, event_date, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, 'scheduled', now(), now())
        ON CONFLICT (kind, entity_id)
        DO UPDATE SET event_date = EXCLUDED.event_date, title = EXCLUDED.title, status = 'scheduled', updated_at = now()
    `, uuid.New().String(), e.TenantID, e.Kind, e.EntityID, e.Title, date)
	return err
}

func (r *PGRepository) Complete(ctx context.Context, e outbound.CalendarEntity) error {
	_, err := r.DB.ExecContext(ctx, `
        UPDATE po_calendar_events SET status = 'completed', updated_at = now()
        WHERE kind = $1 AND entity_id = $2
    `, e.Kind, e.EntityID)
	return err
}

func (r *PGRepository) Cancel(ctx context.Context, e outbound.CalendarEntity) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM po_calendar_events WHERE kind = $1 AND entity_id = $2`, e.Kind, e.EntityID)
	return err
}
