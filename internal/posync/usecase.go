package posync

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-inventory-ledger/internal/model"
	"github.com/fekuna/omnipos-inventory-ledger/internal/posync/dto"
)

type UseCase interface {
	SyncApproval(ctx context.Context, poID string, actor model.Actor) (*dto.SyncResult, error)
	SyncReceipt(ctx context.Context, poID string, actor model.Actor) (*dto.SyncResult, error)
	SyncCancellation(ctx context.Context, poID string, actor model.Actor, reason string) (*dto.SyncResult, error)
}

// Locker serialises sync runs for one purchase order across processes.
type Locker interface {
	AcquireLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, value string) error
}
