package adjustment

import (
	"context"

	"github.com/fekuna/omnipos-inventory-ledger/internal/adjustment/dto"
	"github.com/fekuna/omnipos-inventory-ledger/internal/model"
)

type UseCase interface {
	AdjustOne(ctx context.Context, input *dto.AdjustOneInput) (*model.LedgerEntry, error)
	AdjustBulk(ctx context.Context, input *dto.AdjustBulkInput) (*dto.BulkResult, error)
}
