package threshold

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-inventory-ledger/internal/ledger"
	"github.com/fekuna/omnipos-inventory-ledger/internal/outbound"
	"github.com/fekuna/omnipos-inventory-ledger/pkg/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper periodically re-evaluates alert-enabled stock records that have
// not been checked recently, catching changes that never went through a
// mutation (threshold edits, allocation changes).
type Sweeper struct {
	repo      ledger.Repository
	effects   *outbound.Effects
	logger    logger.ZapLogger
	staleness time.Duration
	batchSize int
	now       func() time.Time
}

func NewSweeper(repo ledger.Repository, effects *outbound.Effects, staleness time.Duration, batchSize int, log logger.ZapLogger) *Sweeper {
	return &Sweeper{
		repo:      repo,
		effects:   effects,
		logger:    log,
		staleness: staleness,
		batchSize: batchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Sweep queues one evaluation per stale record and returns how many it queued.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	candidates, err := s.repo.ListAlertCandidates(ctx, s.now().Add(-s.staleness), s.batchSize)
	if err != nil {
		return 0, err
	}
	for _, rec := range candidates {
		s.effects.EvaluateAsync(rec.ProductID)
	}
	return len(candidates), nil
}

// Schedule registers the sweep on c under the given cron spec.
func (s *Sweeper) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		n, err := s.Sweep(ctx)
		if err != nil {
			s.logger.Error("threshold sweep failed", zap.Error(err))
			return
		}
		if n > 0 {
			s.logger.Info("threshold sweep queued evaluations", zap.Int("count", n))
		}
	})
}
