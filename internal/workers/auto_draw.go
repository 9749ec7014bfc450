package workers

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"sorteos-backend/internal/common/auth"
	apperrors "sorteos-backend/internal/common/errors"
	"sorteos-backend/internal/common/logger"
	sorteomodels "sorteos-backend/internal/features/sorteo/models"
	tombolamodels "sorteos-backend/internal/features/tombola/models"
)

const maxConcurrentDraws = 4

type RaffleLister interface {
	List(ctx context.Context, state sorteomodels.RaffleState) ([]sorteomodels.RaffleSummary, error)
}

type FullDrawer interface {
	Run(ctx context.Context, p auth.Principal, raffleID int64) (*tombolamodels.DrawResult, error)
}

// AutoDrawWorker runs the full draw for active raffles whose draw time has
// passed. Raffles that fail with a business error (no prizes, nothing sold)
// are not retried until the process restarts.
type AutoDrawWorker struct {
	raffles  RaffleLister
	drawer   FullDrawer
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	skipped map[int64]struct{}
}

var systemPrincipal = auth.Principal{Name: "auto-draw", Role: auth.RoleAdmin}

func NewAutoDrawWorker(raffles RaffleLister, drawer FullDrawer, interval time.Duration) *AutoDrawWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &AutoDrawWorker{
		raffles:  raffles,
		drawer:   drawer,
		interval: interval,
		now:      time.Now,
		skipped:  make(map[int64]struct{}),
	}
}

func (w *AutoDrawWorker) Start(ctx context.Context) error {
	log := logger.Component("auto_draw")
	log.Info().Dur("interval", w.interval).Msg("Starting auto-draw worker")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Stopping auto-draw worker")
			return nil
		case <-ticker.C:
			if err := w.processDue(ctx); err != nil {
				log.Error().Err(err).Msg("Error processing due raffles")
			}
		}
	}
}

// processDue draws every due raffle, a few at a time.
func (w *AutoDrawWorker) processDue(ctx context.Context) error {
	raffles, err := w.raffles.List(ctx, sorteomodels.RaffleActive)
	if err != nil {
		return err
	}

	now := w.now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentDraws)

	for _, r := range raffles {
		if r.DrawAt.After(now) || w.isSkipped(r.ID) {
			continue
		}
		id := r.ID
		g.Go(func() error {
			w.draw(gctx, id)
			return nil
		})
	}
	return g.Wait()
}

func (w *AutoDrawWorker) draw(ctx context.Context, raffleID int64) {
	res, err := w.drawer.Run(ctx, systemPrincipal, raffleID)
	if err == nil {
		logger.Info().
			Int64("raffle_id", raffleID).
			Int("winners", len(res.Winners)).
			Int("unawarded", len(res.Unawarded)).
			Msg("Raffle drawn automatically")
		return
	}

	appErr, ok := apperrors.AsAppError(err)
	switch {
	case ok && appErr.Code == apperrors.ErrCodeConflict:
		// draw in progress elsewhere; next tick will see the outcome
		logger.Debug().Int64("raffle_id", raffleID).Msg("Auto-draw skipped, raffle locked")
	case ok && !appErr.IsInternal():
		w.skip(raffleID)
		logger.Warn().
			Err(err).
			Int64("raffle_id", raffleID).
			Str("code", string(appErr.Code)).
			Msg("Auto-draw not possible, raffle needs attention")
	default:
		logger.Error().Err(err).Int64("raffle_id", raffleID).Msg("Auto-draw failed")
	}
}

func (w *AutoDrawWorker) isSkipped(id int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.skipped[id]
	return ok
}

func (w *AutoDrawWorker) skip(id int64) {
	w.mu.Lock()
	w.skipped[id] = struct{}{}
	w.mu.Unlock()
}
