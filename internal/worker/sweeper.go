package worker

import (
	"context"
	"time"

	repo "app/internal/repository"

	"github.com/rs/zerolog"
)

// 作成から1時間過ぎてもPENDINGのままの注文を定期的に消す。
// PENDINGは在庫を引き当てていないので在庫には触らない
type PendingOrderSweeper struct {
	tx       repo.TransactionManager
	interval time.Duration
	maxAge   time.Duration
	logger   zerolog.Logger
}

func NewPendingOrderSweeper(tx repo.TransactionManager, logger zerolog.Logger) *PendingOrderSweeper {
	return &PendingOrderSweeper{
		tx:       tx,
		interval: 5 * time.Minute,
		maxAge:   time.Hour,
		logger:   logger,
	}
}

// ctxが閉じるまで回り続ける。呼び出し側がgoroutineで起動する
func (s *PendingOrderSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

func (s *PendingOrderSweeper) SweepOnce(ctx context.Context) {
	var deleted int64

	err := s.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		n, err := r.Orders().DeleteStalePending(ctx, time.Now().Add(-s.maxAge))
		if err != nil {
			return err
		}
		deleted = n
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("pending order sweep failed")
		return
	}

	if deleted > 0 {
		s.logger.Info().Int64("deleted", deleted).Msg("stale pending orders removed")
	}
}
