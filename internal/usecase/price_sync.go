package usecase

import (
	"context"

	"github.com/rs/zerolog"

	repo "app/internal/repository"
)

// PriceSync は商品価格の変更をPENDING注文へ伝播する。
// 商品更新と同じトランザクションの中から明示的に呼ばれる。
// ORMのフックではなく呼び出しとして見えるようにしてある
type PriceSync struct {
	logger zerolog.Logger
}

func NewPriceSync(logger zerolog.Logger) *PriceSync {
	return &PriceSync{logger: logger}
}

// 該当商品を参照するPENDING注文の明細スナップショットと合計を書き換える。
// PENDING以外の注文のスナップショットには触らない。
// 合計の調整は明細に残っている旧スナップショットから差分を計算するので、
// 注文合計→明細の順で更新する
func (s *PriceSync) Apply(ctx context.Context, r repo.TxRepos, productID int64, newPrice float64) error {
	if err := r.Orders().AdjustPendingTotals(ctx, productID, newPrice); err != nil {
		return err
	}

	n, err := r.Items().RepriceForPendingOrders(ctx, productID, newPrice)
	if err != nil {
		return err
	}

	if n > 0 {
		s.logger.Info().
			Int64("product_id", productID).
			Float64("new_price", newPrice).
			Int64("items", n).
			Msg("price change propagated to pending orders")
	}
	return nil
}
