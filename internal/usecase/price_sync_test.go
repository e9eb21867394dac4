package usecase_test

import (
	"context"
	"errors"
	"testing"

	"app/internal/usecase"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestPriceSync_Apply_AdjustsTotalsBeforeReprice(t *testing.T) {
	ctx := context.Background()
	repos := newTxRepos()
	sync := usecase.NewPriceSync(zerolog.Nop())

	//合計調整は旧スナップショットから差分を取るので先に走ること
	var calls []string
	repos.orders.On("AdjustPendingTotals", mock.Anything, int64(5), 120.0).Run(func(args mock.Arguments) {
		calls = append(calls, "totals")
	}).Return(nil)
	repos.items.On("RepriceForPendingOrders", mock.Anything, int64(5), 120.0).Run(func(args mock.Arguments) {
		calls = append(calls, "items")
	}).Return(int64(3), nil)

	err := sync.Apply(ctx, repos, 5, 120.0)
	assert.NoError(t, err)
	assert.Equal(t, []string{"totals", "items"}, calls)
}

func TestPriceSync_Apply_StopsOnTotalsError(t *testing.T) {
	ctx := context.Background()
	repos := newTxRepos()
	sync := usecase.NewPriceSync(zerolog.Nop())

	repos.orders.On("AdjustPendingTotals", mock.Anything, int64(5), 120.0).Return(errors.New("db down"))

	err := sync.Apply(ctx, repos, 5, 120.0)
	assert.Error(t, err)
	repos.items.AssertNotCalled(t, "RepriceForPendingOrders", mock.Anything, mock.Anything, mock.Anything)
}
