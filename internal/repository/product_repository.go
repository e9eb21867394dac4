package repository

import (
	"app/internal/domain/model"
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

// コミット時の整合性違反など。リトライ可能
var ErrConflict = errors.New("conflict")

// 商品の永続化（保存・取得）だけを約束。
type ProductRepository interface {
	List(ctx context.Context, page int, limit int) ([]model.Product, int64, error)
	FindByID(ctx context.Context, id int64) (model.Product, error)

	//名前の重複チェック。excludeIDは更新時に自分自身を除外する
	ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error)

	Create(ctx context.Context, p model.Product) (model.Product, error)
	Update(ctx context.Context, p model.Product) error

	//他から参照されているとErrConflict
	Delete(ctx context.Context, id int64) error
}
