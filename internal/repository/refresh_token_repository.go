package repository

import (
	"context"
	"time"

	"app/internal/domain/model"
)

type RefreshTokenRepository interface {
	Create(ctx context.Context, rt model.RefreshToken) error
	FindByTokenHash(ctx context.Context, hash string) (model.RefreshToken, error)
	Revoke(ctx context.Context, id string, at time.Time) error
}
