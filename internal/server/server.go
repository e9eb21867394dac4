package server

import (
	"app/internal/config"
	"app/internal/handler"
	"app/internal/middleware"
	"app/internal/repository"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// 全ルートを登録したechoを組み立てる
func New(
	cfg config.Config,
	logger zerolog.Logger,
	userRepo repository.UserRepository,
	authH *handler.AuthHandler,
	productH *handler.ProductHandler,
	orderH *handler.OrderHandler,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestLogger(logger))

	authH.RegisterRoutes(e, cfg, userRepo)
	productH.RegisterRoutes(e, cfg, userRepo)
	orderH.RegisterRoutes(e, cfg, userRepo)

	return e
}

func Start(e *echo.Echo, addr string) error {
	return e.Start(addr)
}
