package main

import (
	"context"
	"os"
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/handler"
	"app/internal/infra/cache"
	"app/internal/infra/db"
	"app/internal/infra/eventing"
	infraRepo "app/internal/infra/repository"
	"app/internal/server"
	"app/internal/usecase"
	"app/internal/worker"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

type jwtIssuer struct {
	secret    []byte
	accessTTL time.Duration
}

// subはemail。middleware側も同じ前提で読む
func (i *jwtIssuer) Issue(email string, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(i.accessTTL)

	claims := jwt.MapClaims{
		"sub": email,
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

func main() {
	//.envは無くてもよい（本番は環境変数で渡す）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.GoEnv == "dev" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	//DB接続
	gormDB, err := db.Connect()
	if err != nil {
		panic(err)
	}
	if err := gormDB.AutoMigrate(
		&model.User{},
		&model.RefreshToken{},
		&model.Product{},
		&model.Order{},
		&model.Item{},
		&model.StockMovement{},
		&model.AuditLog{},
	); err != nil {
		panic(err)
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	rtRepo := infraRepo.NewRefreshTokenGormRepository(gormDB)
	txManager := infraRepo.NewTxManagerGorm(gormDB)

	//tracking照会キャッシュと注文イベント
	orderCache := cache.NewOrderRedisCache(cfg.RedisAddr, logger)
	defer orderCache.Close()

	publisher := eventing.NewKafkaPublisher(cfg.KafkaBrokers, logger)
	defer publisher.Close()

	//usecaseに渡す部品
	idGen := &uuidGenerator{}
	clock := &realClock{}
	issuer := &jwtIssuer{
		secret:    []byte(cfg.JWTSecret),
		accessTTL: 2 * time.Hour,
	}
	refreshTTL := 14 * 24 * time.Hour

	//Usecase生成
	authUC := usecase.NewAuthUsecase(userRepo, rtRepo, issuer, idGen, clock, cfg.BcryptCost, refreshTTL)
	priceSync := usecase.NewPriceSync(logger)
	productUC := usecase.NewProductUsecase(txManager, priceSync)
	orderUC := usecase.NewOrderUsecase(txManager, orderCache, publisher, logger)
	statusUC := usecase.NewOrderStatusUsecase(txManager, orderCache, publisher, logger)

	//Handler生成
	authH := handler.NewAuthHandler(authUC)
	productH := handler.NewProductHandler(productUC)
	orderH := handler.NewOrderHandler(orderUC, statusUC)

	//古いPENDING注文の掃除役
	sweeper := worker.NewPendingOrderSweeper(txManager, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweeper.Run(ctx)

	//Server起動
	e := server.New(cfg, logger, userRepo, authH, productH, orderH)
	if err := server.Start(e, ":"+cfg.Port); err != nil {
		panic(err)
	}
}
