package usecase

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

// JWTを発行する約束
type AccessTokenIssuer interface {
	Issue(email string, now time.Time) (token string, expiresAt time.Time, err error)
}

// IDを生成する約束（refresh tokenの主キー）
type IDGenerator interface {
	NewID() string
}

// 現在時刻を返す約束
type Clock interface {
	Now() time.Time
}

type AuthUsecase struct {
	users      repo.UserRepository
	rtRepo     repo.RefreshTokenRepository
	issuer     AccessTokenIssuer
	idGen      IDGenerator
	clock      Clock
	bcryptCost int
	refreshTTL time.Duration
}

func NewAuthUsecase(
	users repo.UserRepository,
	rtRepo repo.RefreshTokenRepository,
	issuer AccessTokenIssuer,
	idGen IDGenerator,
	clock Clock,
	bcryptCost int,
	refreshTTL time.Duration,
) *AuthUsecase {
	return &AuthUsecase{
		users:      users,
		rtRepo:     rtRepo,
		issuer:     issuer,
		idGen:      idGen,
		clock:      clock,
		bcryptCost: bcryptCost,
		refreshTTL: refreshTTL,
	}
}

type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type UserOutput struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Active   bool   `json:"active"`
	IsAdmin  bool   `json:"is_admin"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenPairOutput struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// 会員登録
func (u *AuthUsecase) Register(ctx context.Context, in RegisterInput) (UserOutput, error) {
	email := strings.TrimSpace(in.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return UserOutput{}, &ValidationError{Errors: []string{"email is invalid."}}
	}
	if len(in.Password) < 8 {
		return UserOutput{}, &ValidationError{Errors: []string{"password must be at least 8 characters."}}
	}

	exists, err := u.users.ExistsByEmail(ctx, email)
	if err != nil {
		return UserOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if exists {
		return UserOutput{}, NewHTTPError(http.StatusBadRequest, fmt.Sprintf("User with email %s already exists.", email))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), u.bcryptCost)
	if err != nil {
		return UserOutput{}, NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	user := &model.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(in.FullName),
		Active:       true,
	}
	if err := u.users.Create(ctx, user); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return UserOutput{}, NewHTTPError(http.StatusBadRequest, fmt.Sprintf("User with email %s already exists.", email))
		}
		return UserOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return toUserOutput(*user), nil
}

// ログイン。access/refresh両トークンを返す。
// 認証失敗は存在の有無を漏らさないよう同じ404にする
func (u *AuthUsecase) Login(ctx context.Context, in LoginInput) (TokenPairOutput, error) {
	invalid := NewHTTPError(http.StatusNotFound, "email or password is invalid!")

	user, err := u.users.FindByEmail(ctx, strings.TrimSpace(in.Email))
	if errors.Is(err, repo.ErrNotFound) {
		return TokenPairOutput{}, invalid
	}
	if err != nil {
		return TokenPairOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !user.Active {
		return TokenPairOutput{}, invalid
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return TokenPairOutput{}, invalid
	}

	return u.issuePair(ctx, user)
}

// refresh tokenの使い回しを防ぐため、使ったら失効して新しい組を発行する
func (u *AuthUsecase) Refresh(ctx context.Context, refreshToken string) (TokenPairOutput, error) {
	unauthorized := NewHTTPError(http.StatusUnauthorized, "unauthorized")

	if strings.TrimSpace(refreshToken) == "" {
		return TokenPairOutput{}, unauthorized
	}

	hash := sha256.Sum256([]byte(refreshToken))
	rt, err := u.rtRepo.FindByTokenHash(ctx, hex.EncodeToString(hash[:]))
	if errors.Is(err, repo.ErrNotFound) {
		return TokenPairOutput{}, unauthorized
	}
	if err != nil {
		return TokenPairOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	now := u.clock.Now()
	if rt.RevokedAt != nil || now.After(rt.ExpiresAt) {
		return TokenPairOutput{}, unauthorized
	}

	user, err := u.users.FindByID(ctx, rt.UserID)
	if errors.Is(err, repo.ErrNotFound) {
		return TokenPairOutput{}, unauthorized
	}
	if err != nil {
		return TokenPairOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !user.Active {
		return TokenPairOutput{}, unauthorized
	}

	if err := u.rtRepo.Revoke(ctx, rt.ID, now); err != nil {
		return TokenPairOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.issuePair(ctx, user)
}

// ログイン中ユーザー自身の情報
func (u *AuthUsecase) Me(ctx context.Context, userID int64) (UserOutput, error) {
	user, err := u.users.FindByID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return UserOutput{}, NewHTTPError(http.StatusNotFound, "No exists this user!")
	}
	if err != nil {
		return UserOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return toUserOutput(user), nil
}

func (u *AuthUsecase) issuePair(ctx context.Context, user model.User) (TokenPairOutput, error) {
	now := u.clock.Now()

	access, _, err := u.issuer.Issue(user.Email, now)
	if err != nil {
		return TokenPairOutput{}, NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	plainRefresh, err := generateSecureToken(32)
	if err != nil {
		return TokenPairOutput{}, NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	hash := sha256.Sum256([]byte(plainRefresh))

	if err := u.rtRepo.Create(ctx, model.RefreshToken{
		ID:        u.idGen.NewID(),
		UserID:    user.ID,
		TokenHash: hex.EncodeToString(hash[:]),
		ExpiresAt: now.Add(u.refreshTTL),
	}); err != nil {
		return TokenPairOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return TokenPairOutput{
		AccessToken:  access,
		RefreshToken: plainRefresh,
	}, nil
}

func toUserOutput(u model.User) UserOutput {
	return UserOutput{
		ID:       u.ID,
		Email:    u.Email,
		FullName: u.FullName,
		Active:   u.Active,
		IsAdmin:  u.IsAdmin,
	}
}

func generateSecureToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
