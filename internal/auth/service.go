// Package auth はメールアドレスとパスワードによる認証とセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/moviediscovery/internal/metrics"
	"github.com/hitoshi/moviediscovery/internal/model"
	"github.com/hitoshi/moviediscovery/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength はパスワードの最小文字数。
	MinPasswordLength = 6
	// MaxPasswordBytes はbcryptでハッシュ可能なパスワードの最大バイト数。
	MaxPasswordBytes = 72

	attemptSignUp = "signup"
	attemptSignIn = "signin"
)

// emailPattern は登録・ログインで受け付けるメールアドレスの形式。
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Recorder は認証試行の結果を記録するインターフェース。
type Recorder interface {
	RecordAuthAttempt(kind, result string)
}

type noopRecorder struct{}

func (noopRecorder) RecordAuthAttempt(string, string) {}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
	BcryptCost    int // 0の場合はbcrypt.DefaultCost
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	recorder    Recorder
	config      ServiceConfig
}

// NewService はServiceを生成する。recorderがnilの場合は記録しない。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	recorder Recorder,
	config ServiceConfig,
) *Service {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		recorder:    recorder,
		config:      config,
	}
}

// SignUp はユーザーを登録し、セッションを発行する。
// 入力チェックは 未入力 → メール形式 → 確認用パスワード → パスワード長 の順に行う。
func (s *Service) SignUp(ctx context.Context, email, password, confirmation string) (*model.Session, error) {
	session, err := s.signUp(ctx, email, password, confirmation)
	s.recordAttempt(attemptSignUp, err)
	return session, err
}

func (s *Service) signUp(ctx context.Context, email, password, confirmation string) (*model.Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, model.NewMissingCredentialsError()
	}
	if !emailPattern.MatchString(email) {
		return nil, model.NewInvalidEmailError()
	}
	if password != confirmation {
		return nil, model.NewPasswordMismatchError()
	}
	if len([]rune(password)) < MinPasswordLength {
		return nil, model.NewWeakPasswordError(MinPasswordLength)
	}
	if len(password) > MaxPasswordBytes {
		return nil, model.NewPasswordTooLongError(MaxPasswordBytes)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewEmailAlreadyInUseError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("new user created",
		slog.String("user_id", user.ID),
	)

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		// ユーザーは作成済みなので、再サインアップはEMAIL_ALREADY_IN_USEになる
		return nil, fmt.Errorf("%w: %w", model.NewSignInRequiredError(), err)
	}
	return session, nil
}

// SignIn はメールアドレスとパスワードを検証し、セッションを発行する。
// ユーザー未登録とパスワード不一致は別のコードで返すが、表示メッセージは共通。
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	session, err := s.signIn(ctx, email, password)
	s.recordAttempt(attemptSignIn, err)
	return session, err
}

func (s *Service) signIn(ctx context.Context, email, password string) (*model.Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, model.NewMissingCredentialsError()
	}
	if !emailPattern.MatchString(email) {
		return nil, model.NewInvalidEmailError()
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, model.NewWrongPasswordError()
		}
		slog.Error("failed to verify password hash",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewAuthFailedError()
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user signed in", slog.String("user_id", user.ID))
	return session, nil
}

// SignOut はセッションを破棄する。
// セッションIDが空の場合は何もしない。
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user signed out")
	return nil
}

// FindSession は有効なセッションを返す。存在しないか期限切れの場合はnilを返す。
func (s *Service) FindSession(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, nil
	}
	return s.sessionRepo.FindByID(ctx, sessionID)
}

// CurrentUser はセッションから現在のユーザーを取得する。
// セッションが無効な場合はNOT_AUTHENTICATEDを返す。
func (s *Service) CurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	session, err := s.FindSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, model.NewNotAuthenticatedError()
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewNotAuthenticatedError()
	}

	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

func (s *Service) recordAttempt(kind string, err error) {
	if err != nil {
		s.recorder.RecordAuthAttempt(kind, metrics.ResultFailure)
		return
	}
	s.recorder.RecordAuthAttempt(kind, metrics.ResultSuccess)
}

// normalizeEmail は前後の空白を除去し小文字化する。
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
