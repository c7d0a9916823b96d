// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, favorite, catalog, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeNotAuthenticated   = "NOT_AUTHENTICATED"
	ErrCodeMissingCredentials = "MISSING_CREDENTIALS"
	ErrCodeInvalidEmail       = "INVALID_EMAIL"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeWrongPassword      = "WRONG_PASSWORD"
	ErrCodeEmailAlreadyInUse  = "EMAIL_ALREADY_IN_USE"
	ErrCodeWeakPassword       = "WEAK_PASSWORD"
	ErrCodePasswordMismatch   = "PASSWORD_MISMATCH"
	ErrCodePasswordTooLong    = "PASSWORD_TOO_LONG"
	ErrCodeAuthFailed         = "AUTH_FAILED"
	ErrCodeSignInRequired     = "ACCOUNT_CREATED_SIGN_IN_REQUIRED"
	ErrCodeInvalidMovie       = "INVALID_MOVIE"
	ErrCodeMovieNotFound      = "MOVIE_NOT_FOUND"
	ErrCodeCatalogUnavailable = "CATALOG_UNAVAILABLE"
	ErrCodeInvalidPage        = "INVALID_PAGE"
)

// invalidCredentialsMessage はユーザー未登録とパスワード不一致で共通の表示メッセージ。
// どちらが原因かを利用者に区別させない。
const invalidCredentialsMessage = "Invalid email or password"

// NewNotAuthenticatedError はセッションがない状態で書き込み操作を行った場合のエラーを生成する。
func NewNotAuthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAuthenticated,
		Message:  "Sign in is required for this operation",
		Category: "auth",
		Action:   "Sign in and try again.",
	}
}

// NewMissingCredentialsError はメールアドレスまたはパスワードが未入力の場合のエラーを生成する。
func NewMissingCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingCredentials,
		Message:  "Please enter both email and password",
		Category: "validation",
		Action:   "Fill in both the email and the password fields.",
	}
}

// NewInvalidEmailError はメールアドレス形式が不正な場合のエラーを生成する。
func NewInvalidEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Message:  "Invalid email address",
		Category: "validation",
		Action:   "Enter an address of the form name@example.com.",
	}
}

// NewUserNotFoundError はメールアドレスに対応するユーザーが存在しない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  invalidCredentialsMessage,
		Category: "auth",
		Action:   "Check your email and password, or create an account.",
	}
}

// NewWrongPasswordError はパスワードが一致しない場合のエラーを生成する。
func NewWrongPasswordError() *APIError {
	return &APIError{
		Code:     ErrCodeWrongPassword,
		Message:  invalidCredentialsMessage,
		Category: "auth",
		Action:   "Check your email and password, or create an account.",
	}
}

// NewEmailAlreadyInUseError はメールアドレスが登録済みの場合のエラーを生成する。
func NewEmailAlreadyInUseError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailAlreadyInUse,
		Message:  "This email is already registered",
		Category: "auth",
		Action:   "Sign in with this email instead.",
	}
}

// NewWeakPasswordError はパスワードがポリシーを満たさない場合のエラーを生成する。
func NewWeakPasswordError(minLength int) *APIError {
	return &APIError{
		Code:     ErrCodeWeakPassword,
		Message:  fmt.Sprintf("Password must be at least %d characters", minLength),
		Category: "validation",
		Action:   "Choose a longer password.",
	}
}

// NewPasswordMismatchError は確認用パスワードが一致しない場合のエラーを生成する。
func NewPasswordMismatchError() *APIError {
	return &APIError{
		Code:     ErrCodePasswordMismatch,
		Message:  "Passwords do not match",
		Category: "validation",
		Action:   "Type the same password in both fields.",
	}
}

// NewPasswordTooLongError はパスワードがハッシュ可能な長さを超えた場合のエラーを生成する。
func NewPasswordTooLongError(maxBytes int) *APIError {
	return &APIError{
		Code:     ErrCodePasswordTooLong,
		Message:  fmt.Sprintf("Password must be at most %d bytes", maxBytes),
		Category: "validation",
		Action:   "Choose a shorter password.",
	}
}

// NewAuthFailedError は分類できない認証失敗のエラーを生成する。
func NewAuthFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthFailed,
		Message:  "Authentication failed",
		Category: "auth",
		Action:   "Wait a moment and try again.",
	}
}

// NewSignInRequiredError はアカウント作成後のセッション発行に失敗した場合のエラーを生成する。
// アカウントは作成済みのため、再度のサインアップではなくサインインを促す。
func NewSignInRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeSignInRequired,
		Message:  "Your account was created, but signing in failed",
		Category: "auth",
		Action:   "Sign in with the email and password you just registered.",
	}
}

// NewInvalidMovieError は映画データが不正な場合のエラーを生成する。
func NewInvalidMovieError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidMovie,
		Message:  fmt.Sprintf("Invalid movie: %s", reason),
		Category: "validation",
		Action:   "Send the movie object exactly as returned by the catalog.",
	}
}

// NewMovieNotFoundError は映画がカタログに存在しない場合のエラーを生成する。
func NewMovieNotFoundError(movieID int64) *APIError {
	return &APIError{
		Code:     ErrCodeMovieNotFound,
		Message:  fmt.Sprintf("Movie not found: %d", movieID),
		Category: "catalog",
		Action:   "Check the movie ID.",
	}
}

// NewCatalogUnavailableError は映画カタログAPIの呼び出しに失敗した場合のエラーを生成する。
func NewCatalogUnavailableError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeCatalogUnavailable,
		Message:  fmt.Sprintf("Movie catalog is unavailable: %s", reason),
		Category: "catalog",
		Action:   "Wait a moment and try again.",
	}
}

// NewInvalidPageError はページ番号が不正な場合のエラーを生成する。
func NewInvalidPageError(page string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPage,
		Message:  fmt.Sprintf("Invalid page: %s", page),
		Category: "validation",
		Action:   "Page must be an integer between 1 and 500.",
	}
}
