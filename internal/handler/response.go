package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/moviediscovery/internal/middleware"
	"github.com/hitoshi/moviediscovery/internal/model"
)

// maxRequestBodySize はJSONリクエストボディの上限（1MiB）。
const maxRequestBodySize = 1 << 20

// writeJSON はステータスコードとJSONボディを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// decodeJSONBody はリクエストボディをvにデコードする。
// ボディが空の場合はio.EOFをそのまま返す。
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	return json.NewDecoder(r.Body).Decode(v)
}

// newInvalidRequestError はリクエストボディが解釈できない場合のエラーを生成する。
func newInvalidRequestError() *model.APIError {
	return &model.APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "Request body is not valid JSON",
		Category: "validation",
		Action:   "Check the request body format.",
	}
}

// ErrCodeInvalidRequest はリクエストボディやパラメータの形式エラーのコード。
const ErrCodeInvalidRequest = "INVALID_REQUEST"

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		if statusCode >= http.StatusInternalServerError {
			slog.Error("service error", slog.String("code", apiErr.Code), slog.String("error", err.Error()))
		}
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeNotAuthenticated,
		model.ErrCodeUserNotFound,
		model.ErrCodeWrongPassword:
		return http.StatusUnauthorized
	case model.ErrCodeMissingCredentials,
		model.ErrCodeInvalidEmail,
		model.ErrCodeWeakPassword,
		model.ErrCodePasswordMismatch,
		model.ErrCodePasswordTooLong,
		model.ErrCodeInvalidMovie,
		model.ErrCodeInvalidPage,
		ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeEmailAlreadyInUse:
		return http.StatusConflict
	case model.ErrCodeMovieNotFound:
		return http.StatusNotFound
	case model.ErrCodeCatalogUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// isEmptyBody はJSONデコードエラーがボディ未指定によるものかを判定する。
func isEmptyBody(err error) bool {
	return errors.Is(err, io.EOF)
}
