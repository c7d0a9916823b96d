// Package catalog は映画カタログAPI(TMDB)のクライアントを提供する。
// トレンド・検索・詳細取得と、ポスター画像URLの組み立てを扱う。
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/moviediscovery/internal/model"
	"github.com/hitoshi/moviediscovery/internal/security"
)

const (
	// DefaultBaseURL はTMDB APIのベースURL。
	DefaultBaseURL = "https://api.themoviedb.org/3"
	// DefaultImageBaseURL はポスター画像のCDNベースURL。
	DefaultImageBaseURL = "https://image.tmdb.org/t/p/w500"
	// DefaultPlaceholderURL は画像パスがない場合に使う代替画像。
	DefaultPlaceholderURL = "https://via.placeholder.com/150"
	// DefaultLanguage は検索・詳細取得で指定する言語。
	DefaultLanguage = "en-US"
	// DefaultMaxBodySize はレスポンスボディの上限（2MiB）。
	DefaultMaxBodySize int64 = 2 * 1024 * 1024

	// MaxPage はTMDBが受け付けるページ番号の上限。
	MaxPage = 500

	endpointTrending = "trending"
	endpointSearch   = "search"
	endpointMovie    = "movie"
)

// Recorder はカタログ呼び出しの結果を記録するインターフェース。
type Recorder interface {
	RecordCatalogRequest(endpoint string, statusCode int)
	RecordCatalogLatency(duration time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) RecordCatalogRequest(string, int)   {}
func (noopRecorder) RecordCatalogLatency(time.Duration) {}

// Config はクライアントの設定。空の項目はデフォルト値を使う。
type Config struct {
	BaseURL        string
	ImageBaseURL   string
	PlaceholderURL string
	APIKey         string
	Language       string
	MaxBodySize    int64
}

// Page はTMDBのページ付きレスポンス。
type Page struct {
	Page         int           `json:"page"`
	Results      []model.Movie `json:"results"`
	TotalPages   int           `json:"total_pages"`
	TotalResults int           `json:"total_results"`
}

// Client はTMDB APIのクライアント。
// 1回の操作につき1回だけリクエストし、失敗してもリトライしない。
type Client struct {
	httpClient *http.Client
	sanitizer  security.TextSanitizer
	recorder   Recorder
	logger     *slog.Logger
	config     Config
}

// NewClient はClientの新しいインスタンスを生成する。
// sanitizerがnilの場合はStrictPolicyを使い、recorderがnilの場合は記録しない。
func NewClient(httpClient *http.Client, cfg Config, sanitizer security.TextSanitizer, recorder Recorder, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ImageBaseURL == "" {
		cfg.ImageBaseURL = DefaultImageBaseURL
	}
	if cfg.PlaceholderURL == "" {
		cfg.PlaceholderURL = DefaultPlaceholderURL
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.ImageBaseURL = strings.TrimRight(cfg.ImageBaseURL, "/")

	if sanitizer == nil {
		sanitizer = security.NewTextSanitizer()
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		httpClient: httpClient,
		sanitizer:  sanitizer,
		recorder:   recorder,
		logger:     logger,
		config:     cfg,
	}
}

// ParsePage はクエリパラメータのページ番号を解釈する。空文字列は1ページ目。
func ParsePage(raw string) (int, error) {
	if raw == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 || page > MaxPage {
		return 0, model.NewInvalidPageError(raw)
	}
	return page, nil
}

// FetchTrending は本日のトレンド映画を取得する。
func (c *Client) FetchTrending(ctx context.Context, page int) (*Page, error) {
	if page < 1 || page > MaxPage {
		return nil, model.NewInvalidPageError(strconv.Itoa(page))
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))

	var result Page
	if err := c.get(ctx, endpointTrending, "/trending/movie/day", q, &result); err != nil {
		return nil, err
	}
	c.cleanPage(&result)
	return &result, nil
}

// SearchMovies はタイトルで映画を検索する。
// 空白だけのクエリはAPIを呼ばずに空の結果を返す。
func (c *Client) SearchMovies(ctx context.Context, query string, page int) (*Page, error) {
	if page < 1 || page > MaxPage {
		return nil, model.NewInvalidPageError(strconv.Itoa(page))
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return &Page{Page: page, Results: []model.Movie{}}, nil
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("language", c.config.Language)
	q.Set("page", strconv.Itoa(page))

	var result Page
	if err := c.get(ctx, endpointSearch, "/search/movie", q, &result); err != nil {
		return nil, err
	}
	c.cleanPage(&result)
	return &result, nil
}

// GetMovie は映画の詳細を取得する。
// カタログに存在しない場合はMOVIE_NOT_FOUNDを返す。
func (c *Client) GetMovie(ctx context.Context, id int64) (*model.Movie, error) {
	if id <= 0 {
		return nil, model.NewInvalidMovieError("id must be a positive integer")
	}

	q := url.Values{}
	q.Set("language", c.config.Language)

	var movie model.Movie
	err := c.get(ctx, endpointMovie, "/movie/"+strconv.FormatInt(id, 10), q, &movie)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.status == http.StatusNotFound {
			return nil, model.NewMovieNotFoundError(id)
		}
		return nil, err
	}

	c.cleanMovie(&movie)
	return &movie, nil
}

// ImageURL は画像の相対パスからCDNの絶対URLを組み立てる。
// パスがない場合は代替画像のURLを返す。
func (c *Client) ImageURL(path *string) string {
	if path == nil || strings.TrimSpace(*path) == "" {
		return c.config.PlaceholderURL
	}
	p := *path
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return c.config.ImageBaseURL + p
}

// statusError はTMDBが200以外を返したことを表す。
// 呼び出し側でステータスを見分けるために使い、外へはAPIErrorとして返す。
type statusError struct {
	*model.APIError
	status int
}

func (e *statusError) Unwrap() error { return e.APIError }

// get はAPIを1回だけ呼び出し、JSONレスポンスをoutにデコードする。
func (c *Client) get(ctx context.Context, endpoint, path string, q url.Values, out any) error {
	q.Set("api_key", c.config.APIKey)
	reqURL := c.config.BaseURL + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "moviediscovery/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.recorder.RecordCatalogLatency(time.Since(start))
	if err != nil {
		c.recorder.RecordCatalogRequest(endpoint, 0)
		c.logger.Error("映画カタログAPIの呼び出しに失敗しました",
			slog.String("endpoint", endpoint),
			slog.String("error", c.redactTransportError(err, path).Error()),
		)
		return model.NewCatalogUnavailableError("request failed")
	}
	defer resp.Body.Close()

	c.recorder.RecordCatalogRequest(endpoint, resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		// ボディは読み捨ててコネクションを再利用する
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, c.config.MaxBodySize))
		c.logger.Error("映画カタログAPIがエラーステータスを返しました",
			slog.String("endpoint", endpoint),
			slog.Int("http_status", resp.StatusCode),
		)
		return &statusError{
			APIError: model.NewCatalogUnavailableError(fmt.Sprintf("upstream status %d", resp.StatusCode)),
			status:   resp.StatusCode,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBodySize+1))
	if err != nil {
		c.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return model.NewCatalogUnavailableError("failed to read response")
	}
	if int64(len(body)) > c.config.MaxBodySize {
		c.logger.Error("映画カタログAPIのレスポンスが上限を超えました",
			slog.String("endpoint", endpoint),
			slog.Int64("max_body_size", c.config.MaxBodySize),
		)
		return model.NewCatalogUnavailableError("response too large")
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Error("映画カタログAPIのレスポンスのパースに失敗しました",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return model.NewCatalogUnavailableError("invalid response")
	}

	return nil
}

// redactTransportError はクエリ文字列（APIキーを含む）を取り除いたエラーを返す。
func (c *Client) redactTransportError(err error, path string) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	return &url.Error{
		Op:  urlErr.Op,
		URL: c.config.BaseURL + path,
		Err: urlErr.Err,
	}
}

// cleanPage は不正なIDの映画を除き、文字列をサニタイズする。
func (c *Client) cleanPage(p *Page) {
	movies := make([]model.Movie, 0, len(p.Results))
	for _, m := range p.Results {
		if m.ID <= 0 {
			continue
		}
		c.cleanMovie(&m)
		movies = append(movies, m)
	}
	p.Results = movies
}

func (c *Client) cleanMovie(m *model.Movie) {
	m.Title = c.sanitizer.Sanitize(m.Title)
	m.Overview = c.sanitizer.Sanitize(m.Overview)
}
