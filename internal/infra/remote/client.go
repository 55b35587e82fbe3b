package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"wrongnote-service/internal/domain"
)

const (
	regularWrongPath        = "/api/ai/analysis/regular/wrong"
	consumptionWrongPath    = "/api/ai/consumption/wrong"
	regularAnalysisPath     = "/api/ai/analysis/regular/%d"
	consumptionAnalysisPath = "/api/ai/consumption/%d"
	quizLogPath             = "/api/quiz/logs/%d"

	memberHeader = "X-Member-Id"
)

type tokenKey struct{}

// WithAccessToken attaches a bearer token that the client forwards upstream.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func accessToken(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// envelope is the common response wrapper of the upstream API.
type envelope struct {
	IsSuccess bool            `json:"isSuccess"`
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	Result    json.RawMessage `json:"result"`
}

// Client talks to the upstream quiz/AI API. It implements
// app.WrongAnswerFetcher, app.Analyzer and app.AttemptLogFetcher.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *Client) FetchWrongAnswers(ctx context.Context, memberID string, source domain.Source) ([]domain.RawAnswer, error) {
	path := regularWrongPath
	if source == domain.SourceConsumption {
		path = consumptionWrongPath
	}
	raw, err := c.do(ctx, http.MethodGet, path, memberID)
	if err != nil {
		return nil, err
	}
	var answers []domain.RawAnswer
	if err := decodeList(raw, &answers); err != nil {
		return nil, fmt.Errorf("decode wrong answers: %w", err)
	}
	return answers, nil
}

// Analyze requests an analysis. The result must carry analysis, weakness and
// recommendation; anything less is reported as no analysis.
func (c *Client) Analyze(ctx context.Context, memberID string, problemID int64, source domain.Source) (*domain.AnalysisResult, error) {
	path := fmt.Sprintf(regularAnalysisPath, problemID)
	if source == domain.SourceConsumption {
		path = fmt.Sprintf(consumptionAnalysisPath, problemID)
	}
	raw, err := c.do(ctx, http.MethodPost, path, memberID)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &fields) != nil || fields == nil {
		c.logger.Debug("analysis result not an object", "problem_id", problemID)
		return nil, nil
	}
	var result domain.AnalysisResult
	for key, dst := range map[string]*string{
		"analysis":       &result.Analysis,
		"weakness":       &result.Weakness,
		"recommendation": &result.Recommendation,
	} {
		value, ok := fields[key]
		if !ok || json.Unmarshal(value, dst) != nil {
			c.logger.Debug("analysis result incomplete", "problem_id", problemID, "missing", key)
			return nil, nil
		}
	}
	return &result, nil
}

func (c *Client) FetchAttemptLog(ctx context.Context, memberID string, problemID int64) ([]domain.AttemptRecord, error) {
	raw, err := c.do(ctx, http.MethodGet, fmt.Sprintf(quizLogPath, problemID), memberID)
	if err != nil {
		return nil, err
	}
	var attempts []domain.AttemptRecord
	if err := decodeList(raw, &attempts); err != nil {
		return nil, fmt.Errorf("decode quiz logs: %w", err)
	}
	return attempts, nil
}

// do performs the request and returns the envelope result. Transport
// failures and unsuccessful envelopes are both reported as *domain.Error.
func (c *Client) do(ctx context.Context, method, path, memberID string) (json.RawMessage, error) {
	var body io.Reader
	if method == http.MethodPost {
		body = bytes.NewReader([]byte("{}"))
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &domain.Error{Message: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if memberID != "" {
		req.Header.Set(memberHeader, memberID)
	}
	if token := accessToken(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.Error{Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.Error{Code: resp.StatusCode, Message: "read response", Err: err}
	}

	var env envelope
	decodeErr := json.Unmarshal(data, &env)
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, &domain.Error{Code: resp.StatusCode, Message: messageOr(env.Message, "unauthorized"), Unauthorized: true}
	}
	if resp.StatusCode >= 300 {
		return nil, &domain.Error{Code: resp.StatusCode, Message: messageOr(env.Message, http.StatusText(resp.StatusCode))}
	}
	if decodeErr != nil {
		return nil, &domain.Error{Code: resp.StatusCode, Message: "malformed envelope", Err: decodeErr}
	}
	if !env.IsSuccess {
		return nil, &domain.Error{Code: env.Code, Message: messageOr(env.Message, "request unsuccessful"), Unauthorized: env.Code == http.StatusUnauthorized}
	}
	return env.Result, nil
}

// decodeList treats a null or missing result as an empty list.
func decodeList(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func messageOr(message, fallback string) string {
	if message == "" {
		return fallback
	}
	return message
}
