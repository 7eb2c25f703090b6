// Package backend provides the HTTP client for the remote speech backend.
//
// The client is a thin, explicit translation of the backend's JSON contracts:
// the voice catalog, per-block previews, the storage listing used for existence
// checks, batch export and the upstream recommendation intake.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/book-expert/tts-editor/internal/block"
	"github.com/book-expert/tts-editor/internal/catalog"
	"github.com/book-expert/tts-editor/internal/core"
)

// Default API paths.
const (
	DefaultVoicesPath        = "/api/tts/voices"
	DefaultPreviewPath       = "/api/audiosystem/play"
	DefaultListDirectoryPath = "/api/filesystem/list-directory"
	DefaultExportPath        = "/api/tts/export-audio"
	DefaultRecommendPath     = "/api/tts/recommend-options"
	DefaultStorageBucket     = "murf-audiofiles"
)

// HTTP headers.
const (
	headerContentType   = "Content-Type"
	headerAccept        = "Accept"
	headerAuthorization = "Authorization"
	contentTypeJSON     = "application/json"
	acceptAudio         = "audio/*"
	bearerPrefix        = "Bearer "
	queryStorageBucket  = "storage_bucket"
	itemTypeFile        = "file"
	minRecommendRunes   = 3
)

// Error messages.
const (
	errFmtRequestFailed   = "request to %s failed: %w"
	errFmtCreateRequest   = "failed to create request for %s: %w"
	errFmtDecodeResponse  = "failed to decode response from %s: %w"
	errFmtAPIError        = "backend returned %s: %s"
	errFmtAPIErrorNoBody  = "backend returned %s"
	maxErrorBodyBytes     = 4096
	unknownErrorMessage   = "Unknown error"
	errMsgEmptyAudio      = "received empty audio data"
	errMsgEmptyToken      = "no bearer token available"
	errMsgEmptyFileName   = "file name cannot be empty"
	errMsgTextTooShort    = "text too short for meaningful analysis"
)

// Static errors.
var (
	ErrEmptyAudio       = errors.New(errMsgEmptyAudio)
	ErrNoToken          = errors.New(errMsgEmptyToken)
	ErrEmptyFileName    = errors.New(errMsgEmptyFileName)
	ErrTextTooShort     = errors.New(errMsgTextTooShort)
	ErrBaseURLRequired  = errors.New("backend base url cannot be empty")
	ErrTokenSourceUnset = errors.New("token source cannot be nil")
)

// APIError is a non-2xx response. Message carries the server-supplied text when
// the body had one.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf(errFmtAPIErrorNoBody, e.Status)
	}

	return fmt.Sprintf(errFmtAPIError, e.Status, e.Message)
}

// ServerMessage returns the message to show the user for err: the server's own
// message when err wraps an APIError that has one, otherwise a generic text.
func ServerMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}

	return unknownErrorMessage
}

// errorBody covers the error shapes the backend produces.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Detail  string `json:"detail"`
}

// Settings configures the HTTP client.
type Settings struct {
	BaseURL           string
	Timeout           time.Duration
	VoicesPath        string
	PreviewPath       string
	ListDirectoryPath string
	ExportPath        string
	RecommendPath     string
	StorageBucket     string
}

func (s Settings) withDefaults() Settings {
	s.BaseURL = strings.TrimRight(s.BaseURL, "/")

	if s.VoicesPath == "" {
		s.VoicesPath = DefaultVoicesPath
	}

	if s.PreviewPath == "" {
		s.PreviewPath = DefaultPreviewPath
	}

	if s.ListDirectoryPath == "" {
		s.ListDirectoryPath = DefaultListDirectoryPath
	}

	if s.ExportPath == "" {
		s.ExportPath = DefaultExportPath
	}

	if s.RecommendPath == "" {
		s.RecommendPath = DefaultRecommendPath
	}

	if s.StorageBucket == "" {
		s.StorageBucket = DefaultStorageBucket
	}

	return s
}

// HTTPClient talks to the remote backend. Every request acquires a fresh
// bearer token from the token source.
type HTTPClient struct {
	httpClient *http.Client
	settings   Settings
	tokens     core.TokenSource
}

// NewHTTPClient creates a backend client.
func NewHTTPClient(settings Settings, tokens core.TokenSource) (*HTTPClient, error) {
	if strings.TrimSpace(settings.BaseURL) == "" {
		return nil, ErrBaseURLRequired
	}

	if tokens == nil {
		return nil, ErrTokenSourceUnset
	}

	return &HTTPClient{
		httpClient: &http.Client{Timeout: settings.Timeout},
		settings:   settings.withDefaults(),
		tokens:     tokens,
	}, nil
}

// PreviewRequest is the body of a preview request.
type PreviewRequest struct {
	Config block.SynthesisParams `json:"config"`
}

// ExportRequest is the body of an export request.
type ExportRequest struct {
	FileName string                  `json:"file_name"`
	Configs  []block.SynthesisParams `json:"configs"`
}

// ExportResponse is the success body of an export request.
type ExportResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	SupabasePath string `json:"supabase_path"`
	FileName     string `json:"file_name"`
}

// DirectoryItem is one entry of a storage listing.
type DirectoryItem struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type voicesResponse struct {
	Voices []catalog.Voice `json:"voices"`
}

type listDirectoryResponse struct {
	Items []DirectoryItem `json:"items"`
}

type recommendRequest struct {
	Text string `json:"text"`
}

// FetchVoices downloads the voice catalog.
func (c *HTTPClient) FetchVoices(ctx context.Context) ([]catalog.Voice, error) {
	var payload voicesResponse

	err := c.doJSON(ctx, http.MethodGet, c.settings.VoicesPath, nil, nil, &payload)
	if err != nil {
		return nil, err
	}

	return payload.Voices, nil
}

// Preview renders one block and returns the raw audio payload.
func (c *HTTPClient) Preview(ctx context.Context, params block.SynthesisParams) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodPost, c.settings.PreviewPath, nil, PreviewRequest{Config: params}, acceptAudio)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	return audio, nil
}

// ListDirectory lists the configured storage bucket.
func (c *HTTPClient) ListDirectory(ctx context.Context) ([]DirectoryItem, error) {
	query := url.Values{}
	query.Set(queryStorageBucket, c.settings.StorageBucket)

	var payload listDirectoryResponse

	err := c.doJSON(ctx, http.MethodGet, c.settings.ListDirectoryPath, query, nil, &payload)
	if err != nil {
		return nil, err
	}

	return payload.Items, nil
}

// FileExists reports whether a file named exactly fileName is in the bucket.
func (c *HTTPClient) FileExists(ctx context.Context, fileName string) (bool, error) {
	if fileName == "" {
		return false, ErrEmptyFileName
	}

	items, err := c.ListDirectory(ctx)
	if err != nil {
		return false, err
	}

	for _, item := range items {
		if item.Name == fileName && item.Type == itemTypeFile {
			return true, nil
		}
	}

	return false, nil
}

// Export submits a batch export job.
func (c *HTTPClient) Export(ctx context.Context, req ExportRequest) (ExportResponse, error) {
	if req.FileName == "" {
		return ExportResponse{}, ErrEmptyFileName
	}

	var payload ExportResponse

	err := c.doJSON(ctx, http.MethodPost, c.settings.ExportPath, nil, req, &payload)
	if err != nil {
		return ExportResponse{}, err
	}

	return payload, nil
}

// Recommend asks the upstream recommender for per-line configurations and
// returns the raw payload for block.ParseRecommendations.
func (c *HTTPClient) Recommend(ctx context.Context, text string) ([]byte, error) {
	if len([]rune(strings.TrimSpace(text))) < minRecommendRunes {
		return nil, ErrTextTooShort
	}

	resp, err := c.do(ctx, http.MethodPost, c.settings.RecommendPath, nil, recommendRequest{Text: text}, contentTypeJSON)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read recommendations: %w", err)
	}

	return body, nil
}

func (c *HTTPClient) doJSON(
	ctx context.Context,
	method, path string,
	query url.Values,
	body, target any,
) error {
	resp, err := c.do(ctx, method, path, query, body, contentTypeJSON)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	decodeErr := json.NewDecoder(resp.Body).Decode(target)
	if decodeErr != nil {
		return fmt.Errorf(errFmtDecodeResponse, path, decodeErr)
	}

	return nil
}

// do sends an authenticated request and returns the response for 2xx statuses.
// The caller owns the response body.
func (c *HTTPClient) do(
	ctx context.Context,
	method, path string,
	query url.Values,
	body any,
	accept string,
) (*http.Response, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire bearer token: %w", err)
	}

	if token == "" {
		return nil, ErrNoToken
	}

	endpoint := c.settings.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader = http.NoBody

	if body != nil {
		encoded, marshalErr := json.Marshal(body)
		if marshalErr != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", marshalErr)
		}

		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf(errFmtCreateRequest, path, err)
	}

	req.Header.Set(headerAuthorization, bearerPrefix+token)
	req.Header.Set(headerAccept, accept)

	if body != nil {
		req.Header.Set(headerContentType, contentTypeJSON)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf(errFmtRequestFailed, path, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()

		return nil, parseErrorResponse(resp)
	}

	return resp, nil
}

// parseErrorResponse extracts the server-supplied message from an error body,
// falling back to the raw body text.
func parseErrorResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Message:    "",
	}

	var parsed errorBody

	if json.Unmarshal(raw, &parsed) == nil {
		switch {
		case parsed.Message != "":
			apiErr.Message = parsed.Message
		case parsed.Error != "":
			apiErr.Message = parsed.Error
		case parsed.Detail != "":
			apiErr.Message = parsed.Detail
		}

		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(raw))

	return apiErr
}
