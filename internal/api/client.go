// Package api is the HTTP client for the Aster chat backend. All business
// logic (auth, billing, model routing, persistence) lives server-side;
// this package only speaks the wire contracts.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"aster-cli/internal/config"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	sessionID  string
	debug      bool
}

func NewClient(cfg *config.Config) *Client {
	return NewClientWithServer(cfg.Server, cfg.SessionID)
}

func NewClientWithServer(server, sessionID string) *Client {
	return &Client{
		baseURL: strings.TrimRight(server, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		sessionID: sessionID,
	}
}

func (c *Client) SetDebug(debug bool) { c.debug = debug }

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if c.sessionID != "" {
		req.AddCookie(&http.Cookie{Name: "session_id", Value: c.sessionID})
	}
}

// ─── Errors ─────────────────────────────────────────────────────────────────

// BillingError is the 402 insufficient-balance rejection. It is an expected,
// user-visible outcome, distinct from transport failure.
type BillingError struct {
	Detail string `json:"detail"`
}

func (e *BillingError) Error() string {
	return fmt.Sprintf("insufficient balance: %s", e.Detail)
}

// ─── Send message ───────────────────────────────────────────────────────────

// SendOptions is the request body for /api/chats/new and
// /api/chats/{id}/message.
type SendOptions struct {
	Message       string   `json:"message"`
	Model         string   `json:"model,omitempty"`
	AttachmentURL string   `json:"attachment_url,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	WebSearch     bool     `json:"web_search,omitempty"`
	IsTemporary   bool     `json:"is_temporary,omitempty"`
}

// ChatMessage is a persisted message as the server returns it.
type ChatMessage struct {
	ID            int64  `json:"id,omitempty"`
	Role          string `json:"role"`
	Content       string `json:"content"`
	AttachmentURL string `json:"attachment_url,omitempty"`
	ImageURL      string `json:"image_url,omitempty"`
}

// MediaResult is the non-streaming JSON branch of a send: image and video
// models answer with the full result at once.
type MediaResult struct {
	ChatID   int64         `json:"chat_id"`
	Balance  *float64      `json:"balance,omitempty"`
	Messages []ChatMessage `json:"messages"`
}

// SendResult is the outcome of a send. Exactly one of Stream and Media is
// set: Stream is the raw chunked body for the line-protocol consumer, Media
// the parsed JSON result. ChatID carries the X-Chat-Id header when the
// server created a new chat, 0 otherwise.
type SendResult struct {
	ChatID int64
	Stream io.ReadCloser
	Media  *MediaResult
}

// SendMessage posts a user message. chatID 0 creates a new chat. The caller
// owns Stream and must close it; cancellation flows through ctx.
func (c *Client) SendMessage(ctx context.Context, chatID int64, opts SendOptions) (*SendResult, error) {
	path := "/api/chats/new"
	if chatID != 0 {
		path = fmt.Sprintf("/api/chats/%d/message", chatID)
	}

	body, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	if resp.StatusCode == http.StatusPaymentRequired {
		defer resp.Body.Close()
		var be BillingError
		if err := json.NewDecoder(resp.Body).Decode(&be); err != nil || be.Detail == "" {
			be.Detail = "Insufficient balance"
		}
		return nil, &be
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	result := &SendResult{}
	if h := resp.Header.Get("X-Chat-Id"); h != "" {
		if id, err := strconv.ParseInt(h, 10, 64); err == nil {
			result.ChatID = id
		}
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		defer resp.Body.Close()
		var media MediaResult
		if err := json.NewDecoder(resp.Body).Decode(&media); err != nil {
			return nil, fmt.Errorf("parsing response: %w", err)
		}
		result.Media = &media
		if result.ChatID == 0 {
			result.ChatID = media.ChatID
		}
		return result, nil
	}

	result.Stream = resp.Body
	return result, nil
}

// ─── Chat list / detail ─────────────────────────────────────────────────────

// ChatSummary is one row of the chat history sidebar.
type ChatSummary struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Date  string `json:"date"`
}

// ChatDetail is the full state of one chat.
type ChatDetail struct {
	ID        int64         `json:"id"`
	Title     string        `json:"title,omitempty"`
	Model     string        `json:"model,omitempty"`
	ExpiresAt string        `json:"expires_at,omitempty"`
	Messages  []ChatMessage `json:"messages"`
}

func (c *Client) ListChats(ctx context.Context) ([]ChatSummary, error) {
	var chats []ChatSummary
	if err := c.doJSON(ctx, http.MethodGet, "/api/chats", nil, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

func (c *Client) GetChat(ctx context.Context, chatID int64) (*ChatDetail, error) {
	var detail ChatDetail
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/chats/%d", chatID), nil, &detail); err != nil {
		return nil, err
	}
	if detail.ID == 0 {
		detail.ID = chatID
	}
	return &detail, nil
}

func (c *Client) DeleteChat(ctx context.Context, chatID int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/chats/%d", chatID), nil, nil)
}

func (c *Client) RenameChat(ctx context.Context, chatID int64, title string) error {
	body := map[string]string{"title": title}
	return c.doJSON(ctx, http.MethodPatch, fmt.Sprintf("/api/chats/%d", chatID), body, nil)
}

// ClearHistory wipes chat history for a range: "day", "week", or "all".
func (c *Client) ClearHistory(ctx context.Context, rng string) error {
	params := url.Values{}
	params.Set("range", rng)
	return c.doJSON(ctx, http.MethodDelete, "/api/chats/history/clear?"+params.Encode(), nil, nil)
}

// ─── Model catalog ──────────────────────────────────────────────────────────

type ModelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ModelGroup struct {
	Icon   string      `json:"icon"`
	Models []ModelInfo `json:"models"`
}

func (c *Client) ListModels(ctx context.Context) ([]ModelGroup, error) {
	var groups []ModelGroup
	if err := c.doJSON(ctx, http.MethodGet, "/api/chats/models", nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// ─── Upload ─────────────────────────────────────────────────────────────────

// Upload posts a file as multipart form data and returns its public URL.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("building form: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("closing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &buf)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("X-Request-Id", uuid.NewString())
	if c.sessionID != "" {
		req.AddCookie(&http.Cookie{Name: "session_id", Value: c.sessionID})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("server returned %d", resp.StatusCode)
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("upload response missing url")
	}
	return out.URL, nil
}

// ─── Auth (contract only; protocol design is server-side) ───────────────────

func (c *Client) RequestEmailCode(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	return c.doJSON(ctx, http.MethodPost, "/auth/email/request-code", body, nil)
}

// VerifyEmailCode exchanges the mailed code for a session id. Servers answer
// with either a session_id field or a session_id cookie.
func (c *Client) VerifyEmailCode(ctx context.Context, email, code string) (string, error) {
	body, err := json.Marshal(map[string]string{"email": email, "code": code})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/email/verify-code", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	var out struct {
		SessionID string `json:"session_id"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if out.SessionID != "" {
		return out.SessionID, nil
	}
	for _, ck := range resp.Cookies() {
		if ck.Name == "session_id" && ck.Value != "" {
			return ck.Value, nil
		}
	}
	return "", fmt.Errorf("no session in response")
}

// ─── Payments (contract only) ───────────────────────────────────────────────

// CreatePayment asks the server for a payment widget confirmation token.
func (c *Client) CreatePayment(ctx context.Context, amount float64) (string, error) {
	body := map[string]float64{"amount": amount}
	var out struct {
		ConfirmationToken string `json:"confirmation_token"`
		Error             string `json:"error"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/payment/create", body, &out); err != nil {
		return "", err
	}
	if out.Error != "" {
		return "", fmt.Errorf("payment rejected: %s", out.Error)
	}
	if out.ConfirmationToken == "" {
		return "", fmt.Errorf("payment response missing confirmation token")
	}
	return out.ConfirmationToken, nil
}

// ─── Generic JSON helper ────────────────────────────────────────────────────

func (c *Client) doJSON(ctx context.Context, method, path string, reqBody interface{}, result interface{}) error {
	var bodyReader io.Reader
	if reqBody != nil && method != http.MethodGet {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
	}
	return nil
}
