// Package client talks to the mail HTTP API.
package client

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
	"sync"
	"time"
)

// Mail mirrors the JSON mail record returned by the server.
type Mail struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
	IsRead    bool      `json:"isRead"`
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// APIError is returned for every non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
}

// StatusCode extracts the HTTP status from an *APIError, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) Signup(ctx context.Context, email, password, confirmPassword string) error {
	in := map[string]string{
		"email":           email,
		"password":        password,
		"confirmPassword": confirmPassword,
	}
	return c.do(ctx, http.MethodPost, "/api/signup", in, nil)
}

// Login authenticates and keeps the returned token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	var out struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}
	in := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/login", in, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, errors.New("login response carried no token")
	}
	c.SetToken(out.Token)
	return &out.User, nil
}

func (c *Client) Send(ctx context.Context, to, subject, body string) (*Mail, error) {
	var out struct {
		Mail Mail `json:"mail"`
	}
	in := map[string]string{"to": to, "subject": subject, "body": body}
	if err := c.do(ctx, http.MethodPost, "/api/mail/send", in, &out); err != nil {
		return nil, err
	}
	return &out.Mail, nil
}

func (c *Client) Inbox(ctx context.Context) ([]Mail, error) {
	return c.list(ctx, "/api/mail/inbox")
}

func (c *Client) Sentbox(ctx context.Context) ([]Mail, error) {
	return c.list(ctx, "/api/mail/sentbox")
}

// Get fetches one mail. The server marks it read when the caller is the recipient.
func (c *Client) Get(ctx context.Context, id string) (*Mail, error) {
	var out struct {
		Mail Mail `json:"mail"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/mail/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out.Mail, nil
}

func (c *Client) MarkRead(ctx context.Context, id string) (*Mail, error) {
	var out struct {
		Mail Mail `json:"mail"`
	}
	if err := c.do(ctx, http.MethodPut, "/api/mail/"+url.PathEscape(id)+"/read", nil, &out); err != nil {
		return nil, err
	}
	return &out.Mail, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/mail/"+url.PathEscape(id), nil, nil)
}

func (c *Client) list(ctx context.Context, path string) ([]Mail, error) {
	var out struct {
		Mails []Mail `json:"mails"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if out.Mails == nil {
		out.Mails = []Mail{}
	}
	return out.Mails, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var msg struct {
			Message string `json:"message"`
		}
		// 非 JSON 错误体时只保留状态码
		if json.NewDecoder(resp.Body).Decode(&msg) == nil {
			apiErr.Message = msg.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}
