// Package apiclient es un cliente HTTP mínimo del API de autenticación y perfil.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"referral-system/internal/domain"
)

var ErrNotLoggedIn = errors.New("not logged in")

type logger interface {
	Printf(format string, v ...interface{})
}

// APIError es una respuesta de error del servidor.
type APIError struct {
	StatusCode int               `json:"-"`
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	if len(e.Details) == 0 {
		return msg
	}
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Details[k])
	}
	return msg + " (" + strings.Join(parts, "; ") + ")"
}

type SendCodeResult struct {
	Message     string `json:"message"`
	PhoneNumber string `json:"phone_number"`
	Code        string `json:"code"`
}

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type VerifyResult struct {
	domain.User
	IsNewUser bool      `json:"is_new_user"`
	Tokens    tokenPair `json:"tokens"`
}

// Client guarda los tokens de la sesión abierta con VerifyCode.
type Client struct {
	baseURL string
	client  *http.Client
	logger  logger

	mu     sync.Mutex
	tokens tokenPair
}

func New(baseURL string, log any) *Client {
	l, _ := log.(logger)
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  l,
	}
}

func (c *Client) SendCode(ctx context.Context, phone string) (SendCodeResult, error) {
	var out SendCodeResult
	err := c.do(ctx, http.MethodPost, "/auth/send-code", map[string]string{"phone_number": phone}, "", &out)
	return out, err
}

// VerifyCode abre una sesión si el código es correcto.
func (c *Client) VerifyCode(ctx context.Context, phone, code string) (VerifyResult, error) {
	var out VerifyResult
	err := c.do(ctx, http.MethodPost, "/auth/verify-code", map[string]string{"phone_number": phone, "code": code}, "", &out)
	if err != nil {
		return VerifyResult{}, err
	}
	c.mu.Lock()
	c.tokens = out.Tokens
	c.mu.Unlock()
	return out, nil
}

func (c *Client) Profile(ctx context.Context) (domain.Profile, error) {
	token, err := c.accessToken()
	if err != nil {
		return domain.Profile{}, err
	}
	var out domain.Profile
	err = c.do(ctx, http.MethodGet, "/profile", nil, token, &out)
	return out, err
}

func (c *Client) ActivateInvite(ctx context.Context, inviteCode string) (domain.Profile, error) {
	token, err := c.accessToken()
	if err != nil {
		return domain.Profile{}, err
	}
	var out domain.Profile
	err = c.do(ctx, http.MethodPost, "/profile/activate-invite", map[string]string{"invite_code": inviteCode}, token, &out)
	return out, err
}

// Logout revoca el refresh token y olvida la sesión local aunque falle la llamada.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	refresh := c.tokens.RefreshToken
	c.tokens = tokenPair{}
	c.mu.Unlock()
	if refresh == "" {
		return ErrNotLoggedIn
	}
	return c.do(ctx, http.MethodPost, "/auth/logout", map[string]string{"refresh_token": refresh}, "", nil)
}

func (c *Client) LoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens.AccessToken != ""
}

func (c *Client) accessToken() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tokens.AccessToken == "" {
		return "", ErrNotLoggedIn
	}
	return c.tokens.AccessToken, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		if c.logger != nil {
			c.logger.Printf("api error status %d: %s", resp.StatusCode, string(respBody))
		}
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(respBody, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
