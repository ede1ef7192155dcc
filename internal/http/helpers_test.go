package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"maps"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"referral-system/internal/codegen"
	"referral-system/internal/config"
	"referral-system/internal/delivery"
	"referral-system/internal/domain"
	"referral-system/internal/repository"
	"referral-system/internal/service"
)

type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]domain.User)}
}

func (m *mockUserRepo) CreateIfAbsent(_ context.Context, user domain.User) (domain.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.PhoneNumber == user.PhoneNumber {
			return u, false, nil
		}
		if strings.EqualFold(u.InviteCode, user.InviteCode) {
			return domain.User{}, false, repository.ErrInviteCodeTaken
		}
	}
	m.users[user.ID] = user
	return user, true, nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (m *mockUserRepo) GetByPhone(_ context.Context, phone string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.PhoneNumber == phone {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m *mockUserRepo) GetByInviteCode(_ context.Context, code string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.InviteCode, code) {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m *mockUserRepo) SetActivatedInviteCode(_ context.Context, userID, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || u.ActivatedInviteCode != nil {
		return false, nil
	}
	u.ActivatedInviteCode = &code
	m.users[userID] = u
	return true, nil
}

func (m *mockUserRepo) ListReferralPhones(_ context.Context, inviteCode string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	phones := []string{}
	for _, u := range m.users {
		if u.ActivatedInviteCode != nil && *u.ActivatedInviteCode == inviteCode {
			phones = append(phones, u.PhoneNumber)
		}
	}
	return phones, nil
}

type mockCodeRepo struct {
	mu    sync.Mutex
	codes map[string]domain.VerificationCode
}

func newMockCodeRepo() *mockCodeRepo {
	return &mockCodeRepo{codes: make(map[string]domain.VerificationCode)}
}

func (m *mockCodeRepo) Replace(ctx context.Context, phone string, fill func(ctx context.Context, insert repository.InsertFunc) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := maps.Clone(m.codes)
	for id, c := range m.codes {
		if c.PhoneNumber == phone {
			delete(m.codes, id)
		}
	}
	err := fill(ctx, func(_ context.Context, code domain.VerificationCode) error {
		for _, c := range m.codes {
			if c.Code == code.Code {
				return repository.ErrVerificationCodeTaken
			}
		}
		m.codes[code.ID] = code
		return nil
	})
	if err != nil && !errors.Is(err, codegen.ErrCodeGeneration) {
		m.codes = snapshot
	}
	return err
}

func (m *mockCodeRepo) Find(_ context.Context, phone, code string) (domain.VerificationCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.codes {
		if c.PhoneNumber == phone && c.Code == code {
			return c, nil
		}
	}
	return domain.VerificationCode{}, pgx.ErrNoRows
}

func (m *mockCodeRepo) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.codes[id]; !ok {
		return false, nil
	}
	delete(m.codes, id)
	return true, nil
}

func (m *mockCodeRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, c := range m.codes {
		if c.ExpiresAt.Before(now) {
			delete(m.codes, id)
			n++
		}
	}
	return n, nil
}

type testServer struct {
	router *gin.Engine
	jwt    *service.JWTService
	users  *mockUserRepo
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	users := newMockUserRepo()
	store := service.NewVerificationStore(logger, newMockCodeRepo(), codegen.New(), config.VerificationCodeConfig{
		Length:            4,
		Charset:           "0123456789",
		NumericOnly:       true,
		MaxAttempts:       10,
		ExpirationMinutes: 5,
	})
	registry := service.NewInviteRegistry(logger, users, codegen.New(), config.InviteCodeConfig{
		Length:      6,
		Charset:     "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789",
		MaxAttempts: 10,
	})
	authSvc := service.NewAuthService(logger, store, registry, delivery.NewSimulatedSender(logger, 0, 0))
	jwtSvc := service.NewJWTServiceWithStore("secret", 15*time.Minute, time.Hour, service.NewMemoryRefreshTokenStore())

	router := NewRouter(
		logger,
		jwtSvc,
		NewAuthHandler(logger, authSvc, jwtSvc, false),
		NewProfileHandler(logger, registry),
		NewHealthHandler(logger, nil),
	)
	return testServer{router: router, jwt: jwtSvc, users: users}
}

func (s testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch v := body.(type) {
		case string:
			buf.WriteString(v)
		default:
			if err := json.NewEncoder(&buf).Encode(v); err != nil {
				t.Fatalf("encode body: %v", err)
			}
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

type loginResult struct {
	ID                  string            `json:"id"`
	PhoneNumber         string            `json:"phone_number"`
	InviteCode          string            `json:"invite_code"`
	ActivatedInviteCode *string           `json:"activated_invite_code"`
	IsNewUser           bool              `json:"is_new_user"`
	Tokens              service.TokenPair `json:"tokens"`
}

type profileBody struct {
	ID                  string   `json:"id"`
	PhoneNumber         string   `json:"phone_number"`
	InviteCode          string   `json:"invite_code"`
	ActivatedInviteCode *string  `json:"activated_invite_code"`
	Referrals           []string `json:"referrals"`
}

// login recorre send-code y verify-code para phone.
func (s testServer) login(t *testing.T, phone string) loginResult {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/auth/send-code", map[string]string{"phone_number": phone}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("send-code: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var sent sendCodeResponse
	decode(t, rec, &sent)

	rec = s.do(t, http.MethodPost, "/auth/verify-code", map[string]string{"phone_number": phone, "code": sent.Code}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("verify-code: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res loginResult
	decode(t, rec, &res)
	return res
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	decode(t, rec, &body)
	if body.Status != "error" {
		t.Fatalf("expected status=error, got %q", body.Status)
	}
	return body
}
