package service

import (
	"context"
	"errors"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"referral-system/internal/codegen"
	"referral-system/internal/domain"
	"referral-system/internal/repository"
)

type mockUserRepo struct {
	mu        sync.Mutex
	usersByID map[string]domain.User
	byPhone   map[string]string
	byInvite  map[string]string
	createErr error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByID: make(map[string]domain.User),
		byPhone:   make(map[string]string),
		byInvite:  make(map[string]string),
	}
}

func (m *mockUserRepo) CreateIfAbsent(_ context.Context, user domain.User) (domain.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return domain.User{}, false, m.createErr
	}
	if id, ok := m.byPhone[user.PhoneNumber]; ok {
		return m.usersByID[id], false, nil
	}
	if _, ok := m.byInvite[strings.ToUpper(user.InviteCode)]; ok {
		return domain.User{}, false, repository.ErrInviteCodeTaken
	}
	m.usersByID[user.ID] = user
	m.byPhone[user.PhoneNumber] = user.ID
	m.byInvite[strings.ToUpper(user.InviteCode)] = user.ID
	return user, true, nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByPhone(_ context.Context, phone string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byPhone[phone]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.usersByID[id], nil
}

func (m *mockUserRepo) GetByInviteCode(_ context.Context, code string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byInvite[strings.ToUpper(code)]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.usersByID[id], nil
}

func (m *mockUserRepo) SetActivatedInviteCode(_ context.Context, userID, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[userID]
	if !ok || user.ActivatedInviteCode != nil {
		return false, nil
	}
	user.ActivatedInviteCode = &code
	m.usersByID[userID] = user
	return true, nil
}

func (m *mockUserRepo) ListReferralPhones(_ context.Context, inviteCode string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var users []domain.User
	for _, u := range m.usersByID {
		if u.ActivatedInviteCode != nil && *u.ActivatedInviteCode == inviteCode {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	phones := make([]string, 0, len(users))
	for _, u := range users {
		phones = append(phones, u.PhoneNumber)
	}
	return phones, nil
}

// mockCodeRepo reproduce la unicidad global de códigos y el reemplazo por
// teléfono, con el mismo rollback que la transacción de Postgres.
type mockCodeRepo struct {
	mu       sync.Mutex
	byID     map[string]domain.VerificationCode
	replaced int
}

func newMockCodeRepo() *mockCodeRepo {
	return &mockCodeRepo{byID: make(map[string]domain.VerificationCode)}
}

func (m *mockCodeRepo) Replace(ctx context.Context, phone string, fill func(ctx context.Context, insert repository.InsertFunc) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := maps.Clone(m.byID)
	for id, existing := range m.byID {
		if existing.PhoneNumber == phone {
			delete(m.byID, id)
		}
	}
	err := fill(ctx, func(_ context.Context, code domain.VerificationCode) error {
		for _, existing := range m.byID {
			if existing.Code == code.Code {
				return repository.ErrVerificationCodeTaken
			}
		}
		m.byID[code.ID] = code
		m.replaced++
		return nil
	})
	if err != nil && !errors.Is(err, codegen.ErrCodeGeneration) {
		m.byID = snapshot
	}
	return err
}

func (m *mockCodeRepo) Find(_ context.Context, phone, code string) (domain.VerificationCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.PhoneNumber == phone && existing.Code == code {
			return existing, nil
		}
	}
	return domain.VerificationCode{}, pgx.ErrNoRows
}

func (m *mockCodeRepo) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return false, nil
	}
	delete(m.byID, id)
	return true, nil
}

func (m *mockCodeRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, existing := range m.byID {
		if existing.ExpiresAt.Before(now) {
			delete(m.byID, id)
			n++
		}
	}
	return n, nil
}

func (m *mockCodeRepo) count(phone string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, existing := range m.byID {
		if existing.PhoneNumber == phone {
			n++
		}
	}
	return n
}

type mockSender struct {
	mu    sync.Mutex
	sent  map[string]string
	calls int
	err   error
}

func newMockSender() *mockSender {
	return &mockSender{sent: make(map[string]string)}
}

func (m *mockSender) SendVerificationCode(_ context.Context, phone, code string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.sent[phone] = code
	return nil
}

// fakeClock es un reloj manual compartido por los servicios bajo test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, time.January, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// sequenceReader entrega data en bucle para obtener códigos deterministas.
type sequenceReader struct {
	mu   sync.Mutex
	data []byte
	pos  int
}

func (r *sequenceReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range p {
		p[i] = r.data[r.pos%len(r.data)]
		r.pos++
	}
	return len(p), nil
}
