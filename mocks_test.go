package auth_test

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/goliatone/go-auth-otp"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

var errMailDown = errors.New("smtp: connection refused")

type sentMail struct {
	To      string
	Subject string
	Body    string
}

// capturingMailer records messages and optionally fails
type capturingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *capturingMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *capturingMailer) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *capturingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *capturingMailer) last(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no email was sent")
	return m.sent[len(m.sent)-1]
}

// MockMailer implements auth.Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

// MockLogger implements auth.Logger
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(msg string, args ...any) {
	m.Called(msg, args)
}

func (m *MockLogger) Info(msg string, args ...any) {
	m.Called(msg, args)
}

func (m *MockLogger) Warn(msg string, args ...any) {
	m.Called(msg, args)
}

func (m *MockLogger) Error(msg string, args ...any) {
	m.Called(msg, args)
}

var sixDigits = regexp.MustCompile(`\b\d{6}\b`)

func codeFrom(t *testing.T, mail sentMail) string {
	t.Helper()
	code := sixDigits.FindString(mail.Body)
	require.NotEmpty(t, code, "no code in body %q", mail.Body)
	return code
}

type capturingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt auth.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) types() []auth.ActivityEventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(c.events))
	for _, evt := range c.events {
		out = append(out, evt.EventType)
	}
	return out
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	require.NoError(t, auth.Migrate(context.Background(), db))

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

type testEnv struct {
	db      *bun.DB
	repo    auth.RepositoryManager
	tokens  *auth.TokenService
	mailer  *capturingMailer
	pending *auth.MemoryPendingStore
	sink    *capturingSink
	clock   *testClock
	service *auth.Service
}

func newTestEnv(t *testing.T, opts ...auth.ServiceOption) *testEnv {
	t.Helper()

	env := &testEnv{
		db:      newTestDB(t),
		mailer:  &capturingMailer{},
		pending: auth.NewMemoryPendingStore(),
		sink:    &capturingSink{},
		clock:   newTestClock(),
	}
	env.repo = auth.NewRepositoryManager(env.db)

	tokens, err := auth.NewTokenService([]byte(testSigningKey),
		auth.WithTokenClock(env.clock.Now),
		auth.WithTokenLogger(nopLogger{}),
	)
	require.NoError(t, err)
	env.tokens = tokens

	base := []auth.ServiceOption{
		auth.WithClock(env.clock.Now),
		auth.WithHasher(auth.NewBcryptHasher(bcrypt.MinCost)),
		auth.WithPendingStore(env.pending),
		auth.WithActivitySink(env.sink),
		auth.WithLogger(nopLogger{}),
	}
	env.service = auth.NewService(env.repo, env.tokens, env.mailer, append(base, opts...)...)

	return env
}

func registration(email string) auth.RegisterUserMessage {
	return auth.RegisterUserMessage{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     email,
		Password:  "correct-horse",
		Company:   "Analytical Engines",
	}
}

// registerAndVerify runs the full signup for email and returns the user
func (e *testEnv) registerAndVerify(t *testing.T, email string) *auth.User {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, e.service.Register(ctx, registration(email)))
	require.NoError(t, e.service.VerifyOTP(ctx, email, codeFrom(t, e.mailer.last(t))))

	user, err := e.repo.Users().GetByEmail(ctx, email)
	require.NoError(t, err)
	return user
}
