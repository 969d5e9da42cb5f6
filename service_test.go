package auth_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/goliatone/go-auth-otp"
)

func TestRegister_SendsCodeAndKeepsPendingRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.service.Register(ctx, registration("ada@example.com"))
	require.NoError(t, err)

	mail := env.mailer.last(t)
	assert.Equal(t, "ada@example.com", mail.To)
	assert.Equal(t, "Verification code", mail.Subject)
	assert.Contains(t, mail.Body, "10 minutes")

	record, ok := env.pending.Get("ada@example.com")
	require.True(t, ok)
	assert.Equal(t, codeFrom(t, mail), record.OTPCode)
	assert.Equal(t, env.clock.Now(), record.IssuedAt)
	assert.NotEqual(t, "correct-horse", record.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(record.PasswordHash), []byte("correct-horse")))

	_, err = env.repo.Users().GetByEmail(ctx, "ada@example.com")
	assert.True(t, repository.IsRecordNotFound(err), "no user before verification")

	assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventRegistrationStarted}, env.sink.types())
}

func TestRegister_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.registerAndVerify(t, "ada@example.com")
	sent := env.mailer.count()

	err := env.service.Register(context.Background(), registration("ada@example.com"))

	assert.ErrorIs(t, err, auth.ErrDuplicateEmail)
	assert.Equal(t, sent, env.mailer.count(), "no email for duplicates")
	assert.Equal(t, 0, env.pending.Len())
}

func TestRegister_SendFailureRemovesPendingRecord(t *testing.T) {
	mailer := new(MockMailer)
	mailer.On("Send", mock.Anything, "ada@example.com", "Verification code", mock.AnythingOfType("string")).
		Return(errMailDown).Once()

	env := newTestEnv(t)
	service := auth.NewService(env.repo, env.tokens, mailer,
		auth.WithPendingStore(env.pending),
		auth.WithHasher(auth.NewBcryptHasher(bcrypt.MinCost)),
		auth.WithLogger(nopLogger{}),
	)

	err := service.Register(context.Background(), registration("ada@example.com"))

	assert.ErrorIs(t, err, auth.ErrSendFailure)
	_, ok := env.pending.Get("ada@example.com")
	assert.False(t, ok)
	mailer.AssertExpectations(t)
}

func TestRegister_SendFailureRemovesPreviousRecordToo(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.service.Register(ctx, registration("ada@example.com")))
	env.mailer.fail(errMailDown)

	err := env.service.Register(ctx, registration("ada@example.com"))

	assert.ErrorIs(t, err, auth.ErrSendFailure)
	_, ok := env.pending.Get("ada@example.com")
	assert.False(t, ok)
}

func TestRegister_ReRegistrationReplacesCode(t *testing.T) {
	codes := []string{"111111", "222222"}
	var i int
	env := newTestEnv(t, auth.WithOTPGenerator(func() (string, error) {
		code := codes[i]
		i++
		return code, nil
	}))
	ctx := context.Background()

	require.NoError(t, env.service.Register(ctx, registration("ada@example.com")))
	env.clock.Advance(5 * time.Minute)
	require.NoError(t, env.service.Register(ctx, registration("ada@example.com")))

	record, ok := env.pending.Get("ada@example.com")
	require.True(t, ok)
	assert.Equal(t, "222222", record.OTPCode)
	assert.Equal(t, env.clock.Now(), record.IssuedAt)
	assert.Equal(t, 1, env.pending.Len())

	assert.ErrorIs(t, env.service.VerifyOTP(ctx, "ada@example.com", "111111"), auth.ErrCodeMismatch)
	assert.NoError(t, env.service.VerifyOTP(ctx, "ada@example.com", "222222"))
}

func TestRegister_CancelledContext(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := env.service.Register(ctx, registration("ada@example.com"))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, env.mailer.count())
}

func TestVerifyOTP(t *testing.T) {
	t.Run("no pending registration", func(t *testing.T) {
		env := newTestEnv(t)
		err := env.service.VerifyOTP(context.Background(), "nobody@example.com", "123456")
		assert.ErrorIs(t, err, auth.ErrNoPendingRegistration)
	})

	t.Run("wrong code keeps the record", func(t *testing.T) {
		env := newTestEnv(t, auth.WithOTPGenerator(func() (string, error) { return "123456", nil }))
		ctx := context.Background()
		require.NoError(t, env.service.Register(ctx, registration("ada@example.com")))

		err := env.service.VerifyOTP(ctx, "ada@example.com", "654321")
		assert.ErrorIs(t, err, auth.ErrCodeMismatch)

		_, ok := env.pending.Get("ada@example.com")
		assert.True(t, ok)
		assert.NoError(t, env.service.VerifyOTP(ctx, "ada@example.com", "123456"))
	})

	t.Run("code comparison is exact", func(t *testing.T) {
		env := newTestEnv(t, auth.WithOTPGenerator(func() (string, error) { return "123456", nil }))
		ctx := context.Background()
		require.NoError(t, env.service.Register(ctx, registration("ada@example.com")))

		assert.ErrorIs(t, env.service.VerifyOTP(ctx, "ada@example.com", " 123456"), auth.ErrCodeMismatch)
		assert.ErrorIs(t, env.service.VerifyOTP(ctx, "ada@example.com", "0123456"), auth.ErrCodeMismatch)
	})

	t.Run("expired code keeps the record", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		require.NoError(t, env.service.Register(ctx, registration("ada@example.com")))
		code := codeFrom(t, env.mailer.last(t))

		env.clock.Advance(10*time.Minute + time.Second)

		err := env.service.VerifyOTP(ctx, "ada@example.com", code)
		assert.ErrorIs(t, err, auth.ErrCodeExpired)

		_, ok := env.pending.Get("ada@example.com")
		assert.True(t, ok)

		_, err = env.repo.Users().GetByEmail(ctx, "ada@example.com")
		assert.True(t, repository.IsRecordNotFound(err))
	})

	t.Run("code is valid at the end of the window", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		require.NoError(t, env.service.Register(ctx, registration("ada@example.com")))
		code := codeFrom(t, env.mailer.last(t))

		env.clock.Advance(10 * time.Minute)

		assert.NoError(t, env.service.VerifyOTP(ctx, "ada@example.com", code))
	})

	t.Run("mismatch is reported before expiry", func(t *testing.T) {
		env := newTestEnv(t, auth.WithOTPGenerator(func() (string, error) { return "123456", nil }))
		ctx := context.Background()
		require.NoError(t, env.service.Register(ctx, registration("ada@example.com")))

		env.clock.Advance(time.Hour)

		assert.ErrorIs(t, env.service.VerifyOTP(ctx, "ada@example.com", "000000"), auth.ErrCodeMismatch)
	})

	t.Run("creates a verified user and drops the record", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()

		user := env.registerAndVerify(t, "ada@example.com")

		assert.True(t, user.IsVerified)
		assert.Equal(t, auth.RoleUser, user.Role)
		assert.Equal(t, "Ada", user.FirstName)
		assert.Equal(t, "Lovelace", user.LastName)
		assert.Equal(t, "Analytical Engines", user.Company)
		assert.NotEqual(t, "correct-horse", user.PasswordHash)

		_, ok := env.pending.Get("ada@example.com")
		assert.False(t, ok)

		err := env.service.VerifyOTP(ctx, "ada@example.com", codeFrom(t, env.mailer.last(t)))
		assert.ErrorIs(t, err, auth.ErrNoPendingRegistration)

		assert.Equal(t, []auth.ActivityEventType{
			auth.ActivityEventRegistrationStarted,
			auth.ActivityEventEmailVerified,
		}, env.sink.types())
	})

	t.Run("user created elsewhere meanwhile", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		require.NoError(t, env.service.Register(ctx, registration("ada@example.com")))
		code := codeFrom(t, env.mailer.last(t))

		_, err := env.repo.Users().Create(ctx, &auth.User{
			Email:        "ada@example.com",
			FirstName:    "Ada",
			LastName:     "Lovelace",
			PasswordHash: "x",
			IsVerified:   true,
		})
		require.NoError(t, err)

		assert.ErrorIs(t, env.service.VerifyOTP(ctx, "ada@example.com", code), auth.ErrDuplicateEmail)
		_, ok := env.pending.Get("ada@example.com")
		assert.False(t, ok)
	})
}

func TestLogin(t *testing.T) {
	t.Run("unknown user", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.service.Login(context.Background(), "nobody@example.com", "whatever1")
		assert.ErrorIs(t, err, auth.ErrUserNotFound)
	})

	t.Run("pending registration is not a user", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		require.NoError(t, env.service.Register(ctx, registration("ada@example.com")))

		_, err := env.service.Login(ctx, "ada@example.com", "correct-horse")
		assert.ErrorIs(t, err, auth.ErrUserNotFound)
	})

	t.Run("unverified is reported before wrong password", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		hash, err := auth.NewBcryptHasher(bcrypt.MinCost).HashPassword("correct-horse")
		require.NoError(t, err)
		_, err = env.repo.Users().Create(ctx, &auth.User{
			Email:        "legacy@example.com",
			FirstName:    "Old",
			LastName:     "Account",
			PasswordHash: hash,
			IsVerified:   false,
		})
		require.NoError(t, err)

		_, err = env.service.Login(ctx, "legacy@example.com", "correct-horse")
		assert.ErrorIs(t, err, auth.ErrNotVerified)

		_, err = env.service.Login(ctx, "legacy@example.com", "wrong-password")
		assert.ErrorIs(t, err, auth.ErrNotVerified)
	})

	t.Run("wrong password", func(t *testing.T) {
		env := newTestEnv(t)
		env.registerAndVerify(t, "ada@example.com")

		res, err := env.service.Login(context.Background(), "ada@example.com", "wrong-password")
		assert.ErrorIs(t, err, auth.ErrWrongPassword)
		assert.Empty(t, res.Token)
	})

	t.Run("issues a 24h token for the email", func(t *testing.T) {
		env := newTestEnv(t)
		env.registerAndVerify(t, "ada@example.com")

		res, err := env.service.Login(context.Background(), "ada@example.com", "correct-horse")
		require.NoError(t, err)
		assert.Equal(t, auth.MessageLoginSuccess, res.Message)

		claims, err := env.tokens.Validate(res.Token)
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", claims.Subject())
		assert.Equal(t, auth.RoleUser, claims.Role())
		assert.Equal(t, env.clock.Now().Unix(), claims.IssuedAt().Unix())
		assert.Equal(t, 24*time.Hour, claims.Expires().Sub(claims.IssuedAt()))
	})

	t.Run("failures are recorded without credentials", func(t *testing.T) {
		env := newTestEnv(t)
		env.registerAndVerify(t, "ada@example.com")

		_, _ = env.service.Login(context.Background(), "ada@example.com", "wrong-password")

		env.sink.mu.Lock()
		defer env.sink.mu.Unlock()
		last := env.sink.events[len(env.sink.events)-1]
		assert.Equal(t, auth.ActivityEventLoginFailure, last.EventType)
		assert.Equal(t, auth.TextCodeWrongPassword, last.Metadata["reason"])
		for _, v := range last.Metadata {
			assert.NotContains(t, fmt.Sprint(v), "wrong-password")
		}
	})
}

func TestLogin_LogsNoCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.registerAndVerify(t, "ada@example.com")

	logger := new(MockLogger)
	logger.On("Warn", "login failed", mock.Anything).Run(func(args mock.Arguments) {
		for _, v := range args.Get(1).([]any) {
			assert.NotContains(t, fmt.Sprint(v), "wrong-password")
		}
	}).Once()

	service := auth.NewService(env.repo, env.tokens, env.mailer,
		auth.WithHasher(auth.NewBcryptHasher(bcrypt.MinCost)),
		auth.WithLogger(logger),
	)

	_, err := service.Login(context.Background(), "ada@example.com", "wrong-password")
	assert.ErrorIs(t, err, auth.ErrWrongPassword)
	logger.AssertExpectations(t)
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	env.registerAndVerify(t, "ada@example.com")
	ctx := context.Background()

	res, err := env.service.Login(ctx, "ada@example.com", "correct-horse")
	require.NoError(t, err)

	user, err := env.service.Authenticate(ctx, "Bearer "+res.Token)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)

	user, err = env.service.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)

	_, err = env.service.Authenticate(ctx, "Bearer nope")
	assert.ErrorIs(t, err, auth.ErrBearerMalformed)

	env.clock.Advance(25 * time.Hour)
	_, err = env.service.Authenticate(ctx, "Bearer "+res.Token)
	assert.ErrorIs(t, err, auth.ErrBearerExpired)
}

func TestAuthenticate_TokenForMissingUser(t *testing.T) {
	env := newTestEnv(t)

	token, err := env.tokens.Generate("ghost@example.com")
	require.NoError(t, err)

	_, err = env.service.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestRegister_ConcurrentDistinctEmails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- env.service.Register(ctx, registration(fmt.Sprintf("user%02d@example.com", i)))
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 20, env.pending.Len())
	assert.Equal(t, 20, env.mailer.count())
}

func TestRegister_PasswordTooLong(t *testing.T) {
	env := newTestEnv(t)
	msg := registration("ada@example.com")
	msg.Password = strings.Repeat("p", 80)

	err := env.service.Register(context.Background(), msg)

	assert.ErrorIs(t, err, auth.ErrPasswordTooLong)
	assert.True(t, auth.IsDomainError(err))
	assert.Equal(t, auth.TextCodeValidation, auth.TextCode(err))
	assert.Equal(t, 0, env.mailer.count())
	assert.Equal(t, 0, env.pending.Len())
}

func TestResetPassword_PasswordTooLong(t *testing.T) {
	env := newTestEnv(t, fixedResetToken("reset-token-1"))
	env.registerAndVerify(t, "ada@example.com")
	ctx := context.Background()
	require.NoError(t, env.service.RequestPasswordReset(ctx, "ada@example.com"))

	err := env.service.ResetPassword(ctx, "reset-token-1", strings.Repeat("p", 80))

	assert.ErrorIs(t, err, auth.ErrPasswordTooLong)
	assert.Equal(t, auth.TextCodeValidation, auth.TextCode(err))

	_, err = env.repo.ResetTokens().FindByToken(ctx, "reset-token-1")
	assert.NoError(t, err)
}

// reregisteringStore stores a fresh registration right after the first
// lookup, as a concurrent Register would
type reregisteringStore struct {
	*auth.MemoryPendingStore
	once   sync.Once
	record auth.PendingRegistration
}

func (s *reregisteringStore) Get(email string) (auth.PendingRegistration, bool) {
	rec, ok := s.MemoryPendingStore.Get(email)
	s.once.Do(func() {
		s.MemoryPendingStore.Put(email, s.record)
	})
	return rec, ok
}

func TestVerifyOTP_KeepsRegistrationStoredMeanwhile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.service.Register(ctx, registration("ada@example.com")))
	code := codeFrom(t, env.mailer.last(t))

	issued, ok := env.pending.Get("ada@example.com")
	require.True(t, ok)

	fresh := issued
	fresh.OTPCode = "000000"
	fresh.IssuedAt = issued.IssuedAt.Add(time.Second)

	store := &reregisteringStore{MemoryPendingStore: env.pending, record: fresh}
	service := auth.NewService(env.repo, env.tokens, env.mailer,
		auth.WithPendingStore(store),
		auth.WithClock(env.clock.Now),
		auth.WithLogger(nopLogger{}),
	)

	require.NoError(t, service.VerifyOTP(ctx, "ada@example.com", code))

	record, ok := env.pending.Get("ada@example.com")
	require.True(t, ok, "newer registration must survive")
	assert.Equal(t, "000000", record.OTPCode)
}
