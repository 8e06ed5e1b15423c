package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	mqcontracts "minimail/contracts/mq"
	"minimail/internal/repository"
	"minimail/internal/service/servicetest"
	"minimail/pkg/util"
)

type fakeThrottle struct {
	mu       sync.Mutex
	max      int64
	attempts map[string]int64
	err      error
}

func newFakeThrottle(max int64) *fakeThrottle {
	return &fakeThrottle{max: max, attempts: map[string]int64{}}
}

func (f *fakeThrottle) Attempt(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	f.attempts[email]++
	return f.attempts[email] <= f.max, nil
}

func (f *fakeThrottle) Reset(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.attempts, email)
	return f.err
}

func newTestService(t *testing.T, throttle Throttle) (*Service, *servicetest.RecordingPublisher) {
	t.Helper()
	issuer, err := util.NewSessionIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	pub := &servicetest.RecordingPublisher{}
	return NewService(repository.NewUserRepository(), issuer, throttle, pub, zap.NewNop()), pub
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	s, pub := newTestService(t, nil)

	u, err := s.Register(ctx, "A@X.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", u.Email)
	assert.NotEqual(t, "secret1", u.PasswordHash)
	assert.Equal(t, []string{mqcontracts.EventUserRegistered}, pub.Types())

	token, logged, err := s.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, logged.ID)

	claims, err := s.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, "a@x.com", claims.Email)
}

func TestRegister_DuplicateCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t, nil)

	_, err := s.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	_, err = s.Register(ctx, "A@x.COM", "other12")
	require.ErrorIs(t, err, ErrEmailExists)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t, nil)
	_, err := s.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	for _, tc := range []struct{ email, password string }{
		{"a@x.com", "wrong"},
		{"nobody@x.com", "secret1"},
		{"", ""},
	} {
		token, u, err := s.Login(ctx, tc.email, tc.password)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Empty(t, token)
		assert.Nil(t, u)
	}
}

func TestLogin_MixedCaseEmail(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t, nil)
	_, err := s.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	_, _, err = s.Login(ctx, " A@X.COM ", "secret1")
	require.NoError(t, err)
}

func TestLogin_Throttle(t *testing.T) {
	ctx := context.Background()
	throttle := newFakeThrottle(2)
	s, _ := newTestService(t, throttle)
	_, err := s.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, _, err = s.Login(ctx, "a@x.com", "bad")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// the right password is refused while blocked
	_, _, err = s.Login(ctx, "a@x.com", "secret1")
	require.ErrorIs(t, err, ErrTooManyAttempts)

	require.NoError(t, throttle.Reset(ctx, "a@x.com"))
	_, _, err = s.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
}

func TestLogin_ConcurrentFailuresStopAtLimit(t *testing.T) {
	ctx := context.Background()
	throttle := newFakeThrottle(3)
	s, _ := newTestService(t, throttle)
	_, err := s.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		invalid int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.Login(ctx, "a@x.com", "bad")
			if errors.Is(err, ErrInvalidCredentials) {
				mu.Lock()
				invalid++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// 只有前三次真正校验了密码
	assert.Equal(t, 3, invalid)
	_, _, err = s.Login(ctx, "a@x.com", "secret1")
	assert.ErrorIs(t, err, ErrTooManyAttempts)
}

func TestLogin_SuccessResetsThrottle(t *testing.T) {
	ctx := context.Background()
	throttle := newFakeThrottle(3)
	s, _ := newTestService(t, throttle)
	_, err := s.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	_, _, _ = s.Login(ctx, "a@x.com", "bad")
	_, _, err = s.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	assert.Zero(t, throttle.attempts["a@x.com"])
}

func TestLogin_ThrottleFailsOpen(t *testing.T) {
	ctx := context.Background()
	throttle := newFakeThrottle(1)
	throttle.err = errors.New("redis down")
	s, _ := newTestService(t, throttle)
	_, err := s.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	_, _, err = s.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
}
