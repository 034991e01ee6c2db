package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/msgbottle/bottle-go/internal/clock"
	"github.com/msgbottle/bottle-go/internal/model"
	"github.com/msgbottle/bottle-go/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testLoginWindow = 5 * time.Minute
	testTokenWindow = 10 * 24 * time.Hour
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	db, err := repository.NewDB(ctx, repository.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, repository.Migrate(ctx, db, repository.DriverSQLite))
	return db
}

func newTestAuthService(t *testing.T) (*AuthService, *clock.FakeClock) {
	t.Helper()
	clk := clock.Fake(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewAuthService(newTestDB(t), clk, testLoginWindow, testTokenWindow), clk
}

// createUser inserts a user at a fixed coordinate, bypassing login.
func createUser(t *testing.T, db *sql.DB, email string, x, y float64) *model.User {
	t.Helper()
	user := &model.User{Email: email, X: x, Y: y, CreatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, repository.NewUserRepository(db).Create(context.Background(), user))
	return user
}

func TestOpenLogin_InvalidEmail(t *testing.T) {
	svc, _ := newTestAuthService(t)

	tests := []struct {
		name  string
		email string
	}{
		{name: "empty", email: ""},
		{name: "no at", email: "example.com"},
		{name: "no tld", email: "a@example"},
		{name: "short tld", email: "a@example.c"},
		{name: "too long", email: strings.Repeat("a", 110) + "@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.OpenLogin(context.Background(), tt.email)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestLoginFlow(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	key, err := svc.OpenLogin(ctx, "a@example.com")
	require.NoError(t, err)
	require.Len(t, key, 6)

	token, err := svc.CloseLogin(ctx, "a@example.com", strings.ToLower(key))
	require.NoError(t, err)
	require.Len(t, token, 20)

	user, err := svc.ResolveToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", user.Email)
	assert.GreaterOrEqual(t, user.X, 0.0)
	assert.Less(t, user.X, 1.0)
	assert.GreaterOrEqual(t, user.Y, 0.0)
	assert.Less(t, user.Y, 1.0)

	_, err = svc.CloseLogin(ctx, "a@example.com", key)
	assert.ErrorIs(t, err, ErrInvalidCredential, "a consumed key must not work twice")
}

func TestLoginFlow_SecondLoginKeepsUser(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	login := func() *model.User {
		key, err := svc.OpenLogin(ctx, "a@example.com")
		require.NoError(t, err)
		token, err := svc.CloseLogin(ctx, "a@example.com", key)
		require.NoError(t, err)
		user, err := svc.ResolveToken(ctx, token)
		require.NoError(t, err)
		return user
	}

	first := login()
	second := login()
	assert.Equal(t, first.X, second.X)
	assert.Equal(t, first.Y, second.Y)
}

func TestCloseLogin_SupersededKey(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	oldKey, err := svc.OpenLogin(ctx, "a@example.com")
	require.NoError(t, err)
	newKey, err := svc.OpenLogin(ctx, "a@example.com")
	require.NoError(t, err)

	if oldKey != newKey {
		_, err = svc.CloseLogin(ctx, "a@example.com", oldKey)
		assert.ErrorIs(t, err, ErrInvalidCredential)
	}

	_, err = svc.CloseLogin(ctx, "a@example.com", newKey)
	assert.NoError(t, err)
}

func TestCloseLogin_Expired(t *testing.T) {
	svc, clk := newTestAuthService(t)
	ctx := context.Background()

	key, err := svc.OpenLogin(ctx, "a@example.com")
	require.NoError(t, err)

	clk.Advance(testLoginWindow)

	_, err = svc.CloseLogin(ctx, "a@example.com", key)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestCloseLogin_WrongEmail(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	key, err := svc.OpenLogin(ctx, "a@example.com")
	require.NoError(t, err)

	_, err = svc.CloseLogin(ctx, "b@example.com", key)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestCloseLogin_MalformedKey(t *testing.T) {
	svc, _ := newTestAuthService(t)

	for _, key := range []string{"", "ABC", "ABCDEFG", "ABC-12"} {
		_, err := svc.CloseLogin(context.Background(), "a@example.com", key)
		assert.ErrorIs(t, err, ErrValidation, "key %q", key)
	}
}

func TestResolveToken(t *testing.T) {
	svc, clk := newTestAuthService(t)
	ctx := context.Background()

	key, err := svc.OpenLogin(ctx, "a@example.com")
	require.NoError(t, err)
	token, err := svc.CloseLogin(ctx, "a@example.com", key)
	require.NoError(t, err)

	t.Run("malformed", func(t *testing.T) {
		_, err := svc.ResolveToken(ctx, "short")
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := svc.ResolveToken(ctx, strings.Repeat("A", 20))
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})

	t.Run("just before expiry", func(t *testing.T) {
		clk.Advance(testTokenWindow - time.Second)
		_, err := svc.ResolveToken(ctx, token)
		assert.NoError(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		clk.Advance(time.Second)
		_, err := svc.ResolveToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})
}
