package auth

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/storage"
)

var fixedNow = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	svc, err := NewService(Config{Store: store, Secret: "test-secret", TokenTTL: time.Hour, Logger: zerolog.Nop()})
	require.NoError(t, err)
	svc.WithNow(func() time.Time { return fixedNow })
	return svc, store
}

func requireAppCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, code, appErr.Code)
}

func TestLoginDerivesNameFromEmail(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Login(ctx, "d1", " Jane.Doe@Example.com ", "secret1")
	require.NoError(t, err)
	require.Equal(t, "jane.doe", sess.User.Name)
	require.Equal(t, "jane.doe@example.com", sess.User.Email)
	require.Equal(t, UserID("jane.doe@example.com"), sess.User.ID)
	require.NotEmpty(t, sess.Token)
	require.Equal(t, fixedNow.Add(time.Hour), sess.ExpiresAt)

	raw, err := store.Get(ctx, "d1:"+KeyIsAuthenticated)
	require.NoError(t, err)
	require.Equal(t, `"true"`, string(raw))
}

func TestLoginValidation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Login(context.Background(), "d1", "not-an-email", "secret1")
	requireAppCode(t, err, "VALIDATION_ERROR")

	_, err = svc.Login(context.Background(), "d1", "a@b.co", "12345")
	requireAppCode(t, err, "VALIDATION_ERROR")
}

func TestSignupThenLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Signup(ctx, "d1", "Ann", "ann@example.com", "hunter22")
	require.NoError(t, err)
	require.Equal(t, "Ann", sess.User.Name)

	_, err = svc.Signup(ctx, "d2", "Ann Again", "ANN@example.com", "other-pass")
	require.ErrorIs(t, err, ErrEmailInUse)

	_, err = svc.Login(ctx, "d2", "ann@example.com", "wrong-pass")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	again, err := svc.Login(ctx, "d2", "ann@example.com", "hunter22")
	require.NoError(t, err)
	require.Equal(t, "Ann", again.User.Name)
	require.Equal(t, sess.User.ID, again.User.ID)
}

func TestConcurrentSignupsKeepFirstCredential(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	const attempts = 3
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			password := fmt.Sprintf("secret-%d", i)
			_, err := svc.Signup(ctx, fmt.Sprintf("d%d", i), "Race", "race@example.com", password)
			if err != nil {
				require.ErrorIs(t, err, ErrEmailInUse)
				return
			}
			mu.Lock()
			winners = append(winners, password)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	_, err := svc.Login(ctx, "d9", "race@example.com", winners[0])
	require.NoError(t, err)
	for i := 0; i < attempts; i++ {
		if password := fmt.Sprintf("secret-%d", i); password != winners[0] {
			_, err := svc.Login(ctx, "d9", "race@example.com", password)
			require.ErrorIs(t, err, ErrInvalidCredentials)
		}
	}
}

func TestSignupValidation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Signup(context.Background(), "d1", "A", "a@example.com", "secret1")
	requireAppCode(t, err, "VALIDATION_ERROR")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, map[string]string{"name": "must be at least 2 characters"}, appErr.Details)
}

func TestCheckSessionLifecycle(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.CheckSession(ctx, "d1")
	require.ErrorIs(t, err, ErrNoSession)

	sess, err := svc.Login(ctx, "d1", "bob@example.com", "secret1")
	require.NoError(t, err)

	got, err := svc.CheckSession(ctx, "d1")
	require.NoError(t, err)
	require.Equal(t, sess.User, got.User)

	_, err = svc.CheckSession(ctx, "d2")
	require.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, store.Set(ctx, "d1:"+KeyIsAuthenticated, []byte(`"false"`)))
	_, err = svc.CheckSession(ctx, "d1")
	require.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, store.Set(ctx, "d1:"+KeyIsAuthenticated, []byte(`"true"`)))
	require.NoError(t, store.Delete(ctx, "d1:"+KeyUser))
	_, err = svc.CheckSession(ctx, "d1")
	require.ErrorIs(t, err, ErrNoSession)
}

func TestCheckSessionRejectsExpiredAndForeignTokens(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.Login(ctx, "d1", "bob@example.com", "secret1")
	require.NoError(t, err)

	svc.WithNow(func() time.Time { return fixedNow.Add(2 * time.Hour) })
	_, err = svc.CheckSession(ctx, "d1")
	require.ErrorIs(t, err, ErrInvalidToken)

	svc.WithNow(func() time.Time { return fixedNow })
	require.NoError(t, storage.SetJSON(ctx, store, "d1:"+KeyUser, User{ID: "someone-else"}))
	_, err = svc.CheckSession(ctx, "d1")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestLogoutClearsSession(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.Login(ctx, "d1", "bob@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, "d1"))

	for _, key := range []string{KeyToken, KeyIsAuthenticated, KeyUser} {
		_, err := store.Get(ctx, "d1:"+key)
		require.ErrorIs(t, err, storage.ErrNotFound)
	}
	require.NoError(t, svc.Logout(ctx, "d1"))
}

func TestParseTokenRejectsOtherSecrets(t *testing.T) {
	svc, _ := newTestService(t)
	other, err := NewService(Config{Store: storage.NewMemoryStore(), Secret: "different"})
	require.NoError(t, err)
	other.WithNow(func() time.Time { return fixedNow })

	token, _, err := other.signToken("user-1")
	require.NoError(t, err)

	_, err = svc.ParseToken(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ParseToken("not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestLoginHonoursLatencyCancellation(t *testing.T) {
	store := storage.NewMemoryStore()
	svc, err := NewService(Config{Store: store, Secret: "s", Latency: time.Minute})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Login(ctx, "d1", "bob@example.com", "secret1")
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, store.Len())
}
