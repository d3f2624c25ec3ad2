package identity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/donustur/donustur/internal/identity"
	"github.com/donustur/donustur/internal/identity/mocks"
	"github.com/donustur/donustur/internal/logging"
)

type fixture struct {
	svc    *identity.Service
	repo   identity.Repository
	codes  *identity.MemoryCodeStore
	mailer *mocks.MockCodeMailer
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	repo := identity.NewMemoryRepository()
	codes := identity.NewMemoryCodeStore()
	mailer := mocks.NewMockCodeMailer(ctrl)
	svc := identity.NewService(repo, codes, mailer, logging.Discard(), time.Hour)
	return fixture{svc: svc, repo: repo, codes: codes, mailer: mailer}
}

func (f fixture) register(t *testing.T, email string) identity.User {
	t.Helper()
	f.mailer.EXPECT().SendCode(gomock.Any(), "CustomMessage_SignUp", email, gomock.Any()).Return(nil)
	user, err := f.svc.Register(context.Background(), identity.RegisterInput{Email: email, Password: "geri-donusum"})
	require.NoError(t, err)
	return user
}

func (f fixture) confirm(t *testing.T, email string) identity.User {
	t.Helper()
	code, ok := f.codes.Peek(identity.PurposeConfirm, email)
	require.True(t, ok)
	user, err := f.svc.Confirm(context.Background(), email, code)
	require.NoError(t, err)
	return user
}

func TestRegisterConfirmAndAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var hooked []string
	f.svc.OnConfirmed(func(_ context.Context, u identity.User) error {
		hooked = append(hooked, u.ID)
		return nil
	})

	user := f.register(t, "ayse@example.com")
	assert.False(t, user.Confirmed)
	assert.True(t, user.Enabled)

	_, err := f.svc.Authenticate(ctx, "ayse@example.com", "geri-donusum")
	assert.ErrorIs(t, err, identity.ErrNotConfirmed)

	confirmed := f.confirm(t, "ayse@example.com")
	assert.True(t, confirmed.Confirmed)
	assert.Equal(t, "ayse", confirmed.Name)
	assert.Equal(t, []string{user.ID}, hooked)

	authed, err := f.svc.Authenticate(ctx, "  AYSE@example.com ", "geri-donusum")
	require.NoError(t, err)
	require.NotNil(t, authed.LastLogin)

	_, err = f.svc.Authenticate(ctx, "ayse@example.com", "wrong-password")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
	_, err = f.svc.Authenticate(ctx, "nobody@example.com", "geri-donusum")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, identity.RegisterInput{Email: "not-an-email", Password: "long-enough"})
	assert.ErrorIs(t, err, identity.ErrInvalidEmail)

	_, err = f.svc.Register(ctx, identity.RegisterInput{Email: "a@example.com", Password: "short"})
	assert.ErrorIs(t, err, identity.ErrWeakPassword)

	f.register(t, "a@example.com")
	_, err = f.svc.Register(ctx, identity.RegisterInput{Email: "A@example.com", Password: "long-enough"})
	assert.ErrorIs(t, err, identity.ErrEmailTaken)
}

func TestConfirmIsIdempotentAndHookFailureIsLogged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	calls := 0
	f.svc.OnConfirmed(func(context.Context, identity.User) error {
		calls++
		return errors.New("ledger unavailable")
	})

	f.register(t, "b@example.com")
	_, err := f.svc.Confirm(ctx, "b@example.com", "000000x")
	assert.ErrorIs(t, err, identity.ErrInvalidCode)

	f.confirm(t, "b@example.com")
	again, err := f.svc.Confirm(ctx, "b@example.com", "anything")
	require.NoError(t, err)
	assert.True(t, again.Confirmed)
	assert.Equal(t, 1, calls)
}

func TestResendCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "c@example.com")
	first, _ := f.codes.Peek(identity.PurposeConfirm, "c@example.com")

	var resent string
	f.mailer.EXPECT().SendCode(gomock.Any(), "CustomMessage_ResendCode", "c@example.com", gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _, code string) error {
			resent = code
			return nil
		})
	require.NoError(t, f.svc.ResendCode(ctx, "c@example.com"))
	latest, _ := f.codes.Peek(identity.PurposeConfirm, "c@example.com")
	assert.Equal(t, resent, latest)
	assert.Len(t, first, 6)

	f.confirm(t, "c@example.com")
	require.NoError(t, f.svc.ResendCode(ctx, "c@example.com"))
	_, pending := f.codes.Peek(identity.PurposeConfirm, "c@example.com")
	assert.False(t, pending)
}

func TestResendCodeHidesUnknownEmails(t *testing.T) {
	f := newFixture(t)
	// no SendCode expectation: the mock fails the test if mail is sent
	require.NoError(t, f.svc.ResendCode(context.Background(), "nobody@example.com"))
	_, ok := f.codes.Peek(identity.PurposeConfirm, "nobody@example.com")
	assert.False(t, ok)
}

func TestResetCodeBurnedAfterRepeatedMisses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "g@example.com")
	f.confirm(t, "g@example.com")

	f.mailer.EXPECT().SendCode(gomock.Any(), "CustomMessage_ForgotPassword", "g@example.com", gomock.Any()).Return(nil)
	require.NoError(t, f.svc.ForgotPassword(ctx, "g@example.com"))
	code, ok := f.codes.Peek(identity.PurposeReset, "g@example.com")
	require.True(t, ok)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	for i := 0; i < identity.MaxCodeAttempts; i++ {
		assert.ErrorIs(t, f.svc.ResetPassword(ctx, "g@example.com", wrong, "ele-gecirildi"), identity.ErrInvalidCode)
	}
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "g@example.com", code, "ele-gecirildi"), identity.ErrInvalidCode)

	_, err := f.svc.Authenticate(ctx, "g@example.com", "ele-gecirildi")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
	_, err = f.svc.Authenticate(ctx, "g@example.com", "geri-donusum")
	assert.NoError(t, err)
}

func TestForgotAndResetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "d@example.com")
	confirmed := f.confirm(t, "d@example.com")

	require.NoError(t, f.svc.ForgotPassword(ctx, "ghost@example.com"))

	f.mailer.EXPECT().SendCode(gomock.Any(), "CustomMessage_ForgotPassword", "d@example.com", gomock.Any()).Return(nil)
	require.NoError(t, f.svc.ForgotPassword(ctx, "d@example.com"))
	code, ok := f.codes.Peek(identity.PurposeReset, "d@example.com")
	require.True(t, ok)

	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "d@example.com", code, "short"), identity.ErrWeakPassword)
	require.NoError(t, f.svc.ResetPassword(ctx, "d@example.com", code, "yeni-sifre-123"))
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "d@example.com", code, "yeni-sifre-123"), identity.ErrInvalidCode)

	user, err := f.svc.Authenticate(ctx, "d@example.com", "yeni-sifre-123")
	require.NoError(t, err)
	assert.Equal(t, confirmed.TokenVersion+1, user.TokenVersion)
}

func TestAuthenticateDisabledUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "e@example.com")
	user := f.confirm(t, "e@example.com")

	_, err := f.repo.Modify(ctx, user.ID, func(u *identity.User) error {
		u.Enabled = false
		return nil
	})
	require.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, "e@example.com", "geri-donusum")
	assert.ErrorIs(t, err, identity.ErrUserDisabled)
}

func TestRegisterMailFailure(t *testing.T) {
	f := newFixture(t)
	f.mailer.EXPECT().SendCode(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("queue full"))
	_, err := f.svc.Register(context.Background(), identity.RegisterInput{Email: "f@example.com", Password: "long-enough"})
	assert.Error(t, err)
}

func TestRegisterCreateFailureSkipsMail(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)
	mailer := mocks.NewMockCodeMailer(ctrl)
	svc := identity.NewService(repo, identity.NewMemoryCodeStore(), mailer, logging.Discard(), time.Hour)

	repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(identity.ErrEmailTaken)
	_, err := svc.Register(context.Background(), identity.RegisterInput{Email: "g@example.com", Password: "long-enough"})
	assert.ErrorIs(t, err, identity.ErrEmailTaken)
}

func TestRevokeTokens(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "h@example.com")
	revoked, err := f.svc.RevokeTokens(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.TokenVersion+1, revoked.TokenVersion)
}

func TestRedisCodeStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	store := identity.NewRedisCodeStore(client)
	require.NoError(t, store.Save(ctx, identity.PurposeConfirm, "A@example.com", "123456", time.Minute))

	assert.ErrorIs(t, store.Consume(ctx, identity.PurposeConfirm, "a@example.com", "654321"), identity.ErrInvalidCode)
	require.NoError(t, store.Consume(ctx, identity.PurposeConfirm, "a@example.com", "123456"))
	assert.ErrorIs(t, store.Consume(ctx, identity.PurposeConfirm, "a@example.com", "123456"), identity.ErrInvalidCode)

	require.NoError(t, store.Save(ctx, identity.PurposeReset, "a@example.com", "111111", time.Minute))
	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, store.Consume(ctx, identity.PurposeReset, "a@example.com", "111111"), identity.ErrInvalidCode)
}

func TestCodeStoresDiscardCodeAfterMaxAttempts(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	stores := map[string]identity.CodeStore{
		"redis":  identity.NewRedisCodeStore(client),
		"memory": identity.NewMemoryCodeStore(),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Save(ctx, identity.PurposeReset, "h@example.com", "424242", time.Minute))
			for i := 0; i < identity.MaxCodeAttempts-1; i++ {
				assert.ErrorIs(t, store.Consume(ctx, identity.PurposeReset, "h@example.com", "000000"), identity.ErrInvalidCode)
			}
			// still valid one miss short of the limit
			require.NoError(t, store.Consume(ctx, identity.PurposeReset, "h@example.com", "424242"))

			require.NoError(t, store.Save(ctx, identity.PurposeReset, "h@example.com", "535353", time.Minute))
			for i := 0; i < identity.MaxCodeAttempts; i++ {
				assert.ErrorIs(t, store.Consume(ctx, identity.PurposeReset, "h@example.com", "000000"), identity.ErrInvalidCode)
			}
			assert.ErrorIs(t, store.Consume(ctx, identity.PurposeReset, "h@example.com", "535353"), identity.ErrInvalidCode)

			// a fresh code starts with a clean counter
			require.NoError(t, store.Save(ctx, identity.PurposeReset, "h@example.com", "646464", time.Minute))
			assert.ErrorIs(t, store.Consume(ctx, identity.PurposeReset, "h@example.com", "000000"), identity.ErrInvalidCode)
			require.NoError(t, store.Consume(ctx, identity.PurposeReset, "h@example.com", "646464"))
		})
	}
	assert.False(t, mr.Exists("code:reset:h@example.com:attempts"))
}

func TestMemoryRepositoryListPaging(t *testing.T) {
	ctx := context.Background()
	repo := identity.NewMemoryRepository()
	for _, email := range []string{"c@x.io", "a@x.io", "b@x.io", "admin@y.io"} {
		require.NoError(t, repo.Create(ctx, identity.User{ID: email, Email: email}))
	}

	page, err := repo.List(ctx, identity.ListQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Users, 2)
	assert.Equal(t, "a@x.io", page.Users[0].Email)
	assert.Equal(t, "admin@y.io", page.Users[1].Email)
	require.NotEmpty(t, page.NextCursor)

	page, err = repo.List(ctx, identity.ListQuery{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, page.Users, 2)
	assert.Equal(t, "c@x.io", page.Users[1].Email)
	assert.Empty(t, page.NextCursor)

	page, err = repo.List(ctx, identity.ListQuery{EmailPrefix: "ad"})
	require.NoError(t, err)
	require.Len(t, page.Users, 1)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = repo.List(ctx, identity.ListQuery{Cursor: "%%%"})
	assert.Error(t, err)
}
