package auth

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"smart-coop/internal/config"
	"smart-coop/internal/database"
	"smart-coop/internal/logger"
	"smart-coop/internal/models"
	"smart-coop/internal/repository"
	redisrepo "smart-coop/internal/repository/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	clock     clockwork.FakeClock
	tokens    *TokenManager
	blacklist *repository.BlacklistRepository
	users     *repository.UserRepository
	gate      *Gate
	revoker   *Revoker
	sweeper   *BlacklistSweeper
	user      *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Init(config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "auth.db")})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	tokens, err := NewTokenManager(TokenOptions{Secret: "test-secret", Issuer: "smart-coop", TTL: time.Hour, Clock: clock})
	require.NoError(t, err)

	f := &fixture{
		clock:     clock,
		tokens:    tokens,
		blacklist: repository.NewBlacklistRepository(db),
		users:     repository.NewUserRepository(db),
	}
	f.gate = NewGate(tokens, f.blacklist, f.users)
	f.revoker = NewRevoker(tokens, f.blacklist)
	f.sweeper = NewBlacklistSweeper(f.blacklist, clock, logger.Discard())

	f.user = &models.User{Username: "alice", Email: "alice@example.com", PasswordHash: "x", Role: models.RoleUser, Status: models.StatusActive}
	require.NoError(t, f.users.Create(context.Background(), f.user))
	return f
}

func TestNewTokenManager_RequiresSecret(t *testing.T) {
	_, err := NewTokenManager(TokenOptions{TTL: time.Hour})
	assert.Error(t, err)
	_, err = NewTokenManager(TokenOptions{Secret: "s"})
	assert.Error(t, err)
}

func TestIssue_Claims(t *testing.T) {
	f := newFixture(t)
	admin := &models.User{ID: 42, Role: models.RoleAdmin}

	raw, exp, err := f.tokens.Issue(admin)
	require.NoError(t, err)
	assert.WithinDuration(t, f.clock.Now().Add(time.Hour), exp, 0)

	claims, err := f.tokens.Parse(raw)
	require.NoError(t, err)
	assert.EqualValues(t, 42, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, "smart-coop", claims.Issuer)
	assert.NotEmpty(t, claims.ID)

	other, _, err := f.tokens.Issue(admin)
	require.NoError(t, err)
	assert.NotEqual(t, raw, other, "jti makes every token unique")
}

func TestParse_Rejections(t *testing.T) {
	f := newFixture(t)
	raw, _, err := f.tokens.Issue(f.user)
	require.NoError(t, err)

	forged, err := NewTokenManager(TokenOptions{Secret: "other", Issuer: "smart-coop", TTL: time.Hour, Clock: f.clock})
	require.NoError(t, err)
	forgedRaw, _, err := forged.Issue(f.user)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: f.user.ID})
	noneRaw, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":    "not-a-jwt",
		"bad secret": forgedRaw,
		"alg none":   noneRaw,
		"truncated":  raw[:len(raw)-4],
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.tokens.Parse(token)
			assert.ErrorIs(t, err, ErrUnauthenticated)
			assert.NotErrorIs(t, err, ErrSessionExpired)
		})
	}
}

func TestParse_ResetTokenIsNotASession(t *testing.T) {
	f := newFixture(t)
	reset, err := NewTokenManager(TokenOptions{Secret: "test-secret", Issuer: "smart-coop", Audience: AudienceReset, TTL: time.Hour, Clock: f.clock})
	require.NoError(t, err)

	resetRaw, _, err := reset.Issue(f.user)
	require.NoError(t, err)
	_, err = f.tokens.Parse(resetRaw)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	sessionRaw, _, err := f.tokens.Issue(f.user)
	require.NoError(t, err)
	_, err = reset.Parse(sessionRaw)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = reset.Parse(resetRaw)
	assert.NoError(t, err)
}

func TestDecode_ReadsExpiredTokens(t *testing.T) {
	f := newFixture(t)
	raw, exp, err := f.tokens.Issue(f.user)
	require.NoError(t, err)
	f.clock.Advance(2 * time.Hour)

	claims, err := f.tokens.Decode(raw)
	require.NoError(t, err)
	assert.WithinDuration(t, exp, claims.ExpiresAt.Time, 0)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{UserID: 1}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = f.tokens.Decode(noExp)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

// ============ gate ============

func TestGate_AcceptsValidToken(t *testing.T) {
	f := newFixture(t)
	raw, _, err := f.tokens.Issue(f.user)
	require.NoError(t, err)

	user, claims, err := f.gate.Authenticate(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, user.ID)
	assert.Equal(t, f.user.ID, claims.UserID)
}

func TestGate_MissingToken(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.gate.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingToken)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestGate_ExpiredTokenIsSessionExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	raw, _, err := f.tokens.Issue(f.user)
	require.NoError(t, err)
	revokedRaw, _, err := f.tokens.Issue(f.user)
	require.NoError(t, err)
	require.NoError(t, f.revoker.Revoke(ctx, revokedRaw))

	f.clock.Advance(time.Hour)

	for _, token := range []string{raw, revokedRaw} {
		_, _, err = f.gate.Authenticate(ctx, token)
		assert.ErrorIs(t, err, ErrSessionExpired)
		assert.NotErrorIs(t, err, ErrUnauthenticated)
	}
}

func TestGate_BlacklistedTokenIsUnauthenticated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	raw, _, err := f.tokens.Issue(f.user)
	require.NoError(t, err)

	require.NoError(t, f.revoker.Revoke(ctx, raw))
	_, _, err = f.gate.Authenticate(ctx, raw)
	assert.ErrorIs(t, err, ErrRevoked)

	// a second revoke changes nothing
	require.NoError(t, f.revoker.Revoke(ctx, raw))
	_, _, err = f.gate.Authenticate(ctx, raw)
	assert.ErrorIs(t, err, ErrRevoked)

	other, _, err := f.tokens.Issue(f.user)
	require.NoError(t, err)
	_, _, err = f.gate.Authenticate(ctx, other)
	assert.NoError(t, err, "revocation is per token")
}

func TestGate_UnknownOrDisabledUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ghost, _, err := f.tokens.Issue(&models.User{ID: 999})
	require.NoError(t, err)
	_, _, err = f.gate.Authenticate(ctx, ghost)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	raw, _, err := f.tokens.Issue(f.user)
	require.NoError(t, err)
	require.NoError(t, f.users.Update(ctx, f.user.ID, map[string]interface{}{"status": models.StatusDisabled}))
	_, _, err = f.gate.Authenticate(ctx, raw)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestRevoke_RejectsForgedToken(t *testing.T) {
	f := newFixture(t)
	forged, err := NewTokenManager(TokenOptions{Secret: "other", TTL: time.Hour, Clock: f.clock})
	require.NoError(t, err)
	raw, _, err := forged.Issue(f.user)
	require.NoError(t, err)

	assert.ErrorIs(t, f.revoker.Revoke(context.Background(), raw), ErrUnauthenticated)
	ok, err := f.blacklist.Contains(context.Background(), raw)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConsume_SingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	raw, _, err := f.tokens.Issue(f.user)
	require.NoError(t, err)

	require.NoError(t, f.revoker.Consume(ctx, raw))
	assert.ErrorIs(t, f.revoker.Consume(ctx, raw), ErrRevoked)
	_, _, err = f.gate.Authenticate(ctx, raw)
	assert.ErrorIs(t, err, ErrRevoked)
}

func TestConsume_ConcurrentCallersOneWins(t *testing.T) {
	srv := miniredis.RunT(t)
	client, err := redisrepo.Connect(context.Background(), "redis://"+srv.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	f := newFixture(t)
	revoker := NewRevoker(f.tokens, redisrepo.NewBlacklistRepository(client, f.clock))
	raw, _, err := f.tokens.Issue(f.user)
	require.NoError(t, err)

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = revoker.Consume(context.Background(), raw)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrRevoked)
	}
	assert.Equal(t, 1, wins)
}

// ============ sweep ============

func TestSweep_RespectsTokenExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	raw, exp, err := f.tokens.Issue(f.user)
	require.NoError(t, err)
	require.NoError(t, f.revoker.Revoke(ctx, raw))

	f.clock.Advance(exp.Sub(f.clock.Now()) - time.Second)
	require.NoError(t, f.sweeper.Run(ctx))
	ok, err := f.blacklist.Contains(ctx, raw)
	require.NoError(t, err)
	assert.True(t, ok, "row survives until the token expires")

	f.clock.Advance(2 * time.Second)
	require.NoError(t, f.sweeper.Run(ctx))
	ok, err = f.blacklist.Contains(ctx, raw)
	require.NoError(t, err)
	assert.False(t, ok, "row removed once the token expired")
}

func TestLifecycle_IssueRevokeSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	raw, _, err := f.tokens.Issue(f.user)
	require.NoError(t, err)
	_, _, err = f.gate.Authenticate(ctx, raw)
	require.NoError(t, err)

	require.NoError(t, f.revoker.Revoke(ctx, raw))
	_, _, err = f.gate.Authenticate(ctx, raw)
	require.ErrorIs(t, err, ErrUnauthenticated)

	f.clock.Advance(time.Hour + time.Minute)
	require.NoError(t, f.sweeper.Run(ctx))
	ok, err := f.blacklist.Contains(ctx, raw)
	require.NoError(t, err)
	require.False(t, ok)

	_, _, err = f.gate.Authenticate(ctx, raw)
	assert.ErrorIs(t, err, ErrSessionExpired)
}
