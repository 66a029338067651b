package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scribe/models"
	"scribe/policy"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }

func newTestService(t *testing.T, clock *fakeClock) *Service {
	t.Helper()
	svc, err := NewService([]byte("test-secret"), time.Hour, WithClock(clock.Now))
	require.NoError(t, err)
	return svc
}

func TestNewService_RequiresSecret(t *testing.T) {
	_, err := NewService(nil, time.Hour)
	assert.Error(t, err)
}

func TestNewService_DefaultTTL(t *testing.T) {
	svc, err := NewService([]byte("k"), 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, svc.TTL())
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	clock := &fakeClock{t: epoch}
	svc := newTestService(t, clock)

	tests := []struct {
		userID string
		role   models.Role
	}{
		{"5f0c7a52-0000-4000-8000-000000000001", models.RoleReader},
		{"5f0c7a52-0000-4000-8000-000000000002", models.RoleAdmin},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			raw, err := svc.Issue(tt.userID, tt.role)
			require.NoError(t, err)

			id, err := svc.Verify(raw)
			require.NoError(t, err)
			assert.Equal(t, policy.Identity{UserID: tt.userID, Role: tt.role}, id)
		})
	}
}

func TestVerify_ExpiryBoundary(t *testing.T) {
	clock := &fakeClock{t: epoch}
	svc := newTestService(t, clock)

	raw, err := svc.Issue("user-1", models.RoleReader)
	require.NoError(t, err)

	clock.t = epoch.Add(time.Hour - time.Second)
	_, err = svc.Verify(raw)
	assert.NoError(t, err)

	clock.t = epoch.Add(time.Hour)
	_, err = svc.Verify(raw)
	assert.ErrorIs(t, err, ErrExpired)

	clock.t = epoch.Add(48 * time.Hour)
	_, err = svc.Verify(raw)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerify_Malformed(t *testing.T) {
	clock := &fakeClock{t: epoch}
	svc := newTestService(t, clock)

	raw, err := svc.Issue("user-1", models.RoleReader)
	require.NoError(t, err)

	other, err := NewService([]byte("another-secret"), time.Hour, WithClock(clock.Now))
	require.NoError(t, err)
	foreign, err := other.Issue("user-1", models.RoleAdmin)
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"wrong key", foreign},
		{"bad signature", tampered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Verify(tt.token)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	clock := &fakeClock{t: epoch}
	svc := newTestService(t, clock)

	claims := Claims{
		Role: string(models.RoleAdmin),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(epoch.Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.Verify(unsigned)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestVerify_RejectsBadClaims(t *testing.T) {
	clock := &fakeClock{t: epoch}
	svc := newTestService(t, clock)

	sign := func(c Claims) string {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		return raw
	}
	exp := jwt.NewNumericDate(epoch.Add(time.Hour))

	tests := []struct {
		name   string
		claims Claims
	}{
		{"unknown role", Claims{Role: "root", RegisteredClaims: jwt.RegisteredClaims{Subject: "u", ExpiresAt: exp}}},
		{"missing subject", Claims{Role: "reader", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}}},
		{"missing expiry", Claims{Role: "reader", RegisteredClaims: jwt.RegisteredClaims{Subject: "u"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Verify(sign(tt.claims))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestIssue_RejectsInvalidInput(t *testing.T) {
	svc := newTestService(t, &fakeClock{t: epoch})

	_, err := svc.Issue("", models.RoleReader)
	assert.Error(t, err)

	_, err = svc.Issue("user-1", models.Role("superuser"))
	assert.Error(t, err)
}
