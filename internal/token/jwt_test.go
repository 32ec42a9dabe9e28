package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
)

var (
	fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	subject  = Subject{
		PrincipalID: id.NewPrincipalID(),
		Email:       "ada@example.com",
		Role:        "student",
	}
)

func newService(now func() time.Time) *Service {
	return New("test-signing-key", "student-course-api", "student-course-app", WithClock(now))
}

func Test_IssuePair(t *testing.T) {
	svc := newService(func() time.Time { return fixedNow })

	pair, err := svc.IssuePair(subject)
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.Equal(t, int64(3600), pair.ExpiresIn)

	claims, err := svc.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, subject.PrincipalID.String(), claims.PrincipalID)
	assert.Equal(t, subject.Email, claims.Email)
	assert.Equal(t, "student", claims.Role)
	assert.Equal(t, UseAccess, claims.TokenUse)
	assert.Equal(t, "student-course-api", claims.Issuer)
	assert.Equal(t, jwt.ClaimStrings{"student-course-app"}, claims.Audience)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, fixedNow.Add(time.Hour), claims.ExpiresAt.Time)

	refresh, err := svc.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(30*24*time.Hour), refresh.ExpiresAt.Time)

	principalID, err := claims.Principal()
	require.NoError(t, err)
	assert.Equal(t, subject.PrincipalID, principalID)
}

func Test_TokenUseIsEnforced(t *testing.T) {
	svc := newService(time.Now)
	pair, err := svc.IssuePair(subject)
	require.NoError(t, err)

	_, err = svc.VerifyAccess(pair.RefreshToken)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))

	_, err = svc.VerifyRefresh(pair.AccessToken)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
}

func Test_Verify_InvalidToken(t *testing.T) {
	svc := newService(time.Now)
	_, err := svc.Verify("invalid-token-string")
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
}

func Test_Verify_ExpiredToken(t *testing.T) {
	issued := newService(func() time.Time { return fixedNow })
	pair, err := issued.IssuePair(subject)
	require.NoError(t, err)

	later := newService(func() time.Time { return fixedNow.Add(2 * time.Hour) })
	_, err = later.VerifyAccess(pair.AccessToken)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "token has expired"))

	// the refresh token outlives the access token
	_, err = later.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)
}

func Test_Verify_TamperedToken(t *testing.T) {
	svc := newService(time.Now)
	pair, err := svc.IssuePair(subject)
	require.NoError(t, err)

	parts := strings.Split(pair.AccessToken, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = svc.VerifyAccess(tampered)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
}

func Test_Verify_WrongKeyIssuerAudience(t *testing.T) {
	svc := newService(time.Now)
	pair, err := svc.IssuePair(subject)
	require.NoError(t, err)

	others := map[string]*Service{
		"key":      New("another-key", "student-course-api", "student-course-app"),
		"issuer":   New("test-signing-key", "someone-else", "student-course-app"),
		"audience": New("test-signing-key", "student-course-api", "another-app"),
	}
	for name, other := range others {
		t.Run(name, func(t *testing.T) {
			_, err := other.VerifyAccess(pair.AccessToken)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		})
	}
}

func Test_Verify_RejectsNonHMAC(t *testing.T) {
	svc := newService(time.Now)
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		PrincipalID: subject.PrincipalID.String(),
		TokenUse:    UseAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    "student-course-api",
			Audience:  []string{"student-course-app"},
		},
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.VerifyAccess(raw)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
}

func Test_WithTTLs(t *testing.T) {
	svc := New("k", "i", "a", WithTTLs(15*time.Minute, 0))
	assert.Equal(t, 15*time.Minute, svc.AccessTTL())
	assert.Equal(t, DefaultRefreshTTL, svc.refreshTTL)
}
