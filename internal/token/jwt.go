// Package token issues and verifies the signed bearer credentials handed to clients.
// Tokens are stateless: verification depends only on the signing key, the claims and the clock.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
)

// Use distinguishes access tokens from refresh tokens.
type Use string

const (
	UseAccess  Use = "access"
	UseRefresh Use = "refresh"
)

const (
	DefaultAccessTTL  = time.Hour
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

// Claims represents the JWT claims carried by both token kinds.
type Claims struct {
	PrincipalID string `json:"principal_id"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	TokenUse    Use    `json:"token_use"`
	jwt.RegisteredClaims
}

// Principal returns the parsed principal id carried by the token.
func (c *Claims) Principal() (id.PrincipalID, error) {
	return id.ParsePrincipalID(c.PrincipalID)
}

// Subject is the identity a token pair is minted for.
type Subject struct {
	PrincipalID id.PrincipalID
	Email       string
	Role        string
}

// Pair is the credential pair handed to clients after login, registration or refresh.
type Pair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Service handles JWT creation and validation
type Service struct {
	signingKey []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

type Option func(*Service)

func WithTTLs(access, refresh time.Duration) Option {
	return func(s *Service) {
		if access > 0 {
			s.accessTTL = access
		}
		if refresh > 0 {
			s.refreshTTL = refresh
		}
	}
}

// WithClock overrides the time source used for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(signingKey, issuer, audience string, opts ...Option) *Service {
	s := &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AccessTTL reports the lifetime of issued access tokens.
func (s *Service) AccessTTL() time.Duration {
	return s.accessTTL
}

// IssuePair mints an access token and a refresh token for subject.
func (s *Service) IssuePair(subject Subject) (*Pair, error) {
	access, err := s.sign(subject, UseAccess, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(subject, UseRefresh, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessTTL / time.Second),
	}, nil
}

func (s *Service) sign(subject Subject, use Use, ttl time.Duration) (string, error) {
	now := s.now()
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		PrincipalID: subject.PrincipalID.String(),
		Email:       subject.Email,
		Role:        subject.Role,
		TokenUse:    use,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.PrincipalID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})

	signed, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return signed, nil
}

// Verify checks signature, algorithm, issuer, audience and expiry.
// Expired tokens report "token has expired"; every other failure reports "invalid token".
func (s *Service) Verify(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if _, err := claims.Principal(); err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return claims, nil
}

// VerifyAccess accepts only access tokens.
func (s *Service) VerifyAccess(tokenString string) (*Claims, error) {
	return s.verifyUse(tokenString, UseAccess)
}

// VerifyRefresh accepts only refresh tokens.
func (s *Service) VerifyRefresh(tokenString string) (*Claims, error) {
	return s.verifyUse(tokenString, UseRefresh)
}

func (s *Service) verifyUse(tokenString string, use Use) (*Claims, error) {
	claims, err := s.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenUse != use {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return claims, nil
}
