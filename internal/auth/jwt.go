package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token kinds.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

// TokenPair holds access and refresh tokens.
type TokenPair struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	AccessExp    time.Time `json:"accessExpiresAt"`
	RefreshExp   time.Time `json:"refreshExpiresAt"`
}

// Claims represents JWT payload. The subject is the session id.
type Claims struct {
	Kind string `json:"kind"`
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs gateway tokens.
type Issuer struct {
	Name       string
	Key        string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	now        func() time.Time
}

func NewIssuer(name, key string, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{Name: name, Key: key, AccessTTL: accessTTL, RefreshTTL: refreshTTL, now: time.Now}
}

// Issue issues signed access and refresh tokens for a session. Neither
// token outlives notAfter when it is set.
func (i *Issuer) Issue(sessionID, role string, notAfter time.Time) (TokenPair, error) {
	now := i.now()
	accessExp := clamp(now.Add(i.AccessTTL), notAfter)
	refreshExp := clamp(now.Add(i.RefreshTTL), notAfter)

	accessToken, err := i.sign(sessionID, role, KindAccess, now, accessExp)
	if err != nil {
		return TokenPair{}, err
	}
	refreshToken, err := i.sign(sessionID, role, KindRefresh, now, refreshExp)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

func (i *Issuer) sign(subject, role, kind string, now, exp time.Time) (string, error) {
	claims := Claims{
		Kind: kind,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.Name,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.Key))
}

// Parse validates a token of the given kind and returns claims.
func (i *Issuer) Parse(tokenStr, kind string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(i.Key), nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if i.Name != "" && claims.Issuer != i.Name {
		return Claims{}, errors.New("issuer mismatch")
	}
	if claims.Kind != kind {
		return Claims{}, errors.New("wrong token kind")
	}
	if claims.Subject == "" {
		return Claims{}, errors.New("token has no subject")
	}
	return *claims, nil
}

func clamp(t, notAfter time.Time) time.Time {
	if !notAfter.IsZero() && notAfter.Before(t) {
		return notAfter
	}
	return t
}
