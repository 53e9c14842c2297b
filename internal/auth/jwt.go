package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleAdmin = "admin"

	AccessCookie  = "junks_access"
	RefreshCookie = "junks_refresh"

	kindAccess  = "access"
	kindRefresh = "refresh"
)

var ErrWrongTokenKind = errors.New("wrong token kind")

type Manager struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
}

type Claims struct {
	Role string `json:"role"`
	Kind string `json:"kind"`
	jwt.RegisteredClaims
}

func (m *Manager) newToken(subject, role, kind string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.Secret)
}

func (m *Manager) NewAccessToken(subject, role string) (string, error) {
	return m.newToken(subject, role, kindAccess, m.AccessTTL)
}

func (m *Manager) NewRefreshToken(subject, role string) (string, error) {
	return m.newToken(subject, role, kindRefresh, m.RefreshTTL)
}

func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return m.Secret, nil
	}, jwt.WithIssuer(m.Issuer))
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func (m *Manager) ParseAccess(tokenStr string) (*Claims, error) {
	return m.parseKind(tokenStr, kindAccess)
}

func (m *Manager) ParseRefresh(tokenStr string) (*Claims, error) {
	return m.parseKind(tokenStr, kindRefresh)
}

func (m *Manager) parseKind(tokenStr, kind string) (*Claims, error) {
	claims, err := m.Parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, ErrWrongTokenKind
	}
	return claims, nil
}
