package jwttoken

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	tokenExp = time.Hour * 3
)

type Claims struct {
	jwt.RegisteredClaims
	UserID string
	Role   string
}

// Manager signs and verifies HS256 tokens issued by the storefront's auth provider.
type Manager struct {
	secretKey []byte
}

func New(secretKey string) *Manager {
	return &Manager{secretKey: []byte(secretKey)}
}

func (m *Manager) Parse(accessToken string) (Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(
		accessToken,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return m.secretKey, nil
		},
	)

	if err != nil {
		return Claims{}, err
	}

	if !token.Valid || claims.UserID == "" {
		return Claims{}, fmt.Errorf("token is not valid")
	}

	if claims.Role == "" {
		claims.Role = RoleUser
	}

	return *claims, nil
}

func (m *Manager) Generate(userID string, role string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenExp)),
		},
		UserID: userID,
		Role:   role,
	})

	return token.SignedString(m.secretKey)
}
