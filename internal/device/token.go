// Package device identifies the browser a feed belongs to. Watch history is
// scoped to a device, so each browser gets a random id carried in a signed
// cookie.
package device

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const TokenDuration = 365 * 24 * time.Hour

type Claims struct {
	DeviceID string `json:"deviceId"`
	jwt.RegisteredClaims
}

func Issue(secret, deviceID string) (string, error) {
	claims := &Claims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(TokenDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   deviceID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func Parse(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse device token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.DeviceID == "" {
		return nil, fmt.Errorf("invalid device token")
	}
	return claims, nil
}
