package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/maheshrc27/postwatcher/internal/transfer"
	"github.com/rs/zerolog/log"
)

func GenerateToken(secretKey, operator string, tokenDuration time.Duration) (string, error) {
	claims := transfer.OperatorClaims{
		Operator: operator,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "postwatcher",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(secretKey))
	if err != nil {
		log.Error().Err(err).Msg("Sign status token")
		return "", err
	}

	return signedToken, nil
}

func ValidateToken(secretKey, tokenString string) (*transfer.OperatorClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &transfer.OperatorClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid token signing method")
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		log.Debug().Err(err).Msg("Parse status token")
		return nil, err
	}

	if claims, ok := token.Claims.(*transfer.OperatorClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
