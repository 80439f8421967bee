package transfer

import "github.com/golang-jwt/jwt/v5"

// OperatorClaims identify who may read the watcher status.
type OperatorClaims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}
