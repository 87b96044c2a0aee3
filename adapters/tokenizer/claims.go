package tokenizer

import "github.com/golang-jwt/jwt/v5"

// ProofClaims bind a ton_proof payload to the handshake it was issued for
type ProofClaims struct {
	jwt.RegisteredClaims
	Nonce string `json:"nonce"` // State token of the handshake
}
