package tokenizer

import (
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/layer-3/tonbridge/core"
)

const AudienceProof = "tonbridge:proof"

// DefaultProofTTL bounds how long a wallet may take to sign the proof
const DefaultProofTTL = 15 * time.Minute

// JWTTokenizer issues ton_proof payloads as ES256 JWTs
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
	ttl     time.Duration
	now     func() time.Time
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(signKey *ecdsa.PrivateKey, ttl time.Duration) *JWTTokenizer {
	if ttl <= 0 {
		ttl = DefaultProofTTL
	}
	return &JWTTokenizer{signKey: signKey, ttl: ttl, now: time.Now}
}

// IssuePayload signs a payload binding the chat and its state token
func (j *JWTTokenizer) IssuePayload(chatID, state string) (string, error) {
	now := j.now()
	claims := ProofClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   chatID,
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Audience:  jwt.ClaimStrings{AudienceProof},
		},
		Nonce: state,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign proof payload: %w", err)
	}

	return signedToken, nil
}

// parsePayload verifies a payload and returns the chat and state it was issued for.
// Payloads are checked by the connector sidecar with the public key; this mirrors that check.
func (j *JWTTokenizer) parsePayload(tokenStr string) (chatID, state string, err error) {
	token, err := jwt.ParseWithClaims(tokenStr, &ProofClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	}, jwt.WithAudience(AudienceProof), jwt.WithTimeFunc(j.now))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse proof payload: %w", err)
	}

	claims, ok := token.Claims.(*ProofClaims)
	if !ok || !token.Valid {
		return "", "", core.ErrInvalidState
	}

	return claims.Subject, claims.Nonce, nil
}
