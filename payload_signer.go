package main

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// signatureLifetime bounds how long a signed upload stays acceptable.
const signatureLifetime = 5 * time.Minute

// JwtPayloadSigner signs upload bodies with an RS256 JWT carrying the
// SHA-256 of the body, sent in the X-Payload-Signature header.
type JwtPayloadSigner struct {
	privateKey *rsa.PrivateKey
	issuer     string
	now        func() time.Time
}

func NewJwtPayloadSigner(privateKeyPath, issuer string) (*JwtPayloadSigner, error) {
	keyBytes, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}

	return newJwtPayloadSigner(privateKey, issuer), nil
}

func newJwtPayloadSigner(key *rsa.PrivateKey, issuer string) *JwtPayloadSigner {
	return &JwtPayloadSigner{privateKey: key, issuer: issuer, now: time.Now}
}

func (s *JwtPayloadSigner) Sign(body []byte) (string, error) {
	sum := sha256.Sum256(body)
	now := s.now()

	claims := jwt.MapClaims{
		"iss":         s.issuer,
		"iat":         now.Unix(),
		"exp":         now.Add(signatureLifetime).Unix(),
		"body_sha256": hex.EncodeToString(sum[:]),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(s.privateKey)
}
