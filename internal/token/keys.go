package token

import (
	"crypto/ecdsa"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// KeyPair holds the process signing key material. Loaded once at startup and
// read-only afterwards.
type KeyPair struct {
	Private *ecdsa.PrivateKey
	Public  *ecdsa.PublicKey
}

// LoadKeyPair reads PEM-encoded EC keys from the given files. Any failure is
// fatal at startup: the service must not run without valid key material.
func LoadKeyPair(privateFile, publicFile string) (*KeyPair, error) {
	privPEM, err := os.ReadFile(privateFile)
	if err != nil {
		return nil, fmt.Errorf("read private key %s: %w", privateFile, err)
	}
	pubPEM, err := os.ReadFile(publicFile)
	if err != nil {
		return nil, fmt.Errorf("read public key %s: %w", publicFile, err)
	}

	priv, err := jwt.ParseECPrivateKeyFromPEM(privPEM)
	if err != nil {
		return nil, fmt.Errorf("parse EC private key: %w", err)
	}
	pub, err := jwt.ParseECPublicKeyFromPEM(pubPEM)
	if err != nil {
		return nil, fmt.Errorf("parse EC public key: %w", err)
	}

	return &KeyPair{Private: priv, Public: pub}, nil
}
