package config

import (
	"bytes"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/medieye/med-reminder/internal/domain"
)

// VAPIDKeys are base64url (unpadded) P-256 keys as Web Push expects them.
type VAPIDKeys struct {
	PublicKey  string
	PrivateKey string
}

// LoadVAPIDKeys reads both key files. Each may be PEM or raw base64url.
func LoadVAPIDKeys(privatePath, publicPath string) (VAPIDKeys, error) {
	privRaw, err := os.ReadFile(privatePath)
	if err != nil {
		return VAPIDKeys{}, &domain.ConfigurationError{Field: "VAPID_PRIVATE_KEY_FILE", Err: err}
	}
	pubRaw, err := os.ReadFile(publicPath)
	if err != nil {
		return VAPIDKeys{}, &domain.ConfigurationError{Field: "VAPID_PUBLIC_KEY_FILE", Err: err}
	}

	priv, err := parsePrivateKey(privRaw)
	if err != nil {
		return VAPIDKeys{}, &domain.ConfigurationError{Field: "VAPID_PRIVATE_KEY_FILE", Err: err}
	}
	pub, err := parsePublicKey(pubRaw)
	if err != nil {
		return VAPIDKeys{}, &domain.ConfigurationError{Field: "VAPID_PUBLIC_KEY_FILE", Err: err}
	}

	if !bytes.Equal(priv.PublicKey().Bytes(), pub) {
		return VAPIDKeys{}, &domain.ConfigurationError{Field: "VAPID_PUBLIC_KEY_FILE", Err: errors.New("public key does not match private key")}
	}

	return VAPIDKeys{
		PublicKey:  base64.RawURLEncoding.EncodeToString(pub),
		PrivateKey: base64.RawURLEncoding.EncodeToString(priv.Bytes()),
	}, nil
}

// WriteVAPIDKeys stores a base64url key pair, one key per file.
func WriteVAPIDKeys(privatePath, publicPath string, keys VAPIDKeys) error {
	if err := os.WriteFile(privatePath, []byte(keys.PrivateKey+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}
	if err := os.WriteFile(publicPath, []byte(keys.PublicKey+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}
	return nil
}

func parsePrivateKey(data []byte) (*ecdh.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		raw, err := decodeBase64URL(data)
		if err != nil {
			return nil, err
		}
		return ecdh.P256().NewPrivateKey(raw)
	}

	var key any
	var err error
	switch block.Type {
	case "EC PRIVATE KEY":
		key, err = x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	default:
		return nil, fmt.Errorf("unsupported PEM block %q", block.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	ec, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is %T, want ECDSA P-256", key)
	}
	return ec.ECDH()
}

func parsePublicKey(data []byte) ([]byte, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		raw, err := decodeBase64URL(data)
		if err != nil {
			return nil, err
		}
		if _, err := ecdh.P256().NewPublicKey(raw); err != nil {
			return nil, fmt.Errorf("public key: %w", err)
		}
		return raw, nil
	}

	if block.Type != "PUBLIC KEY" {
		return nil, fmt.Errorf("unsupported PEM block %q", block.Type)
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	ec, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is %T, want ECDSA P-256", key)
	}
	pub, err := ec.ECDH()
	if err != nil {
		return nil, err
	}
	return pub.Bytes(), nil
}

func decodeBase64URL(data []byte) ([]byte, error) {
	s := strings.TrimRight(strings.TrimSpace(string(data)), "=")
	if s == "" {
		return nil, errors.New("key file is empty")
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("key is neither PEM nor base64url: %w", err)
	}
	return raw, nil
}
