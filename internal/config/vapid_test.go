package config

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/medieye/med-reminder/internal/domain"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func publicPEM(t *testing.T, key *ecdsa.PrivateKey) []byte {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
}

func expectedKeys(t *testing.T, key *ecdsa.PrivateKey) VAPIDKeys {
	t.Helper()
	priv, err := key.ECDH()
	if err != nil {
		t.Fatal(err)
	}
	return VAPIDKeys{
		PublicKey:  base64.RawURLEncoding.EncodeToString(priv.PublicKey().Bytes()),
		PrivateKey: base64.RawURLEncoding.EncodeToString(priv.Bytes()),
	}
}

func TestLoadVAPIDKeys_PEM(t *testing.T) {
	key := newKey(t)

	sec1, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}
	pkcs8, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		block *pem.Block
	}{
		{"sec1", &pem.Block{Type: "EC PRIVATE KEY", Bytes: sec1}},
		{"pkcs8", &pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			privPath := writeFile(t, "private_key.pem", pem.EncodeToMemory(tt.block))
			pubPath := writeFile(t, "public_key.pem", publicPEM(t, key))

			keys, err := LoadVAPIDKeys(privPath, pubPath)
			if err != nil {
				t.Fatal(err)
			}
			if keys != expectedKeys(t, key) {
				t.Errorf("got %+v, want %+v", keys, expectedKeys(t, key))
			}
			if len(keys.PublicKey) != 87 {
				t.Errorf("uncompressed P-256 key should encode to 87 chars, got %d", len(keys.PublicKey))
			}
		})
	}
}

func TestLoadVAPIDKeys_RawRoundTrip(t *testing.T) {
	want := expectedKeys(t, newKey(t))
	dir := t.TempDir()
	privPath := filepath.Join(dir, "private_key.pem")
	pubPath := filepath.Join(dir, "public_key.pem")

	if err := WriteVAPIDKeys(privPath, pubPath, want); err != nil {
		t.Fatal(err)
	}
	got, err := LoadVAPIDKeys(privPath, pubPath)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestLoadVAPIDKeys_Mismatch(t *testing.T) {
	a, b := newKey(t), newKey(t)
	sec1, _ := x509.MarshalECPrivateKey(a)

	privPath := writeFile(t, "private_key.pem", pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: sec1}))
	pubPath := writeFile(t, "public_key.pem", publicPEM(t, b))

	_, err := LoadVAPIDKeys(privPath, pubPath)
	var cerr *domain.ConfigurationError
	if !errors.As(err, &cerr) || cerr.Field != "VAPID_PUBLIC_KEY_FILE" {
		t.Errorf("expected mismatch ConfigurationError, got %v", err)
	}
}

func TestLoadVAPIDKeys_BadInput(t *testing.T) {
	good := expectedKeys(t, newKey(t))
	pubPath := writeFile(t, "public_key.pem", []byte(good.PublicKey))

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte("  \n")},
		{"garbage", []byte("not a key!")},
		{"wrong pem type", pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{1, 2, 3}})},
		{"wrong length", []byte(base64.RawURLEncoding.EncodeToString([]byte("short")))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			privPath := writeFile(t, "private_key.pem", tt.data)
			_, err := LoadVAPIDKeys(privPath, pubPath)
			var cerr *domain.ConfigurationError
			if !errors.As(err, &cerr) || cerr.Field != "VAPID_PRIVATE_KEY_FILE" {
				t.Errorf("expected private key ConfigurationError, got %v", err)
			}
		})
	}

	if _, err := LoadVAPIDKeys(filepath.Join(t.TempDir(), "nope.pem"), pubPath); err == nil {
		t.Error("expected error for missing file")
	}
}
