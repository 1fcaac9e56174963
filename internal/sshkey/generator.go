// Copyright (c) 2026 WebNova Team
// WebNova Vault - sovereign credential vault
// This source code is licensed under the MIT license found in the LICENSE file.

// package sshkey generates SSH key pairs and computes their fingerprints.
// The generator never persists anything; callers encrypt the private key via
// internal/vaultcrypt before the material may touch storage.
package sshkey // import "github.com/mohamedalib2001/infera-webnova-sub007/internal/sshkey"

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/pem"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/mohamedalib2001/infera-webnova-sub007/internal/model"
)

// rsaBits is the modulus size for generated RSA keys.
const rsaBits = 3072

// KeyMaterial is a freshly generated key pair. PrivateKeyPEM is the OpenSSH
// PEM container; PublicKey is the authorized_keys wire format (type tag,
// base64 blob, comment); Fingerprint is the SHA256: digest of the public key
// blob with base64 padding stripped.
type KeyMaterial struct {
	KeyType       model.KeyType
	PrivateKeyPEM string
	PublicKey     string
	Fingerprint   string
}

// Generate creates a new key pair for the given algorithm. The comment is
// appended to the authorized_keys line, matching what ssh-keygen emits.
func Generate(keyType model.KeyType, comment string) (*KeyMaterial, error) {
	signer, err := newSigner(keyType)
	if err != nil {
		return nil, err
	}

	sshPub, err := ssh.NewPublicKey(signer.Public())
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH public key: %w", err)
	}

	pemBlock, err := ssh.MarshalPrivateKey(signer, comment)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}

	pubLine := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPub)))
	if comment != "" {
		pubLine = fmt.Sprintf("%s %s", pubLine, comment)
	}

	return &KeyMaterial{
		KeyType:       keyType,
		PrivateKeyPEM: string(pem.EncodeToMemory(pemBlock)),
		PublicKey:     pubLine,
		Fingerprint:   ssh.FingerprintSHA256(sshPub),
	}, nil
}

func newSigner(keyType model.KeyType) (crypto.Signer, error) {
	switch keyType {
	case model.KeyTypeEd25519:
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
		}
		return priv, nil
	case model.KeyTypeRSA:
		priv, err := rsa.GenerateKey(rand.Reader, rsaBits)
		if err != nil {
			return nil, fmt.Errorf("failed to generate rsa key pair: %w", err)
		}
		return priv, nil
	case model.KeyTypeECDSA:
		priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate ecdsa key pair: %w", err)
		}
		return priv, nil
	default:
		return nil, fmt.Errorf("unsupported key type: %s", keyType)
	}
}

// Fingerprint computes the SHA256: fingerprint of a public key given in
// authorized_keys format. It is a pure function of the key blob: the same
// key always yields the same fingerprint regardless of comment or options.
func Fingerprint(authorizedKey string) (string, error) {
	pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(authorizedKey))
	if err != nil {
		return "", fmt.Errorf("failed to parse public key: %w", err)
	}
	return ssh.FingerprintSHA256(pub), nil
}
