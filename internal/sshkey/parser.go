// Copyright (c) 2026 WebNova Team
// WebNova Vault - sovereign credential vault
// This source code is licensed under the MIT license found in the LICENSE file.

package sshkey

import (
	"fmt"
	"strings"

	"github.com/mohamedalib2001/infera-webnova-sub007/internal/model"
)

// Parse splits a raw public key string (like one from an authorized_keys
// file) into its three core components: algorithm, key data, and comment.
// It tolerates leading options in the line (e.g. from="...",command="...").
func Parse(rawKey string) (algorithm, keyData, comment string, err error) {
	fields := strings.Fields(rawKey)
	if len(fields) == 0 {
		err = fmt.Errorf("empty line")
		return
	}

	keyStartIndex := -1
	for i, field := range fields {
		if strings.HasPrefix(field, "ssh-") || strings.HasPrefix(field, "ecdsa-") {
			keyStartIndex = i
			break
		}
	}

	if keyStartIndex == -1 {
		err = fmt.Errorf("no valid SSH key type found in line")
		return
	}

	if len(fields) < keyStartIndex+2 {
		err = fmt.Errorf("invalid public key format: missing key data after algorithm")
		return
	}

	algorithm = fields[keyStartIndex]
	keyData = fields[keyStartIndex+1]
	if len(fields) > keyStartIndex+2 {
		comment = strings.Join(fields[keyStartIndex+2:], " ")
	}

	return
}

// AlgorithmKeyType maps a wire algorithm name to the vault key type.
// Unknown algorithms return the empty key type.
func AlgorithmKeyType(algorithm string) model.KeyType {
	switch {
	case algorithm == "ssh-ed25519":
		return model.KeyTypeEd25519
	case algorithm == "ssh-rsa":
		return model.KeyTypeRSA
	case strings.HasPrefix(algorithm, "ecdsa-sha2-"):
		return model.KeyTypeECDSA
	default:
		return ""
	}
}
