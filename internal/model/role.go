// Copyright (c) 2026 WebNova Team
// WebNova Vault - sovereign credential vault
// This source code is licensed under the MIT license found in the LICENSE file.

package model

// Role is the closed set of platform roles the vault recognizes. Role
// resolution happens in the surrounding application; the vault re-validates
// the value at its boundary and only ever matches exhaustively against this
// enum, never against free-form strings.
type Role string

const (
	// RoleSovereign is the platform owner with unrestricted vault access.
	RoleSovereign Role = "sovereign"
	// RoleOwner is a project owner entitled to manage their own credentials.
	RoleOwner Role = "owner"
	// RoleNone is the zero role; it never authorizes vault access.
	RoleNone Role = ""
)

// ParseRole maps a string onto the Role enum. Anything outside the closed
// set collapses to RoleNone.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleSovereign:
		return RoleSovereign
	case RoleOwner:
		return RoleOwner
	default:
		return RoleNone
	}
}

// CanUseVault reports whether the role may reach vault endpoints at all.
func (r Role) CanUseVault() bool {
	switch r {
	case RoleSovereign, RoleOwner:
		return true
	case RoleNone:
		return false
	default:
		return false
	}
}
