// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

package auth

import (
	"sort"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// Role names.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Capabilities checked by route policies. Patterns use ':' as separator.
const (
	CapabilitySelfRead        = "self:read"
	CapabilitySelfWrite       = "self:write"
	CapabilitySessionsManage  = "sessions:self:manage"
	CapabilityAdminSessions   = "admin:sessions:revoke"
	CapabilityAdminUsersRead  = "admin:users:read"
	capabilityPatternSelf     = "self:*"
	capabilityPatternSessions = "sessions:self:*"
	capabilityPatternAdminAll = "admin:**"
)

var userPowers = []string{
	capabilityPatternSelf,
	capabilityPatternSessions,
}

var adminPowers = []string{
	capabilityPatternAdminAll,
}

// DefaultRoleCapabilities returns the capability patterns granted per role.
func DefaultRoleCapabilities() map[string][]string {
	return map[string][]string{
		RoleUser:  compose(userPowers),
		RoleAdmin: compose(userPowers, adminPowers),
	}
}

func compose(groups ...[]string) []string {
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	result := make([]string, 0, total)
	for _, g := range groups {
		result = append(result, g...)
	}
	return result
}

type compiledCapability struct {
	pattern string
	glob    glob.Glob
}

// CapabilitySet is an immutable set of compiled capability patterns.
type CapabilitySet struct {
	patterns []compiledCapability
}

// Has reports whether any pattern in the set matches capability.
func (s CapabilitySet) Has(capability string) bool {
	if capability == "" {
		return true
	}
	for _, p := range s.patterns {
		if p.glob.Match(capability) {
			return true
		}
	}
	return false
}

// Patterns returns the raw patterns, sorted.
func (s CapabilitySet) Patterns() []string {
	out := make([]string, 0, len(s.patterns))
	for _, p := range s.patterns {
		out = append(out, p.pattern)
	}
	sort.Strings(out)
	return out
}

// Roles maps role names to compiled capability sets.
// Roles is read-only after construction and safe for concurrent use.
type Roles struct {
	sets map[string]CapabilitySet
}

// NewRoles compiles the given role definitions.
func NewRoles(defs map[string][]string) (*Roles, error) {
	sets := make(map[string]CapabilitySet, len(defs))
	for role, patterns := range defs {
		compiled := make([]compiledCapability, 0, len(patterns))
		for _, p := range patterns {
			g, err := glob.Compile(p, ':')
			if err != nil {
				return nil, oops.In("auth").
					Code("INVALID_CAPABILITY_PATTERN").
					With("role", role).
					With("pattern", p).
					Wrap(err)
			}
			compiled = append(compiled, compiledCapability{pattern: p, glob: g})
		}
		sets[role] = CapabilitySet{patterns: compiled}
	}
	return &Roles{sets: sets}, nil
}

// DefaultRoles compiles DefaultRoleCapabilities.
// Panics if the built-in patterns are invalid.
func DefaultRoles() *Roles {
	r, err := NewRoles(DefaultRoleCapabilities())
	if err != nil {
		panic("invalid capability pattern in DefaultRoleCapabilities: " + err.Error())
	}
	return r
}

// RoleOf returns the role name for user.
func RoleOf(user *User) string {
	if user != nil && user.IsAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// For returns the capability set for user. Unknown roles get an empty set.
func (r *Roles) For(user *User) CapabilitySet {
	if r == nil || user == nil {
		return CapabilitySet{}
	}
	return r.sets[RoleOf(user)]
}
