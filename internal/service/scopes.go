// SPDX-License-Identifier: Apache-2.0

package service

import (
	"strings"

	"github.com/zann-sh/zann/models"
)

// ScopeRule is one parsed service-account scope. Grammar:
//
//	<target>:<op>
//	<target>/<path-prefix>:<op>
//
// where target is a vault slug or id, "tag:<name>", or a wildcard pattern
// over slugs, and op is one of read, read_history, read_previous. Scopes
// grant reads only; writes always require a human identity.
type ScopeRule struct {
	Target     string
	TargetKind ScopeTargetKind
	Prefix     string
	Permission string
}

// ScopeTargetKind classifies what a scope's target selects.
type ScopeTargetKind int

const (
	ScopeTargetVault ScopeTargetKind = iota
	ScopeTargetTag
	ScopeTargetPattern
)

// ParseScope parses one scope string; nil means the scope is malformed and
// grants nothing.
func ParseScope(scope string) *ScopeRule {
	idx := strings.LastIndex(scope, ":")
	if idx <= 0 || idx == len(scope)-1 {
		return nil
	}
	target, permission := scope[:idx], scope[idx+1:]

	switch permission {
	case "read", "read_history", "read_previous":
	default:
		return nil
	}

	rule := &ScopeRule{Permission: permission}
	if rest, ok := strings.CutPrefix(target, "tag:"); ok {
		if rest == "" {
			return nil
		}
		rule.Target = rest
		rule.TargetKind = ScopeTargetTag
		return rule
	}

	if vault, prefix, found := strings.Cut(target, "/"); found {
		rule.Target = vault
		rule.Prefix = NormalizePath(prefix)
	} else {
		rule.Target = target
	}
	if rule.Target == "" {
		return nil
	}
	if strings.Contains(rule.Target, "*") {
		rule.TargetKind = ScopeTargetPattern
	}
	return rule
}

// AllowsAction reports whether the rule's permission covers the requested
// action. read_history implies plain history listing; read_previous is the
// strongest read and implies history too.
func (r *ScopeRule) AllowsAction(action string) bool {
	switch action {
	case "read_history":
		return r.Permission == "read_history" || r.Permission == "read_previous"
	case "read_previous":
		return r.Permission == "read_previous"
	default:
		return r.Permission == "read"
	}
}

// MatchesVault reports whether the rule's target selects the vault.
func (r *ScopeRule) MatchesVault(vault *models.Vault) bool {
	switch r.TargetKind {
	case ScopeTargetTag:
		for _, tag := range vault.Tags {
			if tag == r.Target {
				return true
			}
		}
		return false
	case ScopeTargetPattern:
		return matchesPattern(r.Target, vault.Slug)
	default:
		return strings.EqualFold(vault.Slug, r.Target) || vault.ID.String() == r.Target
	}
}

// MatchesPath reports whether the rule covers a concrete item path inside
// an already-matched vault.
func (r *ScopeRule) MatchesPath(path string) bool {
	return PrefixMatch(r.Prefix, path)
}

// ScopesAllow checks a scope list against (vault, path, action). Used for
// every service-account read; service accounts never reach write paths.
func ScopesAllow(scopes []string, vault *models.Vault, path, action string) bool {
	if !vault.IsSharedServer() {
		return false
	}
	for _, scope := range scopes {
		rule := ParseScope(scope)
		if rule == nil {
			continue
		}
		if rule.AllowsAction(action) && rule.MatchesVault(vault) && rule.MatchesPath(path) {
			return true
		}
	}
	return false
}

// matchesPattern implements glob-like '*' matching over vault slugs.
func matchesPattern(pattern, value string) bool {
	if pattern == "*" || pattern == "**" {
		return true
	}

	parts := make([]string, 0, 4)
	for _, part := range strings.Split(pattern, "*") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return true
	}

	startsWithWildcard := strings.HasPrefix(pattern, "*")
	endsWithWildcard := strings.HasSuffix(pattern, "*")

	index := 0
	for i, part := range parts {
		pos := strings.Index(value[index:], part)
		if pos < 0 {
			return false
		}
		if i == 0 && !startsWithWildcard && pos != 0 {
			return false
		}
		index += pos + len(part)
	}

	if !endsWithWildcard {
		return strings.HasSuffix(value, parts[len(parts)-1])
	}
	return true
}
