// SPDX-License-Identifier: Apache-2.0

package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zann-sh/zann/models"
)

func sharedServerVault(slug string, tags ...string) *models.Vault {
	return &models.Vault{
		ID:             uuid.New(),
		Slug:           slug,
		Kind:           models.VaultKindShared,
		EncryptionType: models.EncryptionServer,
		Tags:           tags,
	}
}

func TestParseScope(t *testing.T) {
	rule := ParseScope("infra:read")
	require.NotNil(t, rule)
	assert.Equal(t, "infra", rule.Target)
	assert.Equal(t, "read", rule.Permission)
	assert.Empty(t, rule.Prefix)

	rule = ParseScope("infra/db/prod:read_history")
	require.NotNil(t, rule)
	assert.Equal(t, "infra", rule.Target)
	assert.Equal(t, "db/prod", rule.Prefix)

	rule = ParseScope("tag:production:read")
	require.NotNil(t, rule)
	assert.Equal(t, ScopeTargetTag, rule.TargetKind)
	assert.Equal(t, "production", rule.Target)

	rule = ParseScope("team-*:read")
	require.NotNil(t, rule)
	assert.Equal(t, ScopeTargetPattern, rule.TargetKind)

	for _, bad := range []string{"", "noperm", "vault:", ":read", "vault:write", "vault:delete"} {
		assert.Nil(t, ParseScope(bad), bad)
	}
}

func TestScopesAllow(t *testing.T) {
	vault := sharedServerVault("infra", "production")

	assert.True(t, ScopesAllow([]string{"infra:read"}, vault, "db/password", "read"))
	assert.True(t, ScopesAllow([]string{"infra/db:read"}, vault, "db/password", "read"))
	assert.False(t, ScopesAllow([]string{"infra/db:read"}, vault, "web/password", "read"))
	assert.False(t, ScopesAllow([]string{"other:read"}, vault, "db/password", "read"))
	assert.True(t, ScopesAllow([]string{vault.ID.String() + ":read"}, vault, "db/password", "read"))

	// Tag and pattern targets.
	assert.True(t, ScopesAllow([]string{"tag:production:read"}, vault, "db/password", "read"))
	assert.False(t, ScopesAllow([]string{"tag:staging:read"}, vault, "db/password", "read"))
	assert.True(t, ScopesAllow([]string{"inf*:read"}, vault, "db/password", "read"))
	assert.False(t, ScopesAllow([]string{"web-*:read"}, vault, "db/password", "read"))

	// Permission ladder.
	assert.True(t, ScopesAllow([]string{"infra:read_previous"}, vault, "p", "read_history"))
	assert.False(t, ScopesAllow([]string{"infra:read_history"}, vault, "p", "read_previous"))
	assert.False(t, ScopesAllow([]string{"infra:read_history"}, vault, "p", "read"))

	// Scopes only ever cover shared server vaults.
	personal := &models.Vault{
		ID:             uuid.New(),
		Slug:           "infra",
		Kind:           models.VaultKindPersonal,
		EncryptionType: models.EncryptionClient,
	}
	assert.False(t, ScopesAllow([]string{"infra:read"}, personal, "p", "read"))
}

func TestMatchesPattern(t *testing.T) {
	assert.True(t, matchesPattern("*", "anything"))
	assert.True(t, matchesPattern("team-*", "team-alpha"))
	assert.False(t, matchesPattern("team-*", "ateam-alpha"))
	assert.True(t, matchesPattern("*-prod", "infra-prod"))
	assert.False(t, matchesPattern("*-prod", "infra-prod-eu"))
	assert.True(t, matchesPattern("a*c", "abc"))
	assert.False(t, matchesPattern("a*c", "abd"))
}
