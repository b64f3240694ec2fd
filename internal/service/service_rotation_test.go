// SPDX-License-Identifier: Apache-2.0

package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePasswordDefaultPolicy(t *testing.T) {
	for i := 0; i < 32; i++ {
		candidate, err := GeneratePassword("default")
		require.NoError(t, err)
		assert.Len(t, candidate, 24)
		assert.True(t, strings.ContainsAny(candidate, rotationUpper), candidate)
		assert.True(t, strings.ContainsAny(candidate, rotationLower), candidate)
		assert.True(t, strings.ContainsAny(candidate, rotationDigits), candidate)
		assert.True(t, strings.ContainsAny(candidate, rotationSymbols), candidate)
	}
}

func TestGeneratePasswordAlnumPolicy(t *testing.T) {
	charset := rotationUpper + rotationLower + rotationDigits
	candidate, err := GeneratePassword("alnum")
	require.NoError(t, err)
	assert.Len(t, candidate, 24)
	for _, c := range candidate {
		assert.Contains(t, charset, string(c))
	}
}

func TestGeneratePasswordEmptyPolicyIsDefault(t *testing.T) {
	candidate, err := GeneratePassword("")
	require.NoError(t, err)
	assert.Len(t, candidate, 24)
}

func TestGeneratePasswordUnknownPolicy(t *testing.T) {
	_, err := GeneratePassword("pin")
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestGeneratePasswordExcludesAmbiguousCharacters(t *testing.T) {
	for i := 0; i < 16; i++ {
		candidate, err := GeneratePassword("alnum")
		require.NoError(t, err)
		assert.NotContains(t, candidate, "0")
		assert.NotContains(t, candidate, "1")
		assert.NotContains(t, candidate, "I")
		assert.NotContains(t, candidate, "O")
		assert.NotContains(t, candidate, "l")
	}
}
