// SPDX-License-Identifier: Apache-2.0

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseItemPayload(t *testing.T) {
	doc, err := ParseItemPayload([]byte(`{"v":1,"typeId":"login","fields":{"password":{"kind":"password","value":"pw-1"}}}`))
	require.NoError(t, err)
	assert.Equal(t, "login", doc.TypeID)
	assert.True(t, doc.HasPasswordField())

	_, err = ParseItemPayload([]byte(`{"v":2,"typeId":"login"}`))
	assert.Error(t, err)

	_, err = ParseItemPayload([]byte(`not-json`))
	assert.Error(t, err)
}

func TestValidateForType(t *testing.T) {
	login := NewItemPayload("login")
	login.Fields["password"] = PayloadField{Kind: FieldPassword, Value: "x"}
	assert.NoError(t, login.ValidateForType("login"))

	empty := NewItemPayload("login")
	assert.Error(t, empty.ValidateForType("login"))

	note := NewItemPayload("note")
	assert.Error(t, note.ValidateForType("note"))
	note.Fields["note"] = PayloadField{Kind: FieldNote, Value: "text"}
	assert.NoError(t, note.ValidateForType("note"))

	// Type tags are organisational; unknown ones pass.
	free := NewItemPayload("certificate")
	assert.NoError(t, free.ValidateForType("certificate"))

	// But a mismatched declared type is rejected.
	assert.Error(t, login.ValidateForType("note"))
}

func TestSetPasswordReplacesEveryPasswordField(t *testing.T) {
	doc := NewItemPayload("login")
	doc.Fields["password"] = PayloadField{Kind: FieldPassword, Value: "old"}
	doc.Fields["backup"] = PayloadField{Kind: FieldPassword, Value: "old-too"}
	doc.Fields["username"] = PayloadField{Kind: FieldText, Value: "alice"}

	doc.SetPassword("new")

	assert.Equal(t, "new", doc.Fields["password"].Value)
	assert.Equal(t, "new", doc.Fields["backup"].Value)
	assert.Equal(t, "alice", doc.Fields["username"].Value)
}

func TestRotationColumnsWindows(t *testing.T) {
	base := time.Now()
	expires := base.Add(-time.Minute)
	recoverUntil := base.Add(time.Hour)

	rotating := RotationColumns{State: RotationRotating, ExpiresAt: &expires}
	assert.True(t, rotating.Expired(base))

	stale := RotationColumns{State: RotationStale, RecoverUntil: &recoverUntil}
	assert.True(t, stale.Recoverable(base))
	assert.False(t, stale.Recoverable(base.Add(2*time.Hour)))
}
