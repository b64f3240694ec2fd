// SPDX-License-Identifier: Apache-2.0

package http

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zann-sh/zann/internal/crypto"
	"github.com/zann-sh/zann/internal/service"
	"github.com/zann-sh/zann/internal/store"
)

func TestResponseFromError(t *testing.T) {
	tests := []struct {
		err    error
		kind   string
		status int
	}{
		{service.ErrPathConflict, "path_conflict", http.StatusConflict},
		{service.ErrItemNotFound, "item_not_found", http.StatusNotFound},
		{service.ErrVaultNotFound, "vault_not_found", http.StatusNotFound},
		{service.ErrPayloadEncRequired, "payload_enc_required", http.StatusBadRequest},
		{service.ErrPlaintextRequired, "plaintext_required", http.StatusBadRequest},
		{service.ErrPlaintextNotAllowed, "plaintext_not_allowed", http.StatusBadRequest},
		{service.ErrInvalidCursor, "invalid_cursor", http.StatusBadRequest},
		{service.ErrBaseSeqMismatch, "base_seq_mismatch", http.StatusConflict},
		{service.ErrRotationInProgress, "rotation_in_progress", http.StatusConflict},
		{service.ErrInvalidPolicy, "invalid_policy", http.StatusBadRequest},
		{service.ErrPasswordFieldMissing, "password_field_missing", http.StatusBadRequest},
		{service.ErrAccessDenied, "forbidden", http.StatusForbidden},
		{crypto.ErrInvalidBlob, "invalid_blob", http.StatusBadRequest},
		{crypto.ErrUnsupportedVersion, "unsupported_version", http.StatusBadRequest},
		{crypto.ErrDecryptionFailed, "decrypt_failed", http.StatusInternalServerError},
		{store.ErrExecutingQuery, "db_error", http.StatusInternalServerError},
		{fmt.Errorf("anything else"), "internal", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		resp := responseFromError(tt.err)
		assert.Equal(t, tt.kind, resp.kind, tt.err)
		assert.Equal(t, tt.status, resp.status, tt.err)
	}
}

func TestResponseFromWrappedError(t *testing.T) {
	wrapped := fmt.Errorf("context: %w", service.ErrPathConflict)
	resp := responseFromError(wrapped)
	assert.Equal(t, "path_conflict", resp.kind)
}

func TestWriteServiceErrorOversizeBody(t *testing.T) {
	rec := httptest.NewRecorder()
	writeServiceError(rec, &http.MaxBytesError{Limit: 100})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.JSONEq(t, `{"error":"payload_too_large"}`, rec.Body.String())
}

func TestWriteErrorShape(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, "invalid_cursor", http.StatusBadRequest)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"invalid_cursor"}`, rec.Body.String())
}
