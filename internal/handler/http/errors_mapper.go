// SPDX-License-Identifier: Apache-2.0

package http

import (
	"errors"
	"net/http"

	"github.com/zann-sh/zann/internal/crypto"
	"github.com/zann-sh/zann/internal/service"
	"github.com/zann-sh/zann/internal/store"
	"github.com/zann-sh/zann/internal/utils"
	"github.com/zann-sh/zann/models"
)

type errorResponse struct {
	kind   string
	status int
}

// errorStatusMap turns service-layer sentinels into the wire taxonomy: a
// stable machine-readable kind plus a status code. Conflicts inside a push
// batch never reach this table; they ride back in the conflicts array with
// HTTP 200.
var errorStatusMap = map[error]errorResponse{
	crypto.ErrInvalidBlob:          {kind: "invalid_blob", status: http.StatusBadRequest},
	crypto.ErrUnsupportedVersion:   {kind: "unsupported_version", status: http.StatusBadRequest},
	crypto.ErrUnsupportedAlgorithm: {kind: "unsupported_algorithm", status: http.StatusBadRequest},
	crypto.ErrEncryptionFailed:     {kind: "encrypt_failed", status: http.StatusInternalServerError},
	crypto.ErrDecryptionFailed:     {kind: "decrypt_failed", status: http.StatusInternalServerError},
	crypto.ErrInvalidKeyLength:     {kind: "invalid_key_length", status: http.StatusInternalServerError},
	crypto.ErrInvalidPayload:       {kind: "invalid_payload", status: http.StatusBadRequest},

	service.ErrPathRequired:        {kind: "path_required", status: http.StatusBadRequest},
	service.ErrPathConflict:        {kind: "path_conflict", status: http.StatusConflict},
	service.ErrItemNotFound:        {kind: "item_not_found", status: http.StatusNotFound},
	service.ErrVaultNotFound:       {kind: "vault_not_found", status: http.StatusNotFound},
	service.ErrVaultDeleted:        {kind: "vault_not_found", status: http.StatusNotFound},
	service.ErrSlugTaken:           {kind: "slug_conflict", status: http.StatusConflict},
	service.ErrVersionNotFound:     {kind: "item_not_found", status: http.StatusNotFound},
	service.ErrBaseSeqMismatch:     {kind: "base_seq_mismatch", status: http.StatusConflict},
	service.ErrPayloadEncRequired:  {kind: "payload_enc_required", status: http.StatusBadRequest},
	service.ErrPlaintextRequired:   {kind: "plaintext_required", status: http.StatusBadRequest},
	service.ErrPlaintextNotAllowed: {kind: "plaintext_not_allowed", status: http.StatusBadRequest},
	service.ErrPayloadCorrupted:    {kind: "payload_corrupted", status: http.StatusBadRequest},
	service.ErrInvalidPayload:      {kind: "invalid_payload", status: http.StatusBadRequest},
	service.ErrInvalidCursor:       {kind: "invalid_cursor", status: http.StatusBadRequest},
	service.ErrServerKeyMissing:    {kind: "server_key_missing", status: http.StatusInternalServerError},

	service.ErrAccessDenied:    {kind: "forbidden", status: http.StatusForbidden},
	service.ErrHumanRequired:   {kind: "forbidden", status: http.StatusForbidden},
	service.ErrScopeNotMatched: {kind: "forbidden", status: http.StatusForbidden},
	service.ErrIdentityMissing: {kind: "unauthorized", status: http.StatusUnauthorized},

	service.ErrRotationInProgress:   {kind: "rotation_in_progress", status: http.StatusConflict},
	service.ErrRotationNotStarted:   {kind: "rotation_not_started", status: http.StatusConflict},
	service.ErrRotationExpired:      {kind: "rotation_expired", status: http.StatusConflict},
	service.ErrInvalidPolicy:        {kind: "invalid_policy", status: http.StatusBadRequest},
	service.ErrPasswordFieldMissing: {kind: "password_field_missing", status: http.StatusBadRequest},
	service.ErrCandidateInvalid:     {kind: "candidate_invalid", status: http.StatusInternalServerError},

	utils.ErrInvalidToken: {kind: "unauthorized", status: http.StatusUnauthorized},

	store.ErrExecutingQuery:        {kind: "db_error", status: http.StatusInternalServerError},
	store.ErrBeginningTransaction:  {kind: "db_error", status: http.StatusInternalServerError},
	store.ErrCommittingTransaction: {kind: "db_error", status: http.StatusInternalServerError},
	store.ErrScanningRow:           {kind: "db_error", status: http.StatusInternalServerError},
	store.ErrScanningRows:          {kind: "db_error", status: http.StatusInternalServerError},
	store.ErrBuildingSQLQuery:      {kind: "db_error", status: http.StatusInternalServerError},
}

func responseFromError(err error) errorResponse {
	for target, resp := range errorStatusMap {
		if errors.Is(err, target) {
			return resp
		}
	}
	return errorResponse{kind: "internal", status: http.StatusInternalServerError}
}

// writeServiceError maps err and writes the JSON error body. Oversize
// request bodies are recognised here so every handler gets 413 for free.
func writeServiceError(w http.ResponseWriter, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		writeError(w, "payload_too_large", http.StatusRequestEntityTooLarge)
		return
	}
	resp := responseFromError(err)
	writeError(w, resp.kind, resp.status)
}

func writeError(w http.ResponseWriter, kind string, status int) {
	_, _ = utils.WriteJSON(w, models.ErrorResponse{Error: kind}, status)
}
