// SPDX-License-Identifier: Apache-2.0

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/zann-sh/zann/internal/logger"
)

// decodeJSON decodes the request body into v, answering the client itself
// on failure: 413 for an oversize body, 400 for malformed JSON. Returns
// false when the request is already handled.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logger.FromRequest(r).Err(err).Msg("invalid request body")

		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, "payload_too_large", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, "invalid_payload", http.StatusBadRequest)
		return false
	}
	return true
}
