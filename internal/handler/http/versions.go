// SPDX-License-Identifier: Apache-2.0

package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/zann-sh/zann/internal/utils"
)

func (h *Handler) listVersions(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := pathUUID(w, r, "vaultID")
	if !ok {
		return
	}
	itemID, ok := pathUUID(w, r, "itemID")
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, "invalid_payload", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	resp, err := h.services.History.ListVersions(r.Context(), vaultID, itemID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_, _ = utils.WriteJSON(w, resp, http.StatusOK)
}

func (h *Handler) restoreVersion(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := pathUUID(w, r, "vaultID")
	if !ok {
		return
	}
	itemID, ok := pathUUID(w, r, "itemID")
	if !ok {
		return
	}
	version, err := strconv.ParseInt(chi.URLParam(r, "version"), 10, 64)
	if err != nil || version < 1 {
		writeError(w, "invalid_payload", http.StatusBadRequest)
		return
	}

	resp, err := h.services.History.RestoreVersion(r.Context(), vaultID, itemID, version)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_, _ = utils.WriteJSON(w, resp, http.StatusOK)
}
