// SPDX-License-Identifier: Apache-2.0

package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/zann-sh/zann/internal/logger"
	"github.com/zann-sh/zann/internal/utils"
	"github.com/zann-sh/zann/models"
)

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	vaultID, ok := pathUUID(w, r, "vaultID")
	if !ok {
		return
	}

	var req models.CreateItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.services.Items.CreateItem(r.Context(), vaultID, &req)
	if err != nil {
		log.Err(err).Str("vault_id", vaultID.String()).Msg("create item failed")
		writeServiceError(w, err)
		return
	}
	_, _ = utils.WriteJSON(w, resp, http.StatusCreated)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := pathUUID(w, r, "vaultID")
	if !ok {
		return
	}
	itemID, ok := pathUUID(w, r, "itemID")
	if !ok {
		return
	}

	resp, err := h.services.Items.GetItem(r.Context(), vaultID, itemID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_, _ = utils.WriteJSON(w, resp, http.StatusOK)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	vaultID, ok := pathUUID(w, r, "vaultID")
	if !ok {
		return
	}
	itemID, ok := pathUUID(w, r, "itemID")
	if !ok {
		return
	}

	var req models.UpdateItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.services.Items.UpdateItem(r.Context(), vaultID, itemID, &req)
	if err != nil {
		log.Err(err).Str("item_id", itemID.String()).Msg("update item failed")
		writeServiceError(w, err)
		return
	}
	_, _ = utils.WriteJSON(w, resp, http.StatusOK)
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := pathUUID(w, r, "vaultID")
	if !ok {
		return
	}
	itemID, ok := pathUUID(w, r, "itemID")
	if !ok {
		return
	}

	resp, err := h.services.Items.DeleteItem(r.Context(), vaultID, itemID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_, _ = utils.WriteJSON(w, resp, http.StatusOK)
}

func (h *Handler) restoreItem(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := pathUUID(w, r, "vaultID")
	if !ok {
		return
	}
	itemID, ok := pathUUID(w, r, "itemID")
	if !ok {
		return
	}

	resp, err := h.services.Items.RestoreItem(r.Context(), vaultID, itemID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_, _ = utils.WriteJSON(w, resp, http.StatusOK)
}

func (h *Handler) purgeItem(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := pathUUID(w, r, "vaultID")
	if !ok {
		return
	}
	itemID, ok := pathUUID(w, r, "itemID")
	if !ok {
		return
	}

	if err := h.services.Items.PurgeItem(r.Context(), vaultID, itemID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listTrash(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := pathUUID(w, r, "vaultID")
	if !ok {
		return
	}

	items, err := h.services.Items.ListTrash(r.Context(), vaultID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_, _ = utils.WriteJSON(w, map[string]any{"items": items}, http.StatusOK)
}

func (h *Handler) purgeTrash(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := pathUUID(w, r, "vaultID")
	if !ok {
		return
	}

	olderThanDays := 0
	if raw := r.URL.Query().Get("older_than_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, "invalid_payload", http.StatusBadRequest)
			return
		}
		olderThanDays = parsed
	}

	purged, err := h.services.Items.PurgeTrash(r.Context(), vaultID, olderThanDays)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_, _ = utils.WriteJSON(w, map[string]int64{"purged": purged}, http.StatusOK)
}

// pathUUID parses one chi URL parameter as a UUID, answering 400 itself on
// failure.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, "invalid_id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}
