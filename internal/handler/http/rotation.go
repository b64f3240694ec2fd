// SPDX-License-Identifier: Apache-2.0

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/zann-sh/zann/internal/logger"
	"github.com/zann-sh/zann/internal/utils"
	"github.com/zann-sh/zann/models"
)

func (h *Handler) rotateStart(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	vaultID, ok := pathUUID(w, r, "vaultID")
	if !ok {
		return
	}
	itemID, ok := pathUUID(w, r, "itemID")
	if !ok {
		return
	}

	var req models.RotateStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		log.Err(err).Msg("invalid rotate start body")
		writeServiceError(w, err)
		return
	}

	resp, err := h.services.Rotation.Start(r.Context(), vaultID, itemID, req.Policy)
	if err != nil {
		log.Err(err).Str("item_id", itemID.String()).Msg("rotation start failed")
		writeServiceError(w, err)
		return
	}
	_, _ = utils.WriteJSON(w, resp, http.StatusOK)
}

func (h *Handler) rotateCommit(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := pathUUID(w, r, "vaultID")
	if !ok {
		return
	}
	itemID, ok := pathUUID(w, r, "itemID")
	if !ok {
		return
	}

	resp, err := h.services.Rotation.Commit(r.Context(), vaultID, itemID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_, _ = utils.WriteJSON(w, resp, http.StatusOK)
}

func (h *Handler) rotateAbort(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	vaultID, ok := pathUUID(w, r, "vaultID")
	if !ok {
		return
	}
	itemID, ok := pathUUID(w, r, "itemID")
	if !ok {
		return
	}

	var req models.RotateAbortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		log.Err(err).Msg("invalid rotate abort body")
		writeServiceError(w, err)
		return
	}

	resp, err := h.services.Rotation.Abort(r.Context(), vaultID, itemID, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_, _ = utils.WriteJSON(w, resp, http.StatusOK)
}

func (h *Handler) rotateRecover(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := pathUUID(w, r, "vaultID")
	if !ok {
		return
	}
	itemID, ok := pathUUID(w, r, "itemID")
	if !ok {
		return
	}

	resp, err := h.services.Rotation.Recover(r.Context(), vaultID, itemID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_, _ = utils.WriteJSON(w, resp, http.StatusOK)
}

func (h *Handler) rotationStatus(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := pathUUID(w, r, "vaultID")
	if !ok {
		return
	}
	itemID, ok := pathUUID(w, r, "itemID")
	if !ok {
		return
	}

	resp, err := h.services.Rotation.Status(r.Context(), vaultID, itemID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_, _ = utils.WriteJSON(w, resp, http.StatusOK)
}
