// SPDX-License-Identifier: Apache-2.0

package http

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/zann-sh/zann/internal/logger"
	"github.com/zann-sh/zann/internal/utils"
	"github.com/zann-sh/zann/models"
)

func (h *Handler) createVault(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	var req models.CreateVaultRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	vault, err := h.services.Vaults.CreateVault(r.Context(), &req)
	if err != nil {
		log.Err(err).Str("slug", req.Slug).Msg("create vault failed")
		writeServiceError(w, err)
		return
	}
	_, _ = utils.WriteJSON(w, vault, http.StatusCreated)
}

func (h *Handler) listVaults(w http.ResponseWriter, r *http.Request) {
	vaults, err := h.services.Vaults.ListVaults(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_, _ = utils.WriteJSON(w, map[string]any{"vaults": vaults}, http.StatusOK)
}

func (h *Handler) getVault(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := pathUUID(w, r, "vaultID")
	if !ok {
		return
	}

	vault, err := h.services.Vaults.GetVault(r.Context(), vaultID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_, _ = utils.WriteJSON(w, vault, http.StatusOK)
}

func (h *Handler) deleteVault(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := pathUUID(w, r, "vaultID")
	if !ok {
		return
	}

	if err := h.services.Vaults.DeleteVault(r.Context(), vaultID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) restoreVault(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := pathUUID(w, r, "vaultID")
	if !ok {
		return
	}

	if err := h.services.Vaults.RestoreVault(r.Context(), vaultID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addMemberRequest struct {
	UserID uuid.UUID              `json:"user_id"`
	Role   models.VaultMemberRole `json:"role"`
}

func (h *Handler) addVaultMember(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := pathUUID(w, r, "vaultID")
	if !ok {
		return
	}

	var req addMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.services.Vaults.AddMember(r.Context(), vaultID, req.UserID, req.Role); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
