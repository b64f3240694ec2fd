// SPDX-License-Identifier: Apache-2.0

package http

import (
	"net/http"

	"github.com/zann-sh/zann/internal/logger"
	"github.com/zann-sh/zann/internal/metrics"
	"github.com/zann-sh/zann/internal/utils"
	"github.com/zann-sh/zann/models"
)

func (h *Handler) syncPull(w http.ResponseWriter, r *http.Request) {
	h.handlePull(w, r, false)
}

func (h *Handler) syncPush(w http.ResponseWriter, r *http.Request) {
	h.handlePush(w, r, false)
}

func (h *Handler) syncSharedPull(w http.ResponseWriter, r *http.Request) {
	h.handlePull(w, r, true)
}

func (h *Handler) syncSharedPush(w http.ResponseWriter, r *http.Request) {
	h.handlePush(w, r, true)
}

func (h *Handler) handlePull(w http.ResponseWriter, r *http.Request, shared bool) {
	log := logger.FromRequest(r)

	var req models.SyncPullRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.services.Sync.Pull(r.Context(), &req, shared)
	if err != nil {
		log.Err(err).Str("vault_id", req.VaultID.String()).Msg("sync pull failed")
		writeServiceError(w, err)
		return
	}

	_, _ = utils.WriteJSON(w, resp, http.StatusOK)
}

func (h *Handler) handlePush(w http.ResponseWriter, r *http.Request, shared bool) {
	log := logger.FromRequest(r)

	var req models.SyncPushRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.services.Sync.Push(r.Context(), &req, shared)
	if err != nil {
		log.Err(err).Str("vault_id", req.VaultID.String()).Msg("sync push failed")
		writeServiceError(w, err)
		return
	}

	for _, conflict := range resp.Conflicts {
		metrics.SyncConflicts.WithLabelValues(conflict.Reason).Inc()
	}

	_, _ = utils.WriteJSON(w, resp, http.StatusOK)
}

func (h *Handler) meta(w http.ResponseWriter, r *http.Request) {
	_, _ = utils.WriteJSON(w, models.MetaResponse{
		ServerName:  h.serverName,
		Fingerprint: h.fingerprint,
		Version:     h.version,
	}, http.StatusOK)
}
