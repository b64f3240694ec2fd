// SPDX-License-Identifier: Apache-2.0

package http

import (
	"context"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zann-sh/zann/internal/logger"
	"github.com/zann-sh/zann/internal/metrics"
	"github.com/zann-sh/zann/internal/utils"
	"github.com/zann-sh/zann/models"
)

// Trusted identity headers injected by the authenticating front layer.
// Authentication flows themselves are outside the core; by the time a
// request reaches this process, the caller is resolved.
const (
	headerUserID   = "X-Zann-User-Id"
	headerEmail    = "X-Zann-User-Email"
	headerGroups   = "X-Zann-Groups"
	headerDeviceID = "X-Zann-Device-Id"
	headerSource   = "X-Zann-Identity-Source"
)

// withTraceID resolves or generates a trace id and installs a
// request-scoped logger carrying it.
func (h *Handler) withTraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-Id")
		if traceID == "" {
			traceID = utils.NewUUID().String()
		}

		log := &logger.Logger{Logger: h.logger.With().Str("trace_id", traceID).Logger()}
		w.Header().Set("X-Trace-Id", traceID)
		next.ServeHTTP(w, r.WithContext(log.WithContext(r.Context())))
	})
}

// withLogging emits one structured access-log line per request.
func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		logger.FromRequest(r).Info().
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Int("status", wrapped.status).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// withBodyLimit caps request bodies; oversize bodies surface as
// payload_too_large when decoding.
func (h *Handler) withBodyLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
		}
		next.ServeHTTP(w, r)
	})
}

// withIdentity resolves the caller into a models.Identity.
//
// A bearer token is verified as a service-account credential carrying
// scopes. Otherwise the trusted identity headers are required; requests
// with neither are rejected.
func (h *Handler) withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromRequest(r)

		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			token, err := utils.ParseBearerToken(authHeader)
			if err != nil {
				log.Err(err).Msg("malformed authorization header")
				writeError(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			accountID, scopes, err := h.resolveServiceToken(r.Context(), token)
			if err != nil {
				log.Err(err).Msg("service token rejected")
				metrics.ForbiddenAccess.WithLabelValues(r.URL.Path).Inc()
				writeError(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			identity := &models.Identity{
				Email:            "service-account:" + accountID.String(),
				Source:           models.SourceServiceAccount,
				ServiceAccountID: &accountID,
				Scopes:           scopes,
			}
			next.ServeHTTP(w, r.WithContext(utils.WithIdentity(r.Context(), identity)))
			return
		}

		rawUserID := r.Header.Get(headerUserID)
		email := r.Header.Get(headerEmail)
		if rawUserID == "" || email == "" {
			writeError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		userID, err := uuid.Parse(rawUserID)
		if err != nil {
			log.Err(err).Msg("bad identity header")
			writeError(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		identity := &models.Identity{
			UserID: userID,
			Email:  email,
			Source: models.SourceInternal,
		}
		if source := r.Header.Get(headerSource); source == string(models.SourceOidc) {
			identity.Source = models.SourceOidc
		}
		if groups := r.Header.Get(headerGroups); groups != "" {
			identity.Groups = strings.Split(groups, ",")
		}
		if rawDevice := r.Header.Get(headerDeviceID); rawDevice != "" {
			if deviceID, err := uuid.Parse(rawDevice); err == nil {
				identity.DeviceID = &deviceID
			}
		}

		next.ServeHTTP(w, r.WithContext(utils.WithIdentity(r.Context(), identity)))
	})
}

// resolveServiceToken accepts either flavour of service credential: a
// signed JWT carrying scopes, or the configured opaque token whose Argon2id
// hash is recomputed through the KDF gate.
func (h *Handler) resolveServiceToken(ctx context.Context, token string) (uuid.UUID, []string, error) {
	if strings.Count(token, ".") == 2 {
		return utils.VerifyServiceToken(token, h.signKey, h.issuer)
	}

	if !h.serviceToken.Configured() {
		return uuid.Nil, nil, utils.ErrInvalidToken
	}
	accountID, err := uuid.Parse(h.serviceToken.AccountID)
	if err != nil {
		return uuid.Nil, nil, utils.ErrInvalidToken
	}
	salt, err := hex.DecodeString(h.serviceToken.SaltHex)
	if err != nil {
		return uuid.Nil, nil, utils.ErrInvalidToken
	}
	if err := h.kdfGate.CompareTokenHash(ctx, token, salt, h.serviceToken.HashHex); err != nil {
		return uuid.Nil, nil, utils.ErrInvalidToken
	}
	return accountID, h.serviceToken.Scopes, nil
}
