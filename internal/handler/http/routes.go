// SPDX-License-Identifier: Apache-2.0

package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Init constructs the router serving the versioned API.
//
// Every request passes through recovery, trace-ID, access logging, and
// body-limit middleware. All /v1 routes except /v1/meta additionally pass
// the identity middleware, which resolves the caller into a
// [models.Identity] from either the trusted identity headers or a
// service-account bearer token.
//
// Route map:
//
//	/v1/meta                         GET  — server identity and fingerprint (public)
//	/v1/vaults                       POST, GET
//	/v1/vaults/{vaultID}             GET, DELETE
//	/v1/vaults/{vaultID}/restore     POST
//	/v1/vaults/{vaultID}/members     POST
//	/v1/vaults/{vaultID}/items       POST
//	/v1/vaults/{vaultID}/items/{itemID}          GET, PUT, DELETE
//	/v1/vaults/{vaultID}/items/{itemID}/restore  POST
//	/v1/vaults/{vaultID}/items/{itemID}/purge    POST
//	/v1/vaults/{vaultID}/items/{itemID}/versions                    GET
//	/v1/vaults/{vaultID}/items/{itemID}/versions/{version}/restore  POST
//	/v1/vaults/{vaultID}/items/{itemID}/rotate/{start,commit,abort,recover}  POST
//	/v1/vaults/{vaultID}/items/{itemID}/rotate   GET (status)
//	/v1/vaults/{vaultID}/trash       GET
//	/v1/vaults/{vaultID}/trash/purge POST
//	/v1/sync/pull, /v1/sync/push            POST — opaque-ciphertext path
//	/v1/sync/shared/pull, /v1/sync/shared/push  POST — plaintext-JSON path
//	/metrics                         GET — Prometheus collectors
func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer, h.withTraceID, withLogging, h.withBodyLimit)

	router.Route("/v1", func(v1 chi.Router) {
		v1.Get("/meta", h.meta)

		v1.Group(func(authed chi.Router) {
			authed.Use(h.withIdentity)

			authed.Route("/vaults", func(vaults chi.Router) {
				vaults.Post("/", h.createVault)
				vaults.Get("/", h.listVaults)

				vaults.Route("/{vaultID}", func(vault chi.Router) {
					vault.Get("/", h.getVault)
					vault.Delete("/", h.deleteVault)
					vault.Post("/restore", h.restoreVault)
					vault.Post("/members", h.addVaultMember)

					vault.Get("/trash", h.listTrash)
					vault.Post("/trash/purge", h.purgeTrash)

					vault.Route("/items", func(items chi.Router) {
						items.Post("/", h.createItem)

						items.Route("/{itemID}", func(item chi.Router) {
							item.Get("/", h.getItem)
							item.Put("/", h.updateItem)
							item.Delete("/", h.deleteItem)
							item.Post("/restore", h.restoreItem)
							item.Post("/purge", h.purgeItem)

							item.Get("/versions", h.listVersions)
							item.Post("/versions/{version}/restore", h.restoreVersion)

							item.Get("/rotate", h.rotationStatus)
							item.Post("/rotate/start", h.rotateStart)
							item.Post("/rotate/commit", h.rotateCommit)
							item.Post("/rotate/abort", h.rotateAbort)
							item.Post("/rotate/recover", h.rotateRecover)
						})
					})
				})
			})

			authed.Route("/sync", func(sync chi.Router) {
				sync.Post("/pull", h.syncPull)
				sync.Post("/push", h.syncPush)
				sync.Post("/shared/pull", h.syncSharedPull)
				sync.Post("/shared/push", h.syncSharedPush)
			})
		})
	})

	router.Handle("/metrics", promhttp.Handler())

	return router
}
