package api

import (
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/erazemk/dibs/internal/catalog"
	"github.com/erazemk/dibs/internal/model"
)

// NewRouter creates the API router with all endpoints registered. When
// registry is non-nil its metrics are served at /metrics.
func NewRouter(db *sql.DB, cat *catalog.Catalog, jwtSecret string, registry *prometheus.Registry) (http.Handler, error) {
	sessions, err := NewSessions(DefaultSessionCapacity)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db, Catalog: cat}
	itemsHandler := &ItemsHandler{DB: db, Catalog: cat, Sessions: sessions}
	reservationsHandler := &ReservationsHandler{Catalog: cat}
	bulkHandler := &BulkHandler{Catalog: cat}
	collectionsHandler := &CollectionsHandler{Catalog: cat}

	authMW := AuthMiddleware(jwtSecret, db)
	browseMW := OptionalAuthMiddleware(jwtSecret, db)
	requireOwner := RequireRole(model.RoleOwner)
	requireVisitor := RequireRole(model.RoleVisitor)

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Users (owner only).
	mux.Handle("GET /api/users", authMW(requireOwner(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireOwner(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(requireOwner(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}", authMW(requireOwner(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireOwner(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireOwner(http.HandlerFunc(usersHandler.Delete))))

	// Items: browse (anyone), write (owner).
	mux.Handle("GET /api/items", browseMW(http.HandlerFunc(itemsHandler.List)))
	mux.Handle("POST /api/items", authMW(requireOwner(http.HandlerFunc(itemsHandler.Create))))
	mux.Handle("GET /api/items/{id}", browseMW(http.HandlerFunc(itemsHandler.Get)))
	mux.Handle("PUT /api/items/{id}", authMW(requireOwner(http.HandlerFunc(itemsHandler.Update))))
	mux.Handle("DELETE /api/items/{id}", authMW(requireOwner(http.HandlerFunc(itemsHandler.Delete))))
	mux.Handle("PUT /api/items/{id}/image", authMW(requireOwner(http.HandlerFunc(itemsHandler.UploadImage))))
	mux.Handle("GET /api/items/{id}/image", browseMW(http.HandlerFunc(itemsHandler.GetImage)))

	// Reservations: claim (signed in), release (owner).
	mux.Handle("POST /api/items/{id}/claim", authMW(requireVisitor(http.HandlerFunc(reservationsHandler.Claim))))
	mux.Handle("DELETE /api/items/{id}/claim", authMW(requireVisitor(http.HandlerFunc(reservationsHandler.Unclaim))))
	mux.Handle("POST /api/items/{id}/release", authMW(requireOwner(http.HandlerFunc(reservationsHandler.Release))))

	mux.Handle("POST /api/bulk", authMW(requireOwner(http.HandlerFunc(bulkHandler.Apply))))

	// Collections: read (anyone), write (owner).
	mux.Handle("GET /api/collections", browseMW(http.HandlerFunc(collectionsHandler.List)))
	mux.Handle("GET /api/collections/counts", browseMW(http.HandlerFunc(collectionsHandler.Counts)))
	mux.Handle("POST /api/collections", authMW(requireOwner(http.HandlerFunc(collectionsHandler.Create))))
	mux.Handle("PUT /api/collections/{id}", authMW(requireOwner(http.HandlerFunc(collectionsHandler.Update))))
	mux.Handle("DELETE /api/collections/{id}", authMW(requireOwner(http.HandlerFunc(collectionsHandler.Delete))))

	if registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	}

	return mux, nil
}

// NewRegistry returns a registry holding the catalog and API metrics
// together with the Go runtime collectors.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(catalog.Collectors()...)
	registry.MustRegister(RequestDuration)
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}
