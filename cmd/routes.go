package main

import (
	"net/http"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"

	"github.com/madhvv-7/E-waste-madhav/internal/models"
)

func (app *application) routes() http.Handler {
	standardMiddleware := alice.New(app.recoverPanic, app.logRequest, secureHeaders)
	anyRole := standardMiddleware.Append(app.requireRole())
	citizen := standardMiddleware.Append(app.requireRole(models.RoleCitizen))
	agent := standardMiddleware.Append(app.requireRole(models.RoleAgent))
	recycler := standardMiddleware.Append(app.requireRole(models.RoleRecycler))
	admin := standardMiddleware.Append(app.requireRole(models.RoleAdmin))

	mux := pat.New()

	// Auth
	mux.Post("/api/auth/register", standardMiddleware.ThenFunc(app.authHandler.Register))
	mux.Post("/api/auth/login", standardMiddleware.ThenFunc(app.authHandler.Login))

	// Citizen
	mux.Post("/api/pickup/request", citizen.ThenFunc(app.pickupHandler.Create))
	mux.Get("/api/pickup/my-requests", citizen.ThenFunc(app.pickupHandler.Mine))
	mux.Get("/api/pickup/:id/record", anyRole.ThenFunc(app.pickupHandler.Record))
	mux.Get("/api/pickup/:id", anyRole.ThenFunc(app.pickupHandler.Get))

	// Agent
	mux.Get("/api/agent/requests", agent.ThenFunc(app.pickupHandler.Mine))
	mux.Put("/api/agent/collect/:id", agent.ThenFunc(app.pickupHandler.Collect))
	mux.Put("/api/agent/send-to-recycler/:id", agent.ThenFunc(app.pickupHandler.SendToRecycler))

	// Recycler
	mux.Get("/api/recycler/requests", recycler.ThenFunc(app.pickupHandler.Mine))
	mux.Put("/api/recycler/recycle/:id", recycler.ThenFunc(app.pickupHandler.Recycle))

	// Admin
	mux.Get("/api/admin/requests", admin.ThenFunc(app.pickupHandler.All))
	mux.Put("/api/admin/assign/:id", admin.ThenFunc(app.pickupHandler.Assign))
	mux.Get("/api/admin/agents", admin.ThenFunc(app.accountHandler.Agents))
	mux.Get("/api/admin/users", admin.ThenFunc(app.accountHandler.Users))
	mux.Get("/api/admin/users/:id", admin.ThenFunc(app.accountHandler.Get))
	mux.Del("/api/admin/users/:id", admin.ThenFunc(app.accountHandler.Delete))
	mux.Get("/api/admin/pending-accounts", admin.ThenFunc(app.accountHandler.Pending))
	mux.Put("/api/admin/approve-account/:id", admin.ThenFunc(app.accountHandler.Approve))
	mux.Put("/api/admin/reject-account/:id", admin.ThenFunc(app.accountHandler.Reject))
	mux.Put("/api/admin/deactivate-account/:id", admin.ThenFunc(app.accountHandler.Deactivate))
	mux.Put("/api/admin/reactivate-account/:id", admin.ThenFunc(app.accountHandler.Reactivate))
	mux.Put("/api/admin/accounts/:id/status", admin.ThenFunc(app.accountHandler.SetStatus))

	// Appeals
	mux.Post("/api/appeals", standardMiddleware.ThenFunc(app.appealHandler.Submit))
	mux.Get("/api/appeals", admin.ThenFunc(app.appealHandler.List))
	mux.Put("/api/appeals/:id/resolve", admin.ThenFunc(app.appealHandler.Resolve))

	// Events
	mux.Get("/ws/events", alice.New(app.recoverPanic, app.logRequest).ThenFunc(app.eventsHandler.Serve))

	mux.Get("/healthz", http.HandlerFunc(app.health))

	return mux
}

func (app *application) health(w http.ResponseWriter, r *http.Request) {
	if err := app.db.PingContext(r.Context()); err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
