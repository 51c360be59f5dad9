package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/theofficialwebsiteguys/Dispensary-API/internal/middleware"
)

// SetupRouter configures the HTTP routes and middleware of the dispensary
// service.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/forgot-password", h.ForgotPassword)
			r.Get("/redirect", h.ResetRedirect)
			r.Get("/validate-reset-token", h.ValidateResetToken)
			r.Post("/reset-password", h.ResetPassword)

			r.Group(func(r chi.Router) {
				r.Use(h.authMiddleware.Middleware)

				r.Get("/", h.GetUsers)
				r.Get("/id/{id}", h.GetUserByID)
				r.Get("/email", h.GetUserByEmail)
				r.Get("/phone", h.GetUserByPhone)
				r.Get("/lookup", h.LookupUser)
				r.Delete("/delete/{id}", h.DeleteUser)
				r.Put("/update", h.UpdateUser)

				r.Put("/add-points", h.AddPoints)
				r.Put("/redeem-points", h.RedeemPoints)

				r.Post("/logout", h.Logout)
				r.Get("/validate-session", h.ValidateSession)

				r.Put("/toggle-notifications", h.ToggleNotifications)
				r.Post("/update-push-token", h.UpdatePushToken)
				r.Post("/push-token", h.GetPushToken)

				r.Put("/user-membership/upgrade", h.UpgradeMembership)
				r.Put("/user-membership/downgrade", h.DowngradeMembership)

				r.Post("/referrals", h.CreateReferral)
				r.Get("/referrals", h.GetReferrals)
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/", h.GetOrders)
			r.Get("/user", h.GetUserOrders)
			r.Get("/pending", h.GetPendingOrders)
			r.Get("/id/{id}", h.GetOrderByID)
			r.Post("/create", h.CreateOrder)
		})

		r.Route("/businesses", func(r chi.Router) {
			r.Post("/register", h.RegisterBusiness)

			r.Group(func(r chi.Router) {
				r.Use(h.authMiddleware.Middleware)

				r.Get("/", h.GetBusinesses)
				r.Get("/id/{id}", h.GetBusinessByID)
				r.Put("/update", h.UpdateBusiness)
				r.Delete("/delete/{id}", h.DeleteBusiness)
				r.Post("/email", h.SendBusinessEmail)
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/all", h.GetNotifications)
			r.Post("/send-push", h.SendPush)
			r.Delete("/delete/{id}", h.DeleteNotification)
			r.Delete("/delete-all", h.DeleteAllNotifications)
			r.Put("/mark-read/{id}", h.MarkNotificationRead)
			r.Put("/mark-all-read", h.MarkAllNotificationsRead)
		})

		r.Route("/products", func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/all-products", h.GetAllProducts)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
