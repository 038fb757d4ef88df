package routes

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	authctl "github.com/00anuyh/souvenir/controllers/auth"
	"github.com/00anuyh/souvenir/controllers/users"
	"github.com/00anuyh/souvenir/middleware"
	"github.com/00anuyh/souvenir/store"
)

// UsersRoutes registers the storefront-facing routes on the given subrouter.
func UsersRoutes(api *mux.Router, kv store.KeyValueStore) {
	// login/register: 60 per IP per 5 minutes
	loginLimiter := middleware.NewIPRateLimiter(60, 5*time.Minute)
	// session routes: 120 reads / 60 writes per user per minute
	userLimiter := middleware.NewUserRateLimiter(120, 60, 60)

	ctl := users.NewController(kv)
	authCtl := authctl.NewController(ctl.Ledger)

	// Register & Login
	api.Handle("/register", loginLimiter.Middleware(http.HandlerFunc(authCtl.RegisterHandler))).Methods(http.MethodPost)
	api.Handle("/login", loginLimiter.Middleware(http.HandlerFunc(authctl.LoginHandler))).Methods(http.MethodPost)
	api.Handle("/refresh", loginLimiter.Middleware(http.HandlerFunc(authctl.RefreshHandler))).Methods(http.MethodPost)
	api.Handle("/logout", middleware.AuthMiddleware(userLimiter.Middleware(http.HandlerFunc(authctl.LogoutHandler)))).Methods(http.MethodPost)

	// Checkout: called by the payment flow after confirmation; issues the
	// order's coupons and opens the lottery window.
	api.Handle("/users/checkout", middleware.AuthMiddleware(userLimiter.Middleware(http.HandlerFunc(ctl.CheckoutHandler)))).Methods(http.MethodPost)

	// Rewards (profile page, read-only) and points spending
	api.Handle("/users/rewards", middleware.AuthMiddleware(userLimiter.Middleware(http.HandlerFunc(ctl.GetRewardsHandler)))).Methods(http.MethodGet)
	api.Handle("/users/points/spend", middleware.AuthMiddleware(userLimiter.Middleware(http.HandlerFunc(ctl.SpendPointsHandler)))).Methods(http.MethodPost)

	// Coupons
	api.Handle("/users/coupons", middleware.AuthMiddleware(userLimiter.Middleware(http.HandlerFunc(ctl.ListCouponsHandler)))).Methods(http.MethodGet)
	api.Handle("/users/coupons/{id}/redeem", middleware.AuthMiddleware(userLimiter.Middleware(http.HandlerFunc(ctl.RedeemCouponHandler)))).Methods(http.MethodPost)

	// Event lottery
	api.Handle("/users/lottery", middleware.AuthMiddleware(userLimiter.Middleware(http.HandlerFunc(ctl.LotteryStatusHandler)))).Methods(http.MethodGet)
	api.Handle("/users/lottery/draw", middleware.AuthMiddleware(userLimiter.Middleware(http.HandlerFunc(ctl.LotteryDrawHandler)))).Methods(http.MethodPost)
}
