package router

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/oppa-kitchen/storefront/internal/backend"
	"github.com/oppa-kitchen/storefront/internal/cart"
	"github.com/oppa-kitchen/storefront/internal/checkout"
	"github.com/oppa-kitchen/storefront/internal/config"
	"github.com/oppa-kitchen/storefront/internal/handler"
	mw "github.com/oppa-kitchen/storefront/internal/middleware"
	"github.com/oppa-kitchen/storefront/internal/ws"
	"go.uber.org/zap"
)

// New creates a Chi router with all application routes wired up.
// Cart and checkout routes run inside a cart session; order routes require
// a customer bearer token.
func New(cfg *config.Config, carts *cart.Registry, api *backend.Client, hub *ws.Hub, log *zap.Logger) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.RequestLogger(log))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", mw.CartHeader},
		ExposedHeaders:   []string{mw.CartHeader},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// WebSocket route (handles the cart token internally via query param)
	r.Method(http.MethodGet, "/ws/cart", ws.NewHandler(hub, cfg.JWTSecret, cartSnapshot(carts), log))

	// Storefront routes scoped to the caller's cart
	flow := checkout.NewFlow(api, cfg.DeliveryFee, log)
	r.Group(func(r chi.Router) {
		r.Use(mw.CartSession(cfg.JWTSecret, cfg.CartSessionTTL, !cfg.Development(), log))

		cartHandler := handler.NewCartHandler(carts, log)
		r.Route("/cart", cartHandler.RegisterRoutes)

		checkoutHandler := handler.NewCheckoutHandler(carts, flow, api, log)
		r.Route("/checkout", checkoutHandler.RegisterRoutes)
	})

	// Backend proxy routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/orders", handler.NewOrderHandler(api, log).RegisterRoutes)
		r.Route("/auth", handler.NewAuthHandler(api, log).RegisterRoutes)
		r.Route("/menu", handler.NewMenuHandler(api, log).RegisterRoutes)
	})

	log.Info("router initialized", zap.String("backend", cfg.BackendURL))
	return r
}

// BroadcastCartChanges pushes every committed cart mutation to the cart's
// WebSocket observers.
func BroadcastCartChanges(hub *ws.Hub, log *zap.Logger) cart.ChangeFunc {
	return func(cartID uuid.UUID, items []cart.LineItem) {
		ev, err := ws.NewEvent(ws.EventCartUpdated, handler.NewCartResponse(items))
		if err != nil {
			log.Error("encode cart event", zap.String("cart_id", cartID.String()), zap.Error(err))
			return
		}
		hub.BroadcastToCart(cartID, ev)
	}
}

// cartSnapshot delivers the cart under the store's write lock, so the
// snapshot is queued ahead of any change committed after it.
func cartSnapshot(carts *cart.Registry) ws.SnapshotFunc {
	return func(ctx context.Context, cartID uuid.UUID, deliver func(ws.Event)) error {
		store, err := carts.Get(ctx, cartID)
		if err != nil {
			return err
		}
		var encErr error
		store.Inspect(func(items []cart.LineItem) {
			ev, err := ws.NewEvent(ws.EventCartUpdated, handler.NewCartResponse(items))
			if err != nil {
				encErr = err
				return
			}
			deliver(ev)
		})
		return encErr
	}
}
