package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-be/internal/address"
	"storefront-be/internal/cart"
	"storefront-be/internal/config"
	"storefront-be/internal/identity"
	"storefront-be/internal/logger"
	"storefront-be/internal/middleware"
	"storefront-be/internal/order"
	"storefront-be/internal/payment"
	"storefront-be/internal/payment/webhook"
	"storefront-be/internal/postgrest"
	"storefront-be/internal/product"
	"storefront-be/internal/session"
	"storefront-be/internal/transport"
	"storefront-be/internal/user"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.L().Fatal("failed to load config", zap.Error(err))
	}

	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	// Prices go out as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	if err := run(cfg); err != nil {
		logger.L().Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config) error {
	handler, err := newServer(cfg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.L().Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.AppEnv),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.L().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type handlers struct {
	auth     *user.Handler
	products *product.Handler
	cart     *cart.Handler
	address  *address.Handler
	orders   *order.Handler
	pay      *payment.Handler
	webhook  *webhook.Handler
}

// newServer wires clients, repositories, services and handlers into the
// full middleware chain.
func newServer(cfg *config.Config) (http.Handler, error) {
	db := postgrest.New(cfg.RestURL(), cfg.SupabaseAnonKey, postgrest.WithTimeout(cfg.StoreTimeout))

	serviceKey := cfg.SupabaseServiceRoleKey
	if serviceKey == "" {
		logger.L().Warn("SUPABASE_SERVICE_ROLE_KEY is empty; order lookups and payment callbacks run with the anon key")
		serviceKey = cfg.SupabaseAnonKey
	}
	serviceDB := postgrest.New(cfg.RestURL(), serviceKey, postgrest.WithServiceRole(), postgrest.WithTimeout(cfg.StoreTimeout))

	idp := identity.NewClient(cfg.AuthURL(), cfg.SupabaseAnonKey, cfg.StoreTimeout)
	keys := identity.NewKeySet(cfg.AuthURL()+"/.well-known/jwks.json", cfg.StoreTimeout)
	verifier := identity.NewVerifier(cfg.SupabaseJWTSecret, keys, cfg.AuthURL(), cfg.AuthAudience)
	sessions := session.NewManager(cfg.SecretKey, cfg.SessionTTL, cfg.IsProduction())

	productRepo := product.NewRepository(db)
	cartRepo := cart.NewRepository(db)
	addressRepo := address.NewRepository(db)
	orderRepo := order.NewRepository(db, serviceDB)
	paymentRepo := payment.NewRepository(serviceDB)

	orderSvc := order.NewService(orderRepo, cartRepo, productRepo, addressRepo)
	paymentSvc := payment.NewService(orderSvc, payment.NewXenditGateway(cfg.XenditSecretKey, cfg.GatewayTimeout), paymentRepo, idp, cfg.PublicBaseURL)

	h := handlers{
		auth:     user.NewHandler(user.NewService(idp, verifier), sessions),
		products: product.NewHandler(product.NewService(productRepo)),
		cart:     cart.NewHandler(cart.NewService(cartRepo, productRepo)),
		address:  address.NewHandler(address.NewService(addressRepo)),
		orders:   order.NewHandler(orderSvc),
		pay:      payment.NewHandler(paymentSvc),
		webhook:  webhook.NewHandler(orderSvc, paymentRepo, cfg.WebhookToken),
	}

	limiter, err := middleware.NewRateLimiter(cfg.InternalSecretKey, 0)
	if err != nil {
		return nil, err
	}

	var chain http.Handler = setupRouter(h)
	chain = limiter.Middleware(chain)
	chain = middleware.Session(sessions)(chain)
	chain = middleware.CORS(cfg.AllowedOriginsList())(chain)
	chain = middleware.Logging(chain)
	chain = logger.RequestIDMiddleware(chain)
	return chain, nil
}

func setupRouter(h handlers) *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", health).Methods(http.MethodGet)

	// Auth
	api.HandleFunc("/auth/signup", h.auth.Signup).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", h.auth.Login).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", h.auth.Logout).Methods(http.MethodPost)
	api.HandleFunc("/auth/reset-password", h.auth.ResetPassword).Methods(http.MethodPost)
	api.HandleFunc("/auth/session", h.auth.Session).Methods(http.MethodPost)
	api.HandleFunc("/auth/me", h.auth.Me).Methods(http.MethodGet)

	// Catalog
	api.HandleFunc("/products", h.products.List).Methods(http.MethodGet)
	api.HandleFunc("/products/search", h.products.Search).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", h.products.Get).Methods(http.MethodGet)
	api.Handle("/products", admin(h.products.Create)).Methods(http.MethodPost)
	api.Handle("/products/{id}", admin(h.products.Update)).Methods(http.MethodPut)
	api.Handle("/products/{id}", admin(h.products.Delete)).Methods(http.MethodDelete)

	// Cart
	api.Handle("/cart", authed(h.cart.List)).Methods(http.MethodGet)
	api.Handle("/cart", authed(h.cart.Add)).Methods(http.MethodPost)
	api.Handle("/cart/{product_id}", authed(h.cart.Update)).Methods(http.MethodPut)
	api.Handle("/cart/{product_id}", authed(h.cart.Remove)).Methods(http.MethodDelete)

	// Address book
	api.Handle("/address", authed(h.address.List)).Methods(http.MethodGet)
	api.Handle("/address", authed(h.address.Create)).Methods(http.MethodPost)
	api.Handle("/address/default", authed(h.address.Default)).Methods(http.MethodGet)
	api.Handle("/address/{id}", authed(h.address.Update)).Methods(http.MethodPut)
	api.Handle("/address/{id}", authed(h.address.Delete)).Methods(http.MethodDelete)

	// Orders and payment
	api.Handle("/checkout", authed(h.orders.Checkout)).Methods(http.MethodPost)
	api.Handle("/orders", authed(h.orders.List)).Methods(http.MethodGet)
	api.Handle("/orders/{id}", authed(h.orders.Get)).Methods(http.MethodGet)
	api.Handle("/pay/{order_id}", authed(h.pay.Pay)).Methods(http.MethodGet)
	api.HandleFunc("/webhook", h.webhook.Handle).Methods(http.MethodPost)
	api.Handle("/admin/orders/{id}/status", admin(h.orders.UpdateStatus)).Methods(http.MethodPatch)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		transport.WriteError(w, r, transport.NotFound("route not found"), "")
	})
	return r
}

func authed(fn http.HandlerFunc) http.Handler { return middleware.RequireAuth(fn) }
func admin(fn http.HandlerFunc) http.Handler  { return middleware.RequireAdmin(fn) }

func health(w http.ResponseWriter, r *http.Request) {
	transport.WriteBody(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
