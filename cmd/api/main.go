package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/otel/trace"

	_ "cartflow/docs"
	"cartflow/pkg/cart"
	pg "cartflow/pkg/cart/postgres"
	"cartflow/pkg/logger"
	"cartflow/pkg/otel"
)

var (
	redisClient *redis.Client
	backend     cart.Backend
	log         *logger.Logger
	tracer      trace.Tracer

	enginesMu sync.Mutex
	engines   = map[string]*cart.Engine{}
)

// @title Cartflow API
// @version 1.0
// @description Storefront cart API with optimistic local state
// @host localhost:8443
// @BasePath /
func main() {
	log = logger.New(os.Stdout, logger.LevelInfo, "cartflow", otel.GetTraceID)
	tp, shutdown, err := otel.InitTracing(log, otel.Config{ServiceName: "cartflow", Host: os.Getenv("OTEL_HOST"), Probability: 1.0})
	if err != nil {
		log.Error(context.Background(), "init tracing", "error", err)
		return
	}
	defer shutdown(context.Background())
	tracer = tp.Tracer("cartflow")

	db, err := sql.Open("postgres", os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Error(context.Background(), "db connect", "error", err)
		os.Exit(1)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY, name TEXT NOT NULL, image TEXT NOT NULL DEFAULT '',
		price DOUBLE PRECISION NOT NULL, stock INT NOT NULL)`); err != nil {
		log.Error(context.Background(), "create products table", "error", err)
		os.Exit(1)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS cart_items (
		id TEXT PRIMARY KEY, user_id TEXT NOT NULL, product_id TEXT NOT NULL REFERENCES products(id),
		name TEXT NOT NULL, image TEXT NOT NULL DEFAULT '', price DOUBLE PRECISION NOT NULL,
		quantity INT NOT NULL CHECK (quantity >= 1),
		added_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_id, product_id))`); err != nil {
		log.Error(context.Background(), "create cart_items table", "error", err)
		os.Exit(1)
	}
	backend = pg.New(db)

	redisClient = redis.NewClient(&redis.Options{Addr: os.Getenv("REDIS_ADDR")})

	r := mux.NewRouter()
	r.Use(traceMiddleware)
	r.HandleFunc("/login", loginHandler).Methods(http.MethodPost)
	r.HandleFunc("/logout", logoutHandler).Methods(http.MethodPost)

	api := r.PathPrefix("/cart").Subrouter()
	api.Use(authMiddleware)
	api.HandleFunc("", viewCartHandler).Methods(http.MethodGet)
	api.HandleFunc("", clearCartHandler).Methods(http.MethodDelete)
	api.HandleFunc("/items", addItemHandler).Methods(http.MethodPost)
	api.HandleFunc("/items/{id}", updateItemHandler).Methods(http.MethodPut)
	api.HandleFunc("/items/{id}", removeItemHandler).Methods(http.MethodDelete)

	r.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	log.Info(context.Background(), "listening", "addr", ":8443")
	if err := http.ListenAndServeTLS(":8443", "certs/server.crt", "certs/server.key", r); err != nil {
		log.Error(context.Background(), "server closed", "error", err)
	}
}

// engineFor returns the cart engine bound to the session, creating it
// on first use. Engines live exactly as long as their session.
func engineFor(sess *cart.Session) *cart.Engine {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	if e, ok := engines[sess.ID]; ok {
		return e
	}
	e := cart.NewEngine(backend, log, cart.Options{
		Freshness: envDuration("CART_TTL", 5*time.Minute),
		Timeout:   envDuration("CART_TIMEOUT", 10*time.Second),
	})
	e.SetSession(sess)
	engines[sess.ID] = e
	return e
}

// dropEngine closes the session gate and discards the engine.
func dropEngine(sid string) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	if e, ok := engines[sid]; ok {
		e.SetSession(nil)
		delete(engines, sid)
	}
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// loginHandler authenticates the user and opens a cart session.
// @Summary Login
// @Description Authenticates user, sets session cookie, opens the cart session
// @Accept json
// @Produce json
// @Param creds body loginRequest true "Credentials"
// @Success 200
// @Router /login [post]
func loginHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "loginHandler")
	defer span.End()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		http.Error(w, "invalid credentials", http.StatusBadRequest)
		return
	}
	role := req.Role
	if role == "" {
		role = string(cart.RoleCustomer)
	}
	sid := uuid.NewString()
	if err := redisClient.Set(ctx, "session:"+sid, req.Username+":"+role, time.Hour).Err(); err != nil {
		http.Error(w, "session error", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "session_id", Value: sid, Path: "/", Expires: time.Now().Add(time.Hour), HttpOnly: true})

	engineFor(&cart.Session{ID: sid, User: req.Username, Role: cart.Role(role)})
	w.WriteHeader(http.StatusOK)
}

// logoutHandler ends the session; the gate close wipes the cart state.
// @Summary Logout
// @Success 204
// @Router /logout [post]
func logoutHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "logoutHandler")
	defer span.End()

	c, err := r.Cookie("session_id")
	if err == nil {
		redisClient.Del(ctx, "session:"+c.Value)
		dropEngine(c.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: "session_id", Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	w.WriteHeader(http.StatusNoContent)
}

type sessionKey int

const sessionCtxKey sessionKey = 1

// authMiddleware resolves the session cookie against Redis and attaches
// the session to the request context.
func authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("session_id")
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		val, err := redisClient.Get(r.Context(), "session:"+c.Value).Result()
		if err != nil || val == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		user, role, ok := strings.Cut(val, ":")
		if !ok || user == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		sess := &cart.Session{ID: c.Value, User: user, Role: cart.Role(role)}
		ctx := context.WithValue(r.Context(), sessionCtxKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) *cart.Session {
	sess, _ := r.Context().Value(sessionCtxKey).(*cart.Session)
	return sess
}

// cartResponse is the read view exposed to UI consumers.
type cartResponse struct {
	cart.State
	cart.Flags
}

func writeCart(w http.ResponseWriter, e *cart.Engine) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cartResponse{State: e.State(), Flags: e.Flags()})
}

// httpError maps engine errors onto HTTP statuses.
func httpError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrNotAuthorized):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, cart.ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, cart.ErrOutOfStock):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, cart.ErrProductNotFound), errors.Is(err, cart.ErrItemNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		log.Error(ctx, "cart backend", "error", err)
		http.Error(w, "cart backend unavailable", http.StatusBadGateway)
	}
}

// viewCartHandler returns the cart state, refreshing it if stale.
// @Summary View cart
// @Produce json
// @Success 200 {object} cartResponse
// @Security ApiKeyAuth
// @Router /cart [get]
func viewCartHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "viewCartHandler")
	defer span.End()

	e := engineFor(sessionFrom(r))
	if _, err := e.View(ctx); err != nil {
		httpError(ctx, w, err)
		return
	}
	writeCart(w, e)
}

// addItemRequest carries the product snapshot and quantity to add.
type addItemRequest struct {
	Product  cart.Product `json:"product"`
	Quantity int          `json:"quantity"`
}

// addItemHandler adds a product to the cart.
// @Summary Add item
// @Accept json
// @Produce json
// @Param item body addItemRequest true "Item"
// @Success 200 {object} cartResponse
// @Security ApiKeyAuth
// @Router /cart/items [post]
func addItemHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "addItemHandler")
	defer span.End()

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Product.ID == "" {
		http.Error(w, "invalid item", http.StatusBadRequest)
		return
	}
	e := engineFor(sessionFrom(r))
	if err := e.AddToCart(ctx, req.Product, req.Quantity); err != nil {
		httpError(ctx, w, err)
		return
	}
	writeCart(w, e)
}

// updateItemRequest carries the new quantity for a line item.
type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

// updateItemHandler changes a line item's quantity; zero removes it.
// @Summary Update item quantity
// @Accept json
// @Produce json
// @Param id path string true "Item ID"
// @Param item body updateItemRequest true "Quantity"
// @Success 200 {object} cartResponse
// @Security ApiKeyAuth
// @Router /cart/items/{id} [put]
func updateItemHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "updateItemHandler")
	defer span.End()

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid quantity", http.StatusBadRequest)
		return
	}
	e := engineFor(sessionFrom(r))
	if err := e.UpdateItem(ctx, mux.Vars(r)["id"], req.Quantity); err != nil {
		httpError(ctx, w, err)
		return
	}
	writeCart(w, e)
}

// removeItemHandler removes a line item; absent IDs are a no-op.
// @Summary Remove item
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {object} cartResponse
// @Security ApiKeyAuth
// @Router /cart/items/{id} [delete]
func removeItemHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "removeItemHandler")
	defer span.End()

	e := engineFor(sessionFrom(r))
	if err := e.RemoveItem(ctx, mux.Vars(r)["id"]); err != nil {
		httpError(ctx, w, err)
		return
	}
	writeCart(w, e)
}

// clearCartHandler empties the cart.
// @Summary Clear cart
// @Produce json
// @Success 200 {object} cartResponse
// @Security ApiKeyAuth
// @Router /cart [delete]
func clearCartHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "clearCartHandler")
	defer span.End()

	e := engineFor(sessionFrom(r))
	if err := e.Clear(ctx); err != nil {
		httpError(ctx, w, err)
		return
	}
	writeCart(w, e)
}

func traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.InjectTracing(r.Context(), tracer)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loginRequest represents login credentials.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}
