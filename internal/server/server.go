package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/pantry/internal/auth"
	"github.com/dukerupert/pantry/internal/backup"
	"github.com/dukerupert/pantry/internal/config"
	"github.com/dukerupert/pantry/internal/handler"
	"github.com/dukerupert/pantry/internal/metrics"
	"github.com/dukerupert/pantry/internal/middleware"
	"github.com/dukerupert/pantry/internal/push"
	"github.com/dukerupert/pantry/internal/recipeai"
	"github.com/dukerupert/pantry/internal/store"
	ws "github.com/dukerupert/pantry/internal/websocket"
)

// loginPerMinute caps login and registration attempts per client IP.
const loginPerMinute = 10

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	metrics      *metrics.Collector
	authH        *handler.AuthHandler
	groceryH     *handler.GroceryHandler
	shoppingH    *handler.ShoppingHandler
	recipeH      *handler.RecipeHandler
	pushH        *handler.PushHandler
	pushStore    *store.PushStore
	pushSched    *push.Scheduler
	backupMgr    *backup.Manager
	sessionStore *store.SessionStore
	loginLimiter *middleware.RateLimiter
	aiLimiter    *middleware.RateLimiter
	aiClient     *recipeai.Client
	logger       *slog.Logger
}

func New(db *sql.DB, cfg config.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	collector := metrics.New(cfg.Gemini.Model)

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	categoryStore := store.NewCategoryStore(db)
	groceryStore := store.NewGroceryStore(db)
	shoppingStore := store.NewShoppingStore(db)
	recipeStore := store.NewRecipeStore(db)

	aiClient := recipeai.NewClient(cfg.Gemini, recipeai.WithRecorder(collector))
	if !aiClient.Configured() {
		logger.Warn("GEMINI_API_KEY is not set; recipe suggestions are disabled")
	}

	// Push notification service + scheduler
	pushStore := store.NewPushStore(db)
	var pushSched *push.Scheduler
	if cfg.Push.Enabled() {
		pushSvc := push.NewService(cfg.Push, nil)
		pushSched = push.NewScheduler(pushSvc, pushStore, groceryStore, cfg.ExpiryHorizonDays, logger.With("component", "push"))
	}

	backupMgr := backup.NewManager(cfg.Backup, db, store.NewBackupStore(db), logger.With("component", "backup"))

	var aiLimiter *middleware.RateLimiter
	if cfg.AIRatePerMinute > 0 {
		aiLimiter = middleware.PerMinute(cfg.AIRatePerMinute)
	}

	return &Server{
		db:           db,
		hub:          hub,
		metrics:      collector,
		authH:        handler.NewAuthHandler(userStore, sessionStore, collector, logger.With("component", "auth")),
		groceryH:     handler.NewGroceryHandler(groceryStore, categoryStore, hub, cfg.ExpiryHorizonDays, logger.With("component", "grocery")),
		shoppingH:    handler.NewShoppingHandler(shoppingStore, hub, logger.With("component", "shopping")),
		recipeH:      handler.NewRecipeHandler(aiClient, recipeStore, groceryStore, hub, collector, cfg.ExpiryHorizonDays, logger.With("component", "recipe")),
		pushH:        handler.NewPushHandler(pushStore, cfg.Push.VAPIDPublicKey, logger.With("component", "push_handler")),
		pushStore:    pushStore,
		pushSched:    pushSched,
		backupMgr:    backupMgr,
		sessionStore: sessionStore,
		loginLimiter: middleware.PerMinute(loginPerMinute),
		aiLimiter:    aiLimiter,
		aiClient:     aiClient,
		logger:       logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// PushStore returns the push store for cleanup tasks.
func (s *Server) PushStore() *store.PushStore {
	return s.pushStore
}

// PushScheduler returns the expiry reminder scheduler, or nil when push is
// not configured.
func (s *Server) PushScheduler() *push.Scheduler {
	return s.pushSched
}

// BackupManager returns the backup manager. It is disabled unless storage
// and a passphrase are configured.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupMgr
}

// RateLimiters returns the limiters whose idle keys need periodic cleanup.
func (s *Server) RateLimiters() []*middleware.RateLimiter {
	limiters := []*middleware.RateLimiter{s.loginLimiter}
	if s.aiLimiter != nil {
		limiters = append(limiters, s.aiLimiter)
	}
	return limiters
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public routes (no auth required)
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("POST /register", s.loginRateLimited(s.authH.Register))
	mux.HandleFunc("POST /login", s.loginRateLimited(s.authH.Login))

	s.registerProtectedRoutes(mux)

	handler := s.metrics.Middleware(mux)
	return middleware.RequestLogger(s.logger.With("component", "http"))(handler)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"status":       status,
		"ai_enabled":   s.aiClient.Configured(),
		"ai_model":     s.aiClient.Model(),
		"ws_clients":   s.hub.ClientCount(),
		"push_enabled": s.pushSched != nil,
		"backup":       s.backupMgr.Status(),
	})
}

func (s *Server) loginRateLimited(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.loginLimiter, middleware.RealIP)
	return rl(h).ServeHTTP
}

// aiRateLimited limits AI calls per signed-in user. It must sit inside
// RequireAuth so the user id is known.
func (s *Server) aiRateLimited(h http.HandlerFunc) http.Handler {
	if s.aiLimiter == nil {
		return h
	}
	keyFunc := func(r *http.Request) string {
		return "user:" + strconv.FormatInt(auth.UserID(r.Context()), 10)
	}
	return middleware.RateLimit(s.aiLimiter, keyFunc)(h)
}

// registerProtectedRoutes wraps each route in RequireAuth individually so the
// mux still records the matched pattern for metrics.
func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	requireAuth := middleware.RequireAuth(s.sessionStore)
	protect := func(pattern string, h http.Handler) {
		mux.Handle(pattern, requireAuth(h))
	}

	// Auth routes that require authentication
	protect("POST /logout", http.HandlerFunc(s.authH.Logout))
	protect("GET /api/me", http.HandlerFunc(s.authH.Me))

	// Grocery API routes
	protect("GET /api/categories", http.HandlerFunc(s.groceryH.Categories))
	protect("GET /api/groceries", http.HandlerFunc(s.groceryH.List))
	protect("POST /api/groceries", http.HandlerFunc(s.groceryH.Create))
	protect("GET /api/groceries/form", http.HandlerFunc(s.groceryH.NewForm))
	protect("GET /api/groceries/{id}", http.HandlerFunc(s.groceryH.Get))
	protect("GET /api/groceries/{id}/form", http.HandlerFunc(s.groceryH.Form))
	protect("PUT /api/groceries/{id}", http.HandlerFunc(s.groceryH.Update))
	protect("DELETE /api/groceries/{id}", http.HandlerFunc(s.groceryH.Delete))
	protect("GET /api/warnings", http.HandlerFunc(s.groceryH.Warnings))

	// Shopping list API routes
	protect("GET /api/shopping-list", http.HandlerFunc(s.shoppingH.List))
	protect("POST /api/shopping-list/{grocery_id}", http.HandlerFunc(s.shoppingH.Add))
	protect("PUT /api/shopping-list/entries/{id}", http.HandlerFunc(s.shoppingH.SetQuantity))
	protect("DELETE /api/shopping-list/entries/{id}", http.HandlerFunc(s.shoppingH.Remove))

	// Recipe API routes
	protect("POST /api/recipes/suggest", s.aiRateLimited(s.recipeH.Suggest))
	protect("POST /api/recipes/refine", s.aiRateLimited(s.recipeH.Refine))
	protect("POST /api/recipes", http.HandlerFunc(s.recipeH.Save))
	protect("GET /api/recipes", http.HandlerFunc(s.recipeH.List))
	protect("GET /api/recipes/{id}", http.HandlerFunc(s.recipeH.Get))

	// Push notification API routes
	protect("GET /api/push/vapid-key", http.HandlerFunc(s.pushH.GetVAPIDKey))
	protect("GET /api/push/subscriptions", http.HandlerFunc(s.pushH.ListSubscriptions))
	protect("POST /api/push/subscriptions", http.HandlerFunc(s.pushH.Subscribe))
	protect("DELETE /api/push/subscriptions/{id}", http.HandlerFunc(s.pushH.Unsubscribe))

	// WebSocket endpoint
	protect("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))
}
