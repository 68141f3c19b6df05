package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/pluginhub/internal/handler"
	"github.com/dukerupert/pluginhub/internal/middleware"
	"github.com/dukerupert/pluginhub/internal/payment"
	"github.com/dukerupert/pluginhub/internal/service"
	"github.com/dukerupert/pluginhub/internal/storage"
	"github.com/dukerupert/pluginhub/internal/store"
	ws "github.com/dukerupert/pluginhub/internal/websocket"
)

// Rate limits per client IP and route.
const (
	downloadLimit = 30
	intentLimit   = 10
	webhookLimit  = 120
	limitWindow   = time.Minute
)

type Server struct {
	hub         *ws.Hub
	pluginH     *handler.PluginHandler
	versionH    *handler.VersionHandler
	accessH     *handler.AccessHandler
	authH       *handler.AuthHandler
	profileH    *handler.ProfileHandler
	reviewH     *handler.ReviewHandler
	bugH        *handler.SubmissionHandler
	suggestionH *handler.SubmissionHandler
	wikiH       *handler.WikiHandler
	paymentH    *handler.PaymentHandler
	payments    *service.PaymentService
	authService *service.AuthService
	versions    *service.VersionService
	rateLimiter *middleware.RateLimiter
	jwtKey      []byte
	operators   []string
	logger      *slog.Logger
}

// New wires stores, services and handlers. payments may be nil, in which
// case the payment routes are not registered.
func New(db *sqlx.DB, files storage.FileStore, payments *payment.Client, jwtKey []byte, tokenTTL time.Duration, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	pluginStore := store.NewPluginStore(db)
	versionStore := store.NewVersionStore(db)
	linkStore := store.NewDownloadLinkStore(db)
	profileStore := store.NewProfileStore(db)
	blacklistStore := store.NewBlacklistStore(db)
	reviewStore := store.NewReviewStore(db)
	wikiStore := store.NewWikiStore(db)

	access := service.NewAccessService(pluginStore, profileStore, hub, logger.With("component", "access"))
	authSvc := service.NewAuthService(blacklistStore, access, pluginStore, jwtKey, tokenTTL, logger.With("component", "auth"))
	versions := service.NewVersionService(pluginStore, versionStore, linkStore, access, files, hub, logger.With("component", "version"))

	s := &Server{
		hub:         hub,
		pluginH:     handler.NewPluginHandler(service.NewPluginService(pluginStore, files, hub, logger.With("component", "plugin")), logger.With("component", "plugin_handler")),
		versionH:    handler.NewVersionHandler(versions, logger.With("component", "version_handler")),
		accessH:     handler.NewAccessHandler(access, logger.With("component", "access_handler")),
		authH:       handler.NewAuthHandler(authSvc, logger.With("component", "auth_handler")),
		profileH:    handler.NewProfileHandler(service.NewProfileService(profileStore, logger.With("component", "profile")), logger.With("component", "profile_handler")),
		reviewH:     handler.NewReviewHandler(service.NewReviewService(reviewStore, pluginStore, logger.With("component", "review")), logger.With("component", "review_handler")),
		bugH:        handler.NewSubmissionHandler(service.NewBugService(store.NewBugStore(db), pluginStore, logger.With("component", "bug")), logger.With("component", "bug_handler")),
		suggestionH: handler.NewSubmissionHandler(service.NewSuggestionService(store.NewSuggestionStore(db), pluginStore, logger.With("component", "suggestion")), logger.With("component", "suggestion_handler")),
		wikiH:       handler.NewWikiHandler(service.NewWikiService(wikiStore, pluginStore, access, logger.With("component", "wiki")), logger.With("component", "wiki_handler")),
		authService: authSvc,
		versions:    versions,
		rateLimiter: middleware.NewRateLimiter(),
		jwtKey:      jwtKey,
		logger:      logger,
	}

	if payments != nil {
		paySvc := service.NewPaymentService(payments, pluginStore, profileStore, access, logger.With("component", "payment"))
		s.payments = paySvc
		s.paymentH = handler.NewPaymentHandler(paySvc, payments, logger.With("component", "payment_handler"))
	}
	return s
}

// EnableReceipts mails a receipt after each fulfilled purchase. It does
// nothing when payments are disabled.
func (s *Server) EnableReceipts(r service.ReceiptSender) {
	if s.payments != nil {
		s.payments.SetReceiptSender(r)
	}
}

// AllowOperators sets the gateway client ids allowed to lift a token off
// the denylist. Call it before Router.
func (s *Server) AllowOperators(clientIDs []string) {
	s.operators = clientIDs
}

// AuthService returns the auth service for cleanup tasks.
func (s *Server) AuthService() *service.AuthService {
	return s.authService
}

// VersionService returns the version service for cleanup tasks.
func (s *Server) VersionService() *service.VersionService {
	return s.versions
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)

	identify := middleware.Identify(s.jwtKey, s.authService)
	return middleware.RequestLogger(s.logger.With("component", "http"))(identify(mux))
}

func (s *Server) bearer(h http.HandlerFunc) http.Handler {
	return middleware.RequireBearer(s.jwtKey, s.authService)(h)
}

func (s *Server) rateLimited(limit int, h http.Handler) http.Handler {
	return middleware.RateLimit(s.rateLimiter, middleware.RealIP, limit, limitWindow)(h)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", handler.Health)
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))

	// Plugins
	mux.HandleFunc("POST /plugins", s.pluginH.Create)
	mux.HandleFunc("GET /plugins", s.pluginH.List)
	mux.HandleFunc("GET /plugins/{id}", s.pluginH.Get)
	mux.HandleFunc("GET /plugin-names/{name}", s.pluginH.GetByName)
	mux.HandleFunc("PUT /plugins/{id}", s.pluginH.Update)
	mux.HandleFunc("DELETE /plugins/{id}", s.pluginH.Delete)
	mux.HandleFunc("POST /plugins/{id}/images", s.pluginH.AddImage)
	mux.HandleFunc("GET /plugins/{id}/images", s.pluginH.ListImages)
	mux.HandleFunc("DELETE /plugins/{id}/images/{file}", s.pluginH.DeleteImage)

	// Versions and downloads
	mux.HandleFunc("POST /plugins/{id}/versions", s.versionH.Upload)
	mux.HandleFunc("GET /plugins/{id}/versions", s.versionH.List)
	mux.HandleFunc("GET /plugins/{id}/versions/{version}", s.versionH.Get)
	mux.HandleFunc("PUT /plugins/{id}/versions/{version}", s.versionH.Update)
	mux.HandleFunc("DELETE /plugins/{id}/versions/{version}", s.versionH.Delete)
	mux.HandleFunc("GET /plugins/{id}/files", s.versionH.ListFiles)
	mux.Handle("POST /plugins/{id}/versions/{version}/download", s.rateLimited(downloadLimit, http.HandlerFunc(s.versionH.RequestDownload)))
	mux.Handle("GET /downloads/{link}", s.rateLimited(downloadLimit, http.HandlerFunc(s.versionH.Download)))

	// Entitlements
	mux.Handle("POST /access/{plugin}", s.bearer(s.accessH.Add))
	mux.Handle("GET /access/{plugin}", s.bearer(s.accessH.Has))
	mux.Handle("DELETE /access/{plugin}", s.bearer(s.accessH.Remove))

	// Plugin tokens and the denylist
	mux.Handle("POST /auth/plugins/{plugin}/token", s.bearer(s.authH.IssueToken))
	mux.HandleFunc("GET /auth/validate", s.authH.Validate)
	mux.HandleFunc("POST /auth/blacklist", s.authH.Blacklist)
	mux.HandleFunc("GET /auth/blacklist", s.authH.IsBlacklisted)
	mux.Handle("DELETE /auth/blacklist", middleware.RequireOperator(s.operators)(http.HandlerFunc(s.authH.Unblacklist)))

	// Profiles
	mux.HandleFunc("POST /profiles", s.profileH.Create)
	mux.HandleFunc("GET /profiles/me", s.profileH.Me)
	mux.HandleFunc("GET /profiles/{id}", s.profileH.Get)
	mux.HandleFunc("PUT /profiles/{id}/ban", s.profileH.Ban)
	mux.HandleFunc("DELETE /profiles/{id}/ban", s.profileH.Unban)
	mux.HandleFunc("GET /profiles/{id}/plugins", s.profileH.Plugins)
	mux.HandleFunc("DELETE /profiles/{id}", s.profileH.Delete)

	// Reviews
	mux.HandleFunc("POST /plugins/{id}/reviews", s.reviewH.Create)
	mux.HandleFunc("GET /plugins/{id}/reviews", s.reviewH.List)
	mux.HandleFunc("GET /reviews/{id}", s.reviewH.Get)
	mux.HandleFunc("PUT /reviews/{id}", s.reviewH.Update)
	mux.HandleFunc("DELETE /reviews/{id}", s.reviewH.Delete)
	mux.HandleFunc("PUT /reviews/{id}/status", s.reviewH.SetStatus)

	// Bugs
	mux.HandleFunc("POST /plugins/{id}/bugs", s.bugH.Create)
	mux.HandleFunc("GET /plugins/{id}/bugs", s.bugH.List)
	mux.HandleFunc("GET /bugs/{id}", s.bugH.Get)
	mux.HandleFunc("DELETE /bugs/{id}", s.bugH.Delete)
	mux.HandleFunc("PUT /bugs/{id}/status", s.bugH.SetStatus)

	// Suggestions
	mux.HandleFunc("POST /plugins/{id}/suggestions", s.suggestionH.Create)
	mux.HandleFunc("GET /plugins/{id}/suggestions", s.suggestionH.List)
	mux.HandleFunc("GET /suggestions/{id}", s.suggestionH.Get)
	mux.HandleFunc("DELETE /suggestions/{id}", s.suggestionH.Delete)
	mux.HandleFunc("PUT /suggestions/{id}/status", s.suggestionH.SetStatus)

	// Wiki
	mux.HandleFunc("GET /plugins/{id}/wiki", s.wikiH.Get)
	mux.HandleFunc("DELETE /plugins/{id}/wiki", s.wikiH.Delete)
	mux.HandleFunc("POST /plugins/{id}/wiki/topics", s.wikiH.AddTopic)
	mux.HandleFunc("GET /plugins/{id}/wiki/topics/{name}", s.wikiH.GetTopic)
	mux.HandleFunc("PUT /plugins/{id}/wiki/topics/{name}", s.wikiH.UpdateTopic)
	mux.HandleFunc("DELETE /plugins/{id}/wiki/topics/{name}", s.wikiH.DeleteTopic)

	// Payments
	if s.paymentH != nil {
		mux.Handle("POST /payments/intents", s.rateLimited(intentLimit, s.bearer(s.paymentH.CreateIntent)))
		mux.Handle("POST /webhooks/stripe", s.rateLimited(webhookLimit, http.HandlerFunc(s.paymentH.HandleStripeWebhook)))
	}
}
