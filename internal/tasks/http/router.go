package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/tasktrack/internal/tasks/obs"
	"github.com/aussiebroadwan/tasktrack/internal/tasks/service"
	"github.com/aussiebroadwan/tasktrack/internal/tasks/store"
	"github.com/aussiebroadwan/tasktrack/pkg/httpx"
	"github.com/aussiebroadwan/tasktrack/pkg/slogx"

	_ "github.com/aussiebroadwan/tasktrack/api/tasks" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Pinger is implemented by dependencies that can report their reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RateLimits selects the limiter profile for each class of endpoint.
type RateLimits struct {
	Strict   httpx.RateLimitConfig // register, login
	Moderate httpx.RateLimitConfig // refresh, logout
	Lenient  httpx.RateLimitConfig // tasks, profile, health
}

// DefaultRateLimits returns the httpx profiles.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Strict:   httpx.StrictLimit,
		Moderate: httpx.ModerateLimit,
		Lenient:  httpx.LenientLimit,
	}
}

// Options carries the optional router settings.
type Options struct {
	PublicPaths []string         // defaults to httpx.DefaultPublicPaths
	CORS        httpx.CORSConfig // zero value uses httpx.DefaultCORSConfig
	RateLimits  RateLimits       // zero value uses DefaultRateLimits
	Metrics     *obs.Metrics     // nil disables /metrics and request metrics
	Revocation  Pinger           // optional readiness check for a shared registry
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	opts         Options
	handler      http.Handler

	store        store.Store
	TokenService *service.TokenService
	UserService  *service.UserService
	TaskService  *service.TaskService
}

func NewRouter(
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
	opts Options,
) *Router {
	if opts.PublicPaths == nil {
		opts.PublicPaths = httpx.DefaultPublicPaths
	}
	if opts.CORS.AllowedOrigins == nil {
		opts.CORS = httpx.DefaultCORSConfig()
	}
	if opts.RateLimits == (RateLimits{}) {
		opts.RateLimits = DefaultRateLimits()
	}

	return &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		opts:         opts,
		store:        st,
	}
}

// ApplyRoutes registers every route and builds the global middleware chain.
// The services must be set before it is called.
func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerTasks()
	r.registerProfile()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())

	// Outermost first. Request metrics wrap the mux directly so they can read
	// the matched route pattern.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.CORSMiddleware(r.opts.CORS),
		httpx.GateMiddleware(r.TokenService, r.opts.PublicPaths),
	}
	if r.opts.Metrics != nil {
		r.middlewares = append(r.middlewares, r.opts.Metrics.HTTPMiddleware)
	}
	r.handler = httpx.Chain(r.Mux, r.middlewares...)
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Tasks Service API
//	@version		0.1.0
//	@description	Multi-user task tracker with stateless authentication.
//	@description
//	@description				Access tokens are HS256 JWTs. Refresh tokens are single use.
//
//	@contact.name				AussieBroadWAN Team
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		UserService:  r.UserService,
		TokenService: r.TokenService,
	}
	limits := r.opts.RateLimits

	// Credential endpoints are limited by IP plus username so one address
	// guessing passwords is held back per account.
	r.Mux.Handle("POST /auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIPAndJSONField(limits.Strict, "username"),
		),
	)
	r.Mux.Handle("POST /auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndJSONField(limits.Strict, "username"),
		),
	)

	r.Mux.Handle("POST /auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(limits.Moderate),
		),
	)
	r.Mux.Handle("POST /auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(limits.Moderate),
		),
	)
}

func (r *Router) registerTasks() {
	h := &TasksHandler{TaskService: r.TaskService}

	// One limiter shared by every task route.
	limiter := httpx.NewRateLimiter(r.opts.RateLimits.Lenient, nil)
	secured := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn,
			httpx.RequirePrincipal(),
			httpx.RateLimitWith(limiter, httpx.PrincipalOrIPKeyExtractor),
		)
	}

	r.Mux.Handle("GET /tasks", secured(h.HandleList))
	r.Mux.Handle("POST /tasks", secured(h.HandleCreate))
	r.Mux.Handle("GET /tasks/status/{status}", secured(h.HandleListByStatus))
	r.Mux.Handle("GET /tasks/{id}", secured(h.HandleGet))
	r.Mux.Handle("PUT /tasks/{id}", secured(h.HandleUpdate))
	r.Mux.Handle("DELETE /tasks/{id}", secured(h.HandleDelete))
}

func (r *Router) registerProfile() {
	h := &MeHandler{UserService: r.UserService}

	r.Mux.Handle("GET /me",
		httpx.Chain(h,
			httpx.RequirePrincipal(),
			httpx.RateLimitByPrincipal(r.opts.RateLimits.Lenient),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.opts.RateLimits.Lenient),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.opts.Revocation),
			httpx.RateLimitByIP(r.opts.RateLimits.Lenient),
		),
	)

	if r.opts.Metrics != nil {
		r.Mux.Handle("GET /metrics", r.opts.Metrics.Handler())
	}
}

