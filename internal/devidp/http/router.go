package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/gatekeep/internal/devidp/service"
	"github.com/aussiebroadwan/gatekeep/internal/devidp/store"
	"github.com/aussiebroadwan/gatekeep/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeep/pkg/httpx"
	"github.com/aussiebroadwan/gatekeep/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeep/pkg/slogx"

	_ "github.com/aussiebroadwan/gatekeep/api/devidp" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// RateLimits are the per-route profiles. They default to the httpx ones.
type RateLimits struct {
	Strict   httpx.RateLimitConfig
	Moderate httpx.RateLimitConfig
	Lenient  httpx.RateLimitConfig
	Public   httpx.RateLimitConfig
}

func DefaultRateLimits() RateLimits {
	return RateLimits{
		Strict:   httpx.StrictLimit,
		Moderate: httpx.ModerateLimit,
		Lenient:  httpx.LenientLimit,
		Public:   httpx.PublicLimit,
	}
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     jwtx.Verifier
	issuer       string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store          store.Store
	AccountService *service.AccountService
	TokenService   *service.TokenService

	// Endpoints are the paths routes are mounted on. Prefix is ignored.
	Endpoints authsdk.Endpoints
	Cookie    CookieConfig
	Limits    RateLimits
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier jwtx.Verifier,
	issuer, buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		issuer:       issuer,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		Endpoints:    authsdk.DefaultEndpoints(),
		Cookie:       DefaultCookieConfig(),
		Limits:       DefaultRateLimits(),
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSession()
	r.registerOAuth2()
	r.registerAccounts()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			gatekeep development identity provider
//	@version		0.1.0
//	@description	Identity API for exercising the gatekeep SDK: cookie sessions, OAuth2 password and refresh grants, token revocation and account lifecycle.
//	@description
//	@description				Access tokens are EdDSA signed JWTs; the verification keys are published at /.well-known/jwks.json.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/gatekeep
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
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerSession() {
	h := &SessionHandler{
		Accounts: r.AccountService,
		Tokens:   r.TokenService,
		Verifier: r.verifier,
		Cookie:   r.Cookie,
		Issuer:   r.issuer,
	}

	// login is limited per IP and username so one user cannot lock out a NAT
	r.Mux.Handle("POST "+r.Endpoints.Login,
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndField(r.Limits.Strict, "username"),
		),
	)
	r.Mux.Handle("POST "+r.Endpoints.Logout,
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(r.Limits.Moderate),
		),
	)

	// every guarded navigation may hit /me
	r.Mux.Handle("GET "+r.Endpoints.CurrentUser,
		httpx.Chain(http.HandlerFunc(h.HandleMe),
			httpx.RateLimitByIP(r.Limits.Lenient),
		),
	)
}

func (r *Router) registerOAuth2() {
	tokenHandler := &TokenHandler{Accounts: r.AccountService, Tokens: r.TokenService}
	r.Mux.Handle("POST "+r.Endpoints.OAuthToken,
		httpx.Chain(tokenHandler,
			httpx.RateLimitByIPAndField(r.Limits.Strict, "username"),
		),
	)

	revokeHandler := &RevokeHandler{Tokens: r.TokenService, Verifier: r.verifier}
	r.Mux.Handle("POST "+r.Endpoints.OAuthRevoke,
		httpx.Chain(revokeHandler,
			httpx.RateLimitByIP(r.Limits.Moderate),
		),
	)

	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(r.Limits.Public),
		),
	)
}

func (r *Router) registerAccounts() {
	h := &AccountHandler{Accounts: r.AccountService, Issuer: r.issuer}

	r.Mux.Handle("POST "+r.Endpoints.Register,
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(r.Limits.Moderate),
		),
	)

	r.Mux.Handle("GET "+r.Endpoints.EmailVerification,
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			httpx.RateLimitByIP(r.Limits.Moderate),
		),
	)
	r.Mux.Handle("POST "+r.Endpoints.EmailVerification,
		httpx.Chain(http.HandlerFunc(h.HandleResendVerification),
			httpx.RateLimitByIP(r.Limits.Strict),
		),
	)

	r.Mux.Handle("POST "+r.Endpoints.ForgotPassword,
		httpx.Chain(http.HandlerFunc(h.HandleForgot),
			httpx.RateLimitByIP(r.Limits.Strict),
		),
	)

	r.Mux.Handle("GET "+r.Endpoints.ChangePassword,
		httpx.Chain(http.HandlerFunc(h.HandleCheckReset),
			httpx.RateLimitByIP(r.Limits.Moderate),
		),
	)
	r.Mux.Handle("POST "+r.Endpoints.ChangePassword,
		httpx.Chain(http.HandlerFunc(h.HandleReset),
			httpx.RateLimitByIP(r.Limits.Strict),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.Limits.Lenient),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys),
			httpx.RateLimitByIP(r.Limits.Lenient),
		),
	)
	r.Mux.Handle("GET "+r.Endpoints.SPAConfig,
		httpx.Chain(SPAConfigHandler(r.Endpoints, r.AccountService.RequireVerification),
			httpx.RateLimitByIP(r.Limits.Public),
		),
	)
}
