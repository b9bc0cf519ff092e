package backoffice

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/nexbit/tradecore/internal/backoffice/handler"
	"github.com/nexbit/tradecore/internal/config"
	"github.com/nexbit/tradecore/internal/repository"
	"github.com/nexbit/tradecore/internal/service"
	"github.com/nexbit/tradecore/internal/ws"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BackofficeDeps bundles every dependency needed for the admin router.
type BackofficeDeps struct {
	DB           *sqlx.DB
	AuthSvc      *service.AuthService
	DepositSvc   *service.DepositService
	SettingsSvc  *service.SettingsService
	PriceSvc     *service.PriceService
	UserRepo     *repository.UserRepository
	WalletRepo   *repository.WalletRepository
	PositionRepo *repository.PositionRepository
	DepositRepo  *repository.DepositRepository
	Hub          *ws.Hub
	Cfg          *config.Config
}

// SetupBackofficeRouter creates the admin Gin engine.
func SetupBackofficeRouter(deps BackofficeDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(ipWhitelistMiddleware(deps.Cfg.Server.BackofficeAllowedIPs))

	// Prometheus scrape endpoint. Behind the IP allowlist but not the JWT:
	// the scraper has no login.
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	dashH := handler.NewDashboardHandler(deps.PositionRepo, deps.DepositRepo, deps.PriceSvc, deps.SettingsSvc, deps.Hub, deps.Cfg)
	userH := handler.NewUserAdminHandler(deps.DB, deps.UserRepo, deps.WalletRepo, deps.Cfg)
	financeH := handler.NewFinanceHandler(deps.DepositSvc, deps.DepositRepo, deps.WalletRepo, deps.Cfg)
	settingsH := handler.NewSettingsHandler(deps.SettingsSvc, deps.Cfg)

	jwtMW := adminJWTMiddleware(deps.AuthSvc)

	admin := r.Group("/admin")
	admin.Use(jwtMW)
	{
		admin.GET("/dashboard", dashH.Dashboard)

		// Users
		u := admin.Group("/users")
		{
			u.GET("", userH.List)
			u.GET("/:id", userH.Detail)
			u.POST("/:id/suspend", userH.Suspend)
			u.POST("/:id/activate", userH.Activate)
			u.POST("/:id/balance", userH.AdjustBalance)
			u.POST("/:id/role", userH.SetRole)
		}

		// Finance
		fin := admin.Group("/finance")
		{
			fin.GET("/deposits", financeH.Deposits)
			fin.POST("/deposits/:id/approve", financeH.ApproveDeposit)
			fin.POST("/deposits/:id/reject", financeH.RejectDeposit)
			fin.GET("/withdrawals", financeH.Withdrawals)
			fin.POST("/withdrawals/:id/approve", financeH.ApproveWithdrawal)
			fin.POST("/withdrawals/:id/reject", financeH.RejectWithdrawal)
			fin.GET("/ledger", financeH.Ledger)
		}

		// Settings
		admin.GET("/settings", settingsH.Get)
		admin.PUT("/settings", settingsH.Update)
	}

	return r
}

// ── IP whitelist middleware ───────────────────────────────────────────────────

// ipWhitelistMiddleware blocks requests from IPs not in the allowlist.
// allowedIPs is a comma-separated string; empty means allow all.
func ipWhitelistMiddleware(allowedIPs string) gin.HandlerFunc {
	if allowedIPs == "" {
		return func(c *gin.Context) { c.Next() } // dev mode: no restriction
	}

	allowed := make(map[string]bool)
	for _, ip := range strings.Split(allowedIPs, ",") {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			allowed[ip] = true
		}
	}

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if !allowed[clientIP] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "access denied: your IP is not whitelisted",
			})
			return
		}
		c.Next()
	}
}

// ── Admin JWT middleware ──────────────────────────────────────────────────────

// adminJWTMiddleware validates a JWT and requires the caller to have a
// backoffice-capable role (admin, finance, support, readonly).
func adminJWTMiddleware(authSvc *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		claims, err := authSvc.ParseAccessToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil || claims.TokenType != "access" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		// Require at least one backoffice role
		backofficeRoles := map[string]bool{
			"admin":    true,
			"finance":  true,
			"support":  true,
			"readonly": true,
		}
		if !backofficeRoles[claims.Role] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		}

		c.Set("userID", claims.Subject)
		c.Set("role", claims.Role)
		c.Next()
	}
}
