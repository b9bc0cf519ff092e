package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nexbit/tradecore/internal/api/handler"
	"github.com/nexbit/tradecore/internal/api/middleware"
	"github.com/nexbit/tradecore/internal/config"
	"github.com/nexbit/tradecore/internal/repository"
	"github.com/nexbit/tradecore/internal/service"
	"github.com/nexbit/tradecore/internal/ws"
)

// RouterDeps bundles every dependency needed to build the router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	AuthSvc     *service.AuthService
	TradeSvc    *service.TradeService
	EscrowSvc   *service.EscrowService
	TransferSvc *service.TransferService
	DepositSvc  *service.DepositService
	PriceSvc    *service.PriceService
	UserRepo    *repository.UserRepository
	WalletRepo  *repository.WalletRepository
	Hub         *ws.Hub
	Cfg         *config.Config
}

// SetupRouter creates and configures the main Gin engine with all routes,
// middleware, CORS, and rate limiting rules.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// ── CORS ─────────────────────────────────────────────────────────────────
	r.Use(corsMiddleware(deps.Cfg))

	// ── Health check ─────────────────────────────────────────────────────────
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── Handlers ─────────────────────────────────────────────────────────────
	userH := handler.NewUserHandler(deps.AuthSvc, deps.UserRepo, deps.WalletRepo)
	tradeH := handler.NewTradeHandler(deps.TradeSvc)
	escrowH := handler.NewEscrowHandler(deps.EscrowSvc)
	transferH := handler.NewTransferHandler(deps.TransferSvc)
	walletH := handler.NewWalletHandler(deps.WalletRepo, deps.DepositSvc)
	webhookH := handler.NewWebhookHandler(deps.DepositSvc)
	priceH := handler.NewPriceHandler(deps.PriceSvc)

	// ── JWT middleware (shared) ───────────────────────────────────────────────
	jwtMW := middleware.JWTMiddleware(deps.AuthSvc)

	// ── Rate limiters ─────────────────────────────────────────────────────────
	authRL := middleware.RateLimitMiddleware(10)  // 10 req/s per IP for auth endpoints
	tradeRL := middleware.RateLimitMiddleware(30) // 30 req/s per IP for trading endpoints

	api := r.Group("/api")
	{
		// ── Auth (public, strict rate limit) ─────────────────────────────────
		auth := api.Group("/auth")
		auth.Use(authRL)
		{
			auth.POST("/register", userH.Register)
			auth.POST("/login", userH.Login)
			auth.POST("/refresh", userH.Refresh)
		}

		// ── Prices (public) ──────────────────────────────────────────────────
		price := api.Group("/price")
		{
			price.GET("/latest", priceH.GetLatest)
			price.GET("/klines", priceH.GetKlines)
			price.GET("/status", priceH.GetExchangeStatus)
		}

		// ── Payment provider webhook (public, signature-authenticated) ───────
		api.POST("/webhooks/payments", webhookH.HandlePaymentWebhook)

		// ── Authenticated routes ──────────────────────────────────────────────
		authed := api.Group("")
		authed.Use(jwtMW)
		{
			// Profile
			authed.GET("/me", userH.Me)

			// Positions
			positions := authed.Group("/positions")
			positions.Use(tradeRL)
			{
				positions.POST("", tradeH.OpenPosition)
				positions.GET("/my", tradeH.GetMyPositions)
				positions.GET("/:id", tradeH.GetPositionByID)
			}
			authed.GET("/trades/history", tradeH.GetMyTradeHistory)

			// Wallet
			wallet := authed.Group("/wallet")
			{
				wallet.GET("/balance", walletH.GetBalance)
				wallet.GET("/ledger", walletH.GetLedger)
				wallet.GET("/deposits", walletH.GetMyDeposits)
				wallet.POST("/deposit/invoice", walletH.CreateDepositInvoice)
				wallet.GET("/deposit/min-amount", walletH.GetDepositMinAmount)
				wallet.POST("/deposit/request", walletH.SubmitDepositRequest)
				wallet.POST("/withdraw", walletH.SubmitWithdrawRequest)
			}

			// P2P marketplace
			p2p := authed.Group("/p2p")
			{
				p2p.POST("/listings", escrowH.CreateListing)
				p2p.GET("/listings", escrowH.ListListings)
				p2p.DELETE("/listings/:id", escrowH.DeactivateListing)

				p2p.POST("/orders", escrowH.CreateOrder)
				p2p.GET("/orders/my", escrowH.GetMyOrders)
				p2p.GET("/orders/:id", escrowH.GetOrder)
				p2p.POST("/orders/:id/paid", escrowH.MarkPaid)
				p2p.POST("/orders/:id/release", escrowH.Release)
				p2p.POST("/orders/:id/cancel", escrowH.Cancel)
			}

			// Internal transfers
			transfers := authed.Group("/transfers")
			{
				transfers.POST("", transferH.Initiate)
				transfers.POST("/:id/confirm", transferH.Confirm)
				transfers.POST("/resend-code", transferH.ResendCode)
				transfers.GET("/history", transferH.GetMyTransfers)
			}
		}
	}

	// ── WebSocket ─────────────────────────────────────────────────────────────
	if deps.Hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			deps.Hub.ServeWs(c.Writer, c.Request)
		})
	}

	return r
}

// ── CORS helper ───────────────────────────────────────────────────────────────

// corsMiddleware returns a gin middleware that sets appropriate CORS headers.
// In DEBUG mode all origins are allowed; in production only configured origins.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if !cfg.IsProd() {
			// Development: allow any origin
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			allowed := map[string]bool{
				"https://nexbit.io":     true,
				"https://www.nexbit.io": true,
			}
			if allowed[origin] {
				c.Header("Access-Control-Allow-Origin", origin)
			}
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
