package router

import (
	auditsvc "xstock-options/internal/application/audit"
	holdsvc "xstock-options/internal/application/holdings"
	mktsvc "xstock-options/internal/application/marketplace"
	oesvc "xstock-options/internal/application/optionevents"
	optsvc "xstock-options/internal/application/options"
	oraclesvc "xstock-options/internal/application/oracle"
	pricingsvc "xstock-options/internal/application/pricing"
	rfqsvc "xstock-options/internal/application/rfq"
	svsvc "xstock-options/internal/application/sharevaults"
	txsvc "xstock-options/internal/application/transactions"
	"xstock-options/internal/auth"
	"xstock-options/internal/config"
	"xstock-options/internal/infrastructure/cache"
	authhandler "xstock-options/internal/interfaces/handlers/auth"
	healthhandler "xstock-options/internal/interfaces/handlers/health"
	holdhandler "xstock-options/internal/interfaces/handlers/holdings"
	mkthandler "xstock-options/internal/interfaces/handlers/marketplace"
	oehandler "xstock-options/internal/interfaces/handlers/optionevents"
	opthandler "xstock-options/internal/interfaces/handlers/options"
	oraclehandler "xstock-options/internal/interfaces/handlers/oracle"
	pricinghandler "xstock-options/internal/interfaces/handlers/pricing"
	rfqhandler "xstock-options/internal/interfaces/handlers/rfq"
	svhandler "xstock-options/internal/interfaces/handlers/sharevaults"
	txhandler "xstock-options/internal/interfaces/handlers/transactions"
	"xstock-options/internal/middleware"
	"xstock-options/internal/pricing"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type gormDBPinger struct {
	db *gorm.DB
}

func (g *gormDBPinger) Ping() error {
	if g == nil || g.db == nil {
		return nil
	}
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Deps are the opened backends. Redis is optional; without it the snapshot
// and price caches are bypassed and request stats are not recorded.
type Deps struct {
	DB         *gorm.DB
	Redis      *cache.Client
	BcryptCost int
}

// CreateApp builds the Fiber app with global middleware and every route.
func CreateApp(cfg *config.Config, deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	var rdb *redis.Client
	var optionCache optsvc.SnapshotCache
	var priceCache oraclesvc.PriceCache
	if deps.Redis != nil {
		rdb = deps.Redis.Underlying()
		optionCache = cache.NewOptionCache(deps.Redis)
		priceCache = cache.NewPriceCache(deps.Redis)
	}

	app.Use(middleware.Tracing())
	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.RouteLogger())

	requireAuth := middleware.RequireAuth(&auth.GormAccountFinder{DB: deps.DB})
	requireAdmin := middleware.RequireAdmin(cfg.AdminKey)

	hh := &healthhandler.Handlers{Rdb: rdb, DB: &gormDBPinger{db: deps.DB}}
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)
	app.Post("/health/reset", requireAdmin, hh.Reset)

	// Services
	oracle := &oraclesvc.Service{DB: deps.DB, Cache: priceCache, StaleAfter: cfg.OracleStaleAfter}
	options := &optsvc.Service{DB: deps.DB, Cache: optionCache}
	pricer := &pricingsvc.Service{
		Oracle:         oracle,
		Options:        options,
		RiskFreeRate:   cfg.RiskFreeRate,
		PeriodsPerYear: pricing.TradingDaysPerYear,
	}
	events := &oesvc.Service{DB: deps.DB}
	txs := &txsvc.Service{DB: deps.DB}
	trail := &auditsvc.Service{DB: deps.DB}

	api := app.Group("/api/v1", middleware.APIHeaders(config.Version))

	// Accounts
	ah := &authhandler.Handlers{DB: deps.DB, BcryptCost: deps.BcryptCost}
	api.Post("/accounts/register", requireAdmin, ah.Register)
	api.Get("/accounts/me", requireAuth, ah.Me)

	// Holdings
	holdh := &holdhandler.Handlers{Service: &holdsvc.Service{DB: deps.DB}}
	api.Get("/holdings", requireAuth, holdh.ViewHoldings)
	api.Post("/holdings/deposit", requireAdmin, holdh.Deposit)

	// Oracle
	orh := &oraclehandler.Handlers{Service: oracle}
	og := api.Group("/oracle")
	og.Post("/feeds", requireAdmin, orh.CreateFeed)
	og.Post("/feeds/:asset/price", requireAuth, orh.UpdatePrice)
	og.Get("/feeds/:asset", orh.GetFeed)
	og.Get("/feeds/:asset/history", orh.GetHistory)

	// Pricing
	ph := &pricinghandler.Handlers{Service: pricer}
	pg := api.Group("/pricing")
	pg.Post("/quote", ph.Quote)
	pg.Post("/implied-volatility", ph.ImpliedVolatility)
	pg.Post("/historical-volatility", ph.HistoricalVolatility)
	pg.Get("/suggest/:asset", ph.Suggest)

	// Options
	oh := &opthandler.Handlers{Service: options, Pricing: pricer, Events: events, Transactions: txs}
	optg := api.Group("/options", requireAuth)
	optg.Post("/create-covered-call", oh.CreateCoveredCall)
	optg.Post("/:id/list-for-sale", oh.ListForSale)
	optg.Post("/:id/cancel-listing", oh.CancelListing)
	optg.Post("/:id/buy", oh.Buy)
	optg.Post("/:id/exercise", oh.Exercise)
	optg.Post("/:id/reclaim", oh.Reclaim)
	optg.Get("/:id", oh.GetOption)
	optg.Get("/:id/risk", oh.GetRisk)
	optg.Get("/:id/events", oh.GetEvents)
	optg.Get("/:id/transactions", oh.GetTransactions)

	// RFQs
	rh := &rfqhandler.Handlers{Service: &rfqsvc.Service{DB: deps.DB, Oracle: oracle}, Audit: trail}
	rg := api.Group("/rfqs")
	rg.Post("/", requireAuth, rh.Create)
	rg.Get("/", rh.List)
	rg.Get("/:id", rh.Get)
	rg.Get("/:id/events", rh.Events)
	rg.Post("/:id/fill", requireAuth, rh.Fill)
	rg.Post("/:id/cancel", requireAuth, rh.Cancel)
	rg.Post("/:id/expire", requireAuth, rh.Expire)
	rg.Post("/:id/admin-cancel", requireAdmin, rh.AdminCancel)
	makers := api.Group("/rfq-makers")
	makers.Post("/", requireAdmin, rh.AddMaker)
	makers.Post("/:account/deactivate", requireAdmin, rh.DeactivateMaker)
	makers.Get("/:account", rh.GetMaker)

	// Share vaults
	svh := &svhandler.Handlers{Service: &svsvc.Service{DB: deps.DB}, Audit: trail}
	svg := api.Group("/share-vaults")
	svg.Post("/", requireAdmin, svh.Create)
	svg.Get("/:asset", svh.Get)
	svg.Get("/:asset/events", svh.Events)
	svg.Get("/:asset/position", requireAuth, svh.Position)
	svg.Post("/:asset/deposit", requireAuth, svh.Deposit)
	svg.Post("/:asset/withdrawals", requireAuth, svh.RequestWithdrawal)
	svg.Post("/:asset/withdrawals/process", requireAuth, svh.ProcessWithdrawal)
	svg.Post("/:asset/advance-epoch", requireAuth, svh.AdvanceEpoch)

	// Marketplace
	mh := &mkthandler.Handlers{Service: &mktsvc.Service{DB: deps.DB}}
	mg := api.Group("/marketplace")
	mg.Get("/options", mh.GetOptions)
	mg.Get("/listed", mh.GetListed)

	// Transactions
	txh := &txhandler.Handlers{Service: txs}
	api.Get("/transactions", requireAuth, txh.GetTransactions)

	// Option events
	oeh := &oehandler.Handlers{Service: events}
	api.Get("/option-events", requireAuth, oeh.GetAccountEvents)

	return app
}
