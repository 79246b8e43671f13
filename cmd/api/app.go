package main

import (
	"context"
	"net/http"

	"supplychain/internal/config"
	"supplychain/internal/database"
	"supplychain/internal/handler"
	"supplychain/internal/identity"
	"supplychain/internal/lifecycle"
	"supplychain/internal/metrics"
	"supplychain/internal/middleware"
	"supplychain/internal/model"
	"supplychain/internal/notify"
	"supplychain/internal/policy"
	"supplychain/internal/repository"
	"supplychain/internal/service"
	"supplychain/internal/storage"
	"supplychain/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

type app struct {
	router *gin.Engine
	hub    *websocket.Hub
}

// routes is implemented by every handler
type routes interface {
	RegisterRoutes(router *gin.RouterGroup)
}

func newApp(ctx context.Context, cfg config.Config, log *zap.Logger) (*app, error) {
	db, err := database.NewConnection(cfg.Database.DSN(), log)
	if err != nil {
		return nil, err
	}

	// Set up dependencies (Repository -> Service -> Handler)
	tx := repository.NewTransactionManager(db, cfg.Database.TxTimeout)
	orgRepo := repository.NewOrganizationRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	tokenRepo := repository.NewRefreshTokenRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	productRepo := repository.NewProductRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	deliveryRepo := repository.NewDeliveryRepository(db)
	procurementRepo := repository.NewProcurementRepository(db)
	warehouses := repository.NewStore[model.Warehouse](db)
	clients := repository.NewStore[model.Client](db)
	suppliers := repository.NewStore[model.Supplier](db)
	drivers := repository.NewStore[model.Driver](db)
	movements := repository.NewStore[model.StockMovement](db)

	engine := policy.NewEngine(policy.Default())
	secret := []byte(cfg.JWT.Secret)
	resolver := identity.NewResolver(identity.NewJWTVerifier(secret, cfg.JWT.Issuer), cfg.Identity.VerifyTimeout)
	issuer := identity.NewIssuer(secret, cfg.JWT.Issuer, cfg.JWT.AccessTTL)

	m := metrics.New()
	hub := websocket.NewHub(log)
	events := m.Publisher(hub)

	var objects service.ObjectStore = storage.DisabledStore{}
	if cfg.S3.Enabled {
		uploader, err := storage.NewS3Uploader(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		objects = uploader
	}

	var mailer notify.Mailer = notify.NewLogMailer(log)
	if cfg.Email.Enabled {
		awsCfg, err := storage.LoadAWSConfig(ctx, cfg.Email.Region, "", "")
		if err != nil {
			return nil, err
		}
		mailer = notify.NewSESMailer(awsCfg, cfg.Email.From, cfg.Email.SendTimeout)
	}

	orgService := service.NewOrganizationService(orgRepo, accountRepo, auditRepo, tx, engine)
	accountService := service.NewAccountService(accountRepo, tokenRepo, auditRepo, tx, issuer, cfg.JWT.RefreshTTL, engine)
	warehouseService := service.NewWarehouseService(warehouses, tx, engine, auditRepo)
	productService := service.NewProductService(productRepo, warehouses, tx, engine, auditRepo)
	clientService := service.NewClientService(clients, tx, engine, auditRepo)
	supplierService := service.NewSupplierService(suppliers, tx, engine, auditRepo)
	driverService := service.NewDriverService(drivers, tx, engine, auditRepo)
	orderService := service.NewOrderService(orderRepo, productRepo, clients, deliveryRepo, auditRepo, tx, engine, events, log)
	deliveryService := service.NewDeliveryService(service.DeliveryDeps{
		Deliveries: deliveryRepo,
		Orders:     orderRepo,
		Products:   productRepo,
		Drivers:    drivers,
		Movements:  movements,
		Orgs:       orgRepo,
		Audit:      auditRepo,
		Objects:    objects,
		Tx:         tx,
		Policy:     engine,
		Machine:    lifecycle.Machine{Strict: cfg.Delivery.StrictTransitions},
		Events:     events,
		Log:        log,
	})
	procurementService := service.NewProcurementService(procurementRepo, productRepo, suppliers, orgRepo, auditRepo, tx, engine, notify.NewNotifier(mailer), log)
	invoiceService := service.NewInvoiceService(orderRepo, clients, orgRepo, engine)
	dashboardService := service.NewDashboardService(service.DashboardDeps{
		Orders:      orderRepo,
		Deliveries:  deliveryRepo,
		Products:    productRepo,
		Warehouses:  warehouses,
		Drivers:     drivers,
		Procurement: procurementRepo,
		Policy:      engine,
	})
	auditService := service.NewAuditService(auditRepo, engine)

	accountHandler := handler.NewAccountHandler(accountService, engine, handler.CookieConfig{
		Secure:     cfg.Server.Mode == gin.ReleaseMode,
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
	})
	handlers := []routes{
		accountHandler,
		handler.NewAdminHandler(orgService, dashboardService, auditService, engine),
		handler.NewWarehouseHandler(warehouseService, engine),
		handler.NewProductHandler(productService, engine),
		handler.NewClientHandler(clientService, engine),
		handler.NewSupplierHandler(supplierService, engine),
		handler.NewDriverHandler(driverService, engine),
		handler.NewOrderHandler(orderService, engine),
		handler.NewDeliveryHandler(deliveryService, engine),
		handler.NewProcurementHandler(procurementService, engine),
		handler.NewInvoiceHandler(invoiceService, engine),
	}

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(middleware.Recovery(log), middleware.RequestLogger(log), m.Middleware())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(m.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(hub, resolver, c)
	})

	public := router.Group("", middleware.Timeout(cfg.Server.RequestTimeout))
	accountHandler.RegisterPublicRoutes(public)

	protected := router.Group("", middleware.Timeout(cfg.Server.RequestTimeout), middleware.Authenticate(resolver))
	for _, h := range handlers {
		h.RegisterRoutes(protected)
	}

	return &app{router: router, hub: hub}, nil
}
