package main

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/Edmaione/Terrain-Financials-sub001/internal/config"
	"github.com/Edmaione/Terrain-Financials-sub001/internal/handler"
	"github.com/Edmaione/Terrain-Financials-sub001/internal/middleware"
	"github.com/Edmaione/Terrain-Financials-sub001/internal/repository"
	"github.com/Edmaione/Terrain-Financials-sub001/internal/service"
	"github.com/Edmaione/Terrain-Financials-sub001/pkg/logger"
)

// @title Ledger Import and Reconciliation API
// @version 1.0
// @description API for importing bank transactions and reconciling them against statements

// @contact.name API Support
// @contact.email support@terrain-financials.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Init(cfg.App.LogLevel)
	logger.GetLogger().Info("Starting Ledger Import and Reconciliation Service")

	// Connect to database
	db, err := connectDB(cfg.Database)
	if err != nil {
		logger.GetLogger().WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	logger.GetLogger().Info("Database connection established")

	// Initialize repositories
	accountRepo := repository.NewAccountRepository(db)
	txRepo := repository.NewTransactionRepository(db)
	stmtRepo := repository.NewStatementRepository(db)
	mappingRepo := repository.NewMappingRepository(db)

	// Initialize services
	txService := service.NewTransactionService(txRepo, accountRepo)
	importService := service.NewImportService(accountRepo, txRepo, mappingRepo, cfg.App.BatchSize)
	reconService := service.NewReconciliationService(accountRepo, txRepo, stmtRepo, cfg.App.DateToleranceDays)

	// Initialize handlers
	accountHandler := handler.NewAccountHandler(accountRepo)
	txHandler := handler.NewTransactionHandler(txService)
	importHandler := handler.NewImportHandler(importService)
	stmtHandler := handler.NewStatementHandler(reconService)

	// Setup router
	router := setupRouter(accountHandler, txHandler, importHandler, stmtHandler)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.GetLogger().WithField("address", addr).Info("Server starting")

	if err := router.Run(addr); err != nil {
		logger.GetLogger().WithError(err).Fatal("Failed to start server")
	}
}

func connectDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}

func setupRouter(accountHandler *handler.AccountHandler, txHandler *handler.TransactionHandler, importHandler *handler.ImportHandler, stmtHandler *handler.StatementHandler) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())
	router.Use(gin.Recovery())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy"})
	})

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Account routes
		accounts := v1.Group("/accounts")
		{
			accounts.POST("", accountHandler.CreateAccount)
			accounts.GET("/:id", accountHandler.GetAccount)
			accounts.GET("", accountHandler.ListAccounts)
		}

		// Transaction routes
		transactions := v1.Group("/transactions")
		{
			transactions.POST("", txHandler.CreateTransaction)
			transactions.GET("/:id", txHandler.GetTransaction)
			transactions.GET("", txHandler.ListTransactions)
			transactions.POST("/:id/approve", txHandler.ApproveTransaction)
		}

		// Import routes
		imports := v1.Group("/imports")
		{
			imports.POST("/detect", importHandler.Detect)
			imports.POST("", importHandler.Import)
			imports.POST("/mappings", importHandler.ConfirmMapping)
			imports.GET("/mappings", importHandler.ListMappings)
		}

		// Statement routes
		statements := v1.Group("/statements")
		{
			statements.POST("", stmtHandler.CreateStatement)
			statements.GET("/:id/summary", stmtHandler.GetSummary)
			statements.POST("/:id/clear", stmtHandler.Clear)
			statements.POST("/:id/match", stmtHandler.MatchExtracted)
			statements.POST("/:id/auto-match", stmtHandler.AutoMatch)
			statements.POST("/:id/reconcile", stmtHandler.Reconcile)
			statements.POST("/:id/cancel", stmtHandler.Cancel)
		}
	}

	return router
}
