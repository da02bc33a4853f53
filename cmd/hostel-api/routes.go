package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/campus-hostel-api/api/swagger"
	"github.com/noah-isme/campus-hostel-api/internal/handler"
	"github.com/noah-isme/campus-hostel-api/internal/middleware"
	"github.com/noah-isme/campus-hostel-api/internal/models"
	"github.com/noah-isme/campus-hostel-api/internal/service"
	"github.com/noah-isme/campus-hostel-api/pkg/config"
	"github.com/noah-isme/campus-hostel-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/campus-hostel-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/campus-hostel-api/pkg/middleware/requestid"
)

type routeDeps struct {
	auth        middleware.TokenValidator
	audit       middleware.AuditWriter
	metrics     *service.MetricsService
	health      *handler.HealthHandler
	authHandler *handler.AuthHandler
	users       *handler.UserHandler
	students    *handler.StudentHandler
	bills       *handler.BillHandler
	collections *handler.CollectionHandler
	ledger      *handler.LedgerHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, d routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	if d.metrics != nil {
		r.Use(middleware.Metrics(d.metrics))
	}

	r.GET("/health", d.health.Health)
	r.GET("/ready", d.health.Ready)
	r.GET("/metrics", d.health.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	auditLog := logger.Named(logr, "audit")
	audit := func(action, resource, idParam string) gin.HandlerFunc {
		return middleware.Audit(d.audit, auditLog, action, resource, idParam)
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())
	api.POST("/auth/login", d.authHandler.Login)
	api.GET("/ledger/snapshots/:token", d.ledger.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(d.auth))
	secured.GET("/auth/me", d.authHandler.Me)
	secured.POST("/auth/password", d.authHandler.ChangePassword)

	operators := middleware.RequireRoles(models.RoleAdmin, models.RoleStaff)
	admins := middleware.RequireRoles(models.RoleAdmin)

	users := secured.Group("/users", admins)
	users.GET("", d.users.List)
	users.GET("/:id", d.users.Get)
	users.POST("", audit(models.AuditActionUserCreate, "user", ""), d.users.Create)
	users.PATCH("/:id", audit(models.AuditActionUserUpdate, "user", "id"), d.users.Update)
	users.DELETE("/:id", audit(models.AuditActionUserDeactivate, "user", "id"), d.users.Delete)

	students := secured.Group("/students", operators)
	students.GET("", d.students.List)
	students.GET("/:id", d.students.Get)
	students.POST("", audit(models.AuditActionStudentCreate, "student", ""), d.students.Create)
	students.PUT("/:id", audit(models.AuditActionStudentUpdate, "student", "id"), d.students.Update)
	students.DELETE("/:id", admins, audit(models.AuditActionStudentDelete, "student", "id"), d.students.Delete)

	bills := secured.Group("/bills", operators)
	bills.GET("", d.bills.List)
	bills.POST("/generate", admins, audit(models.AuditActionBillRun, "bill", ""), d.bills.Generate)
	bills.POST("/recalculate", admins, audit(models.AuditActionBillRecalculate, "bill", ""), d.bills.Recalculate)
	bills.PATCH("/:key", audit(models.AuditActionBillUpdate, "bill", "key"), d.bills.Update)

	collections := secured.Group("/collections", operators)
	collections.GET("", d.collections.List)
	collections.GET("/next-key/:uid", d.collections.NextKey)
	collections.GET("/suggest/:uid", d.collections.Suggest)
	collections.POST("", audit(models.AuditActionPaymentRecord, "collection", ""), d.collections.Record)
	collections.PUT("/:invoiceKey", audit(models.AuditActionPaymentUpdate, "collection", "invoiceKey"), d.collections.Update)

	ledger := secured.Group("/ledger", operators)
	ledger.GET("", d.ledger.Balances)
	ledger.GET("/export", d.ledger.Export)
	ledger.POST("/snapshots", admins, audit(models.AuditActionLedgerSnapshot, "ledger", ""), d.ledger.Snapshot)
	ledger.GET("/:uid/entries", d.ledger.Entries)

	return r
}
