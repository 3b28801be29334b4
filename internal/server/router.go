package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/teacher-transfer-api/internal/handler"
	"github.com/noah-isme/teacher-transfer-api/internal/middleware"
	"github.com/noah-isme/teacher-transfer-api/internal/models"
	"github.com/noah-isme/teacher-transfer-api/internal/service"
	"github.com/noah-isme/teacher-transfer-api/pkg/config"
	"github.com/noah-isme/teacher-transfer-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/teacher-transfer-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/teacher-transfer-api/pkg/middleware/requestid"
)

// Handlers bundles every HTTP handler the router mounts.
type Handlers struct {
	Auth         *handler.AuthHandler
	Transfer     *handler.TransferHandler
	School       *handler.SchoolHandler
	Teacher      *handler.TeacherHandler
	Notification *handler.NotificationHandler
	Metrics      *handler.MetricsHandler
}

// New builds the gin engine with the full route table mounted under the
// configured API prefix.
func New(cfg *config.Config, logr *zap.Logger, auth *service.AuthService, metrics *service.MetricsService, h Handlers) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", h.Metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/register", h.Auth.Register)
		authGroup.GET("/me", middleware.JWT(auth), h.Auth.Me)
	}

	schools := api.Group("/schools")
	{
		schools.GET("", h.School.List)
		schools.GET("/:id", h.School.Get)
		schools.POST("", middleware.JWT(auth), middleware.RequireRoles(models.RoleAdmin), h.School.Create)
		schools.PUT("/:id", middleware.JWT(auth), middleware.RequireRoles(models.RoleAdmin), h.School.Update)
		schools.DELETE("/:id", middleware.JWT(auth), middleware.RequireRoles(models.RoleAdmin), h.School.Delete)
	}

	teachers := api.Group("/teachers", middleware.JWT(auth))
	{
		teachers.GET("", middleware.RequireRoles(models.RoleAdmin, models.RoleHeadteacher), h.Teacher.List)
		teachers.GET("/:id", h.Teacher.Get)
		teachers.GET("/:id/documents/:kind", h.Teacher.Document)
		teachers.PUT("/:id", h.Teacher.Update)
		teachers.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), h.Teacher.Delete)
	}

	transfers := api.Group("/transfers", middleware.JWT(auth))
	{
		transfers.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher, models.RoleHeadteacher), h.Transfer.Create)
		transfers.GET("", h.Transfer.List)
		transfers.GET("/:id", h.Transfer.Get)
		transfers.PATCH("/:id/status", middleware.RequireRoles(models.RoleAdmin, models.RoleHeadteacher), h.Transfer.UpdateStatus)
		transfers.GET("/:id/letter", h.Transfer.Letter)
	}

	notifications := api.Group("/notifications", middleware.JWT(auth))
	{
		notifications.POST("", h.Notification.Send)
		notifications.GET("", h.Notification.Inbox)
		notifications.GET("/counts", h.Notification.Counts)
		notifications.PATCH("/:id/read", h.Notification.MarkRead)
	}

	return r
}
