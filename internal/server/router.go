// Package server assembles the HTTP surface: global middleware, route table and docs.
package server

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	_ "github.com/noah-isme/tutorhub-api/api/swagger"
	"github.com/noah-isme/tutorhub-api/internal/handler"
	"github.com/noah-isme/tutorhub-api/internal/middleware"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/pkg/config"
	"github.com/noah-isme/tutorhub-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/tutorhub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/tutorhub-api/pkg/middleware/requestid"
)

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	Users         *handler.UserHandler
	Tutors        *handler.TutorHandler
	Tuitions      *handler.TuitionHandler
	Applications  *handler.ApplicationHandler
	Payments      *handler.PaymentHandler
	Reviews       *handler.ReviewHandler
	Observability *handler.MetricsHandler
}

// Dependencies carries everything NewRouter needs.
type Dependencies struct {
	Config      *config.Config
	Logger      *zap.Logger
	Auth        middleware.Authenticator
	Metrics     *service.MetricsService
	Tracer      trace.Tracer
	RateLimiter *middleware.RateLimiter
	Handlers    Handlers
}

// NewRouter builds the gin engine with the full route table.
func NewRouter(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(middleware.Tracing(deps.Tracer))
	r.Use(logger.GinMiddleware(log))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	h := deps.Handlers
	r.GET("/health", h.Observability.Health)
	r.GET("/ready", h.Observability.Ready)
	r.GET("/metrics", h.Observability.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	auth := middleware.JWT(deps.Auth)
	optional := middleware.OptionalJWT(deps.Auth)
	admin := middleware.RequireRoles(models.RoleAdmin)
	student := middleware.RequireRoles(models.RoleStudent, models.RoleAdmin)
	tutor := middleware.RequireRoles(models.RoleTutor, models.RoleAdmin)
	limited := func(c *gin.Context) { c.Next() }
	if deps.RateLimiter != nil {
		limited = deps.RateLimiter.Handler()
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/users", middleware.JWTAllowUnregistered(deps.Auth), h.Users.Register)
	api.GET("/users/me", auth, h.Users.Me)
	api.GET("/users", auth, admin, h.Users.List)
	api.PATCH("/users/:id/role", auth, admin, h.Users.UpdateRole)
	api.PATCH("/users/:id/status", auth, admin, h.Users.UpdateStatus)

	api.POST("/tutors", auth, tutor, h.Tutors.Create)
	api.GET("/tutors", h.Tutors.List)
	api.GET("/tutors/:id", optional, h.Tutors.Get)
	api.GET("/tutors/:id/reviews", h.Reviews.ListByTutor)
	api.PATCH("/tutors/:id/status", auth, admin, h.Tutors.UpdateStatus)

	api.POST("/tuitions", auth, student, h.Tuitions.Create)
	api.GET("/tuitions", h.Tuitions.List)
	api.GET("/tuitions/mine", auth, student, h.Tuitions.Mine)
	api.GET("/tuitions/:id", h.Tuitions.Get)
	api.GET("/tuitions/:id/applications", auth, h.Tuitions.Applications)
	api.PATCH("/tuitions/:id", auth, h.Tuitions.Update)
	api.PATCH("/tuitions/:id/status", auth, admin, h.Tuitions.UpdateStatus)
	api.DELETE("/tuitions/:id", auth, h.Tuitions.Delete)

	api.POST("/applications", auth, tutor, h.Applications.Submit)
	api.GET("/applications/mine", auth, tutor, h.Applications.Mine)
	api.PATCH("/applications/approve/:id", auth, student, h.Applications.Approve)
	api.PATCH("/applications/reject/:id", auth, student, h.Applications.Reject)
	api.PATCH("/applications/:id", auth, tutor, h.Applications.Update)
	api.DELETE("/applications/:id", auth, tutor, h.Applications.Delete)

	api.POST("/create-tutor-checkout-session", auth, student, limited, h.Payments.CreateCheckoutSession)
	api.PATCH("/tutor-payment-success", auth, limited, h.Payments.Success)
	api.POST("/payments/notifications", limited, h.Payments.Notification)
	api.GET("/payments", auth, h.Payments.List)
	api.GET("/payments/export", auth, admin, h.Payments.Export)
	api.GET("/payments/:id/receipt", auth, h.Payments.Receipt)

	api.POST("/reviews", auth, student, h.Reviews.Create)

	api.GET("/metrics/summary", auth, admin, h.Observability.Summary)

	return r
}
