package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/examgate/examgate-backend/internal/config"
	"github.com/examgate/examgate-backend/internal/handler"
	"github.com/examgate/examgate-backend/internal/middleware"
	"github.com/examgate/examgate-backend/internal/model"
	"github.com/examgate/examgate-backend/internal/response"
	"github.com/examgate/examgate-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth          *handler.AuthHandler
	StudentPortal *handler.StudentPortalHandler
	Test          *handler.TestHandler
	Grading       *handler.GradingHandler
	Account       *handler.AccountHandler
	Setting       *handler.SettingHandler
	Health        *handler.HealthHandler
}

// Services the middleware chain needs directly.
type Services struct {
	Auth    *service.AuthService
	Setting *service.SettingService
	Tests   service.TestStore
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	services *Services,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", middleware.SecureBrowserHeader}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", handlers.Health.Health)

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/login", handlers.Auth.Login)
		auth.POST("/refresh", handlers.Auth.Refresh)
		auth.POST("/logout", handlers.Auth.Logout)
		auth.GET("/me", middleware.RequireAuth(services.Auth), handlers.Auth.Me)
	}

	// Everything below honors the maintenance flag; auth stays open so an
	// admin can log in and clear it.
	maintenance := middleware.Maintenance(services.Setting)

	// ─── 2. Student Group ──────────────────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		maintenance,
		middleware.RequireAuth(services.Auth),
		middleware.RequireRole(model.RoleStudent),
		middleware.NoStore(),
	)
	{
		studentAPI.GET("/lobby", handlers.StudentPortal.GetLobby)
		studentAPI.POST("/tests/:testId/start",
			middleware.TestAccessGuard(services.Tests, services.Setting, log),
			handlers.StudentPortal.StartTest)
		studentAPI.GET("/sessions/:sessionId/paper", handlers.StudentPortal.GetPaper)
		studentAPI.GET("/sessions/:sessionId/state", handlers.StudentPortal.GetState)
		studentAPI.PUT("/sessions/:sessionId/answers", handlers.StudentPortal.SaveAnswer)
		studentAPI.PUT("/sessions/:sessionId/progress", handlers.StudentPortal.UpdateProgress)
		studentAPI.POST("/sessions/:sessionId/submit", handlers.StudentPortal.SubmitTest)
	}

	// ─── 3. Examiner Group (Test Authoring & Grading) ──────────────────
	examinerAPI := router.Group("/api/v1")
	examinerAPI.Use(
		maintenance,
		middleware.RequireAuth(services.Auth),
		middleware.RequireRole(model.RoleExaminer, model.RoleAdmin),
	)
	{
		examinerAPI.POST("/tests", handlers.Test.CreateTest)
		examinerAPI.GET("/tests", handlers.Test.ListTests)
		examinerAPI.GET("/tests/:testId", handlers.Test.GetTest)
		examinerAPI.PUT("/tests/:testId", handlers.Test.UpdateTest)
		examinerAPI.POST("/tests/:testId/publish", handlers.Test.PublishTest)
		examinerAPI.POST("/tests/:testId/unpublish", handlers.Test.UnpublishTest)
		examinerAPI.GET("/tests/:testId/questions", handlers.Test.GetQuestions)
		examinerAPI.PUT("/tests/:testId/questions", handlers.Test.ReplaceQuestions)
		examinerAPI.GET("/tests/:testId/results", handlers.Test.GetResults)

		examinerAPI.POST("/sessions/:sessionId/grade", handlers.Grading.GradeEssay)
		examinerAPI.POST("/sessions/:sessionId/review", handlers.Grading.BeginReview)
	}

	// ─── 4. Proctor Group (Session Intervention) ───────────────────────
	proctorAPI := router.Group("/api/v1")
	proctorAPI.Use(
		maintenance,
		middleware.RequireAuth(services.Auth),
		middleware.RequireRole(model.RoleProctor, model.RoleExaminer, model.RoleAdmin),
	)
	{
		proctorAPI.POST("/sessions/:sessionId/cancel", handlers.Grading.CancelSession)
		proctorAPI.POST("/sessions/:sessionId/complete", handlers.Grading.CompleteSession)
	}

	// ─── 5. Admin Group ────────────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(
		middleware.RequireAuth(services.Auth),
		middleware.RequireRole(model.RoleAdmin),
	)
	{
		adminAPI.POST("/accounts", handlers.Account.CreateAccount)
		adminAPI.GET("/accounts", handlers.Account.ListAccounts)
		adminAPI.GET("/settings", handlers.Setting.GetSettings)
		adminAPI.PUT("/settings", handlers.Setting.UpdateSettings)
	}

	return router
}
