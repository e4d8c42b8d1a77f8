package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/openexam/openexam-backend/internal/config"
	"github.com/openexam/openexam-backend/internal/handler"
	"github.com/openexam/openexam-backend/internal/middleware"
	"github.com/openexam/openexam-backend/internal/response"
	"github.com/openexam/openexam-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth     *handler.AuthHandler
	Paper    *handler.PaperHandler
	Exam     *handler.ExamHandler
	Grading  *handler.GradingHandler
	Question *handler.QuestionHandler
	WS       *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/login", handlers.Auth.Login)
		auth.POST("/logout", middleware.RequireStudentJWT(authService), handlers.Auth.Logout)
	}

	// Student routes. The JWT middleware also enforces single-device sessions.
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(middleware.RequireStudentJWT(authService))
	{
		studentAPI.POST("/papers/:id/start", handlers.Exam.StartExam)
		studentAPI.POST("/sessions/:id/answers", handlers.Exam.SaveAnswer)
		studentAPI.POST("/sessions/:id/answers/batch", handlers.Exam.BatchSaveAnswers)
		studentAPI.POST("/sessions/:id/submit", handlers.Exam.SubmitExam)
		studentAPI.GET("/sessions/:id/resume", handlers.Exam.ResumeExam)
		studentAPI.GET("/sessions/:id/progress", handlers.Exam.GetProgress)
		studentAPI.GET("/sessions/:id/result", handlers.Exam.GetSessionResult)
	}

	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/student/sessions/:id/stream", handlers.WS.SessionStream)
	}

	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		// Paper management
		adminAPI.GET("/papers", handlers.Paper.SearchPapers)
		adminAPI.POST("/papers", handlers.Paper.ComposePaper)
		adminAPI.GET("/papers/:id", handlers.Paper.GetPaper)
		adminAPI.DELETE("/papers/:id", handlers.Paper.DeletePaper)
		adminAPI.POST("/papers/:id/activate", handlers.Paper.ActivatePaper)
		adminAPI.POST("/papers/:id/archive", handlers.Paper.ArchivePaper)
		adminAPI.POST("/papers/:id/duplicate", handlers.Paper.DuplicatePaper)

		// Question banks
		adminAPI.GET("/banks", handlers.Question.ListBanks)
		adminAPI.POST("/banks", handlers.Question.CreateBank)
		adminAPI.PUT("/banks/:id", handlers.Question.UpdateBank)
		adminAPI.DELETE("/banks/:id", handlers.Question.DeleteBank)
		adminAPI.GET("/banks/:id/questions", handlers.Question.ListBankQuestions)
		adminAPI.POST("/banks/:id/questions", handlers.Question.AddQuestion)
		adminAPI.PUT("/questions/:id", handlers.Question.UpdateQuestion)
		adminAPI.DELETE("/questions/:id", handlers.Question.DeleteQuestion)

		// Manual grading
		adminAPI.GET("/sessions/:id/pending", handlers.Grading.ListPendingSubjective)
		adminAPI.POST("/answers/:id/grade", handlers.Grading.GradeAnswer)
		adminAPI.POST("/grades/batch", handlers.Grading.BatchGrade)
		adminAPI.POST("/sessions/:id/regrade", handlers.Grading.RegradeSession)

		// Account management
		adminAPI.POST("/users/:id/reset-session", handlers.Auth.ResetStudentSession)
	}

	return router
}
