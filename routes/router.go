package routes

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/aiblog/aiblog/ai"
	"github.com/aiblog/aiblog/config"
	"github.com/aiblog/aiblog/controllers"
	"github.com/aiblog/aiblog/middleware"
	"github.com/aiblog/aiblog/tasks"
	"github.com/aiblog/aiblog/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB, mod ai.Moderator, scheduler tasks.ReplyScheduler) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	authController := controllers.NewAuthController(db)
	postController := controllers.NewPostController(db, mod)
	commentController := controllers.NewCommentController(db, mod, scheduler, utils.Sugar)
	analyticsController := controllers.NewAnalyticsController(db)

	auth := middleware.AuthRequired(db)

	users := r.Group("/users")
	users.Use(middleware.RateLimit(cfg.RateLimitPerMinute))
	users.POST("/register", authController.Register)
	users.POST("/login", authController.Login)

	posts := r.Group("/posts")
	posts.POST("/create", auth, postController.Create)
	posts.GET("/list", postController.List)
	posts.GET("/:id", postController.Get)
	posts.PUT("/update/:id", auth, postController.Update)
	posts.DELETE("/delete/:id", auth, postController.Delete)

	// every comment route keeps the same wildcard name so gin does not see
	// conflicting params on the shared prefix
	comments := r.Group("/comments")
	comments.POST("/:id/create", auth, commentController.Create)
	comments.GET("/list/:id", commentController.List)
	comments.GET("/:id", commentController.Get)
	comments.PUT("/:id", auth, commentController.Update)
	comments.DELETE("/:id", auth, commentController.Delete)

	analytics := r.Group("/analytics")
	analytics.GET("/comments-daily-breakdown", auth, analyticsController.CommentsDailyBreakdown)

	return r
}
