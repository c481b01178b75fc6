package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskflow/pkg/config"
	"taskflow/pkg/jwt"
	"taskflow/pkg/logger"
	"taskflow/pkg/middleware"
	"taskflow/pkg/queue"
	"taskflow/pkg/s3"
	taskHTTP "taskflow/services/task/internal/controller/http"
	"taskflow/services/task/internal/repo/persistent"
	"taskflow/services/task/internal/usecase"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

func Run(cfg *config.Config, log *logger.Logger, db *gorm.DB, redisClient *redis.Client, queueClient *queue.Client, s3Client *s3.Client) {
	jwtService := jwt.NewService(cfg.JWTSecret)

	// Initialize Repositories
	taskRepo := persistent.NewTaskRepository(db)
	commentRepo := persistent.NewCommentRepository(db)
	attachmentRepo := persistent.NewAttachmentRepository(db)

	// Fire-and-forget event publisher; CRUD operations never fail on
	// delivery problems
	publisher := queue.NewPublisher(queueClient, log)

	// Initialize UseCases
	taskUseCase := usecase.NewTaskUseCase(taskRepo, attachmentRepo, s3Client, redisClient, publisher, log)
	commentUseCase := usecase.NewCommentUseCase(commentRepo, taskRepo, publisher, log)

	// Initialize HTTP handlers
	taskHandler := taskHTTP.NewTaskHandler(taskUseCase, commentUseCase, log)

	// Setup router
	r := gin.Default()

	// CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://127.0.0.1:3000", "*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * 3600,
	}))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Swagger documentation
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")
	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(jwtService))
	{
		protected.POST("/tasks", taskHandler.CreateTask)
		protected.GET("/tasks", taskHandler.ListTasks)
		protected.GET("/tasks/stats", taskHandler.GetStats)
		protected.GET("/tasks/:id", taskHandler.GetTask)
		protected.PUT("/tasks/:id", taskHandler.UpdateTask)
		protected.DELETE("/tasks/:id", taskHandler.DeleteTask)

		protected.POST("/tasks/:id/assignments", taskHandler.AssignUser)
		protected.DELETE("/tasks/:id/assignments/:user_id", taskHandler.UnassignUser)

		protected.GET("/tasks/:id/history", taskHandler.GetHistory)

		protected.POST("/tasks/:id/comments", taskHandler.CreateComment)
		protected.GET("/tasks/:id/comments", taskHandler.GetComments)
		protected.DELETE("/tasks/:id/comments/:comment_id", taskHandler.DeleteComment)

		protected.POST("/tasks/:id/attachments", taskHandler.UploadAttachment)
		protected.GET("/tasks/:id/attachments", taskHandler.ListAttachments)
		protected.DELETE("/tasks/:id/attachments/:attachment_id", taskHandler.DeleteAttachment)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		log.Info("Task service starting on port %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Failed to start server: %v", err)
			panic(err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down task service...")

	// The context is used to inform the server it has 5 seconds to finish
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Drain buffered events before closing the broker connection
	publisher.Stop()

	// Close Redis connection
	if err := redisClient.Close(); err != nil {
		log.Error("Error closing Redis: %v", err)
	}

	// Close RabbitMQ connection
	if queueClient != nil {
		queueClient.Close()
	}

	// Shutdown server
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown: %v", err)
		panic(err)
	}

	log.Info("Task service exited")
}
