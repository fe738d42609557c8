package pkg

import (
	"context"

	"KidDrop/internal/alert"
	"KidDrop/internal/auth"
	"KidDrop/internal/config"
	"KidDrop/internal/pickup"
	"KidDrop/internal/student"
	"KidDrop/pkg/middleware"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var EchoModules = fx.Module("echo",
	fx.Provide(NewLogger),
	fx.Provide(NewEchoServer),
	fx.Provide(config.NewMongoDBConfig),
	fx.Provide(config.NewMongoDBClient),
	fx.Provide(config.NewEmailSender),
	fx.Provide(auth.NewUserRepository),
	fx.Provide(auth.NewUserService),
	fx.Provide(auth.NewAuthHandler),
	fx.Provide(student.NewStudentRepository),
	fx.Provide(student.NewStudentService),
	fx.Provide(student.NewStudentHandler),
	fx.Provide(pickup.NewLogRepository),
	fx.Provide(pickup.NewLogHandler),
	fx.Provide(alert.NewAlertRepository),
	fx.Provide(alert.NewPersonalNotificationRepository),
	fx.Provide(alert.NewResolver),
	fx.Provide(alert.NewDeliverer),
	fx.Provide(alert.NewAlertService),
	fx.Provide(alert.NewAlertScheduler),
	fx.Provide(alert.NewAlertHandler),
	fx.Provide(func(r *pickup.LogRepository) student.LogPurger { return r }),
	fx.Provide(func(r *alert.AlertRepository) pickup.AlertCounter { return r }),
	fx.Invoke(EnsureIndexes),
	fx.Invoke(RegisterRoutes),
	fx.Invoke(StartScheduler),
)

func NewLogger() (*zap.Logger, error) {
	return zap.NewProduction()
}

func NewEchoServer(lc fx.Lifecycle, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	middleware.SetupMiddleware(e)
	port := ":8080"
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("server starting", zap.String("addr", "http://localhost"+port))
			go func() {
				if err := e.Start(port); err != nil {
					logger.Fatal("failed to start the server", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down the server")
			return e.Shutdown(ctx)
		},
	})
	return e
}

func EnsureIndexes(client *config.MongoDBClient, logger *zap.Logger) {
	config.UniqueEmailIndex(client.GetCollection("users"), logger)
}

func StartScheduler(lc fx.Lifecycle, scheduler *alert.AlertScheduler) {
	scheduler.StartScheduler(lc)
}

func RegisterRoutes(
	e *echo.Echo,
	authHandler *auth.AuthHandler,
	studentHandler *student.StudentHandler,
	logHandler *pickup.LogHandler,
	alertHandler *alert.AlertHandler,
) {
	e.POST("/api/auth/signup", authHandler.Signup)
	e.POST("/api/auth/login", authHandler.Login)

	protected := e.Group("/api")
	protected.Use(middleware.JWTMiddleware)
	protected.Use(middleware.CasbinMiddleware)

	protected.GET("/profile", authHandler.Profile)

	protected.GET("/admin/stats", logHandler.Stats)
	protected.GET("/admin/logs", logHandler.Logs)
	protected.GET("/admin/students", studentHandler.ListStudents)
	protected.POST("/admin/students", studentHandler.CreateStudent)
	protected.PUT("/admin/students/:id", studentHandler.UpdateStudent)
	protected.DELETE("/admin/students/:id", studentHandler.DeleteStudent)
	protected.PATCH("/admin/students/:id/approval", studentHandler.SetApproval)
	protected.GET("/admin/parents", authHandler.ListParents)
	protected.POST("/admin/send-alert", alertHandler.SendAlert)

	protected.GET("/parent/children", studentHandler.ListChildren)
	protected.GET("/parent/child/:id", studentHandler.GetChild)
	protected.POST("/parent/child", studentHandler.AddChild)
	protected.PUT("/parent/child/:id", studentHandler.UpdateChild)
	protected.GET("/parent/notifications", alertHandler.ListNotifications)
	protected.PATCH("/parent/notifications/:id/read", alertHandler.MarkRead)

	protected.POST("/log/dropoff/:studentId", logHandler.Dropoff)
	protected.POST("/log/pickup/:studentId", logHandler.Pickup)
}
