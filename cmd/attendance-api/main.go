package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/campus-attendance-api/api/swagger"
	"github.com/noah-isme/campus-attendance-api/internal/bootstrap"
	"github.com/noah-isme/campus-attendance-api/internal/handler"
	internalmiddleware "github.com/noah-isme/campus-attendance-api/internal/middleware"
	"github.com/noah-isme/campus-attendance-api/internal/models"
	"github.com/noah-isme/campus-attendance-api/internal/repository"
	"github.com/noah-isme/campus-attendance-api/internal/service"
	"github.com/noah-isme/campus-attendance-api/internal/session"
	"github.com/noah-isme/campus-attendance-api/pkg/broker"
	"github.com/noah-isme/campus-attendance-api/pkg/config"
	"github.com/noah-isme/campus-attendance-api/pkg/export"
	"github.com/noah-isme/campus-attendance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/campus-attendance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/campus-attendance-api/pkg/middleware/requestid"
)

// @title Campus Attendance API
// @version 1.0.0
// @description Course enrollment and attendance ledger
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg, "attendance-api")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsSvc := service.NewMetricsService()

	store, err := bootstrap.OpenStore(ctx, cfg, metricsSvc, logr)
	if err != nil {
		logr.Fatal("failed to open document store", zap.Error(err))
	}
	defer store.Close() //nolint:errcheck

	readiness := map[string]handler.ReadinessCheck{"store": handler.ReadinessCheck(store.Ready)}

	// repairs stays a nil interface when the pipeline is disabled.
	var repairs interface {
		Publish(ctx context.Context, job broker.RepairJob) error
	}
	if cfg.Repair.Enabled {
		redisClient, err := broker.NewRedis(cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect redis", zap.Error(err))
		}
		defer redisClient.Close() //nolint:errcheck
		repairs = broker.NewRepairQueue(redisClient, cfg.Repair.QueueKey, logr)
		readiness["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	validate := validator.New()
	identity := session.NewAccessor()
	location := cfg.Attendance.Location()

	attendanceRepo := repository.NewAttendanceRepository(store)
	courseRepo := repository.NewCourseRepository(store)
	userRepo := repository.NewUserRepository(store)

	attendanceSvc := service.NewAttendanceService(attendanceRepo, validate, logr, service.WithAttendanceLocation(location))
	statisticsSvc := service.NewStatisticsService(attendanceSvc, logr)
	enrollmentSvc := service.NewEnrollmentService(courseRepo, userRepo, metricsSvc, logr)
	courseSvc := service.NewCourseService(courseRepo, userRepo, identity, validate, logr)
	userSvc := service.NewUserService(userRepo, identity, validate, logr)
	tokenVerifier := service.NewTokenVerifier(service.AuthConfig{
		Secret:   cfg.Auth.Secret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
	}, logr)

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		exportSvc = service.NewExportService(attendanceSvc, courseSvc, location, logr, export.NewCSVExporter(), export.NewPDFExporter())
	}

	courseHandler := handler.NewCourseHandler(courseSvc)
	userHandler := handler.NewUserHandler(userSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc, identity, repairs, metricsSvc, logr)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc, statisticsSvc, nil, identity)
	if exportSvc != nil {
		attendanceHandler = handler.NewAttendanceHandler(attendanceSvc, statisticsSvc, exportSvc, identity)
	}
	metricsHandler := handler.NewMetricsHandler(metricsSvc, readiness)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc, "/health", "/ready", "/metrics"))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET("/metrics/summary", metricsHandler.Summary)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	instructorOnly := internalmiddleware.RequireRoles(models.RoleInstructor)

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(tokenVerifier))
	{
		users := api.Group("/users")
		users.POST("/me", userHandler.CreateMe)
		users.GET("/me", userHandler.Me)

		courses := api.Group("/courses")
		courses.GET("", courseHandler.List)
		courses.POST("", instructorOnly, courseHandler.Create)
		courses.GET("/:id", courseHandler.Get)
		courses.GET("/:id/students", instructorOnly, courseHandler.Students)

		courses.POST("/:id/enrollment", enrollmentHandler.EnrollSelf)
		courses.DELETE("/:id/enrollment", enrollmentHandler.UnenrollSelf)
		courses.GET("/:id/enrollment/audit", instructorOnly, enrollmentHandler.Audit)
		courses.POST("/:id/enrollment/repair", instructorOnly, enrollmentHandler.Repair)
		courses.POST("/:id/students/:studentId", instructorOnly, enrollmentHandler.EnrollStudent)
		courses.DELETE("/:id/students/:studentId", instructorOnly, enrollmentHandler.UnenrollStudent)

		courses.POST("/:id/attendance", instructorOnly, attendanceHandler.Mark)
		courses.GET("/:id/attendance", instructorOnly, attendanceHandler.ListCourse)
		courses.GET("/:id/attendance/me", attendanceHandler.Mine)
		courses.GET("/:id/attendance/me/summary", attendanceHandler.MySummary)
		courses.GET("/:id/attendance/summary", instructorOnly, attendanceHandler.CourseSummary)
		courses.GET("/:id/attendance/export", instructorOnly, attendanceHandler.Export)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "store", store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
