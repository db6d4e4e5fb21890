package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/insight-lab/research-go-api/internal/config"
	"github.com/insight-lab/research-go-api/internal/database"
	"github.com/insight-lab/research-go-api/internal/handler"
	"github.com/insight-lab/research-go-api/internal/middleware"
	"github.com/insight-lab/research-go-api/internal/models"
	"github.com/insight-lab/research-go-api/internal/repository"
	"github.com/insight-lab/research-go-api/internal/router"
	"github.com/insight-lab/research-go-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Study{},
		&models.StudyEnrollment{},
		&models.Quiz{},
		&models.Question{},
		&models.QuestionOption{},
		&models.Assignment{},
		&models.Submission{},
		&models.Answer{},
		&models.GradingAction{},
		&models.GradingFeedback{},
		&models.Notification{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	defer natsConn.Close()

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	studyRepo := repository.NewStudyRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	answerRepo := repository.NewAnswerRepository(db)
	gradingActionRepo := repository.NewGradingActionRepository(db)
	gradingFeedbackRepo := repository.NewGradingFeedbackRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	transactor := repository.NewTransactor(db)

	quizReader := service.NewCachedQuizReader(quizRepo, redisClient, cfg.QuizCacheTTL, logger)

	notificationService := service.NewNotificationService(notificationRepo, redisClient, "insightlab", natsConn, validate, logger)
	assignmentService := service.NewAssignmentService(assignmentRepo, quizRepo, userRepo, studyRepo, enrollmentRepo, notificationService, validate, logger)
	gradingService := service.NewGradingService(submissionRepo, assignmentRepo, answerRepo, gradingActionRepo, gradingFeedbackRepo, transactor, quizReader, notificationService, validate, logger)
	submissionService := service.NewSubmissionService(submissionRepo, assignmentRepo, answerRepo, transactor, quizReader, gradingService, notificationService, validate, logger)
	sweeper := service.NewStudySweeper(studyRepo, cfg.SweepInterval, logger)

	assignmentHandler := handler.NewAssignmentHandler(assignmentService, logger)
	submissionHandler := handler.NewSubmissionHandler(submissionService, logger)
	gradingHandler := handler.NewGradingHandler(gradingService, logger)
	notificationHandler := handler.NewNotificationHandler(notificationService, logger, cfg.SSEKeepAlive)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AssignmentHandler:   assignmentHandler,
		SubmissionHandler:   submissionHandler,
		GradingHandler:      gradingHandler,
		NotificationHandler: notificationHandler,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	runCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	notificationService.Start(runCtx)
	go sweeper.Run(runCtx)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, stopBackground)
}

func waitForShutdown(app *fiber.App, stopBackground context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
