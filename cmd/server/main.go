package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "auth-service/docs"
	"auth-service/internal/config"
	"auth-service/internal/domain/user"
	api "auth-service/internal/http"
	"auth-service/internal/metrics"
	"auth-service/internal/platform/database"
	jwtpkg "auth-service/internal/platform/jwt"
	"auth-service/internal/platform/mail"
	"auth-service/internal/repository/postgres"
	"auth-service/internal/worker"
)

// @title           Auth Service API
// @version         1.0
// @description     Account lifecycle and authentication backend
// @BasePath        /api/auth
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	api.SetLogger(logger)

	db, err := database.NewPostgres(cfg.DB_DSN)
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}
	defer db.Close()

	mailer, err := mail.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
	if err != nil {
		log.Fatalf("mailer setup error: %v", err)
	}

	userRepo := postgres.NewUserRepo(db)
	userSvc := user.NewService(userRepo, mailer, cfg.PublicBaseURL)

	jwtMgr := jwtpkg.NewManager(cfg.JWTSecret, "auth-service", cfg.JWTTTL)

	metrics.Register()

	sweeper := worker.NewTokenSweeper(userRepo, 10*time.Minute, logger)

	router := api.NewRouter(userSvc, jwtMgr, db)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sweeper.Run(ctx)

	go func() {
		logger.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	<-stop
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server shutdown error: %v", err)
	}

	logger.Info("server stopped")
}
