package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fluxia/common/database"
	"fluxia/common/logger"
	commonmqtt "fluxia/common/mqtt"
	commonredis "fluxia/common/redis"
	"fluxia/internal/config"
	httpapi "fluxia/internal/http"
	"fluxia/internal/mail"
	"fluxia/internal/notify"
	"fluxia/internal/repository"
	"fluxia/internal/schedule"
	"fluxia/internal/service"
	"fluxia/internal/storage"
	"fluxia/internal/store"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "fluxia")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	clock, err := schedule.LoadClock(cfg.App.Timezone)
	if err != nil {
		log.Fatal("Invalid APP_TIMEZONE", zap.String("timezone", cfg.App.Timezone), zap.Error(err))
	}

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	redisClient := commonredis.NewRedisClient(&cfg.Redis)
	defer commonredis.Close(redisClient)
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := commonredis.Ping(pingCtx, redisClient); err != nil {
		log.Fatal("Failed to connect to redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	pingCancel()
	kv := store.NewRedisKV(redisClient)

	repos := repository.New(db)

	var mailer mail.Mailer = mail.NewLogMailer(log)
	if cfg.Mail.Endpoint != "" {
		mailer = mail.NewHTTPMailer(cfg.Mail.Endpoint, cfg.Mail.APIKey, cfg.Mail.From, log)
	} else {
		log.Warn("MAIL_ENDPOINT not set, sign-in links are logged instead of emailed")
	}

	var images service.ImageStore
	if cfg.Storage.Endpoint != "" {
		images = storage.NewBucketClient(cfg.Storage.Endpoint, cfg.Storage.Bucket, cfg.Storage.APIKey, cfg.Storage.PublicURL, log)
	} else {
		log.Warn("STORAGE_ENDPOINT not set, profile images are not stored")
	}

	assignments := service.NewAssignmentService(repos.Diagnostics, repos.Profiles, repos.PatientDiagnostics, log)
	authService := service.NewAuthService(service.AuthDeps{
		Users:       repos.Users,
		Doctors:     repos.Doctors,
		Profiles:    repos.Profiles,
		Diagnostics: repos.Diagnostics,
		Assignments: assignments,
		Sessions:    store.NewSessionStore(kv, cfg.Auth.SessionTTL),
		Links:       store.NewLinkStore(kv, cfg.Auth.LinkTTL),
		Images:      images,
		Mailer:      mailer,
		BaseURL:     cfg.App.PublicBaseURL,
	}, log)
	adminService := service.NewAdminService(repos.Users, repos.Doctors, repos.Profiles, log)
	diagnosticService := service.NewDiagnosticService(repos.Diagnostics, repos.Profiles, repos.Responses, log)
	chatService := service.NewChatService(service.ChatDeps{
		Diagnostics:   repos.Diagnostics,
		Doctors:       repos.Doctors,
		Assignments:   repos.PatientDiagnostics,
		Responses:     repos.Responses,
		Notifications: repos.NotificationStatus,
		Assign:        assignments,
		Clock:         clock,
	}, log)
	notificationService := service.NewNotificationService(repos.PatientDiagnostics, repos.Responses, clock, log)

	var dispatcher *service.Dispatcher
	if cfg.Notify.Enabled {
		var publishers notify.Fanout
		if cfg.Notify.Stream != "" {
			publishers = append(publishers, notify.NewStreamPublisher(redisClient, cfg.Notify.Stream))
		}
		if cfg.MQTT.Enabled {
			mqttClient, err := commonmqtt.NewClient(&cfg.MQTT.MQTTConfig, log)
			if err != nil {
				log.Warn("MQTT unavailable, push notifications disabled", zap.String("broker", cfg.MQTT.Broker), zap.Error(err))
			} else {
				defer mqttClient.Disconnect()
				publishers = append(publishers, notify.NewMQTTPublisher(mqttClient, cfg.MQTT.TopicPrefix, mqttClient.QoS(), log))
			}
		}
		if len(publishers) > 0 {
			dispatcher = service.NewDispatcher(
				repos.PatientDiagnostics,
				repos.NotificationStatus,
				notificationService,
				kv,
				publishers,
				clock,
				cfg.Notify.Interval,
				log,
			)
		}
	}

	auth := httpapi.NewAuth(authService, cfg.Auth.AdminToken, log)
	health := httpapi.NewHealthHandler(log).WithPostgres(db).WithRedis(redisClient)
	health.EnablePprof(cfg.HTTP.PprofEnabled)

	router := httpapi.NewRouter(log)
	router.RegisterHealthRoutes(health)
	router.RegisterAuthRoutes(httpapi.NewAuthHandler(authService, cfg.Auth.SecureCookie, log), auth)
	router.RegisterDoctorRoutes(httpapi.NewDoctorHandler(diagnosticService, assignments, log), auth)
	router.RegisterPatientRoutes(httpapi.NewPatientHandler(chatService, notificationService, log), auth)
	router.RegisterAdminRoutes(httpapi.NewAdminHandler(adminService, log), auth)

	srv := service.NewServer(cfg.HTTP.Addr, router, dispatcher, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}
}
