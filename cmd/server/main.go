package main // Entry point package

import (
	"log" // Logging library

	"github.com/joho/godotenv"    // Loads .env files in development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/slichti/studio-platform/internal/config"
	"github.com/slichti/studio-platform/internal/database"
	"github.com/slichti/studio-platform/internal/handler"
	"github.com/slichti/studio-platform/internal/middleware"
	"github.com/slichti/studio-platform/internal/queue"
	"github.com/slichti/studio-platform/internal/repository"
	"github.com/slichti/studio-platform/internal/router"
	"github.com/slichti/studio-platform/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient() // nil disables rate limiting and report caching
	if rdb == nil {
		log.Println("redis unavailable; rate limiting and utilization caching disabled")
	}

	// Repositories
	classRepo := repository.NewClassRepo(db)
	apptRepo := repository.NewAppointmentRepo(db)
	bookingStore := repository.NewBookingStore(db)
	scheduleRepo := repository.NewScheduleRepo(db)
	staffRepo := repository.NewStaffRepo(db)
	endpointRepo := repository.NewWebhookEndpointRepo(db)
	attendanceRepo := repository.NewAttendanceLogRepo(db)

	// Side-effect ports over RabbitMQ
	pub := queue.NewPublisher(cfg.AMQPURL)
	notifier := queue.NewAmqpNotifier(pub)
	triggers := queue.NewAmqpTriggerDispatcher(pub)
	webhooks := queue.NewAmqpWebhookDispatcher(pub)

	runner := service.NewBackgroundRunner(4, 256)
	defer runner.Close()

	// Services
	conflicts := service.NewConflictService(
		service.NewClassSource(classRepo),
		service.NewAppointmentSource(apptRepo),
	)
	bookings := service.NewBookingService(bookingStore, notifier, triggers, webhooks, attendanceRepo, runner)
	schedule := service.NewScheduleService(scheduleRepo, conflicts, notifier, runner)

	// Webhook delivery consumer
	consumer := queue.NewWebhookConsumer(cfg.AMQPURL, endpointRepo)
	go consumer.Start()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAPI(e, router.Handlers{
		Auth:         handler.NewAuthHandler(staffRepo, cfg),
		Classes:      handler.NewClassHandler(classRepo, bookingStore, scheduleRepo, conflicts, rdb),
		Appointments: handler.NewAppointmentHandler(apptRepo, conflicts),
		Bookings:     handler.NewBookingHandler(bookings),
		Schedule:     handler.NewScheduleHandler(schedule),
		Members:      handler.NewMemberHandler(bookingStore),
	}, cfg.JWTSecret, middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
