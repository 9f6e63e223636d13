package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mutabaahAPI/handlers"
	"mutabaahAPI/internal/clock"
	"mutabaahAPI/internal/notification"
	"mutabaahAPI/middleware"
	"mutabaahAPI/services"
)

var (
	dbPool              *pgxpool.Pool
	userService         *services.UserService
	habitService        *services.HabitService
	taskService         *services.TaskService
	quranService        *services.QuranService
	notificationService *services.NotificationService
	fcmService          *notification.FCMService
	scheduler           *services.ReminderScheduler
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	clerkSecretKey := os.Getenv("CLERK_SECRET_KEY")
	if clerkSecretKey == "" {
		log.Fatal("CLERK_SECRET_KEY environment variable is not set")
	}
	clerk.SetKey(clerkSecretKey)
	log.Println("Clerk initialized successfully")

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		log.Fatal("Failed to parse database URL:", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	dbPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatal("Failed to create connection pool:", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	log.Println("Successfully connected to Postgres")

	clk := clock.System()
	userService = services.NewUserService(dbPool)
	habitService = services.NewHabitService(dbPool, clk)
	taskService = services.NewTaskService(dbPool)
	quranService = services.NewQuranService(dbPool, clk)
	notificationService = services.NewNotificationService(dbPool)

	fcmService, err = notification.NewFCMService("./serviceAccountKey.json")
	if err != nil {
		log.Printf("Warning: Could not initialize FCM, reminders disabled: %v", err)
	}

	cadence := 2 * time.Minute
	if v := os.Getenv("REMINDER_CADENCE_MINUTES"); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil && minutes > 0 {
			cadence = time.Duration(minutes) * time.Minute
		}
	}

	if fcmService != nil {
		store := &services.PgReminderStore{
			Habits: habitService,
			Tasks:  taskService,
			Tokens: notificationService,
		}
		scheduler = services.NewReminderScheduler(store, fcmService, clk, cadence)
		scheduler.SetTokenRegistry(notificationService)
		scheduler.SetLease(services.NewPgTickLease(dbPool))
	}

	middleware.InitPrometheus()
	services.InitSchedulerMetrics()
}

func main() {
	defer func() {
		log.Println("Closing database connection pool...")
		dbPool.Close()
	}()

	habitHandler := handlers.NewHabitHandler(habitService)
	taskHandler := handlers.NewTaskHandler(taskService)
	quranHandler := handlers.NewQuranHandler(quranService)
	webhookHandler := handlers.NewWebhookHandler(userService)

	var sender services.ReminderSender
	if fcmService != nil {
		sender = fcmService
	}
	notificationHandler := handlers.NewNotificationHandler(notificationService, sender)

	r := mux.NewRouter()

	go middleware.CleanupVisitors()

	r.Use(middleware.RateLimitMiddleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := dbPool.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "mutabaah-api"}`))
	}).Methods("GET")

	r.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")

	// -------------------------------------------------------------------------
	// API V1 SUBROUTER (all routes require auth)
	// -------------------------------------------------------------------------
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.ClerkAuthMiddleware)

	api.HandleFunc("/habits", habitHandler.GetHabits).Methods("GET")
	api.HandleFunc("/habits", habitHandler.CreateHabit).Methods("POST")
	api.HandleFunc("/habits/reorder", habitHandler.ReorderHabits).Methods("PUT")
	api.HandleFunc("/habits/{habitID}", habitHandler.UpdateHabit).Methods("PUT")
	api.HandleFunc("/habits/{habitID}", habitHandler.DeleteHabit).Methods("DELETE")
	api.HandleFunc("/habits/{habitID}/toggle", habitHandler.ToggleCompletion).Methods("POST")
	api.HandleFunc("/habits/{habitID}/increment", habitHandler.IncrementProgress).Methods("POST")
	api.HandleFunc("/habits/{habitID}/decrement", habitHandler.DecrementProgress).Methods("POST")

	api.HandleFunc("/tasks", taskHandler.GetTasks).Methods("GET")
	api.HandleFunc("/tasks", taskHandler.CreateTask).Methods("POST")
	api.HandleFunc("/tasks/{taskID}/complete", taskHandler.CompleteTask).Methods("POST")
	api.HandleFunc("/tasks/{taskID}", taskHandler.DeleteTask).Methods("DELETE")

	api.HandleFunc("/quran/progress", quranHandler.GetProgress).Methods("GET")
	api.HandleFunc("/quran/pages", quranHandler.MarkPage).Methods("POST")
	api.HandleFunc("/quran/pages", quranHandler.UnmarkPage).Methods("DELETE")
	api.HandleFunc("/quran/reviews", quranHandler.RecordReview).Methods("POST")

	api.HandleFunc("/notifications/register-device", notificationHandler.RegisterDevice).Methods("POST")
	api.HandleFunc("/notifications/test", notificationHandler.SendTestNotification).Methods("POST")

	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3333"
	}
	port = ":" + port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if scheduler != nil {
		scheduler.Start()
	} else {
		log.Println("Reminder scheduler not started (no push provider)")
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	if scheduler != nil {
		scheduler.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server shutdown complete")
}
