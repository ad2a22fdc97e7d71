package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"

	"parkhub/internal/api"
	"parkhub/internal/auth"
	"parkhub/internal/clock"
	"parkhub/internal/config"
	"parkhub/internal/events"
	"parkhub/internal/repository"
	"parkhub/internal/service"
)

const sweepTimeout = 50 * time.Second

func main() {
	godotenv.Load()
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET not set")
	}

	database, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	if err := database.Ping(); err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}

	slotRepo := repository.NewPgSlotRepository(database)
	bookingRepo := repository.NewPgBookingRepository(database)
	lotRepo := repository.NewPgLotRepository(database)
	notificationRepo := repository.NewPgNotificationRepository(database)
	contactRepo := repository.NewPgUserContactRepository(database)

	broadcaster := events.NewBroadcaster()
	clk := clock.NewSystem()
	notifier := service.NewNotifier(contactRepo, service.NotifierConfig{
		SendGridAPIKey:    cfg.SendGridAPIKey,
		SendGridFromEmail: cfg.SendGridFromEmail,
		SendGridFromName:  cfg.SendGridFromName,
		TwilioAccountSID:  cfg.TwilioAccountSID,
		TwilioAuthToken:   cfg.TwilioAuthToken,
		TwilioFromNumber:  cfg.TwilioFromNumber,
	})

	bookingSvc := service.NewBookingService(slotRepo, bookingRepo, lotRepo, notificationRepo, broadcaster, notifier, clk)
	slotSvc := service.NewSlotService(slotRepo, lotRepo, broadcaster, clk)
	sweepSvc := service.NewSweepService(slotRepo, bookingRepo, lotRepo, notificationRepo, broadcaster, notifier, clk)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.ExpirySweepSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if err := sweepSvc.ReleaseExpiredReservations(ctx); err != nil {
			log.Printf("Expiry sweep failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("Failed to schedule expiry sweep: %v", err)
	}
	if _, err := scheduler.AddFunc(cfg.ReminderSweepSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if err := sweepSvc.SendExpiryReminders(ctx); err != nil {
			log.Printf("Reminder sweep failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("Failed to schedule reminder sweep: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	bookingHandler := api.NewBookingHandler(bookingSvc)
	slotHandler := api.NewSlotHandler(slotSvc)
	notificationHandler := api.NewNotificationHandler(notificationRepo, clk)
	wsHandler := api.NewWSHandler(broadcaster, slotSvc)

	r := mux.NewRouter()

	// Public endpoints
	r.HandleFunc("/api/lots", slotHandler.ListLots).Methods("GET")
	r.HandleFunc("/api/lots/{id}", slotHandler.GetLot).Methods("GET")
	r.HandleFunc("/api/lots/{id}/status", slotHandler.GetLotStatus).Methods("GET")
	r.HandleFunc("/api/lots/{id}/slots", slotHandler.ListSlots).Methods("GET")
	r.HandleFunc("/api/ws/lots/{id}", wsHandler.LotStream).Methods("GET")

	// Authenticated endpoints
	private := r.PathPrefix("/api").Subrouter()
	private.Use(auth.Middleware(cfg.JWTSecret))
	private.HandleFunc("/bookings", bookingHandler.CreateBooking).Methods("POST")
	private.HandleFunc("/bookings", bookingHandler.ListBookings).Methods("GET")
	private.HandleFunc("/bookings/{id}", bookingHandler.GetBooking).Methods("GET")
	private.HandleFunc("/bookings/{id}", bookingHandler.UpdateBooking).Methods("PUT")
	private.HandleFunc("/lots/{id}/bookings", bookingHandler.ListLotBookings).Methods("GET")
	private.HandleFunc("/slots/{id}", slotHandler.OverrideSlot).Methods("PUT")
	private.HandleFunc("/notifications", notificationHandler.List).Methods("GET")
	private.HandleFunc("/notifications/{id}/read", notificationHandler.MarkRead).Methods("PUT")
	private.HandleFunc("/notifications/{id}", notificationHandler.Delete).Methods("DELETE")
	private.HandleFunc("/ws/me", wsHandler.UserStream).Methods("GET")

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{cfg.AllowedOrigin}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	log.Printf("Server running on port %s", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, cors(r)))
}
