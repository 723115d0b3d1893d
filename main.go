package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"
	_ "time/tzdata"

	"chime-server/handlers"
	"chime-server/middleware"
	"chime-server/schedule"
	"chime-server/store"

	"github.com/benbjohnson/clock"
	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real environment variables win either way.
	godotenv.Load()

	token := os.Getenv("CHIME_TOKEN")
	if token == "" {
		log.Fatal("CHIME_TOKEN is required (token signing credential)")
	}
	middleware.SetSecret([]byte(token))

	channelID := os.Getenv("CHANNEL_ID")
	if channelID == "" {
		log.Fatal("CHANNEL_ID is required (broadcast channel for reminders)")
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./chime.db"
	}

	s, err := store.New(dbPath)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer s.Close()

	// Seed the bot identity and the broadcast channel before anything can
	// reference them.
	bot, err := s.EnsureChimebot()
	if err != nil {
		log.Fatal("Failed to seed Chimebot user:", err)
	}
	if _, err := s.EnsureChannel(channelID, "reminders", bot.ID); err != nil {
		log.Fatal("Failed to ensure broadcast channel:", err)
	}

	// Reminders live in memory by default; REMINDER_PERSIST=1 keeps them in
	// sqlite across restarts.
	var reminders store.ReminderStore
	if os.Getenv("REMINDER_PERSIST") == "1" {
		reminders = s.Reminders()
		log.Printf("Reminder store: sqlite (%s)", dbPath)
	} else {
		reminders = store.NewMemoryReminderStore()
		log.Printf("Reminder store: in-memory")
	}

	// Initialize WebSocket hub
	hub := handlers.NewHub(s)
	go hub.Run()

	// Delivery dispatcher and scheduler
	dispatcher := handlers.NewBotDispatcher(s, hub, channelID)
	engine := schedule.NewEngine(reminders, dispatcher, clock.New())
	go engine.Run(context.Background())

	// Initialize handlers
	botCommands := handlers.NewBotCommands(s, reminders)
	authHandler := handlers.NewAuthHandler(s)
	channelHandler := handlers.NewChannelHandler(s)
	messageHandler := handlers.NewMessageHandler(s, hub, botCommands, dispatcher)
	userHandler := handlers.NewUserHandler(s)
	reminderHandler := handlers.NewReminderHandler(s, reminders)

	// Create router
	mux := http.NewServeMux()

	// Public routes (no auth required)
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /api/ws", hub.HandleWebSocket)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Protected routes (auth required)
	mux.HandleFunc("GET /api/auth/me", withAuth(authHandler.Me))

	// Channels
	mux.HandleFunc("GET /api/channels", withAuth(channelHandler.List))
	mux.HandleFunc("GET /api/channels/public", withAuth(channelHandler.ListPublic))
	mux.HandleFunc("POST /api/channels", withAuth(channelHandler.Create))
	mux.HandleFunc("GET /api/channels/{id}", withAuth(channelHandler.Get))
	mux.HandleFunc("POST /api/channels/{id}/join", withAuth(channelHandler.Join))
	mux.HandleFunc("GET /api/channels/{id}/members", withAuth(channelHandler.Members))
	mux.HandleFunc("GET /api/channels/{id}/messages", withAuth(messageHandler.GetChannelMessages))
	mux.HandleFunc("POST /api/dm", withAuth(channelHandler.CreateDM))

	// Messages
	mux.HandleFunc("POST /api/messages", withAuth(messageHandler.Send))

	// Users
	mux.HandleFunc("GET /api/users", withAuth(userHandler.List))
	mux.HandleFunc("GET /api/users/{id}", withAuth(userHandler.Get))

	// Reminders
	mux.HandleFunc("GET /api/reminders", withAuth(reminderHandler.List))
	mux.HandleFunc("DELETE /api/reminders/{id}", withAuth(reminderHandler.Delete))

	// CORS wrapper
	handler := corsMiddleware(mux)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Chime server starting on :%s (broadcast channel %s)", port, channelID)
	log.Fatal(http.ListenAndServe(":"+port, handler))
}

// withAuth wraps a handler with authentication
func withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			http.Error(w, "Invalid authorization format", http.StatusUnauthorized)
			return
		}

		claims, err := middleware.ValidateToken(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := middleware.SetUserID(r.Context(), claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
