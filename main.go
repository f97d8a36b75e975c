package main

import (
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/snowdrift/kanban-app/database"
	"github.com/snowdrift/kanban-app/handlers"
	"github.com/snowdrift/kanban-app/services"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	// Load environment variables from .env file, if one exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("failed to load .env file")
	}

	config := LoadConfig()

	// Initialize database
	db, err := database.Open(config.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()
	log.Info().Str("path", config.DatabasePath).Msg("database initialized")

	// Initialize services
	authService := services.NewAuthService(config.JWTSecret)
	userService := database.NewUserService(db)
	boardService := database.NewBoardService(db)

	// Initialize WebSocket hub
	hub := services.NewHub(log)
	go hub.Run()

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, userService, log)
	boardHandler := handlers.NewBoardHandler(boardService, userService, authService, hub, log)
	authMiddleware := handlers.NewAuthMiddleware(authService)

	// Setup router
	r := mux.NewRouter()
	r.Use(handlers.RequestLogger(log))

	// Auth routes
	r.HandleFunc("/api/register", authHandler.Register).Methods("POST")
	r.HandleFunc("/api/login", authHandler.Login).Methods("POST")

	// WebSocket route for real-time updates (token rides in the query string)
	r.HandleFunc("/api/ws", boardHandler.HandleWebSocket)

	// Protected routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authMiddleware.Auth)
	api.HandleFunc("/me", authHandler.Me).Methods("GET")
	api.HandleFunc("/boards", boardHandler.ListBoards).Methods("GET")
	api.HandleFunc("/boards", boardHandler.CreateBoard).Methods("POST")
	api.HandleFunc("/boards/{id:[0-9]+}", boardHandler.GetBoard).Methods("GET")
	api.HandleFunc("/boards/{id:[0-9]+}", boardHandler.DeleteBoard).Methods("DELETE")
	api.HandleFunc("/boards/{id:[0-9]+}/columns", boardHandler.CreateColumn).Methods("POST")
	api.HandleFunc("/boards/{id:[0-9]+}/members", boardHandler.AddMember).Methods("POST")
	api.HandleFunc("/columns/{id:[0-9]+}/tasks", boardHandler.CreateTask).Methods("POST")
	api.HandleFunc("/tasks/{id:[0-9]+}", boardHandler.UpdateTask).Methods("PUT")
	api.HandleFunc("/tasks/{id:[0-9]+}", boardHandler.DeleteTask).Methods("DELETE")

	// Static file server for the frontend
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(config.StaticDir)))

	// Setup CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // In production, change to your domain
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	// Start server
	server := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      c.Handler(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Str("port", config.Port).Msg("server starting")
	if err := server.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
