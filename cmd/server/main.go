package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/momentum-app/momentum-server/internal/config"
	"github.com/momentum-app/momentum-server/internal/database"
	"github.com/momentum-app/momentum-server/internal/handlers"
	"github.com/momentum-app/momentum-server/internal/jobs"
	"github.com/momentum-app/momentum-server/internal/notify"
	"github.com/momentum-app/momentum-server/internal/ratelimit"
	"github.com/momentum-app/momentum-server/internal/repository"
	cronjobs "github.com/momentum-app/momentum-server/internal/scheduler"
	"github.com/momentum-app/momentum-server/internal/services"
	"github.com/momentum-app/momentum-server/pkg/logger"
	"github.com/momentum-app/momentum-server/pkg/middleware"
	"github.com/momentum-app/momentum-server/pkg/storage"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

func main() {
	// Load configuration from .env file
	cfg := config.LoadConfig()

	logger.InitLogger()
	logger.Log.Info("Logger initialized")

	// Connect to MongoDB
	db, err := database.ConnectDB(cfg)
	if err != nil {
		log.Fatalf("Database connection error: %v", err)
	}

	// Redis backs the weekly knock limiter
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})

	// Photo storage: S3 in production, local disk in development
	var uploader storage.Uploader
	if cfg.S3Bucket != "" {
		uploader, err = storage.NewS3Store(cfg.S3Bucket, cfg.AWSRegion)
		if err != nil {
			log.Fatalf("S3 setup error: %v", err)
		}
	} else {
		uploader = storage.NewLocalStore(cfg.UploadDir, cfg.BaseURL)
	}

	hub := notify.NewHub()

	// --- Repositories ---
	userRepo := repository.NewUserRepository(db)
	bucketRepo := repository.NewBucketRepository(db)
	momentRepo := repository.NewMomentRepository(db)
	friendRepo := repository.NewFriendRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// --- Services ---
	notificationService := services.NewNotificationService(notificationRepo, hub)
	userService := services.NewUserService(userRepo, bucketRepo, momentRepo, friendRepo, notificationRepo, uploader, cfg.BaseURL)
	bucketService := services.NewBucketService(bucketRepo, momentRepo, userRepo, uploader)
	momentService := services.NewMomentService(momentRepo, bucketRepo, uploader)
	homeService := services.NewHomeService(momentRepo)
	knockLimiter := ratelimit.NewRedisKnockLimiter(redisClient)
	friendService := services.NewFriendService(friendRepo, userRepo, notificationService, knockLimiter)
	feedService := services.NewFeedService(friendRepo, bucketRepo, momentRepo, userRepo, notificationService)

	// --- Handlers ---
	userHandler := handlers.NewUserHandler(userService, cfg)
	bucketHandler := handlers.NewBucketHandler(bucketService, momentService)
	momentHandler := handlers.NewMomentHandler(momentService)
	homeHandler := handlers.NewHomeHandler(homeService)
	friendHandler := handlers.NewFriendHandler(friendService)
	feedHandler := handlers.NewFeedHandler(feedService)
	notificationHandler := handlers.NewNotificationHandler(notificationService, hub)
	notificationSocket := handlers.NewNotificationSocketHandler(notificationService, hub, cfg.JWTSecret)

	// Initialize Gorilla Mux router
	router := mux.NewRouter()

	// Public user routes
	router.HandleFunc("/users/register", userHandler.RegisterUserHandler).Methods("POST")
	router.HandleFunc("/users/login", userHandler.LoginUserHandler).Methods("POST")
	router.HandleFunc("/users/verify", userHandler.VerifyEmailHandler).Methods("GET")

	// Protected user routes
	protectedUserRoutes := router.PathPrefix("/users").Subrouter()
	protectedUserRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	protectedUserRoutes.HandleFunc("/me", userHandler.GetMeHandler).Methods("GET")
	protectedUserRoutes.HandleFunc("/me", userHandler.UpdateMeHandler).Methods("PATCH")
	protectedUserRoutes.HandleFunc("/me", userHandler.DeleteMeHandler).Methods("DELETE")

	// Bucket routes
	bucketRoutes := router.PathPrefix("/buckets").Subrouter()
	bucketRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	bucketRoutes.HandleFunc("", bucketHandler.CreateBucketHandler).Methods("POST")
	bucketRoutes.HandleFunc("", bucketHandler.GetBucketsHandler).Methods("GET")
	bucketRoutes.HandleFunc("/{id}", bucketHandler.GetBucketHandler).Methods("GET")
	bucketRoutes.HandleFunc("/{id}", bucketHandler.UpdateBucketHandler).Methods("PUT")
	bucketRoutes.HandleFunc("/{id}", bucketHandler.DeleteBucketHandler).Methods("DELETE")
	bucketRoutes.HandleFunc("/{id}/challenge", bucketHandler.ChallengeHandler).Methods("POST")
	bucketRoutes.HandleFunc("/{id}/challenge", bucketHandler.UnchallengeHandler).Methods("DELETE")
	bucketRoutes.HandleFunc("/{id}/achieve", bucketHandler.AchieveHandler).Methods("POST")
	bucketRoutes.HandleFunc("/{id}/moments", bucketHandler.CreateMomentsHandler).Methods("POST")
	bucketRoutes.HandleFunc("/{id}/moments", bucketHandler.GetMomentsHandler).Methods("GET")

	// Moment routes
	momentRoutes := router.PathPrefix("/moments").Subrouter()
	momentRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	momentRoutes.HandleFunc("/{id}", momentHandler.UpdateMomentHandler).Methods("PATCH")

	// Home routes
	homeRoutes := router.PathPrefix("/home").Subrouter()
	homeRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	homeRoutes.HandleFunc("", homeHandler.GetHomeHandler).Methods("GET")
	homeRoutes.HandleFunc("/consecutiveDays", homeHandler.GetConsecutiveDaysHandler).Methods("GET")
	homeRoutes.HandleFunc("/momentsComplete/week", homeHandler.GetWeekHandler).Methods("GET")

	// Friend routes
	friendRoutes := router.PathPrefix("/friends").Subrouter()
	friendRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	friendRoutes.HandleFunc("/requests", friendHandler.SendRequestHandler).Methods("POST")
	friendRoutes.HandleFunc("/requests", friendHandler.GetRequestsHandler).Methods("GET")
	friendRoutes.HandleFunc("/requests/{id}/respond", friendHandler.RespondToRequestHandler).Methods("POST")
	friendRoutes.HandleFunc("", friendHandler.GetFriendsHandler).Methods("GET")
	friendRoutes.HandleFunc("/{id}", friendHandler.RemoveFriendHandler).Methods("DELETE")
	friendRoutes.HandleFunc("/{id}/fix", friendHandler.FixFriendHandler).Methods("PUT")
	friendRoutes.HandleFunc("/{id}/knock", friendHandler.KnockHandler).Methods("POST")

	// Feed routes
	feedRoutes := router.PathPrefix("/feed").Subrouter()
	feedRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	feedRoutes.HandleFunc("", feedHandler.GetFeedHandler).Methods("GET")
	feedRoutes.HandleFunc("/buckets/{id}/cheer", feedHandler.CheerHandler).Methods("POST")

	// Notification routes
	notificationRoutes := router.PathPrefix("/notifications").Subrouter()
	notificationRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	notificationRoutes.HandleFunc("", notificationHandler.GetNotificationsHandler).Methods("GET")
	notificationRoutes.HandleFunc("/unread", notificationHandler.GetUnreadCountHandler).Methods("GET")
	notificationRoutes.HandleFunc("/poll", notificationHandler.PollHandler).Methods("GET")
	notificationRoutes.HandleFunc("/{id}/read", notificationHandler.MarkAsReadHandler).Methods("PATCH")
	notificationRoutes.HandleFunc("/{id}", notificationHandler.DeleteNotificationHandler).Methods("DELETE")

	// WebSocket push channel authenticates via query param
	router.HandleFunc("/ws/notifications", notificationSocket.ServeWS)

	// Serve local uploads in development
	if cfg.S3Bucket == "" {
		router.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))
	}

	// Apply middleware for logging
	router.Use(middleware.LoggingMiddleware)

	// Background maintenance jobs
	sweeper := jobs.NewChallengeSweeper(bucketService)
	cronjobs.StartCronJobs(sweeper, notificationService)

	// Start the HTTP server
	port := cfg.Port
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.CORSOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	handler := c.Handler(router)

	fmt.Printf("Server running on port %s\n", port)
	log.Fatal(http.ListenAndServe(":"+port, handler))
}
