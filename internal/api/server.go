package api

import (
	"fmt"
	"log"
	"log/slog"
	"net/http"

	"attendly/internal/cache"
	"attendly/internal/config"
	"attendly/internal/database"
	"attendly/internal/external"
	"attendly/internal/handlers"
	"attendly/internal/messaging"
	"attendly/internal/metrics"
	"attendly/internal/middleware"
	"attendly/internal/repository"
	"attendly/internal/service"

	"github.com/gin-gonic/gin"
)

// Server представляет HTTP сервер API
type Server struct {
	router   *gin.Engine
	config   *config.Config
	db       *database.DB
	nats     *messaging.NATSClient
	valkey   *cache.ValkeyClient
	services *service.Services
	repos    *repository.Repositories
}

// NewServer создает новый экземпляр сервера
func NewServer(cfg *config.Config) *Server {
	// Устанавливаем режим Gin
	gin.SetMode(cfg.GinMode)

	// Подключаемся к базе данных
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Запускаем миграции
	if err := db.RunMigrations(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Подключаемся к NATS
	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}

	// Valkey необязателен: без него аутентификация ходит только в БД
	valkeyClient, err := cache.NewValkeyClient()
	if err != nil {
		slog.Warn("Valkey unavailable, auth cache disabled", "error", err)
		valkeyClient = nil
	}

	// Клиент платежного шлюза
	paymentClient := external.NewPaymentClient(cfg.Payment)

	// Создаем репозитории
	repos := repository.NewRepositories(db)

	// Создаем сервисы
	services := service.NewServices(repos, natsClient, paymentClient, cfg.VerifyTimeout)

	// Создаем роутер
	router := gin.New()

	// Применяем middleware
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())
	router.Use(metrics.Middleware())

	// Создаем сервер
	server := &Server{
		router:   router,
		config:   cfg,
		db:       db,
		nats:     natsClient,
		valkey:   valkeyClient,
		services: services,
		repos:    repos,
	}

	// Настраиваем роуты
	server.setupRoutes()

	return server
}

// setupRoutes настраивает все API роуты
func (s *Server) setupRoutes() {
	h := handlers.NewHandlers(s.services)

	// API routes
	api := s.router.Group("/api")
	// Обязательная Basic Auth для всех API роутов
	api.Use(middleware.BasicAuth(s.repos.Users, s.valkey))
	{
		// Events endpoints
		events := api.Group("/events")
		{
			events.POST("/:id/register", h.Register)
			events.DELETE("/:id/register", h.Unregister)
			events.GET("/:id/registrations", h.EventRegistrations)
			events.POST("/:id/audit", h.AuditEvent)
		}

		// Registrations endpoints
		registrations := api.Group("/registrations")
		{
			registrations.GET("/my", h.MyRegistrations)
		}

		// Payments endpoints
		payments := api.Group("/payments")
		{
			payments.POST("/order", h.CreateOrder)
			payments.POST("/verify", h.VerifyPayment)
			payments.GET("/history", h.PaymentHistory)
			payments.DELETE("/:registrationId", h.CancelPendingPayment)
		}
	}

	// Gateway callbacks authenticate by signature, not Basic Auth
	s.router.POST("/webhooks/payment", h.PaymentWebhook)

	// Health check endpoint
	s.router.GET("/health", s.healthCheck)

	// Prometheus metrics
	s.router.GET("/metrics", metrics.Handler())
}

// healthCheck обрабатывает health check запросы
func (s *Server) healthCheck(c *gin.Context) {
	dbHealth := s.db.HealthCheck(c.Request.Context())

	status := http.StatusOK
	if dbHealth.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":   dbHealth.Status,
		"service":  "attendly-api",
		"version":  "1.0.0",
		"database": dbHealth,
	})
}

// Run запускает HTTP сервер
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%s", s.config.Port)
	return s.router.Run(addr)
}

// GetRouter возвращает роутер для тестирования
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Cleanup закрывает соединения
func (s *Server) Cleanup() error {
	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			log.Printf("Error closing NATS connection: %v", err)
		}
	}

	if s.valkey != nil {
		if err := s.valkey.Close(); err != nil {
			log.Printf("Error closing Valkey connection: %v", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			log.Printf("Error closing database connection: %v", err)
			return err
		}
	}

	return nil
}
