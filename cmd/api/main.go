package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/yourusername/quiznight-api/internal/config"
	"github.com/yourusername/quiznight-api/internal/handler"
	"github.com/yourusername/quiznight-api/internal/middleware"
	pgRepo "github.com/yourusername/quiznight-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/quiznight-api/internal/repository/redis"
	"github.com/yourusername/quiznight-api/internal/service"
	"github.com/yourusername/quiznight-api/internal/service/sessionengine"
	ws "github.com/yourusername/quiznight-api/internal/websocket"
	"github.com/yourusername/quiznight-api/pkg/auth"
	"github.com/yourusername/quiznight-api/pkg/database"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	// Применяем миграции
	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к Redis с использованием унифицированной конфигурации
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Инициализируем репозитории
	questionRepo := pgRepo.NewQuestionRepo(db)
	questionSetRepo := pgRepo.NewQuestionSetRepo(db)
	sessionRepo := pgRepo.NewSessionRepo(db)
	resultRepo := pgRepo.NewResultRepo(db)

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}

	// Сервис WS-тикетов
	jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.WSTicketExpirySec)
	if err != nil {
		log.Printf("Failed to initialize JWTService: %v", err)
		os.Exit(1)
	}

	// --- Инициализация WebSocket-шлюза ---
	wsHub := ws.NewHub(cfg.WebSocket, cacheRepo)
	go wsHub.Run()

	// Кластерная ретрансляция рассылок через Redis Pub/Sub (по конфигурации)
	var pubSubProvider ws.PubSubProvider
	var relay *ws.ClusterRelay
	if cfg.WebSocket.Cluster.Enabled {
		log.Println("Инициализация Redis PubSub для кластеризации WebSocket...")
		redisProvider, errProv := ws.NewRedisPubSub(redisClient)
		if errProv != nil {
			log.Printf("Ошибка при создании Redis PubSub провайдера: %v. Кластеризация WS будет неактивна.", errProv)
		} else {
			pubSubProvider = redisProvider
			relay = ws.NewClusterRelay(wsHub, redisProvider, cfg.WebSocket.Cluster)
			if err := relay.Start(); err != nil {
				log.Printf("Ошибка запуска кластерного ретранслятора: %v. Кластеризация WS будет неактивна.", err)
				relay = nil
			} else {
				log.Printf("Кластерный ретранслятор запущен: instance=%s", relay.InstanceID())
			}
		}
	}

	wsManager := ws.NewManager(wsHub)

	// Инициализируем сервисы
	engineConfig := &sessionengine.Config{
		AnswerWindowSec: cfg.Engine.AnswerWindowSec,
		MaxParticipants: cfg.Engine.MaxParticipants,
		CommandBuffer:   cfg.Engine.CommandBuffer,
	}
	questionSetService := service.NewQuestionSetService(questionSetRepo, questionRepo)
	sessionEngine := service.NewSessionEngine(engineConfig, questionSetRepo, sessionRepo, resultRepo, cacheRepo, wsManager)

	// Инициализируем обработчики
	sessionHandler := handler.NewSessionHandler(sessionEngine, questionSetService)
	ticketHandler := handler.NewTicketHandler(jwtService)
	wsHandler := handler.NewWSHandler(wsHub, wsManager, sessionEngine, jwtService, cfg.Server.AllowedOrigins)

	// Инициализируем middleware
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Инициализируем роутер Gin
	router := gin.Default()

	// Настройка доверенных прокси для корректной работы c.ClientIP()
	// В production (GIN_MODE=release): не доверяем прокси (защита от IP spoofing)
	// В development: доверяем localhost
	// При деплое на VM с load balancer: добавьте IP балансировщика в список
	isProduction := gin.Mode() == gin.ReleaseMode
	if isProduction {
		// Production: не доверять прокси-заголовкам
		// Если используете load balancer, замените nil на []string{"IP_БАЛАНСИРОВЩИКА"}
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		// Development: доверяем localhost
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	// Настройка CORS (список origin общий с WebSocket-шлюзом)
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Настраиваем маршруты API
	api := router.Group("/api")
	{
		// Выпуск WS-тикетов (с защитой от злоупотреблений)
		api.POST("/ws-ticket", rateLimiter.Limit(middleware.DefaultTicketRateLimitConfig()), ticketHandler.IssueTicket)

		// Наборы вопросов
		questionSets := api.Group("/question-sets")
		{
			questionSets.GET("", sessionHandler.ListQuestionSets)
			questionSets.POST("", sessionHandler.CreateQuestionSet)

			// Группа маршрутов, требующих ID набора
			setWithID := questionSets.Group("/:id")
			setWithID.Use(middleware.UintParam("id", "setID"))
			{
				setWithID.GET("", sessionHandler.GetQuestionSet)
				setWithID.DELETE("", sessionHandler.DeleteQuestionSet)
			}
		}

		// Сессии
		sessions := api.Group("/sessions")
		{
			sessions.POST("", sessionHandler.CreateSession)
			sessions.GET("/:id", sessionHandler.GetSession)
			sessions.GET("/:id/results", sessionHandler.GetSessionResults)
			sessions.GET("/:id/results/export", sessionHandler.ExportSessionResults)
		}
	}

	// WebSocket маршрут
	router.GET("/ws", wsHandler.HandleConnection)

	// Метрики и health-check WebSocket-подсистемы
	router.GET("/ws/metrics", gin.WrapF(ws.MetricsHandler(wsHub)))
	router.GET("/ws/metrics/prometheus", gin.WrapF(ws.PrometheusHandler(wsHub)))
	router.GET("/ws/health", gin.WrapF(ws.HealthHandler(wsHub)))

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Server started on port %s", cfg.Server.Port)

	// После получения сигнала SIGINT или SIGTERM вызываем cancel() для завершения горутин
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Останавливаем живые сессии
	sessionEngine.Shutdown()

	// Останавливаем кластерную ретрансляцию и хаб
	if relay != nil {
		relay.Stop()
	}
	if pubSubProvider != nil {
		if err := pubSubProvider.Close(); err != nil {
			log.Printf("Error closing PubSub provider: %v", err)
		}
	}
	wsHub.Close()

	// Создаем контекст с таймаутом для graceful shutdown сервера
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited properly")
}
