package config

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/viper"
)

// Config хранит все настройки приложения
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Engine    EngineConfig
	WebSocket WebSocketConfig
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port         string
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`

	// AllowedOrigins - список Origin, которым разрешены CORS-запросы
	// и WebSocket-подключения из браузера
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig содержит унифицированные настройки подключения к Redis
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	// Mode: Режим работы Redis ("single", "sentinel", "cluster"). По умолчанию "single".
	Mode string `mapstructure:"mode"`

	// Addrs: Список адресов Redis (хост:порт). Используется для всех режимов.
	// Для 'single', если не пуст, используется первый адрес из списка.
	Addrs []string `mapstructure:"addrs"`

	// Addr: Альтернативный адрес для режима 'single' (для обратной совместимости).
	// Используется, если Mode="single" и Addrs пустой.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName: Имя мастер-сервера Redis (только для режима "sentinel")
	MasterName string `mapstructure:"master_name"`

	// MaxRetries: Максимальное количество попыток переподключения (-1 - бесконечно). По умолчанию 0 (без ретраев).
	MaxRetries int `mapstructure:"max_retries"`

	// MinRetryBackoff: Минимальный интервал между попытками (в миллисекундах). По умолчанию 8ms.
	MinRetryBackoff int `mapstructure:"min_retry_backoff"`

	// MaxRetryBackoff: Максимальный интервал между попытками (в миллисекундах). По умолчанию 512ms.
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"`
}

// JWTConfig содержит настройки JWT
type JWTConfig struct {
	Secret            string `mapstructure:"secret"`            // Ключ подписи WS-тикетов
	WSTicketExpirySec int    `mapstructure:"wsTicketExpirySec"` // Время жизни тикета для WebSocket в секундах
}

// EngineConfig содержит настройки движка сессий
type EngineConfig struct {
	// AnswerWindowSec: окно приёма ответов по умолчанию, если у вопроса не задан лимит
	AnswerWindowSec int `mapstructure:"answer_window_sec"`
	// MaxParticipants: максимум участников в одной сессии (0 - без лимита)
	MaxParticipants int `mapstructure:"max_participants"`
	// CommandBuffer: размер буфера канала команд сессии
	CommandBuffer int `mapstructure:"command_buffer"`
}

// WebSocketConfig содержит настройки WebSocket-шлюза
type WebSocketConfig struct {
	// ShardCount: число шардов реестра соединений
	ShardCount int `mapstructure:"shard_count"`

	// ClientSendBuffer: размер буфера исходящих сообщений клиента
	ClientSendBuffer int `mapstructure:"client_send_buffer"`

	// MaxMessageSize: максимальный размер входящего сообщения в байтах
	MaxMessageSize int `mapstructure:"max_message_size"`

	// WriteWaitSec: тайм-аут записи одного сообщения
	WriteWaitSec int `mapstructure:"write_wait_sec"`

	// PongWaitSec: дедлайн ожидания pong; интервал пингов выводится из него
	PongWaitSec int `mapstructure:"pong_wait_sec"`

	// IdleTimeoutSec: порог неактивности, после которого соединение закрывается
	IdleTimeoutSec int `mapstructure:"idle_timeout_sec"`

	// SweepIntervalSec: период обхода сборщика неактивных соединений
	SweepIntervalSec int `mapstructure:"sweep_interval_sec"`

	// MaxSendStrikes: сколько переполнений буфера подряд терпим до отключения
	MaxSendStrikes int `mapstructure:"max_send_strikes"`

	Cluster ClusterConfig `mapstructure:"cluster"`
}

// ClusterConfig содержит настройки межинстансной ретрансляции
type ClusterConfig struct {
	// Enabled включает ретрансляцию рассылок через Redis Pub/Sub
	Enabled bool `mapstructure:"enabled"`

	// InstanceID: идентификатор инстанса; пустой - сгенерировать
	InstanceID string `mapstructure:"instance_id"`

	// Channel: имя канала брокера для кадров ретрансляции
	Channel string `mapstructure:"channel"`
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// Load загружает конфигурацию из файла
func Load(configPath string) (*Config, error) {
	vip := viper.New() // Используем новый экземпляр Viper, чтобы избежать глобального состояния

	// 1. Привязываем переменные окружения ЯВНО
	// Привязка для секции Database
	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")

	// Привязка для секции Redis
	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS") // Для массива строк
	vip.BindEnv("redis.addr", "REDIS_ADDR")   // Для одиночной строки
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	// Привязка для секции JWT
	vip.BindEnv("jwt.secret", "JWT_SECRET")
	vip.BindEnv("jwt.wsTicketExpirySec", "JWT_WSTICKETEXPIRYSEC")

	// Привязка для секции Engine
	vip.BindEnv("engine.answer_window_sec", "ENGINE_ANSWER_WINDOW_SEC")
	vip.BindEnv("engine.max_participants", "ENGINE_MAX_PARTICIPANTS")
	vip.BindEnv("engine.command_buffer", "ENGINE_COMMAND_BUFFER")

	// Привязка для Server
	vip.BindEnv("server.port", "SERVER_PORT")
	vip.BindEnv("server.allowed_origins", "SERVER_ALLOWED_ORIGINS")

	// Привязка для WebSocket
	vip.BindEnv("websocket.shard_count", "WEBSOCKET_SHARD_COUNT")
	vip.BindEnv("websocket.cluster.enabled", "WEBSOCKET_CLUSTER_ENABLED")
	vip.BindEnv("websocket.cluster.instance_id", "WEBSOCKET_CLUSTER_INSTANCE_ID")
	vip.BindEnv("websocket.cluster.channel", "WEBSOCKET_CLUSTER_CHANNEL")

	// 2. Значения по умолчанию
	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.read_timeout", 15)
	vip.SetDefault("server.write_timeout", 15)
	vip.SetDefault("server.allowed_origins", []string{
		"https://quiznight.vercel.app",
		"https://quiznightadmin.vercel.app",
		"http://localhost:5173",
		"http://localhost:8000",
		"http://localhost:3000",
	})
	vip.SetDefault("engine.answer_window_sec", 30)
	vip.SetDefault("engine.command_buffer", 64)
	vip.SetDefault("websocket.shard_count", 4)
	vip.SetDefault("websocket.client_send_buffer", 128)
	vip.SetDefault("websocket.max_message_size", 4096)
	vip.SetDefault("websocket.write_wait_sec", 10)
	vip.SetDefault("websocket.pong_wait_sec", 30)
	vip.SetDefault("websocket.idle_timeout_sec", 300)
	vip.SetDefault("websocket.sweep_interval_sec", 60)
	vip.SetDefault("websocket.max_send_strikes", 3)

	// 3. Пытаемся прочитать файл конфигурации (не страшно, если его нет, т.к. есть BindEnv)
	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				log.Printf("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v", configPath, err)
			}
		}
	}

	// 4. Анмаршалим конфигурацию (Viper объединит файл, env vars и умолчания)
	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 5. Логирование конфигурации (только в debug режиме)
	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Загруженные значения конфигурации ---")
		log.Printf("Database Host: %s", cfg.Database.Host)
		log.Printf("Database Port: %s", cfg.Database.Port)
		log.Printf("Database User: %s", cfg.Database.User)
		log.Printf("Database Name: %s", cfg.Database.DBName)
		log.Printf("Database SSLMode: %s", cfg.Database.SSLMode)
		log.Printf("Redis Addr: %s", cfg.Redis.Addr)
		log.Printf("Redis Mode: %s", cfg.Redis.Mode)
		log.Printf("JWT Secret Set: %t", cfg.JWT.Secret != "")
		log.Printf("Engine Answer Window Sec: %d", cfg.Engine.AnswerWindowSec)
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("Websocket Shard Count: %d", cfg.WebSocket.ShardCount)
		log.Printf("Websocket Cluster Enabled: %t", cfg.WebSocket.Cluster.Enabled)
		log.Printf("-----------------------------------------")
	}

	// 6. Проверка обязательных параметров
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT secret is required in config (check JWT_SECRET env var)")
	}
	if cfg.Database.Host == "" || cfg.Database.DBName == "" || cfg.Database.User == "" {
		return nil, fmt.Errorf("database configuration (host, dbname, user) is incomplete in config (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	// Проверяем пароль БД вне debug-режима
	ginMode := vip.GetString("GIN_MODE")
	if ginMode != "debug" {
		if cfg.Database.Password == "" {
			return nil, fmt.Errorf("database password is required in production mode (check DATABASE_PASSWORD env var)")
		}
		isRedisConfigured := len(cfg.Redis.Addrs) > 0 || cfg.Redis.Addr != ""
		if isRedisConfigured && cfg.Redis.Password == "" {
			log.Println("Warning: Redis is configured but REDIS_PASSWORD is not set in a non-debug environment.")
		}
	}

	return &cfg, nil
}
