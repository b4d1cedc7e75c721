// Пакет config — загрузка и валидация конфигурации Forum Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Forum Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Discord ---

	// Токен бота для чтения ролей гильдии
	DiscordBotToken string
	// ID гильдии, к которой привязан форум
	DiscordGuildID string
	// OAuth2 client credentials для входа пользователей
	DiscordClientID     string
	DiscordClientSecret string
	// Callback URL, зарегистрированный в Discord Developer Portal
	DiscordCallbackURL string
	// Базовый URL Discord REST API
	DiscordAPIURL string
	// Таймаут одного запроса к Discord API
	DiscordTimeout time.Duration
	// Ограничение исходящих запросов к Discord (запросов в секунду)
	DiscordRateLimit float64

	// --- Роли и бейджи ---

	// Минимальный интервал между синхронизациями ролей одного пользователя
	RoleSyncThrottle time.Duration
	// Время жизни кэша имён ролей гильдии
	RoleCacheTTL time.Duration
	// Максимум пользователей в in-memory throttle
	ThrottleMaxUsers int

	// --- Redis (опционально, общий throttle для нескольких реплик) ---

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// --- Сессии и форум ---

	// Ключ шифрования cookie-сессий (пустой — случайный ключ на время жизни процесса)
	SessionSecret string
	// Минимальный интервал между постами/ответами одного пользователя (0 — без ограничения)
	PostCooldown time.Duration
	// Размер очереди исходящих событий websocket-соединения
	WSSendBuffer int

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// FM_PORT — порт HTTP-сервера (по умолчанию 3000)
	cfg.Port, err = getEnvInt("FM_PORT", 3000)
	if err != nil {
		return nil, fmt.Errorf("FM_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("FM_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("FM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("FM_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("FM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("FM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	if cfg.DBHost, err = getEnvRequired("FM_DB_HOST"); err != nil {
		return nil, err
	}
	cfg.DBPort, err = getEnvInt("FM_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("FM_DB_PORT: %w", err)
	}
	if cfg.DBName, err = getEnvRequired("FM_DB_NAME"); err != nil {
		return nil, err
	}
	if cfg.DBUser, err = getEnvRequired("FM_DB_USER"); err != nil {
		return nil, err
	}
	if cfg.DBPassword, err = getEnvRequired("FM_DB_PASSWORD"); err != nil {
		return nil, err
	}
	cfg.DBSSLMode = getEnvDefault("FM_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("FM_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Discord ---

	if cfg.DiscordBotToken, err = getEnvRequired("FM_DISCORD_BOT_TOKEN"); err != nil {
		return nil, err
	}
	if cfg.DiscordGuildID, err = getEnvRequired("FM_DISCORD_GUILD_ID"); err != nil {
		return nil, err
	}
	if cfg.DiscordClientID, err = getEnvRequired("FM_DISCORD_CLIENT_ID"); err != nil {
		return nil, err
	}
	if cfg.DiscordClientSecret, err = getEnvRequired("FM_DISCORD_CLIENT_SECRET"); err != nil {
		return nil, err
	}
	if cfg.DiscordCallbackURL, err = getEnvRequired("FM_DISCORD_CALLBACK_URL"); err != nil {
		return nil, err
	}
	cfg.DiscordAPIURL = strings.TrimRight(getEnvDefault("FM_DISCORD_API_URL", "https://discord.com/api/v10"), "/")

	cfg.DiscordTimeout, err = getEnvDuration("FM_DISCORD_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FM_DISCORD_TIMEOUT: %w", err)
	}
	cfg.DiscordRateLimit, err = getEnvFloat("FM_DISCORD_RATE_LIMIT", 5)
	if err != nil {
		return nil, fmt.Errorf("FM_DISCORD_RATE_LIMIT: %w", err)
	}
	if cfg.DiscordRateLimit <= 0 {
		return nil, fmt.Errorf("FM_DISCORD_RATE_LIMIT: значение должно быть больше 0")
	}

	// --- Роли и бейджи ---

	// FM_ROLE_SYNC_THROTTLE — окно throttle синхронизации ролей (по умолчанию 10s)
	cfg.RoleSyncThrottle, err = getEnvDuration("FM_ROLE_SYNC_THROTTLE", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FM_ROLE_SYNC_THROTTLE: %w", err)
	}
	// FM_ROLE_CACHE_TTL — свежесть кэша ролей гильдии (по умолчанию 5m)
	cfg.RoleCacheTTL, err = getEnvDuration("FM_ROLE_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("FM_ROLE_CACHE_TTL: %w", err)
	}
	cfg.ThrottleMaxUsers, err = getEnvInt("FM_THROTTLE_MAX_USERS", 10000)
	if err != nil {
		return nil, fmt.Errorf("FM_THROTTLE_MAX_USERS: %w", err)
	}
	if cfg.ThrottleMaxUsers < 1 {
		return nil, fmt.Errorf("FM_THROTTLE_MAX_USERS: значение %d должно быть больше 0", cfg.ThrottleMaxUsers)
	}

	// --- Redis ---

	cfg.RedisAddr = getEnvDefault("FM_REDIS_ADDR", "")
	cfg.RedisPassword = getEnvDefault("FM_REDIS_PASSWORD", "")
	cfg.RedisDB, err = getEnvInt("FM_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("FM_REDIS_DB: %w", err)
	}

	// --- Сессии и форум ---

	cfg.SessionSecret = getEnvDefault("FM_SESSION_SECRET", "")
	cfg.PostCooldown, err = getEnvDuration("FM_POST_COOLDOWN", 0)
	if err != nil {
		return nil, fmt.Errorf("FM_POST_COOLDOWN: %w", err)
	}
	if cfg.PostCooldown < 0 {
		return nil, fmt.Errorf("FM_POST_COOLDOWN: отрицательное значение %v", cfg.PostCooldown)
	}
	cfg.WSSendBuffer, err = getEnvInt("FM_WS_SEND_BUFFER", 32)
	if err != nil {
		return nil, fmt.Errorf("FM_WS_SEND_BUFFER: %w", err)
	}
	if cfg.WSSendBuffer < 1 || cfg.WSSendBuffer > 4096 {
		return nil, fmt.Errorf("FM_WS_SEND_BUFFER: значение %d вне допустимого диапазона 1-4096", cfg.WSSendBuffer)
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("FM_DEPHEALTH_GROUP", "forum")
	cfg.DephealthCheckInterval, err = getEnvDuration("FM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("FM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FM_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения к PostgreSQL (для метрик topologymetrics).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// SecureCookies — выставлять ли Secure для cookie (callback по https).
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.DiscordCallbackURL, "https://")
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное число: %q", val)
	}
	return f, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
