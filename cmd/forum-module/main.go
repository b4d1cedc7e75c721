// Точка входа Forum Module — форум сообщества, привязанный к гильдии Discord.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// создаёт Discord-клиент, сервисы ролей и форума, realtime hub,
// запускает topologymetrics и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/bigkaa/goartstore/forum-module/internal/api/handlers"
	"github.com/bigkaa/goartstore/forum-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/forum-module/internal/auth"
	"github.com/bigkaa/goartstore/forum-module/internal/config"
	"github.com/bigkaa/goartstore/forum-module/internal/database"
	"github.com/bigkaa/goartstore/forum-module/internal/discord"
	"github.com/bigkaa/goartstore/forum-module/internal/realtime"
	"github.com/bigkaa/goartstore/forum-module/internal/repository"
	"github.com/bigkaa/goartstore/forum-module/internal/server"
	"github.com/bigkaa/goartstore/forum-module/internal/service"
)

func main() {
	// 0. .env для локального запуска (отсутствие файла — не ошибка)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Ошибка чтения .env", slog.String("error", err.Error()))
	}

	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Forum Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("guild_id", cfg.DiscordGuildID),
	)

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Discord REST клиент (бот + OAuth-профиль)
	discordClient := discord.New(
		cfg.DiscordAPIURL,
		cfg.DiscordBotToken,
		cfg.DiscordRateLimit,
		&http.Client{Timeout: cfg.DiscordTimeout},
		logger,
	)

	// 6. Throttle синхронизации ролей: Redis для нескольких реплик, иначе in-memory
	throttle, closeThrottle, err := newThrottle(cfg, logger)
	if err != nil {
		logger.Error("Ошибка создания throttle", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeThrottle()

	// 7. Repositories
	userRepo := repository.NewUserRepository(pool)
	userRoleRepo := repository.NewUserRoleRepository(pool)
	roleLabelRepo := repository.NewRoleLabelRepository(pool)
	accessRepo := repository.NewAdminAccessRoleRepository(pool)
	categoryRepo := repository.NewCategoryRepository(pool)
	postRepo := repository.NewPostRepository(pool)
	replyRepo := repository.NewReplyRepository(pool)

	// 8. Realtime hub
	hub := realtime.NewHub(logger)

	// 9. Services
	roleCache := service.NewRoleCache(discordClient, cfg.DiscordGuildID, cfg.RoleCacheTTL, cfg.DiscordTimeout, logger)
	roleSyncSvc := service.NewRoleSyncService(
		discordClient, userRoleRepo, throttle,
		cfg.DiscordGuildID, cfg.DiscordTimeout,
		logger,
	)
	badgeSvc := service.NewBadgeService(userRoleRepo, roleLabelRepo, roleCache, logger)
	accessSvc := service.NewAdminAccessService(accessRepo, logger)
	roleLabelSvc := service.NewRoleLabelService(roleLabelRepo, logger)
	userSvc := service.NewUserService(userRepo, logger)
	forumSvc := service.NewForumService(categoryRepo, postRepo, replyRepo, hub, cfg.PostCooldown, logger)

	// 10. Начальная загрузка ролей гильдии
	if err := roleCache.Refresh(ctx); err != nil {
		logger.Warn("Роли гильдии не загружены при старте, бейджи без имён Discord",
			slog.String("error", err.Error()),
		)
	}

	// 11. Сессии и OAuth2
	sessionMgr, err := auth.NewSessionManager(cfg.SessionSecret, cfg.SecureCookies())
	if err != nil {
		logger.Error("Ошибка создания Session Manager", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.SessionSecret == "" {
		logger.Warn("FM_SESSION_SECRET не задан, сессии не сохраняются между рестартами")
	}
	oauth, err := auth.NewDiscordOAuth(
		cfg.DiscordClientID,
		cfg.DiscordClientSecret,
		cfg.DiscordCallbackURL,
		cfg.DiscordAPIURL,
		sessionMgr.Key(),
		sessionMgr.Secure(),
	)
	if err != nil {
		logger.Error("Ошибка настройки Discord OAuth2", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 12. Handlers
	pgChecker := database.NewReadinessChecker(pool)
	h := server.Handlers{
		Health:   handlers.NewHealthHandler(pgChecker, roleCache),
		Auth:     handlers.NewAuthHandler(oauth, discordClient, userSvc, roleSyncSvc, sessionMgr, logger),
		Forum:    handlers.NewForumHandler(forumSvc, badgeSvc, logger),
		Admin:    handlers.NewAdminHandler(userSvc, accessSvc, roleLabelSvc, badgeSvc, logger),
		Identity: middleware.NewIdentity(sessionMgr, roleSyncSvc, badgeSvc, accessSvc, logger),
		Realtime: realtime.NewHandler(hub, cfg.WSSendBuffer, logger),
	}

	// 13. topologymetrics — мониторинг зависимостей (PostgreSQL + Discord API)
	dephealthSvc := startDephealth(ctx, cfg, pgDB, logger)

	// 14. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, h)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 15. Остановка фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Forum Module остановлен")
}

// newThrottle выбирает реализацию throttle по FM_REDIS_ADDR.
// Возвращает функцию освобождения ресурсов.
func newThrottle(cfg *config.Config, logger *slog.Logger) (service.SyncThrottle, func(), error) {
	if cfg.RedisAddr == "" {
		t, err := service.NewMemoryThrottle(cfg.RoleSyncThrottle, cfg.ThrottleMaxUsers)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Throttle синхронизации ролей: in-memory",
			slog.Int("max_users", cfg.ThrottleMaxUsers),
		)
		return t, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	logger.Info("Throttle синхронизации ролей: Redis", slog.String("addr", cfg.RedisAddr))
	return service.NewRedisThrottle(client, cfg.RoleSyncThrottle, logger), func() {
		if err := client.Close(); err != nil {
			logger.Warn("Ошибка закрытия Redis-клиента", slog.String("error", err.Error()))
		}
	}, nil
}

// startDephealth запускает topologymetrics. Ошибка не фатальна:
// сервис работает без мониторинга зависимостей.
func startDephealth(ctx context.Context, cfg *config.Config, pgDB *sql.DB, logger *slog.Logger) *service.DephealthService {
	svc, err := service.NewDephealthService(
		"forum-module",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.DiscordAPIURL,
		cfg.DephealthCheckInterval,
		logger,
	)
	if err != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
		return nil
	}
	if err := svc.Start(ctx); err != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
		return nil
	}
	logger.Info("topologymetrics запущен",
		slog.String("group", cfg.DephealthGroup),
		slog.String("check_interval", cfg.DephealthCheckInterval.String()),
	)
	return svc
}
