package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	"taskagent/internal/config"
	"taskagent/internal/handler"
	authHandler "taskagent/internal/handler/auth"
	chatHandler "taskagent/internal/handler/chat"
	conversationHandler "taskagent/internal/handler/conversation"
	taskHandler "taskagent/internal/handler/task"
	"taskagent/internal/pkg/cache"
	"taskagent/internal/pkg/mongodb"
	"taskagent/internal/pkg/perf"
	"taskagent/internal/pkg/ratelimit"
	"taskagent/internal/server/middleware"
)

// Server HTTP 服务器
type Server struct {
	cfg      *config.Config
	engine   *gin.Engine
	mongo    *mongodb.Client
	redis    *cache.RedisCache
	monitor  *perf.Monitor
	limiter  ratelimit.Limiter
	services *Services
}

// New 创建服务器实例
func New(cfg *config.Config) (*Server, error) {
	// 设置 Gin 模式
	switch cfg.Server.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化 MongoDB (可选)
	var mongoClient *mongodb.Client
	if cfg.Mongo.URI != "" {
		client, err := mongodb.New(&cfg.Mongo)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to MongoDB, continuing without it")
		} else {
			mongoClient = client
			log.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := mongodb.EnsureIndexes(ctx, mongoClient.Database()); err != nil {
				log.Warn().Err(err).Msg("failed to ensure indexes")
			}
			cancel()
		}
	}

	// 初始化 Redis (可选)
	var redisCache *cache.RedisCache
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, continuing without it")
		} else {
			redisCache = rc
			log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")
		}
	}

	var db *mongo.Database
	if mongoClient != nil {
		db = mongoClient.Database()
	}

	monitor := perf.New(&cfg.Perf)
	services, err := NewServices(context.Background(), cfg, db, monitor)
	if err != nil {
		monitor.Close()
		return nil, err
	}

	srv := &Server{
		cfg:      cfg,
		engine:   gin.New(),
		mongo:    mongoClient,
		redis:    redisCache,
		monitor:  monitor,
		limiter:  newLimiter(&cfg.RateLimit, redisCache),
		services: services,
	}

	// 设置路由
	srv.setupRoutes()

	return srv, nil
}

// newLimiter 配置为 redis 且 Redis 可用时使用分布式窗口，否则使用进程内窗口
func newLimiter(cfg *config.RateLimitConfig, rc *cache.RedisCache) ratelimit.Limiter {
	if cfg.Backend == "redis" {
		if rc != nil {
			log.Info().Msg("using Redis rate limiter")
			return ratelimit.NewRedisWindow(rc, cfg)
		}
		log.Warn().Msg("Redis not available, falling back to in-memory rate limiter")
	}
	return ratelimit.NewSlidingWindow(cfg)
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	// 全局中间件
	s.engine.Use(middleware.Recovery())
	s.engine.Use(middleware.RequestID())
	s.engine.Use(middleware.Logger())
	s.engine.Use(middleware.CORS())

	// 健康检查
	deps := map[string]handler.Pinger{}
	if s.mongo != nil {
		deps["mongo"] = s.mongo
	}
	if s.redis != nil {
		deps["redis"] = s.redis
	}
	healthHandler := handler.NewHealthHandler(deps)
	s.engine.GET("/health", healthHandler.Health)
	s.engine.GET("/ready", healthHandler.Ready)

	// 指标与文档
	s.engine.GET("/metrics", gin.WrapH(s.monitor.Handler()))
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	authHdl := authHandler.NewHandler(s.services.Auth)
	chatHdl := chatHandler.NewHandler(s.services.Chat)
	convHdl := conversationHandler.NewHandler(s.services.Conversations)
	taskHdl := taskHandler.NewHandler(s.services.Tasks)
	statsHdl := handler.NewStatsHandler(s.monitor)

	// API v1
	v1 := s.engine.Group("/api/v1")
	{
		v1.GET("/stats", statsHdl.Stats)

		// 认证接口（公开）
		v1.POST("/auth/register", authHdl.Register)
		v1.POST("/auth/login", authHdl.Login)
		v1.GET("/auth/me", middleware.Auth(s.services.Auth), authHdl.GetMe)

		user := v1.Group("/:user_id")
		if s.cfg.Auth.Enabled {
			user.Use(middleware.Auth(s.services.Auth))
		} else {
			log.Warn().Msg("auth disabled, user routes are not protected")
		}
		{
			user.POST("/chat", middleware.RateLimit(s.limiter, s.monitor), chatHdl.Chat)

			user.GET("/conversations", convHdl.ListConversations)
			user.GET("/conversations/:conversation_id/messages", convHdl.ListMessages)

			user.GET("/tasks", taskHdl.ListTasks)
			user.POST("/tasks", taskHdl.CreateTask)
			user.GET("/tasks/:task_id", taskHdl.GetTask)
			user.PUT("/tasks/:task_id", taskHdl.UpdateTask)
			user.DELETE("/tasks/:task_id", taskHdl.DeleteTask)
		}
	}
}

// Run 启动服务器
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	// 进程内限流器定期清理空闲 key
	if sw, ok := s.limiter.(*ratelimit.SlidingWindow); ok {
		go sw.Run(ctx, s.cfg.RateLimit.SweepInterval)
	}

	// 启动服务器
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待关闭信号或错误
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.Close()
		return err
	case err := <-errCh:
		s.Close()
		return err
	}
}

// Close 释放外部连接
func (s *Server) Close() {
	if s.mongo != nil {
		if err := s.mongo.Close(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to close MongoDB connection")
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close Redis connection")
		}
	}
	s.monitor.Close()
}

// Engine 获取 Gin 引擎 (用于测试)
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
