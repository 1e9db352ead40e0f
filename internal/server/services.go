package server

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"

	"taskagent/internal/ai"
	"taskagent/internal/ai/agent"
	"taskagent/internal/ai/tool"
	"taskagent/internal/config"
	"taskagent/internal/pkg/perf"
	authRepo "taskagent/internal/repository/auth"
	chatRepo "taskagent/internal/repository/chat"
	taskRepo "taskagent/internal/repository/task"
	"taskagent/internal/service"
)

const defaultJWTSecret = "default-secret-key-change-in-production"

// Services 应用层服务集合，HTTP 服务与命令行对话共用
type Services struct {
	Conversations *service.ConversationService
	Tasks         *service.TaskService
	Auth          *service.AuthService
	Chat          *service.ChatService
	Orchestrator  *agent.Orchestrator
	Tools         *tool.Registry
	Monitor       *perf.Monitor
}

// NewServices 组装服务，db 为 nil 时使用进程内存储
func NewServices(ctx context.Context, cfg *config.Config, db *mongo.Database, monitor *perf.Monitor) (*Services, error) {
	var (
		convs chatRepo.ConversationRepository
		msgs  chatRepo.MessageRepository
		tasks taskRepo.TaskRepository
		users authRepo.UserRepository
	)
	if db != nil {
		convs = chatRepo.NewConversationRepo(db)
		msgs = chatRepo.NewMessageRepo(db)
		tasks = taskRepo.NewRepo(db)
		users = authRepo.NewUserRepo(db)
	} else {
		log.Warn().Msg("MongoDB not configured, using in-memory storage")
		convs = chatRepo.NewMemoryConversationRepo()
		msgs = chatRepo.NewMemoryMessageRepo()
		tasks = taskRepo.NewMemoryRepo()
		users = authRepo.NewMemoryUserRepo()
	}

	completer, err := ai.NewCompleter(ctx, &cfg.AI)
	if err != nil {
		return nil, fmt.Errorf("init completer: %w", err)
	}

	conversationSvc := service.NewConversationService(convs, msgs, cfg.Agent.MaxMessageLength)
	taskSvc := service.NewTaskService(tasks)

	registry := tool.NewRegistry()
	if err := service.RegisterTaskTools(registry, taskSvc); err != nil {
		return nil, fmt.Errorf("register task tools: %w", err)
	}

	orchestrator := agent.NewOrchestrator(conversationSvc, completer, registry, cfg.Agent, agent.WithMonitor(monitor))

	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = defaultJWTSecret
		if cfg.Auth.Enabled {
			log.Warn().Msg("JWT secret not configured, using default (NOT SECURE for production)")
		}
	}
	accessTokenExpiry := cfg.Auth.AccessTokenExpiry
	if accessTokenExpiry == 0 {
		accessTokenExpiry = 24 * time.Hour
	}

	return &Services{
		Conversations: conversationSvc,
		Tasks:         taskSvc,
		Auth:          service.NewAuthService(users, jwtSecret, accessTokenExpiry),
		Chat:          service.NewChatService(orchestrator, cfg.Agent.MaxMessageLength),
		Orchestrator:  orchestrator,
		Tools:         registry,
		Monitor:       monitor,
	}, nil
}
