package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"taskagent/internal/config"
)

const (
	appName        = "taskagent"
	connectTimeout = 10 * time.Second
)

// Client 持有连接与业务库，会话、消息、任务、用户四个集合都在同一个库中
type Client struct {
	client   *mongo.Client
	database *mongo.Database
}

// New 连接 MongoDB 并确认主节点可达，失败时释放已建立的连接
func New(cfg *config.MongoConfig) (*Client, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo uri is empty")
	}
	if cfg.Database == "" {
		return nil, errors.New("mongo database is empty")
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetAppName(appName).
		SetConnectTimeout(connectTimeout).
		SetServerSelectionTimeout(connectTimeout)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if cfg.MinPoolSize > 0 {
		opts.SetMinPoolSize(cfg.MinPoolSize)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &Client{
		client:   client,
		database: client.Database(cfg.Database),
	}, nil
}

// Database 业务库，仓储层据此获取集合
func (c *Client) Database() *mongo.Database {
	return c.database
}

// Ping 就绪检查
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// Close 断开连接
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}
