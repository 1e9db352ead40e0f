package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"taskagent/internal/model/auth"
	"taskagent/internal/model/chat"
	"taskagent/internal/model/task"
)

// EnsureIndexes 创建所有模型的索引
// 在应用启动时调用，模型通过 Model 接口声明自己的索引
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	models := []Model{
		&chat.Conversation{},
		&chat.Message{},
		&task.Task{},
		&auth.User{},
	}
	return EnsureAllIndexes(ctx, db, models...)
}
