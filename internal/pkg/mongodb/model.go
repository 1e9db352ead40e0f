package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

// Model MongoDB 模型接口
// 需要管理索引的模型实现这个接口，由 EnsureIndexes 统一调用
type Model interface {
	Collection() string
	EnsureIndexes(ctx context.Context, db *mongo.Database) error
}

// EnsureAllIndexes 依次为模型创建索引，遇到第一个错误即返回
func EnsureAllIndexes(ctx context.Context, db *mongo.Database, models ...Model) error {
	for _, m := range models {
		if err := m.EnsureIndexes(ctx, db); err != nil {
			return err
		}
	}
	return nil
}

// CreateIndexes 批量创建索引，空列表直接返回
func CreateIndexes(ctx context.Context, coll *mongo.Collection, indexes []mongo.IndexModel) error {
	if len(indexes) == 0 {
		return nil
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}

// IsDuplicateKey 判断是否唯一索引冲突
func IsDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

// IsNoDocuments 判断是否查询无结果
func IsNoDocuments(err error) bool {
	return err == mongo.ErrNoDocuments
}
