package task

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Task 任务实体
type Task struct {
	ID          string    `bson:"_id" json:"task_id"` // UUID
	UserID      string    `bson:"user_id" json:"user_id"`
	Title       string    `bson:"title" json:"title"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	Status      Status    `bson:"status" json:"status"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

// Collection 返回集合名称
func (t *Task) Collection() string {
	return "tasks"
}

// EnsureIndexes 创建和维护索引
func (t *Task) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(t.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "user_id", Value: 1}, bson.E{Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_user_status"),
		},
		{
			Keys:    bson.D{bson.E{Key: "user_id", Value: 1}, bson.E{Key: "created_at", Value: 1}},
			Options: options.Index().SetName("idx_user_created"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}

// Status 任务状态
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// ParseStatus 解析任务状态，大小写不敏感
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, nil
	case StatusCompleted:
		return StatusCompleted, nil
	}
	return "", fmt.Errorf("invalid task status %q, must be pending or completed", s)
}

// Filter 列表过滤条件，all 表示不过滤
type Filter string

const (
	FilterPending   Filter = "pending"
	FilterCompleted Filter = "completed"
	FilterAll       Filter = "all"
)

// ParseFilter 解析过滤条件，空字符串视为 all
func ParseFilter(s string) (Filter, error) {
	switch Filter(strings.ToLower(strings.TrimSpace(s))) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterPending:
		return FilterPending, nil
	case FilterCompleted:
		return FilterCompleted, nil
	}
	return "", fmt.Errorf("invalid status filter %q, must be pending, completed or all", s)
}

// Matches 判断任务状态是否满足过滤条件
func (f Filter) Matches(s Status) bool {
	return f == FilterAll || Status(f) == s
}
