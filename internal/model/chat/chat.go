package chat

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Conversation 对话实体
// 只通过追加消息和设置标题两种方式修改，编排器从不删除对话
type Conversation struct {
	ID        string    `bson:"_id" json:"id"`                          // UUID
	UserID    string    `bson:"user_id" json:"user_id"`                 // 所属用户
	Title     string    `bson:"title,omitempty" json:"title,omitempty"` // 首轮对话后设置一次
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// OwnedBy 判断对话是否属于该用户
func (c *Conversation) OwnedBy(userID string) bool {
	return c != nil && c.UserID == userID
}

// Collection 返回集合名称
func (c *Conversation) Collection() string {
	return "conversations"
}

// EnsureIndexes 创建和维护索引
func (c *Conversation) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(c.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "user_id", Value: 1}, bson.E{Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("idx_user_updated"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}

// Role 消息角色
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// IsValid 检查角色是否有效
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant || r == RoleTool
}

// Message 消息实体，对话内只追加不修改
// 排序键为 timestamp 升序，同一时间戳按插入顺序（_id 为 ObjectID，单调递增）
type Message struct {
	ID             string    `bson:"_id" json:"id"`
	ConversationID string    `bson:"conversation_id" json:"conversation_id"`
	Role           Role      `bson:"role" json:"role"`
	Content        string    `bson:"content" json:"content"`
	ToolCallID     string    `bson:"tool_call_id,omitempty" json:"tool_call_id,omitempty"` // role=tool 时对应模型返回的调用ID
	ToolName       string    `bson:"tool_name,omitempty" json:"tool_name,omitempty"`
	Timestamp      time.Time `bson:"timestamp" json:"timestamp"`
}

// Collection 返回集合名称
func (m *Message) Collection() string {
	return "messages"
}

// EnsureIndexes 创建和维护索引
// 最近 N 条查询按 (conversation_id, timestamp desc, _id desc) 走索引
func (m *Message) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(m.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				bson.E{Key: "conversation_id", Value: 1},
				bson.E{Key: "timestamp", Value: -1},
				bson.E{Key: "_id", Value: -1},
			},
			Options: options.Index().SetName("idx_conversation_timestamp"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}
