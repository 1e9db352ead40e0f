package chat

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"taskagent/internal/model/chat"
	"taskagent/internal/repository"
)

// ConversationRepo MongoDB 对话仓库
type ConversationRepo struct {
	coll *mongo.Collection
}

var _ ConversationRepository = (*ConversationRepo)(nil)

// NewConversationRepo 创建对话仓库
func NewConversationRepo(db *mongo.Database) *ConversationRepo {
	var c chat.Conversation
	return &ConversationRepo{coll: db.Collection(c.Collection())}
}

// Create 创建对话
func (r *ConversationRepo) Create(ctx context.Context, conv *chat.Conversation) error {
	now := time.Now()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	conv.UpdatedAt = conv.CreatedAt
	_, err := r.coll.InsertOne(ctx, conv)
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrDuplicate
	}
	return err
}

// FindByID 根据ID查询
func (r *ConversationRepo) FindByID(ctx context.Context, id string) (*chat.Conversation, error) {
	var conv chat.Conversation
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&conv); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &conv, nil
}

// SetTitleIfEmpty 条件更新，保证标题只写一次
func (r *ConversationRepo) SetTitleIfEmpty(ctx context.Context, id, title string) (bool, error) {
	filter := bson.M{
		"_id": id,
		"$or": bson.A{
			bson.M{"title": bson.M{"$exists": false}},
			bson.M{"title": ""},
		},
	}
	update := bson.M{"$set": bson.M{"title": title, "updated_at": time.Now()}}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// Touch 更新 updated_at
func (r *ConversationRepo) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"updated_at": at}})
	return err
}

// ListByUser 查询用户对话列表
func (r *ConversationRepo) ListByUser(ctx context.Context, userID string, limit, offset int64) ([]*chat.Conversation, error) {
	opts := options.Find().
		SetSort(bson.D{bson.E{Key: "updated_at", Value: -1}}).
		SetLimit(limit).
		SetSkip(offset)

	cursor, err := r.coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	convs := make([]*chat.Conversation, 0)
	if err := cursor.All(ctx, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// MessageRepo MongoDB 消息仓库
type MessageRepo struct {
	coll *mongo.Collection
}

var _ MessageRepository = (*MessageRepo)(nil)

// NewMessageRepo 创建消息仓库
func NewMessageRepo(db *mongo.Database) *MessageRepo {
	var m chat.Message
	return &MessageRepo{coll: db.Collection(m.Collection())}
}

// Append 追加消息，_id 使用 ObjectID 十六进制，天然按插入顺序递增
func (r *MessageRepo) Append(ctx context.Context, msg *chat.Message) error {
	if msg.ID == "" {
		msg.ID = primitive.NewObjectID().Hex()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	_, err := r.coll.InsertOne(ctx, msg)
	return err
}

// FindRecent 最近 limit 条，时间倒序
func (r *MessageRepo) FindRecent(ctx context.Context, conversationID string, limit int64) ([]*chat.Message, error) {
	opts := options.Find().
		SetSort(bson.D{bson.E{Key: "timestamp", Value: -1}, bson.E{Key: "_id", Value: -1}}).
		SetLimit(limit)
	return r.find(ctx, conversationID, opts)
}

// ListByConversation 时间正序分页
func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID string, limit, offset int64) ([]*chat.Message, error) {
	opts := options.Find().
		SetSort(bson.D{bson.E{Key: "timestamp", Value: 1}, bson.E{Key: "_id", Value: 1}}).
		SetLimit(limit).
		SetSkip(offset)
	return r.find(ctx, conversationID, opts)
}

// Count 对话消息数
func (r *MessageRepo) Count(ctx context.Context, conversationID string) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{"conversation_id": conversationID})
}

func (r *MessageRepo) find(ctx context.Context, conversationID string, opts *options.FindOptions) ([]*chat.Message, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	msgs := make([]*chat.Message, 0)
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}
