package auth

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// User 用户实体
// ID使用UUID格式（string），同时作为对话与任务接口路径中的 user_id
type User struct {
	ID          string     `bson:"_id,omitempty" json:"id"`
	Username    string     `bson:"username" json:"username"` // 唯一
	Password    string     `bson:"password" json:"-"`        // bcrypt 哈希，不返回
	Status      UserStatus `bson:"status" json:"status"`
	LastLoginAt *time.Time `bson:"last_login_at,omitempty" json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
}

// UserStatus 用户状态
type UserStatus string

const (
	UserStatusActive UserStatus = "active"
	UserStatusBanned UserStatus = "banned"
)

// IsActive 是否可登录
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// Collection 返回集合名称
func (u *User) Collection() string {
	return "users"
}

// EnsureIndexes 创建和维护索引
func (u *User) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(u.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "username", Value: 1}},
			Options: options.Index().SetName("idx_username").SetUnique(true),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}
