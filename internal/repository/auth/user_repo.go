package auth

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"taskagent/internal/model/auth"
	"taskagent/internal/repository"
)

// UserRepository 用户仓库接口
type UserRepository interface {
	Create(ctx context.Context, user *auth.User) error
	FindByID(ctx context.Context, id string) (*auth.User, error)
	FindByUsername(ctx context.Context, username string) (*auth.User, error)
	UpdateLastLoginAt(ctx context.Context, id string) error
}

// UserRepo MongoDB 用户仓库
// 使用UUID作为ID，无需ObjectID转换
type UserRepo struct {
	collection *mongo.Collection
}

var _ UserRepository = (*UserRepo)(nil)

// NewUserRepo 创建用户仓库
func NewUserRepo(db *mongo.Database) *UserRepo {
	var u auth.User
	return &UserRepo{collection: db.Collection(u.Collection())}
}

// Create 创建用户，用户名冲突返回 ErrDuplicate
func (r *UserRepo) Create(ctx context.Context, user *auth.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrDuplicate
	}
	return err
}

// FindByID 根据ID查询用户
func (r *UserRepo) FindByID(ctx context.Context, id string) (*auth.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// FindByUsername 根据用户名查询用户
func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *UserRepo) findOne(ctx context.Context, filter bson.M) (*auth.User, error) {
	var user auth.User
	if err := r.collection.FindOne(ctx, filter).Decode(&user); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpdateLastLoginAt 更新最后登录时间
func (r *UserRepo) UpdateLastLoginAt(ctx context.Context, id string) error {
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"last_login_at": now,
			"updated_at":    now,
		},
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

// MemoryUserRepo 进程内用户仓库
type MemoryUserRepo struct {
	mu    sync.RWMutex
	users map[string]*auth.User
}

var _ UserRepository = (*MemoryUserRepo)(nil)

// NewMemoryUserRepo 创建进程内用户仓库
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{users: make(map[string]*auth.User)}
}

// Create 创建用户
func (r *MemoryUserRepo) Create(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			return repository.ErrDuplicate
		}
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

// FindByID 根据ID查询用户
func (r *MemoryUserRepo) FindByID(_ context.Context, id string) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// FindByUsername 根据用户名查询用户
func (r *MemoryUserRepo) FindByUsername(_ context.Context, username string) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

// UpdateLastLoginAt 更新最后登录时间
func (r *MemoryUserRepo) UpdateLastLoginAt(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		now := time.Now()
		u.LastLoginAt = &now
		u.UpdatedAt = now
	}
	return nil
}
