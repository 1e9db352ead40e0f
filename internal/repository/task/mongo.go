package task

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"taskagent/internal/model/task"
	"taskagent/internal/repository"
)

// Repo MongoDB 任务仓库
type Repo struct {
	coll *mongo.Collection
}

var _ TaskRepository = (*Repo)(nil)

// NewRepo 创建任务仓库
func NewRepo(db *mongo.Database) *Repo {
	var t task.Task
	return &Repo{coll: db.Collection(t.Collection())}
}

// Create 创建任务
func (r *Repo) Create(ctx context.Context, t *task.Task) error {
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	_, err := r.coll.InsertOne(ctx, t)
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrDuplicate
	}
	return err
}

// FindByID 根据ID和用户ID查询（确保归属）
func (r *Repo) FindByID(ctx context.Context, id, userID string) (*task.Task, error) {
	var t task.Task
	if err := r.coll.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&t); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Update 更新标题、描述、状态
func (r *Repo) Update(ctx context.Context, t *task.Task) error {
	t.UpdatedAt = time.Now()
	update := bson.M{"$set": bson.M{
		"title":       t.Title,
		"description": t.Description,
		"status":      t.Status,
		"updated_at":  t.UpdatedAt,
	}}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": t.ID, "user_id": t.UserID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete 删除任务
func (r *Repo) Delete(ctx context.Context, id, userID string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// List 查询用户任务
func (r *Repo) List(ctx context.Context, userID string, filter task.Filter) ([]*task.Task, error) {
	query := bson.M{"user_id": userID}
	if filter != task.FilterAll && filter != "" {
		query["status"] = string(filter)
	}
	opts := options.Find().SetSort(bson.D{bson.E{Key: "created_at", Value: 1}})

	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	tasks := make([]*task.Task, 0)
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}
