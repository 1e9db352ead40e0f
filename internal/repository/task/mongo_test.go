package task

import (
	"context"
	"os"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"taskagent/internal/config"
	"taskagent/internal/model/task"
	"taskagent/internal/pkg/mongodb"
	"taskagent/internal/repository"
)

func testDatabase(t *testing.T) *mongo.Database {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}

	client, err := mongodb.New(&config.MongoConfig{
		URI:      uri,
		Database: "taskagent_test_" + primitive.NewObjectID().Hex(),
	})
	if err != nil {
		t.Fatalf("connect mongo: %v", err)
	}
	db := client.Database()
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Close(context.Background())
	})
	return db
}

func TestMongoRepo(t *testing.T) {
	db := testDatabase(t)
	ctx := context.Background()

	Convey("Mongo 任务仓库按用户隔离并按状态过滤", t, func() {
		r := NewRepo(db)
		// created_at 精度为毫秒，间隔写入保证顺序确定
		for _, tk := range []*task.Task{
			{ID: "t1", UserID: "u1", Title: "a", Status: task.StatusPending},
			{ID: "t2", UserID: "u1", Title: "b", Status: task.StatusCompleted},
			{ID: "t3", UserID: "u2", Title: "c", Status: task.StatusPending},
		} {
			So(r.Create(ctx, tk), ShouldBeNil)
			time.Sleep(5 * time.Millisecond)
		}
		So(r.Create(ctx, &task.Task{ID: "t1", UserID: "u1", Title: "dup"}), ShouldEqual, repository.ErrDuplicate)

		_, err := r.FindByID(ctx, "t3", "u1")
		So(err, ShouldEqual, repository.ErrNotFound)

		all, err := r.List(ctx, "u1", task.FilterAll)
		So(err, ShouldBeNil)
		So(len(all), ShouldEqual, 2)
		So(all[0].ID, ShouldEqual, "t1")

		pending, _ := r.List(ctx, "u1", task.FilterPending)
		So(len(pending), ShouldEqual, 1)
		So(pending[0].ID, ShouldEqual, "t1")

		completed, _ := r.List(ctx, "u1", task.FilterCompleted)
		So(len(completed), ShouldEqual, 1)
		So(completed[0].ID, ShouldEqual, "t2")

		t1, _ := r.FindByID(ctx, "t1", "u1")
		t1.Status = task.StatusCompleted
		So(r.Update(ctx, t1), ShouldBeNil)
		completed, _ = r.List(ctx, "u1", task.FilterCompleted)
		So(len(completed), ShouldEqual, 2)

		So(r.Update(ctx, &task.Task{ID: "t3", UserID: "u1", Title: "x"}), ShouldEqual, repository.ErrNotFound)
		So(r.Delete(ctx, "t3", "u1"), ShouldEqual, repository.ErrNotFound)

		So(r.Delete(ctx, "t1", "u1"), ShouldBeNil)
		all, _ = r.List(ctx, "u1", "")
		So(len(all), ShouldEqual, 1)
		So(all[0].ID, ShouldEqual, "t2")
	})
}
