package chat

import (
	"context"
	"os"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"taskagent/internal/config"
	"taskagent/internal/model/chat"
	"taskagent/internal/pkg/mongodb"
	"taskagent/internal/repository"
)

// testDatabase 每个用例使用独立的库，结束后删除
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
	if err := mongodb.EnsureIndexes(context.Background(), db); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Close(context.Background())
	})
	return db
}

func TestMongoMessageRepo(t *testing.T) {
	db := testDatabase(t)
	ctx := context.Background()

	Convey("Mongo 消息按时间排序，同时间戳按插入顺序", t, func() {
		r := NewMessageRepo(db)
		convID := primitive.NewObjectID().Hex()
		ts := time.Unix(1_700_000_000, 0)
		for i, content := range []string{"a", "b", "c", "d"} {
			at := ts
			if i >= 2 {
				at = ts.Add(time.Second)
			}
			So(r.Append(ctx, &chat.Message{ConversationID: convID, Role: chat.RoleUser, Content: content, Timestamp: at}), ShouldBeNil)
		}
		So(r.Append(ctx, &chat.Message{ConversationID: "other", Role: chat.RoleUser, Content: "x"}), ShouldBeNil)

		recent, err := r.FindRecent(ctx, convID, 3)
		So(err, ShouldBeNil)
		So(contents(recent), ShouldResemble, []string{"d", "c", "b"})

		all, err := r.ListByConversation(ctx, convID, 0, 0)
		So(err, ShouldBeNil)
		So(contents(all), ShouldResemble, []string{"a", "b", "c", "d"})

		paged, _ := r.ListByConversation(ctx, convID, 2, 1)
		So(contents(paged), ShouldResemble, []string{"b", "c"})

		n, _ := r.Count(ctx, convID)
		So(n, ShouldEqual, 4)
	})

	Convey("同一时间戳的大量消息保持插入顺序", t, func() {
		r := NewMessageRepo(db)
		convID := primitive.NewObjectID().Hex()
		ts := time.Unix(1_700_000_100, 0)
		want := []string{"m0", "m1", "m2", "m3", "m4", "m5"}
		for _, content := range want {
			So(r.Append(ctx, &chat.Message{ConversationID: convID, Role: chat.RoleAssistant, Content: content, Timestamp: ts}), ShouldBeNil)
		}

		recent, err := r.FindRecent(ctx, convID, 4)
		So(err, ShouldBeNil)
		So(contents(recent), ShouldResemble, []string{"m5", "m4", "m3", "m2"})
	})
}

func TestMongoConversationRepo(t *testing.T) {
	db := testDatabase(t)
	ctx := context.Background()

	Convey("Mongo 对话仓库", t, func() {
		r := NewConversationRepo(db)
		// 父级在每个子用例前重新执行，用户也随之隔离
		userID := "u-" + primitive.NewObjectID().Hex()
		id := primitive.NewObjectID().Hex()
		So(r.Create(ctx, &chat.Conversation{ID: id, UserID: userID}), ShouldBeNil)
		So(r.Create(ctx, &chat.Conversation{ID: id, UserID: userID}), ShouldEqual, repository.ErrDuplicate)

		_, err := r.FindByID(ctx, "missing")
		So(err, ShouldEqual, repository.ErrNotFound)

		Convey("标题只写一次", func() {
			ok, err := r.SetTitleIfEmpty(ctx, id, "first")
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)

			ok, err = r.SetTitleIfEmpty(ctx, id, "second")
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)

			conv, _ := r.FindByID(ctx, id)
			So(conv.Title, ShouldEqual, "first")
		})

		Convey("按更新时间倒序列出", func() {
			other := primitive.NewObjectID().Hex()
			So(r.Create(ctx, &chat.Conversation{ID: other, UserID: userID}), ShouldBeNil)
			So(r.Create(ctx, &chat.Conversation{ID: primitive.NewObjectID().Hex(), UserID: "u2"}), ShouldBeNil)
			So(r.Touch(ctx, id, time.Now().Add(time.Hour)), ShouldBeNil)

			list, err := r.ListByUser(ctx, userID, 10, 0)
			So(err, ShouldBeNil)
			So(len(list), ShouldEqual, 2)
			So(list[0].ID, ShouldEqual, id)
		})
	})
}
