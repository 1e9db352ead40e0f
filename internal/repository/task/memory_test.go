package task

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"taskagent/internal/model/task"
	"taskagent/internal/repository"
)

func TestMemoryRepo(t *testing.T) {
	ctx := context.Background()

	Convey("任务仓库按用户隔离", t, func() {
		r := NewMemoryRepo()
		r.Create(ctx, &task.Task{ID: "t1", UserID: "u1", Title: "a", Status: task.StatusPending})
		r.Create(ctx, &task.Task{ID: "t2", UserID: "u1", Title: "b", Status: task.StatusCompleted})
		r.Create(ctx, &task.Task{ID: "t3", UserID: "u2", Title: "c", Status: task.StatusPending})

		_, err := r.FindByID(ctx, "t3", "u1")
		So(err, ShouldEqual, repository.ErrNotFound)

		all, _ := r.List(ctx, "u1", task.FilterAll)
		So(len(all), ShouldEqual, 2)
		So(all[0].ID, ShouldEqual, "t1")

		pending, _ := r.List(ctx, "u1", task.FilterPending)
		So(len(pending), ShouldEqual, 1)

		So(r.Update(ctx, &task.Task{ID: "t3", UserID: "u1", Title: "x"}), ShouldEqual, repository.ErrNotFound)
		So(r.Delete(ctx, "t3", "u1"), ShouldEqual, repository.ErrNotFound)

		So(r.Delete(ctx, "t1", "u1"), ShouldBeNil)
		all, _ = r.List(ctx, "u1", "")
		So(len(all), ShouldEqual, 1)
		So(all[0].ID, ShouldEqual, "t2")
	})
}
