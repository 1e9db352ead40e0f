package apperr

import (
	"errors"
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestKindOf(t *testing.T) {
	Convey("KindOf 能穿透 fmt.Errorf 包装识别类别", t, func() {
		err := fmt.Errorf("lookup: %w", NotFound("conversation %s not found", "c1"))
		So(KindOf(err), ShouldEqual, KindNotFound)
		So(IsKind(err, KindNotFound), ShouldBeTrue)
		So(err.Error(), ShouldContainSubstring, "conversation c1 not found")
	})

	Convey("普通错误视为内部错误", t, func() {
		So(KindOf(errors.New("boom")), ShouldEqual, KindInternal)
		So(KindOf(nil), ShouldEqual, Kind(""))
		So(IsKind(nil, KindInternal), ShouldBeFalse)
	})

	Convey("ErrorCode 优先返回细分错误码", t, func() {
		cause := errors.New("connection reset")
		err := Wrap(KindToolExecution, "insert task", cause).WithCode(CodeDatabaseError)
		So(err.ErrorCode(), ShouldEqual, CodeDatabaseError)
		So(errors.Is(err, cause), ShouldBeTrue)
		So(New(KindInternal, "x").ErrorCode(), ShouldEqual, "INTERNAL_ERROR")
	})
}
