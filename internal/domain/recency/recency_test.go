package recency_test

import (
	"testing"
	"time"

	recency "github.com/okian/ranked/internal/domain/recency"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCache(t *testing.T) {
	Convey("Given a cache with a one minute window", t, func() {
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		clock := func() time.Time { return now }
		c := recency.New(recency.WithWindow(time.Minute), recency.WithCapacity(2), recency.WithClock(clock))

		Convey("When a pair is recorded", func() {
			c.Record("a", "b")

			Convey("Then it is seen in either order", func() {
				So(c.Seen("a", "b"), ShouldBeTrue)
				So(c.Seen("b", "a"), ShouldBeTrue)
				So(c.Seen("a", "c"), ShouldBeFalse)
			})

			Convey("And the window elapses", func() {
				now = now.Add(time.Minute)
				So(c.Seen("a", "b"), ShouldBeFalse)
				So(c.Len(), ShouldEqual, 0)
			})

			Convey("And it is recorded again", func() {
				c.Record("b", "a")
				So(c.Len(), ShouldEqual, 1)
			})
		})

		Convey("When more pairs than capacity are recorded", func() {
			c.Record("a", "b")
			c.Record("a", "c")
			c.Record("a", "d")

			Convey("Then the oldest pair is evicted", func() {
				So(c.Len(), ShouldEqual, 2)
				So(c.Seen("a", "b"), ShouldBeFalse)
				So(c.Seen("a", "c"), ShouldBeTrue)
				So(c.Seen("a", "d"), ShouldBeTrue)
			})
		})
	})

	Convey("Given a disabled cache", t, func() {
		c := recency.New(recency.WithCapacity(0))
		c.Record("a", "b")
		So(c.Seen("a", "b"), ShouldBeFalse)

		var nilCache *recency.Cache
		So(nilCache.Seen("a", "b"), ShouldBeFalse)
	})
}
