package ratings_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/teambalance/internal/domain/ratings"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryProvider_Rating(t *testing.T) {
	Convey("Given a provider seeded with ratings", t, func() {
		provider := ratings.NewInMemoryProvider(
			ratings.WithLatencyRange(0, 0),
			ratings.WithRatings(map[int64]int{1: 2000, 2: 1800}),
		)
		ctx := context.Background()

		Convey("When looking up a known competitor", func() {
			r, err := provider.Rating(ctx, 1)

			Convey("Then the seeded rating is returned", func() {
				So(err, ShouldBeNil)
				So(r, ShouldEqual, 2000)
			})
		})

		Convey("When a new rating is pushed", func() {
			provider.Set(1, 2150)
			r, err := provider.Rating(ctx, 1)

			Convey("Then lookups see it", func() {
				So(err, ShouldBeNil)
				So(r, ShouldEqual, 2150)
				So(provider.Len(), ShouldEqual, 2)
			})
		})

		Convey("When looking up an unknown competitor", func() {
			provider.Forget(2)
			_, err := provider.Rating(ctx, 2)

			Convey("Then ErrUnknownCompetitor is returned", func() {
				So(errors.Is(err, ratings.ErrUnknownCompetitor), ShouldBeTrue)
			})
		})
	})

	Convey("Given a provider with simulated latency", t, func() {
		provider := ratings.NewInMemoryProvider(
			ratings.WithLatencyRange(50*time.Millisecond, 100*time.Millisecond),
			ratings.WithRatings(map[int64]int{1: 2000}),
		)

		Convey("When the context expires first", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
			defer cancel()
			_, err := provider.Rating(ctx, 1)

			Convey("Then the lookup is abandoned", func() {
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
			})
		})

		Convey("When the context allows it", func() {
			start := time.Now()
			r, err := provider.Rating(context.Background(), 1)

			Convey("Then the rating arrives after the delay", func() {
				So(err, ShouldBeNil)
				So(r, ShouldEqual, 2000)
				So(time.Since(start), ShouldBeGreaterThanOrEqualTo, 50*time.Millisecond)
			})
		})
	})
}
