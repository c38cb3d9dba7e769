package roster_test

import (
	"errors"
	"testing"

	"github.com/okian/teambalance/internal/domain/roster"
	. "github.com/smartystreets/goconvey/convey"
)

func comp(id int64, rating int) roster.Competitor {
	return roster.Competitor{ID: id, Name: "c" + string(rune('a'+id)), Rating: rating}
}

func mustSet(members ...roster.Competitor) roster.Set {
	s, err := roster.NewSet(members...)
	if err != nil {
		panic(err)
	}
	return s
}

func TestCompetitor(t *testing.T) {
	Convey("Given two records for the same competitor", t, func() {
		a := roster.Competitor{ID: 7, Name: "Old Name", Rating: 1500}
		b := roster.Competitor{ID: 7, Name: "New Name", Rating: 1800}

		Convey("Then identity ignores name and rating drift", func() {
			So(a.Same(b), ShouldBeTrue)
			So(a.Same(comp(8, 1500)), ShouldBeFalse)
		})

		Convey("And lookup helpers find by id and name", func() {
			list := []roster.Competitor{a, comp(3, 1200)}
			found, ok := roster.Find(list, 3)
			So(ok, ShouldBeTrue)
			So(found.Rating, ShouldEqual, 1200)

			_, ok = roster.FindByName(list, "Old Name")
			So(ok, ShouldBeTrue)
			_, ok = roster.FindByName(list, "missing")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestSet(t *testing.T) {
	Convey("Given a set built from competitors", t, func() {
		s := mustSet(comp(3, 1600), comp(1, 2000), comp(2, 1800))

		Convey("Then derived attributes are computed", func() {
			So(s.Size(), ShouldEqual, 3)
			avg, ok := s.AverageRating()
			So(ok, ShouldBeTrue)
			So(avg, ShouldEqual, 1800.0)
			hi, ok := s.HighestRating()
			So(ok, ShouldBeTrue)
			So(hi, ShouldEqual, 2000)
			So(s.IDs(), ShouldResemble, []int64{1, 2, 3})
			So(s.Ordered()[0].ID, ShouldEqual, 1)
		})

		Convey("Then equality ignores insertion order", func() {
			other := mustSet(comp(2, 1800), comp(3, 1600), comp(1, 2000))
			So(s.Equal(other), ShouldBeTrue)
			So(s.Equal(mustSet(comp(1, 2000))), ShouldBeFalse)
		})

		Convey("When adding a competitor already present", func() {
			_, err := s.With(comp(2, 999))

			Convey("Then it is rejected immediately", func() {
				So(errors.Is(err, roster.ErrDuplicateCompetitor), ShouldBeTrue)
			})
		})

		Convey("When building a set with a repeated id", func() {
			_, err := roster.NewSet(comp(1, 1), comp(1, 2))
			So(errors.Is(err, roster.ErrDuplicateCompetitor), ShouldBeTrue)
		})

		Convey("When a rating is refreshed", func() {
			updated := s.WithUpdated(comp(3, 2200))

			Convey("Then the copy follows and the source set is untouched", func() {
				avg, _ := updated.AverageRating()
				So(avg, ShouldEqual, 2000.0)
				avg, _ = s.AverageRating()
				So(avg, ShouldEqual, 1800.0)
			})
		})

		Convey("When removing and adding members", func() {
			smaller := s.Without(2)
			bigger, err := smaller.With(comp(9, 1000))

			So(err, ShouldBeNil)
			So(smaller.IDs(), ShouldResemble, []int64{1, 3})
			So(bigger.IDs(), ShouldResemble, []int64{1, 3, 9})
			So(bigger.Sum(), ShouldEqual, int64(4600))
			So(s.Size(), ShouldEqual, 3)
		})

		Convey("Then overlap and containment are detected", func() {
			So(s.Overlaps(mustSet(comp(3, 0), comp(4, 0))), ShouldBeTrue)
			So(s.Overlaps(mustSet(comp(4, 0))), ShouldBeFalse)
			So(s.Contains(mustSet(comp(1, 0), comp(3, 0))), ShouldBeTrue)
			So(s.Contains(mustSet(comp(1, 0), comp(4, 0))), ShouldBeFalse)
		})
	})

	Convey("Given an empty set", t, func() {
		var s roster.Set

		Convey("Then the average and highest rating are undefined", func() {
			_, ok := s.AverageRating()
			So(ok, ShouldBeFalse)
			_, ok = s.HighestRating()
			So(ok, ShouldBeFalse)
		})
	})
}

func TestPartition(t *testing.T) {
	a, b, c, d := comp(1, 2000), comp(2, 1800), comp(3, 1600), comp(4, 1400)

	Convey("Given a partition of two teams", t, func() {
		p, err := roster.NewPartition(mustSet(a, d), mustSet(b, c))
		So(err, ShouldBeNil)

		Convey("Then it covers the roster with no gap", func() {
			So(p.Len(), ShouldEqual, 2)
			So(p.Size(), ShouldEqual, 4)
			So(p.Covers([]roster.Competitor{a, b, c, d}), ShouldBeTrue)
			So(p.Covers([]roster.Competitor{a, b, c}), ShouldBeFalse)
			So(p.RatingGap().IsZero(), ShouldBeTrue)
		})

		Convey("Then equality is independent of insertion order", func() {
			q, err := roster.NewPartition(mustSet(c, b), mustSet(d, a))
			So(err, ShouldBeNil)
			So(p.Equal(q), ShouldBeTrue)

			r, err := roster.NewPartition(mustSet(a, b), mustSet(c, d))
			So(err, ShouldBeNil)
			So(p.Equal(r), ShouldBeFalse)
			So(r.RatingGap().Float64(), ShouldEqual, 400.0)
		})

		Convey("When adding a set that shares a competitor", func() {
			_, err := p.Add(mustSet(comp(9, 1000), a))

			Convey("Then it fails fast", func() {
				So(errors.Is(err, roster.ErrOverlappingSets), ShouldBeTrue)
			})
		})

		Convey("When adding an empty set", func() {
			_, err := p.Add(roster.Set{})
			So(errors.Is(err, roster.ErrEmptyGroup), ShouldBeTrue)
		})

		Convey("When a rating changes", func() {
			moved := p.WithUpdated(comp(1, 2400))

			Convey("Then the gap follows the new rating", func() {
				So(moved.RatingGap().Float64(), ShouldEqual, 200.0)
				So(p.RatingGap().IsZero(), ShouldBeTrue)
			})
		})

		Convey("Then presentation order is by highest rating ascending", func() {
			ordered := p.Ordered()
			So(ordered[0].Has(2), ShouldBeTrue)
			So(ordered[1].Has(1), ShouldBeTrue)
		})

		Convey("Then ID groups round-trip through Resolve", func() {
			q, err := roster.Resolve([]roster.Competitor{a, b, c, d}, p.IDGroups())
			So(err, ShouldBeNil)
			So(q.Equal(p), ShouldBeTrue)
		})

		Convey("Then Resolve drops competitors no longer on the roster", func() {
			q, err := roster.Resolve([]roster.Competitor{a, d}, p.IDGroups())
			So(err, ShouldBeNil)
			So(q.Len(), ShouldEqual, 1)
			So(q.Size(), ShouldEqual, 2)
		})
	})

	Convey("Given an empty partition", t, func() {
		So(roster.Partition{}.RatingGap().IsZero(), ShouldBeTrue)
	})
}

func TestGap(t *testing.T) {
	Convey("Given gaps built from fractional averages", t, func() {
		// 5000/3 - 3200/2 = 200/3
		g1 := roster.GapBetween(5000, 3, 3200, 2)
		// 400/6 reduces to the same value
		g2 := roster.GapBetween(400, 6, 0, 1)

		Convey("Then exact comparison is used", func() {
			So(g1.Cmp(roster.GapBetween(200, 3, 0, 1)), ShouldEqual, 0)
			So(g1.Less(roster.GapBetween(67, 1, 0, 1)), ShouldBeTrue)
			So(g1.Cmp(g2), ShouldEqual, 0)
			So(g2.IsZero(), ShouldBeFalse)
			So(g1.Rounded(), ShouldEqual, 66.67)
		})

		Convey("Then averages compare without division", func() {
			So(roster.CompareAverages(3, 2, 2, 1), ShouldEqual, -1)
			So(roster.CompareAverages(4, 2, 2, 1), ShouldEqual, 0)
			So(roster.CompareAverages(5, 2, 2, 1), ShouldEqual, 1)
		})
	})
}

func TestConstraints(t *testing.T) {
	a, b, c, d := comp(1, 2000), comp(2, 1800), comp(3, 1600), comp(4, 1400)
	all := []roster.Competitor{a, b, c, d}

	Convey("Given a constraint group", t, func() {
		cons, err := roster.NewConstraints(mustSet(a, b))
		So(err, ShouldBeNil)

		Convey("Then it validates against the roster", func() {
			So(cons.Validate(all), ShouldBeNil)
			So(errors.Is(cons.Validate([]roster.Competitor{a, c}), roster.ErrUnknownCompetitor), ShouldBeTrue)
		})

		Convey("Then teams respect it only with all or none of the group", func() {
			So(cons.RespectedBy(mustSet(a, b)), ShouldBeTrue)
			So(cons.RespectedBy(mustSet(c, d)), ShouldBeTrue)
			So(cons.RespectedBy(mustSet(a, c)), ShouldBeFalse)
		})

		Convey("Then partitions satisfy it only when the group is kept together", func() {
			together, _ := roster.NewPartition(mustSet(a, b), mustSet(c, d))
			split, _ := roster.NewPartition(mustSet(a, d), mustSet(b, c))
			So(cons.SatisfiedBy(together), ShouldBeTrue)
			So(cons.SatisfiedBy(split), ShouldBeFalse)
		})

		Convey("When registering a group that reuses a competitor", func() {
			_, err := cons.Add(mustSet(b, c))
			So(errors.Is(err, roster.ErrOverlappingSets), ShouldBeTrue)
		})

		Convey("When removing a constrained competitor", func() {
			left := cons.Without(2)
			So(left.Len(), ShouldEqual, 0)
			So(cons.Has(2), ShouldBeTrue)
		})
	})
}
