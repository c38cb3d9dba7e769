package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	service "github.com/okian/teambalance/internal/app"
	"github.com/okian/teambalance/internal/domain/ratings"
	"github.com/okian/teambalance/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

const guildID = "guild-1"

func rating(r int) *int { return &r }

// startService starts a service with an instant rating feed and no scheduler.
func startService(opts ...service.Option) (*service.Service, *ratings.InMemoryProvider) {
	feed := ratings.NewInMemoryProvider(ratings.WithLatencyRange(0, 0))
	base := []service.Option{
		service.WithRatingFeed(feed),
		service.WithWorkerCount(2),
		service.WithRecheckInterval(0),
	}
	svc := service.New(append(base, opts...)...)
	if err := svc.Start(context.Background()); err != nil {
		panic(err)
	}
	return svc, feed
}

// addFour adds four competitors rated 2000, 1800, 1600 and 1400 with ids 1..4.
func addFour(ctx context.Context, svc *service.Service) {
	for _, c := range []struct {
		id     int64
		name   string
		rating int
	}{
		{1, "Alice", 2000},
		{2, "Bruno", 1800},
		{3, "Chen", 1600},
		{4, "Dana", 1400},
	} {
		_, err := svc.AddCompetitor(ctx, guildID, c.id, c.name, rating(c.rating))
		So(err, ShouldBeNil)
	}
}

func TestService_Lifecycle(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service that has not been started", t, func() {
		svc := service.New(service.WithRecheckInterval(0))

		Convey("Then operations report it is not started", func() {
			_, err := svc.GetStats(ctx)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.GetGuild(ctx, guildID)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})

		Convey("And stopping it is harmless", func() {
			So(func() { svc.Stop() }, ShouldNotPanic)
		})
	})

	Convey("Given a started service", t, func() {
		svc, _ := startService(service.WithQueueSize(50))
		defer svc.Stop()

		Convey("Then stats describe its components", func() {
			stats, err := svc.GetStats(ctx)
			So(err, ShouldBeNil)
			So(stats.Workers, ShouldEqual, 2)
			So(stats.QueueCapacity, ShouldEqual, 50)
			So(stats.Guilds, ShouldEqual, 0)
		})

		Convey("And starting it again is a no-op", func() {
			So(svc.Start(ctx), ShouldBeNil)
		})

		Convey("When guilds are populated", func() {
			addFour(ctx, svc)
			_, err := svc.AddCompetitor(ctx, "guild-2", 9, "Eve", rating(1500))
			So(err, ShouldBeNil)

			Convey("Then stats count guilds and competitors", func() {
				stats, err := svc.GetStats(ctx)
				So(err, ShouldBeNil)
				So(stats.Guilds, ShouldEqual, 2)
				So(stats.Competitors, ShouldEqual, 5)
			})
		})

		Convey("When it is stopped", func() {
			svc.Stop()

			Convey("Then operations fail again", func() {
				_, err := svc.GetStats(ctx)
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})
	})
}

func TestService_Competitors(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started service", t, func() {
		svc, feed := startService()
		defer svc.Stop()

		Convey("When a competitor is added without a rating", func() {
			feed.Set(7, 2345)
			c, err := svc.AddCompetitor(ctx, guildID, 7, "  Grace  ", nil)

			Convey("Then the rating comes from the feed", func() {
				So(err, ShouldBeNil)
				So(c.Rating, ShouldEqual, 2345)
				So(c.Name, ShouldEqual, "Grace")
				So(c.LastUpdated.IsZero(), ShouldBeFalse)
			})
		})

		Convey("When the feed has no rating for the competitor", func() {
			_, err := svc.AddCompetitor(ctx, guildID, 8, "Hank", nil)

			Convey("Then the add fails and nothing is stored", func() {
				So(errors.Is(err, service.ErrRatingUnavailable), ShouldBeTrue)
				_, err = svc.GetGuild(ctx, guildID)
				So(errors.Is(err, service.ErrGuildNotFound), ShouldBeTrue)
			})
		})

		Convey("When an explicit rating is given", func() {
			_, err := svc.AddCompetitor(ctx, guildID, 5, "Ivy", rating(1900))
			So(err, ShouldBeNil)

			Convey("Then it is pushed into the feed", func() {
				r, err := feed.Rating(ctx, 5)
				So(err, ShouldBeNil)
				So(r, ShouldEqual, 1900)
			})
		})

		Convey("When four competitors are added", func() {
			addFour(ctx, svc)

			Convey("Then the guild lists them in order", func() {
				g, err := svc.GetGuild(ctx, guildID)
				So(err, ShouldBeNil)
				So(len(g.Competitors), ShouldEqual, 4)
				So(g.Competitors[0].Name, ShouldEqual, "Alice")
				So(g.TeamSizes, ShouldBeEmpty)
			})

			Convey("Then a repeated id is rejected", func() {
				_, err := svc.AddCompetitor(ctx, guildID, 1, "Other", rating(1000))
				So(errors.Is(err, service.ErrDuplicateCompetitor), ShouldBeTrue)
			})

			Convey("Then a repeated name is rejected regardless of case", func() {
				_, err := svc.AddCompetitor(ctx, guildID, 42, "alice", rating(1000))
				So(errors.Is(err, service.ErrDuplicateCompetitor), ShouldBeTrue)
			})

			Convey("Then removing an unknown competitor fails", func() {
				_, err := svc.RemoveCompetitor(ctx, guildID, 99)
				So(errors.Is(err, service.ErrUnknownCompetitor), ShouldBeTrue)
			})

			Convey("When a constrained competitor is removed", func() {
				_, err := svc.AddConstraints(ctx, guildID, [][]int64{{1, 2}, {3, 4}})
				So(err, ShouldBeNil)
				g, err := svc.RemoveCompetitor(ctx, guildID, 2)

				Convey("Then its constraint group goes with it", func() {
					So(err, ShouldBeNil)
					So(len(g.Competitors), ShouldEqual, 3)
					So(g.Constraints, ShouldResemble, [][]int64{{3, 4}})
				})
			})

			Convey("When the roster is cleared", func() {
				_, err := svc.AddConstraints(ctx, guildID, [][]int64{{1, 2}})
				So(err, ShouldBeNil)
				g, err := svc.ClearCompetitors(ctx, guildID)

				Convey("Then constraint groups are cleared too", func() {
					So(err, ShouldBeNil)
					So(g.Competitors, ShouldBeEmpty)
					So(g.Constraints, ShouldBeEmpty)
				})
			})
		})

		Convey("Then bad input is rejected", func() {
			cases := []struct {
				name   string
				guild  string
				id     int64
				cname  string
				rating *int
			}{
				{"a non-positive id", guildID, 0, "Zed", rating(1000)},
				{"an empty name", guildID, 3, "   ", rating(1000)},
				{"a negative rating", guildID, 3, "Zed", rating(-1)},
				{"a malformed guild id", "no spaces allowed", 3, "Zed", rating(1000)},
			}
			for _, tc := range cases {
				_, err := svc.AddCompetitor(ctx, tc.guild, tc.id, tc.cname, tc.rating)
				So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
			}
		})
	})
}

func TestService_GuildSettings(t *testing.T) {
	ctx := context.Background()

	Convey("Given a guild with four competitors", t, func() {
		svc, _ := startService(service.WithTeamSizeRange(2, 6))
		defer svc.Stop()
		addFour(ctx, svc)

		Convey("When team sizes are set with repeats", func() {
			g, err := svc.SetTeamSizes(ctx, guildID, []int{3, 2, 3})

			Convey("Then they are sorted and deduplicated", func() {
				So(err, ShouldBeNil)
				So(g.TeamSizes, ShouldResemble, []int{2, 3})
			})
		})

		Convey("Then sizes outside the allowed range are rejected", func() {
			_, err := svc.SetTeamSizes(ctx, guildID, []int{1})
			So(errors.Is(err, service.ErrInvalidTeamSize), ShouldBeTrue)
			_, err = svc.SetTeamSizes(ctx, guildID, []int{7})
			So(errors.Is(err, service.ErrInvalidTeamSize), ShouldBeTrue)
			_, err = svc.SetTeamSizes(ctx, guildID, nil)
			So(errors.Is(err, service.ErrInvalidTeamSize), ShouldBeTrue)
		})

		Convey("Then constraint groups are validated", func() {
			cases := []struct {
				name   string
				groups [][]int64
				kind   error
			}{
				{"unknown member", [][]int64{{1, 99}}, service.ErrUnknownCompetitor},
				{"repeated member", [][]int64{{1, 2}, {2, 3}}, service.ErrRepeatedCompetitor},
				{"single member", [][]int64{{1}}, service.ErrInvalidInput},
				{"no groups", nil, service.ErrInvalidInput},
			}
			for _, tc := range cases {
				_, err := svc.AddConstraints(ctx, guildID, tc.groups)
				So(errors.Is(err, tc.kind), ShouldBeTrue)
			}

			g, err := svc.GetGuild(ctx, guildID)
			So(err, ShouldBeNil)
			So(g.Constraints, ShouldBeEmpty)
		})

		Convey("When a constraint group is registered", func() {
			_, err := svc.AddConstraints(ctx, guildID, [][]int64{{2, 1}})
			So(err, ShouldBeNil)

			Convey("Then its members cannot join another group", func() {
				_, err := svc.AddConstraints(ctx, guildID, [][]int64{{1, 3}})
				So(errors.Is(err, service.ErrAlreadyConstrained), ShouldBeTrue)
			})

			Convey("Then it can be removed by listing its members", func() {
				g, err := svc.RemoveConstraints(ctx, guildID, [][]int64{{1, 2}})
				So(err, ShouldBeNil)
				So(g.Constraints, ShouldBeEmpty)
			})

			Convey("Then removing a group that is not registered fails", func() {
				_, err := svc.RemoveConstraints(ctx, guildID, [][]int64{{1, 3}})
				So(errors.Is(err, service.ErrConstraintNotFound), ShouldBeTrue)
			})

			Convey("Then clearing drops it", func() {
				g, err := svc.ClearConstraints(ctx, guildID)
				So(err, ShouldBeNil)
				So(g.Constraints, ShouldBeEmpty)
			})
		})

		Convey("Then fixed teams must cover the roster exactly once", func() {
			_, err := svc.SetTeams(ctx, guildID, [][]int64{{1, 2}, {3}})
			So(errors.Is(err, service.ErrIncompleteTeams), ShouldBeTrue)
			_, err = svc.SetTeams(ctx, guildID, [][]int64{{1, 2}, {2, 3, 4}})
			So(errors.Is(err, service.ErrRepeatedCompetitor), ShouldBeTrue)
			_, err = svc.SetTeams(ctx, guildID, [][]int64{{1, 2}, {3, 5}})
			So(errors.Is(err, service.ErrUnknownCompetitor), ShouldBeTrue)
		})

		Convey("When fixed teams are set", func() {
			g, err := svc.SetTeams(ctx, guildID, [][]int64{{1, 2}, {3, 4}})

			Convey("Then the guild shows them with their gap", func() {
				So(err, ShouldBeNil)
				So(len(g.Teams), ShouldEqual, 2)
				So(g.TeamsGap, ShouldNotBeNil)
				So(*g.TeamsGap, ShouldEqual, 400.0)
			})

			Convey("And clearing removes them", func() {
				g, err := svc.ClearTeams(ctx, guildID)
				So(err, ShouldBeNil)
				So(g.Teams, ShouldBeEmpty)
				So(g.TeamsGap, ShouldBeNil)
			})

			Convey("And adding a competitor clears them", func() {
				_, err := svc.AddCompetitor(ctx, guildID, 5, "Eve", rating(1500))
				So(err, ShouldBeNil)
				g, err := svc.GetGuild(ctx, guildID)
				So(err, ShouldBeNil)
				So(g.Teams, ShouldBeEmpty)
			})
		})

		Convey("Then teams cannot be copied from a balance that does not exist", func() {
			_, err := svc.SetTeamsFromBalance(ctx, guildID)
			So(errors.Is(err, service.ErrNoBalance), ShouldBeTrue)
		})

		Convey("Then the threshold must be positive and can be cleared", func() {
			_, err := svc.SetThreshold(ctx, guildID, rating(0))
			So(errors.Is(err, service.ErrInvalidThreshold), ShouldBeTrue)

			g, err := svc.SetThreshold(ctx, guildID, rating(150))
			So(err, ShouldBeNil)
			So(*g.Threshold, ShouldEqual, 150)

			g, err = svc.SetThreshold(ctx, guildID, nil)
			So(err, ShouldBeNil)
			So(g.Threshold, ShouldBeNil)
		})

		Convey("Then the name can be set", func() {
			g, err := svc.SetGuildName(ctx, guildID, "Endurance League")
			So(err, ShouldBeNil)
			So(g.Name, ShouldEqual, "Endurance League")
		})

		Convey("When the guild is deleted", func() {
			So(svc.DeleteGuild(ctx, guildID), ShouldBeNil)

			Convey("Then it is gone", func() {
				_, err := svc.GetGuild(ctx, guildID)
				So(errors.Is(err, service.ErrGuildNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_Feasibility(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty guild", t, func() {
		svc, _ := startService()
		defer svc.Stop()
		_, err := svc.SetTeamSizes(ctx, guildID, []int{2})
		So(err, ShouldBeNil)

		Convey("Then balancing is not possible without competitors", func() {
			f, err := svc.Feasibility(ctx, guildID)
			So(err, ShouldBeNil)
			So(f.Possible, ShouldBeFalse)
			So(f.Reason, ShouldContainSubstring, "no competitors")
		})

		Convey("When competitors are added", func() {
			addFour(ctx, svc)

			Convey("Then teams of two are possible", func() {
				f, err := svc.Feasibility(ctx, guildID)
				So(err, ShouldBeNil)
				So(f.Possible, ShouldBeTrue)
				So(f.Reason, ShouldBeEmpty)
			})

			Convey("Then teams of three need six competitors", func() {
				_, err := svc.SetTeamSizes(ctx, guildID, []int{3})
				So(err, ShouldBeNil)
				f, err := svc.Feasibility(ctx, guildID)
				So(err, ShouldBeNil)
				So(f.Possible, ShouldBeFalse)
				So(f.Reason, ShouldContainSubstring, "at least 6")
			})

			Convey("Then a roster the sizes cannot add up to is reported", func() {
				_, err := svc.AddCompetitor(ctx, guildID, 5, "Eve", rating(1500))
				So(err, ShouldBeNil)
				f, err := svc.Feasibility(ctx, guildID)
				So(err, ShouldBeNil)
				So(f.Possible, ShouldBeFalse)
				So(f.Reason, ShouldContainSubstring, "cannot be split")
			})

			Convey("Then a constraint group larger than any team is reported", func() {
				_, err := svc.AddConstraints(ctx, guildID, [][]int64{{1, 2, 3}})
				So(err, ShouldBeNil)
				f, err := svc.Feasibility(ctx, guildID)
				So(err, ShouldBeNil)
				So(f.Possible, ShouldBeFalse)
				So(f.Reason, ShouldContainSubstring, "larger than the largest team")
			})
		})
	})

	Convey("Given a guild without team sizes", t, func() {
		svc, _ := startService()
		defer svc.Stop()
		addFour(ctx, svc)

		f, err := svc.Feasibility(ctx, guildID)
		So(err, ShouldBeNil)
		So(f.Possible, ShouldBeFalse)
		So(f.Reason, ShouldContainSubstring, "team sizes")
	})

	Convey("Given an unknown guild", t, func() {
		svc, _ := startService()
		defer svc.Stop()

		_, err := svc.Feasibility(ctx, "nobody")
		So(errors.Is(err, service.ErrGuildNotFound), ShouldBeTrue)
	})
}

// eventually polls cond until it holds or the timeout passes.
func eventually(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
