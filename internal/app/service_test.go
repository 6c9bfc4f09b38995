package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/playcore/tally/internal/adapters/memstore"
	"github.com/playcore/tally/internal/adapters/notify"
	service "github.com/playcore/tally/internal/app"
	"github.com/playcore/tally/internal/domain/model"
	"github.com/playcore/tally/pkg/logger"
)

func init() {
	_ = logger.Init()
}

// clock is a manually advanced time source.
type clock struct {
	t time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type harness struct {
	svc   *service.Service
	store *memstore.MemStore
	sink  *notify.MemorySink
	clock *clock
}

func newHarness() *harness {
	c := newClock()
	store := memstore.New(memstore.WithClock(c.Now))
	sink := notify.NewMemorySink()
	svc := service.New(
		service.WithStore(store),
		service.WithSink(sink),
		service.WithClock(c.Now),
		service.WithDispatcherCount(2),
		service.WithSweepInterval(time.Hour),
	)
	return &harness{svc: svc, store: store, sink: sink, clock: c}
}

func (h *harness) start() {
	So(h.svc.Start(context.Background()), ShouldBeNil)
	Reset(h.svc.Stop)
}

func waitForSent(sink *notify.MemorySink, n int) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(sink.Sent()) >= n {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return len(sink.Sent()) >= n
}

// settled waits long enough for any stray dispatch to land.
func settled(sink *notify.MemorySink) []model.Notification {
	time.Sleep(50 * time.Millisecond)
	return sink.Sent()
}

func TestStatisticsLifecycle(t *testing.T) {
	Convey("Given a running service", t, func() {
		h := newHarness()
		h.start()
		ctx := context.Background()

		publisher, err := h.svc.CreateUser(ctx, "publisher")
		So(err, ShouldBeNil)
		level, err := h.svc.PublishLevel(ctx, publisher, "skyline")
		So(err, ShouldBeNil)

		Convey("When publishing a level", func() {
			Convey("Then the publisher's level counter is already visible", func() {
				rec, err := h.svc.Statistics(ctx, publisher.ID)
				So(err, ShouldBeNil)
				So(rec.Counters.LevelCount, ShouldEqual, 1)
			})
		})

		Convey("When a fan favourites and unfavourites repeatedly", func() {
			fan, err := h.svc.CreateUser(ctx, "fan")
			So(err, ShouldBeNil)

			So(h.svc.FavouriteLevel(ctx, fan, level), ShouldBeNil)
			So(h.svc.FavouriteLevel(ctx, fan, level), ShouldBeNil)
			So(h.svc.UnfavouriteLevel(ctx, fan, level), ShouldBeNil)
			So(h.svc.FavouriteLevel(ctx, fan, level), ShouldBeNil)

			Convey("Then the net counter reflects the final state", func() {
				rec, err := h.svc.Statistics(ctx, level.ID)
				So(err, ShouldBeNil)
				So(rec.Counters.FavouriteCount, ShouldEqual, 1)

				fanRec, err := h.svc.Statistics(ctx, fan.ID)
				So(err, ShouldBeNil)
				So(fanRec.Counters.FavouriteCount, ShouldEqual, 1)
			})

			Convey("Then a sweep after the grace period converges to the same value", func() {
				h.clock.Advance(6 * time.Minute)
				repaired, err := h.svc.SweepNow(ctx)
				So(err, ShouldBeNil)
				So(repaired, ShouldBeGreaterThan, 0)

				rec, err := h.svc.Statistics(ctx, level.ID)
				So(err, ShouldBeNil)
				So(rec.Counters.FavouriteCount, ShouldEqual, 1)
				So(rec.RecalculateAt, ShouldBeNil)
			})
		})

		Convey("When a player plays the level twice", func() {
			player, err := h.svc.CreateUser(ctx, "player")
			So(err, ShouldBeNil)
			So(h.svc.PlayLevel(ctx, player, level), ShouldBeNil)
			So(h.svc.PlayLevel(ctx, player, level), ShouldBeNil)

			Convey("Then plays accumulate but unique plays count once", func() {
				rec, err := h.svc.Statistics(ctx, level.ID)
				So(err, ShouldBeNil)
				So(rec.Counters.PlayCount, ShouldEqual, 2)
				So(rec.Counters.UniquePlayCount, ShouldEqual, 1)
			})
		})

		Convey("When the publisher plays their own level", func() {
			So(h.svc.PlayLevel(ctx, publisher, level), ShouldBeNil)

			Convey("Then the play counts but the unique play does not", func() {
				rec, err := h.svc.Statistics(ctx, level.ID)
				So(err, ShouldBeNil)
				So(rec.Counters.PlayCount, ShouldEqual, 1)
				So(rec.Counters.UniquePlayCount, ShouldEqual, 0)
			})
		})

		Convey("When a user re-rates a level", func() {
			rater, err := h.svc.CreateUser(ctx, "rater")
			So(err, ShouldBeNil)
			So(h.svc.RateLevel(ctx, rater, level, true), ShouldBeNil)
			So(h.svc.RateLevel(ctx, rater, level, false), ShouldBeNil)

			Convey("Then only the latest rating stands and karma follows", func() {
				rec, err := h.svc.Statistics(ctx, level.ID)
				So(err, ShouldBeNil)
				So(rec.Counters.YayCount, ShouldEqual, 0)
				So(rec.Counters.BooCount, ShouldEqual, 1)
				So(rec.Counters.Karma, ShouldEqual, -1)
			})
		})

		Convey("When asking statistics for an unknown subject", func() {
			_, err := h.svc.Statistics(ctx, uuid.New())

			So(err, ShouldEqual, service.ErrSubjectNotFound)
		})
	})
}

func TestSubmitScore(t *testing.T) {
	Convey("Given a running service with a published level", t, func() {
		h := newHarness()
		h.start()
		ctx := context.Background()

		publisher, err := h.svc.CreateUser(ctx, "publisher")
		So(err, ShouldBeNil)
		level, err := h.svc.PublishLevel(ctx, publisher, "skyline")
		So(err, ShouldBeNil)

		p1, err := h.svc.CreateUser(ctx, "p1")
		So(err, ShouldBeNil)
		p2, err := h.svc.CreateUser(ctx, "p2")
		So(err, ShouldBeNil)

		Convey("When the first score lands", func() {
			score, window, err := h.svc.SubmitScore(ctx, level.ID, 0, 500, []uuid.UUID{p1.ID})

			Convey("Then it holds rank 1 and nobody is notified", func() {
				So(err, ShouldBeNil)
				So(window.Items, ShouldHaveLength, 1)
				So(window.Items[0].Rank, ShouldEqual, 1)
				So(window.Items[0].Score.ID, ShouldEqual, score.ID)
				So(settled(h.sink), ShouldBeEmpty)
			})

			Convey("Then the play counter moved with it", func() {
				So(err, ShouldBeNil)
				rec, serr := h.svc.Statistics(ctx, level.ID)
				So(serr, ShouldBeNil)
				So(rec.Counters.PlayCount, ShouldEqual, 1)
			})
		})

		Convey("When a second player overtakes the leader", func() {
			h.clock.Advance(time.Minute)
			_, _, err := h.svc.SubmitScore(ctx, level.ID, 0, 500, []uuid.UUID{p1.ID})
			So(err, ShouldBeNil)
			h.clock.Advance(time.Minute)
			_, window, err := h.svc.SubmitScore(ctx, level.ID, 0, 600, []uuid.UUID{p2.ID})
			So(err, ShouldBeNil)

			Convey("Then exactly one notification goes to the overtaken player", func() {
				So(waitForSent(h.sink, 1), ShouldBeTrue)
				sent := settled(h.sink)
				So(sent, ShouldHaveLength, 1)
				So(sent[0].RecipientID, ShouldEqual, p1.ID)
			})

			Convey("Then the window covers both entries", func() {
				So(window.Items, ShouldHaveLength, 2)
				So(window.Items[0].Rank, ShouldEqual, 1)
				So(window.TotalItems, ShouldEqual, 2)
				So(window.NextPageIndex, ShouldEqual, 0)
			})
		})

		Convey("When the leader beats their own score", func() {
			_, _, err := h.svc.SubmitScore(ctx, level.ID, 0, 500, []uuid.UUID{p1.ID})
			So(err, ShouldBeNil)
			h.clock.Advance(time.Minute)
			_, _, err = h.svc.SubmitScore(ctx, level.ID, 0, 700, []uuid.UUID{p1.ID})
			So(err, ShouldBeNil)

			Convey("Then no notification is sent", func() {
				So(settled(h.sink), ShouldBeEmpty)
			})
		})

		Convey("When the overtaken top score was zero", func() {
			_, _, err := h.svc.SubmitScore(ctx, level.ID, 0, 0, []uuid.UUID{p1.ID})
			So(err, ShouldBeNil)
			h.clock.Advance(time.Minute)
			_, _, err = h.svc.SubmitScore(ctx, level.ID, 0, 10, []uuid.UUID{p2.ID})
			So(err, ShouldBeNil)

			Convey("Then no notification is sent", func() {
				So(settled(h.sink), ShouldBeEmpty)
			})
		})

		Convey("When a worse score is deduplicated off the board", func() {
			_, _, err := h.svc.SubmitScore(ctx, level.ID, 0, 500, []uuid.UUID{p1.ID})
			So(err, ShouldBeNil)
			h.clock.Advance(time.Minute)
			_, window, err := h.svc.SubmitScore(ctx, level.ID, 0, 100, []uuid.UUID{p1.ID})
			So(err, ShouldBeNil)

			Convey("Then the submission succeeds with an empty window", func() {
				So(window.Items, ShouldBeEmpty)
			})
		})

		Convey("When a multi-player score is overtaken", func() {
			p3, err := h.svc.CreateUser(ctx, "p3")
			So(err, ShouldBeNil)
			_, _, err = h.svc.SubmitScore(ctx, level.ID, 1, 500, []uuid.UUID{p1.ID, p3.ID})
			So(err, ShouldBeNil)
			h.clock.Advance(time.Minute)
			_, _, err = h.svc.SubmitScore(ctx, level.ID, 1, 600, []uuid.UUID{p2.ID})
			So(err, ShouldBeNil)

			Convey("Then every player on the overtaken score is notified", func() {
				So(waitForSent(h.sink, 2), ShouldBeTrue)
				recipients := map[uuid.UUID]bool{}
				for _, n := range settled(h.sink) {
					recipients[n.RecipientID] = true
				}
				So(recipients[p1.ID], ShouldBeTrue)
				So(recipients[p3.ID], ShouldBeTrue)
			})
		})

		Convey("When submitting without players", func() {
			_, _, err := h.svc.SubmitScore(ctx, level.ID, 0, 100, nil)

			So(err, ShouldEqual, service.ErrNoPlayers)
		})

		Convey("When submitting to an unknown level", func() {
			_, _, err := h.svc.SubmitScore(ctx, uuid.New(), 0, 100, []uuid.UUID{p1.ID})

			So(err, ShouldEqual, service.ErrSubjectNotFound)
		})
	})
}

func TestBoardReads(t *testing.T) {
	Convey("Given a board with several players", t, func() {
		h := newHarness()
		h.start()
		ctx := context.Background()

		publisher, err := h.svc.CreateUser(ctx, "publisher")
		So(err, ShouldBeNil)
		level, err := h.svc.PublishLevel(ctx, publisher, "skyline")
		So(err, ShouldBeNil)

		players := make([]model.User, 5)
		for i := range players {
			players[i], err = h.svc.CreateUser(ctx, "player")
			So(err, ShouldBeNil)
		}
		// Values 100, 200, 300, 400, 500; player 4 also has a worse 50.
		var scoreIDs []uuid.UUID
		for i, p := range players {
			h.clock.Advance(time.Minute)
			score, _, serr := h.svc.SubmitScore(ctx, level.ID, 0, int64((i+1)*100), []uuid.UUID{p.ID})
			So(serr, ShouldBeNil)
			scoreIDs = append(scoreIDs, score.ID)
		}
		h.clock.Advance(time.Minute)
		_, _, err = h.svc.SubmitScore(ctx, level.ID, 0, 50, []uuid.UUID{players[4].ID})
		So(err, ShouldBeNil)

		Convey("When reading the ranked board", func() {
			p, err := h.svc.RankedHighScores(ctx, level.ID, 0, 0, 3)

			Convey("Then it is descending, deduplicated and 1-based", func() {
				So(err, ShouldBeNil)
				So(p.Items, ShouldHaveLength, 3)
				So(p.Items[0].Score.Value, ShouldEqual, 500)
				So(p.Items[0].Rank, ShouldEqual, 1)
				So(p.Items[2].Score.Value, ShouldEqual, 300)
				So(p.TotalItems, ShouldEqual, 5)
				So(p.NextPageIndex, ShouldEqual, 4)
			})
		})

		Convey("When reading with duplicates included", func() {
			p, err := h.svc.TopScores(ctx, level.ID, 0, true, 0, 10)

			Convey("Then the duplicate row is on the board", func() {
				So(err, ShouldBeNil)
				So(p.TotalItems, ShouldEqual, 6)
				So(p.Items[5].Score.Value, ShouldEqual, 50)
			})
		})

		Convey("When asking for a window around a mid-board score", func() {
			p, err := h.svc.ScoreWindow(ctx, scoreIDs[2], 3)

			Convey("Then it is centered on that score", func() {
				So(err, ShouldBeNil)
				So(p.Items, ShouldHaveLength, 3)
				So(p.Items[1].Score.ID, ShouldEqual, scoreIDs[2])
				So(p.Items[0].Rank, ShouldEqual, 2)
				So(p.Items[2].Rank, ShouldEqual, 4)
			})
		})

		Convey("When asking for an even-sized window", func() {
			_, err := h.svc.ScoreWindow(ctx, scoreIDs[2], 4)

			So(err, ShouldNotBeNil)
		})

		Convey("When asking for a window around an unknown score", func() {
			_, err := h.svc.ScoreWindow(ctx, uuid.New(), 3)

			So(err, ShouldEqual, service.ErrScoreNotFound)
		})

		Convey("When reading scores by mutual players", func() {
			// players[0] and players[1] favourite each other; players[2]
			// only favourites players[0] one way.
			So(h.svc.FavouriteUser(ctx, players[0], players[1]), ShouldBeNil)
			So(h.svc.FavouriteUser(ctx, players[1], players[0]), ShouldBeNil)
			So(h.svc.FavouriteUser(ctx, players[2], players[0]), ShouldBeNil)

			p, err := h.svc.ScoresByMutualPlayers(ctx, level.ID, players[0].ID, 0, 0, 10)

			Convey("Then only mutual connections and the player remain, renumbered", func() {
				So(err, ShouldBeNil)
				So(p.Items, ShouldHaveLength, 2)
				So(p.Items[0].Score.Value, ShouldEqual, 200)
				So(p.Items[0].Rank, ShouldEqual, 1)
				So(p.Items[1].Score.Value, ShouldEqual, 100)
				So(p.Items[1].Rank, ShouldEqual, 2)
			})
		})
	})
}

func TestChallenges(t *testing.T) {
	Convey("Given a challenge on a level", t, func() {
		h := newHarness()
		h.start()
		ctx := context.Background()

		publisher, err := h.svc.CreateUser(ctx, "publisher")
		So(err, ShouldBeNil)
		level, err := h.svc.PublishLevel(ctx, publisher, "skyline")
		So(err, ShouldBeNil)
		challenge, err := h.svc.CreateChallenge(ctx, level, "speedrun")
		So(err, ShouldBeNil)

		p1, err := h.svc.CreateUser(ctx, "p1")
		So(err, ShouldBeNil)
		p2, err := h.svc.CreateUser(ctx, "p2")
		So(err, ShouldBeNil)

		Convey("When the first challenge score ever lands", func() {
			_, window, err := h.svc.SubmitChallengeScore(ctx, challenge.ID, 300, []uuid.UUID{p1.ID})

			Convey("Then no notification is sent", func() {
				So(err, ShouldBeNil)
				So(window.Items, ShouldHaveLength, 1)
				So(settled(h.sink), ShouldBeEmpty)
			})

			Convey("Then the parent level's play counter moved", func() {
				So(err, ShouldBeNil)
				rec, serr := h.svc.Statistics(ctx, level.ID)
				So(serr, ShouldBeNil)
				So(rec.Counters.PlayCount, ShouldEqual, 1)
			})
		})

		Convey("When a later score overtakes the challenge leader", func() {
			_, _, err := h.svc.SubmitChallengeScore(ctx, challenge.ID, 300, []uuid.UUID{p1.ID})
			So(err, ShouldBeNil)
			h.clock.Advance(time.Minute)
			_, _, err = h.svc.SubmitChallengeScore(ctx, challenge.ID, 400, []uuid.UUID{p2.ID})
			So(err, ShouldBeNil)

			Convey("Then the overtaken player is notified", func() {
				So(waitForSent(h.sink, 1), ShouldBeTrue)
				sent := settled(h.sink)
				So(sent, ShouldHaveLength, 1)
				So(sent[0].RecipientID, ShouldEqual, p1.ID)
			})
		})

		Convey("When reading the challenge board", func() {
			_, _, err := h.svc.SubmitChallengeScore(ctx, challenge.ID, 300, []uuid.UUID{p1.ID})
			So(err, ShouldBeNil)
			h.clock.Advance(time.Minute)
			_, _, err = h.svc.SubmitChallengeScore(ctx, challenge.ID, 400, []uuid.UUID{p2.ID})
			So(err, ShouldBeNil)

			p, err := h.svc.RankedChallengeScores(ctx, challenge.ID, 0, 10)

			So(err, ShouldBeNil)
			So(p.Items, ShouldHaveLength, 2)
			So(p.Items[0].Score.Value, ShouldEqual, 400)
		})

		Convey("When submitting to an unknown challenge", func() {
			_, _, err := h.svc.SubmitChallengeScore(ctx, uuid.New(), 100, []uuid.UUID{p1.ID})

			So(err, ShouldEqual, service.ErrSubjectNotFound)
		})
	})
}

func TestDeleteLevel(t *testing.T) {
	Convey("Given a level with scores and a challenge", t, func() {
		h := newHarness()
		h.start()
		ctx := context.Background()

		publisher, err := h.svc.CreateUser(ctx, "publisher")
		So(err, ShouldBeNil)
		level, err := h.svc.PublishLevel(ctx, publisher, "skyline")
		So(err, ShouldBeNil)
		challenge, err := h.svc.CreateChallenge(ctx, level, "speedrun")
		So(err, ShouldBeNil)

		p1, err := h.svc.CreateUser(ctx, "p1")
		So(err, ShouldBeNil)
		_, _, err = h.svc.SubmitScore(ctx, level.ID, 0, 100, []uuid.UUID{p1.ID})
		So(err, ShouldBeNil)
		_, _, err = h.svc.SubmitChallengeScore(ctx, challenge.ID, 50, []uuid.UUID{p1.ID})
		So(err, ShouldBeNil)

		Convey("When deleting the level", func() {
			So(h.svc.DeleteLevel(ctx, level), ShouldBeNil)

			Convey("Then its boards and statistics are gone", func() {
				_, err := h.svc.Statistics(ctx, level.ID)
				So(err, ShouldEqual, service.ErrSubjectNotFound)

				p, err := h.svc.RankedChallengeScores(ctx, challenge.ID, 0, 10)
				So(err, ShouldBeNil)
				So(p.Items, ShouldBeEmpty)
			})

			Convey("Then a following sweep completes without resurrecting it", func() {
				h.clock.Advance(10 * time.Minute)
				_, err := h.svc.SweepNow(ctx)
				So(err, ShouldBeNil)

				_, err = h.svc.Statistics(ctx, level.ID)
				So(err, ShouldEqual, service.ErrSubjectNotFound)
			})
		})
	})
}
