package ranking_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/playcore/tally/internal/domain/model"
	"github.com/playcore/tally/internal/domain/ranking"
)

func score(player uuid.UUID, value int64, at time.Time) model.Score {
	return model.Score{
		ID:        uuid.New(),
		SubjectID: uuid.Nil,
		Value:     value,
		PlayerIDs: []uuid.UUID{player},
		CreatedAt: at,
	}
}

func TestRank(t *testing.T) {
	Convey("Given scores from players A, A, B and C", t, func() {
		base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		playerA := uuid.New()
		playerB := uuid.New()
		playerC := uuid.New()

		first := score(playerA, 100, base)
		second := score(playerA, 100, base.Add(time.Minute))
		third := score(playerB, 90, base.Add(2*time.Minute))
		fourth := score(playerC, 80, base.Add(3*time.Minute))
		scores := []model.Score{fourth, second, third, first}

		Convey("When ranking with deduplication", func() {
			ranked := ranking.Rank(scores)

			Convey("Then each player holds exactly one rank", func() {
				So(ranked, ShouldHaveLength, 3)
				So(ranked[0].Score.ID, ShouldEqual, first.ID)
				So(ranked[0].Rank, ShouldEqual, 1)
				So(ranked[1].Score.PrimaryPlayer(), ShouldEqual, playerB)
				So(ranked[1].Rank, ShouldEqual, 2)
				So(ranked[2].Score.PrimaryPlayer(), ShouldEqual, playerC)
				So(ranked[2].Rank, ShouldEqual, 3)
			})

			Convey("Then the earlier of two tied scores wins", func() {
				So(ranked[0].Score.CreatedAt, ShouldEqual, base)
			})
		})

		Convey("When ranking with duplicates kept", func() {
			ranked := ranking.RankWithDuplicates(scores)

			Convey("Then every row stays on the board with consecutive ranks", func() {
				So(ranked, ShouldHaveLength, 4)
				So(ranked[0].Score.ID, ShouldEqual, first.ID)
				So(ranked[1].Score.ID, ShouldEqual, second.ID)
				So(ranked[3].Rank, ShouldEqual, 4)
			})
		})

		Convey("When ranking an empty board", func() {
			ranked := ranking.Rank(nil)

			So(ranked, ShouldBeEmpty)
			_, ok := ranking.Top(ranked)
			So(ok, ShouldBeFalse)
		})
	})
}

func TestWindow(t *testing.T) {
	Convey("Given a board of 10 ranked scores", t, func() {
		base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		scores := make([]model.Score, 0, 10)
		for i := 0; i < 10; i++ {
			scores = append(scores, score(uuid.New(), int64(1000-i*10), base.Add(time.Duration(i)*time.Minute)))
		}
		ranked := ranking.Rank(scores)
		So(ranked, ShouldHaveLength, 10)

		Convey("When centering a size-3 window on rank 5", func() {
			window, start, err := ranking.Window(ranked, ranked[4].Score.ID, 3)

			Convey("Then ranks 4, 5 and 6 are returned", func() {
				So(err, ShouldBeNil)
				So(start, ShouldEqual, 3)
				So(window, ShouldHaveLength, 3)
				So(window[0].Rank, ShouldEqual, 4)
				So(window[1].Rank, ShouldEqual, 5)
				So(window[2].Rank, ShouldEqual, 6)
			})
		})

		Convey("When centering on rank 1", func() {
			window, start, err := ranking.Window(ranked, ranked[0].Score.ID, 3)

			Convey("Then the window clamps to the top of the board", func() {
				So(err, ShouldBeNil)
				So(start, ShouldEqual, 0)
				So(window[0].Rank, ShouldEqual, 1)
				So(window[2].Rank, ShouldEqual, 3)
			})
		})

		Convey("When centering on the last rank", func() {
			window, start, err := ranking.Window(ranked, ranked[9].Score.ID, 3)

			Convey("Then the window clamps to the bottom of the board", func() {
				So(err, ShouldBeNil)
				So(start, ShouldEqual, 7)
				So(window[0].Rank, ShouldEqual, 8)
				So(window[2].Rank, ShouldEqual, 10)
			})
		})

		Convey("When the window is wider than the board", func() {
			window, start, err := ranking.Window(ranked, ranked[4].Score.ID, 21)

			Convey("Then the whole board is returned", func() {
				So(err, ShouldBeNil)
				So(start, ShouldEqual, 0)
				So(window, ShouldHaveLength, 10)
			})
		})

		Convey("When the size is even", func() {
			_, _, err := ranking.Window(ranked, ranked[0].Score.ID, 4)

			So(err, ShouldEqual, ranking.ErrWindowSize)
		})

		Convey("When the size is not positive", func() {
			_, _, err := ranking.Window(ranked, ranked[0].Score.ID, 0)

			So(err, ShouldEqual, ranking.ErrWindowSize)
		})

		Convey("When the score is not on the board", func() {
			_, _, err := ranking.Window(ranked, uuid.New(), 3)

			So(err, ShouldEqual, ranking.ErrScoreNotRanked)
		})
	})
}
