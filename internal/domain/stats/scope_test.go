package stats_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/playcore/tally/internal/domain/model"
	"github.com/playcore/tally/internal/domain/stats"
)

func TestWithStats(t *testing.T) {
	Convey("Given a subject and a mutation", t, func() {
		c := newClock()
		store, engine, level, _ := fixture(c)
		ctx := context.Background()
		fan := uuid.New()

		Convey("When the mutation succeeds", func() {
			err := engine.WithStats(ctx, level, func(ctx context.Context) error {
				if err := store.InsertRelation(ctx, model.Relation{
					Kind:      model.RelationFavouriteLevel,
					SubjectID: level.ID,
					ActorID:   fan,
				}); err != nil {
					return err
				}
				return engine.ApplyDelta(ctx, level, func(cs *model.Counters) { cs.FavouriteCount++ })
			})

			Convey("Then the record exists, carries the delta, and is marked dirty", func() {
				So(err, ShouldBeNil)
				rec, err := engine.Record(ctx, level)
				So(err, ShouldBeNil)
				So(rec.Counters.FavouriteCount, ShouldEqual, 1)
				So(rec.RecalculateAt, ShouldNotBeNil)
			})
		})

		Convey("When the mutation fails midway", func() {
			boom := errors.New("boom")
			So(engine.Recalculate(ctx, level), ShouldBeNil)

			err := engine.WithStats(ctx, level, func(ctx context.Context) error {
				if err := store.InsertRelation(ctx, model.Relation{
					Kind:      model.RelationFavouriteLevel,
					SubjectID: level.ID,
					ActorID:   fan,
				}); err != nil {
					return err
				}
				if err := engine.ApplyDelta(ctx, level, func(cs *model.Counters) { cs.FavouriteCount++ }); err != nil {
					return err
				}
				return boom
			})

			Convey("Then no partial state survives", func() {
				So(err, ShouldEqual, boom)

				n, err := store.CountRelations(ctx, model.RelationFilter{
					Kind:      model.RelationFavouriteLevel,
					SubjectID: &level.ID,
				})
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)

				rec, err := engine.Record(ctx, level)
				So(err, ShouldBeNil)
				So(rec.Counters.FavouriteCount, ShouldEqual, 0)
				So(rec.RecalculateAt, ShouldBeNil)
			})
		})

		Convey("When the subject has no record yet", func() {
			err := engine.WithStats(ctx, level, func(ctx context.Context) error { return nil })

			Convey("Then the scope materializes and recomputes it first", func() {
				So(err, ShouldBeNil)
				rec, err := engine.Record(ctx, level)
				So(err, ShouldBeNil)
				So(rec.Version, ShouldEqual, model.StatsVersion)
			})
		})
	})
}

func TestWithStatsPair(t *testing.T) {
	Convey("Given a mutation touching a level and a user", t, func() {
		c := newClock()
		store, engine, level, _ := fixture(c)
		ctx := context.Background()

		fan := model.User{ID: uuid.New(), Name: "fan"}
		So(store.PutUser(ctx, fan), ShouldBeNil)

		Convey("When favouriting inside a pair scope", func() {
			err := engine.WithStatsPair(ctx, level, fan, func(ctx context.Context) error {
				if err := store.InsertRelation(ctx, model.Relation{
					Kind:      model.RelationFavouriteLevel,
					SubjectID: level.ID,
					ActorID:   fan.ID,
				}); err != nil {
					return err
				}
				if err := engine.ApplyDelta(ctx, level, func(cs *model.Counters) { cs.FavouriteCount++ }); err != nil {
					return err
				}
				return engine.ApplyDelta(ctx, fan, func(cs *model.Counters) { cs.FavouriteCount++ })
			})

			Convey("Then both sides carry the delta and both are dirty", func() {
				So(err, ShouldBeNil)

				levelRec, err := engine.Record(ctx, level)
				So(err, ShouldBeNil)
				So(levelRec.Counters.FavouriteCount, ShouldEqual, 1)
				So(levelRec.RecalculateAt, ShouldNotBeNil)

				fanRec, err := engine.Record(ctx, fan)
				So(err, ShouldBeNil)
				So(fanRec.Counters.FavouriteCount, ShouldEqual, 1)
				So(fanRec.RecalculateAt, ShouldNotBeNil)
			})
		})

		Convey("When the pair mutation fails", func() {
			boom := errors.New("boom")
			err := engine.WithStatsPair(ctx, level, fan, func(ctx context.Context) error {
				if err := store.InsertRelation(ctx, model.Relation{
					Kind:      model.RelationFavouriteLevel,
					SubjectID: level.ID,
					ActorID:   fan.ID,
				}); err != nil {
					return err
				}
				return boom
			})

			Convey("Then neither record was created and the row is gone", func() {
				So(err, ShouldEqual, boom)

				_, rerr := engine.Record(ctx, level)
				So(rerr, ShouldEqual, stats.ErrNoStats)
				_, rerr = engine.Record(ctx, fan)
				So(rerr, ShouldEqual, stats.ErrNoStats)

				n, cerr := store.CountRelations(ctx, model.RelationFilter{
					Kind:      model.RelationFavouriteLevel,
					SubjectID: &level.ID,
				})
				So(cerr, ShouldBeNil)
				So(n, ShouldEqual, 0)
			})
		})
	})
}
