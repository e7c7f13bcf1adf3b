package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	model "github.com/okian/standings/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestRecordClone(t *testing.T) {
	convey.Convey("Given a committed record", t, func() {
		rec := model.Record{
			Competition: "titanic",
			Entries: []model.Entry{
				{Rank: 1, Team: "alpha", SubmissionDate: "2025-03-02", Score: 0.91},
				{Rank: 2, Team: "beta", SubmissionDate: "2025-03-03", Score: 0.88},
			},
			LastUpdated: time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC),
			RowLimit:    50,
		}

		convey.Convey("When cloning and modifying the clone", func() {
			c := rec.Clone()
			c.Entries[0].Team = "mutated"

			convey.Convey("Then the original entries are untouched", func() {
				convey.So(rec.Entries[0].Team, convey.ShouldEqual, "alpha")
				convey.So(c.Competition, convey.ShouldEqual, rec.Competition)
				convey.So(c.LastUpdated, convey.ShouldEqual, rec.LastUpdated)
				convey.So(c.RowLimit, convey.ShouldEqual, 50)
			})
		})

		convey.Convey("When cloning a record without entries", func() {
			c := model.Record{Competition: "empty"}.Clone()

			convey.Convey("Then entries stay nil", func() {
				convey.So(c.Entries, convey.ShouldBeNil)
			})
		})
	})
}

func TestEntryJSON(t *testing.T) {
	convey.Convey("Given a ranked entry", t, func() {
		e := model.Entry{Rank: 3, Team: "Team Rocket", SubmissionDate: "2025-03-05 12:00:00", Score: 0.75}

		convey.Convey("Then it encodes with the public field names", func() {
			b, err := json.Marshal(e)
			convey.So(err, convey.ShouldBeNil)
			convey.So(string(b), convey.ShouldEqual,
				`{"rank":3,"team":"Team Rocket","submission_date":"2025-03-05 12:00:00","score":0.75}`)
		})
	})
}

func TestNewEvent(t *testing.T) {
	convey.Convey("Given a committed record", t, func() {
		rec := model.Record{
			Competition: "titanic",
			Entries:     []model.Entry{{Rank: 1, Team: "alpha", Score: 1}},
			LastUpdated: time.Now(),
		}

		convey.Convey("When building update events", func() {
			a := model.NewEvent(rec)
			b := model.NewEvent(rec)

			convey.Convey("Then each carries the record and a distinct id", func() {
				convey.So(a.Competition, convey.ShouldEqual, "titanic")
				convey.So(a.Entries, convey.ShouldResemble, rec.Entries)
				convey.So(a.LastUpdated, convey.ShouldEqual, rec.LastUpdated)
				convey.So(a.ID, convey.ShouldNotEqual, uuid.Nil)
				convey.So(a.ID, convey.ShouldNotEqual, b.ID)
			})
		})
	})
}
