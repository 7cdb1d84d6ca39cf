package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"legend-tracker/internal/domain"
	"legend-tracker/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/smartystreets/goconvey/convey"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type recorder struct {
	changes []domain.ChangeEvent
	resets  []domain.SeasonResetEvent
	err     error
}

func (r *recorder) TrophyChange(_ context.Context, ev domain.ChangeEvent) error {
	r.changes = append(r.changes, ev)
	return r.err
}

func (r *recorder) SeasonReset(_ context.Context, ev domain.SeasonResetEvent) error {
	r.resets = append(r.resets, ev)
	return r.err
}

func (r *recorder) Close() error { return nil }

func sampleChange() domain.ChangeEvent {
	return domain.ChangeEvent{
		ID:         NewEventID(),
		PlayerTag:  "ABC",
		PlayerName: "alice",
		Delta:      120,
		Kind:       domain.KindAttack,
		Magnitude:  120,
		Entries:    []int{40, 40, 40},
		DayKey:     "2025-06-30",
		Trophies:   4120,
		ObservedAt: time.Date(2025, 6, 30, 6, 0, 0, 0, time.UTC),
	}
}

func TestLogNotifier(t *testing.T) {
	convey.Convey("Given a log notifier", t, func() {
		var buf bytes.Buffer
		n := NewLogNotifier(zerolog.New(&buf))

		convey.Convey("When a trophy change is delivered", func() {
			err := n.TrophyChange(context.Background(), sampleChange())

			convey.Convey("Then one structured line is written", func() {
				convey.So(err, convey.ShouldBeNil)
				var line map[string]any
				convey.So(json.Unmarshal(buf.Bytes(), &line), convey.ShouldBeNil)
				convey.So(line["tag"], convey.ShouldEqual, "ABC")
				convey.So(line["kind"], convey.ShouldEqual, "attack")
				convey.So(line["delta"], convey.ShouldEqual, float64(120))
				convey.So(line["sink"], convey.ShouldEqual, "log")
			})
		})

		convey.Convey("When a season reset is delivered", func() {
			err := n.SeasonReset(context.Background(), domain.SeasonResetEvent{ID: "x", PlayersCleared: 2})
			convey.So(err, convey.ShouldBeNil)
			convey.So(buf.String(), convey.ShouldContainSubstring, "a new season begins")
		})
	})
}

func TestMulti(t *testing.T) {
	convey.Convey("Given a fan-out over a healthy and a failing sink", t, func() {
		m := metrics.New()
		multi := NewMulti(zerolog.Nop(), m)
		good := &recorder{}
		bad := &recorder{err: errors.New("boom")}
		multi.Add("bad", bad)
		multi.Add("good", good)

		convey.Convey("When a trophy change is delivered", func() {
			err := multi.TrophyChange(context.Background(), sampleChange())

			convey.Convey("Then the healthy sink still receives it", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "bad: boom")
				convey.So(good.changes, convey.ShouldHaveLength, 1)
				convey.So(bad.changes, convey.ShouldHaveLength, 1)
			})

			convey.Convey("Then the failure is counted per sink", func() {
				count, gerr := testutil.GatherAndCount(m.Registry, "legend_tracker_notify_errors_total")
				convey.So(gerr, convey.ShouldBeNil)
				convey.So(count, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When every sink succeeds", func() {
			bad.err = nil
			err := multi.SeasonReset(context.Background(), domain.SeasonResetEvent{ID: "r1"})
			convey.So(err, convey.ShouldBeNil)
			convey.So(good.resets, convey.ShouldHaveLength, 1)
		})
	})
}

func TestKafkaNotifier(t *testing.T) {
	convey.Convey("Given a kafka notifier", t, func() {
		changes, resets := &fakeWriter{}, &fakeWriter{}
		n := &KafkaNotifier{changes: changes, resets: resets, logger: zerolog.Nop()}

		convey.Convey("When a trophy change is written", func() {
			ev := sampleChange()
			err := n.TrophyChange(context.Background(), ev)

			convey.Convey("Then it is keyed by player tag", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(changes.msgs, convey.ShouldHaveLength, 1)
				convey.So(string(changes.msgs[0].Key), convey.ShouldEqual, "ABC")

				var got domain.ChangeEvent
				convey.So(json.Unmarshal(changes.msgs[0].Value, &got), convey.ShouldBeNil)
				convey.So(got.Entries, convey.ShouldResemble, []int{40, 40, 40})
				convey.So(resets.msgs, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When the broker rejects the write", func() {
			resets.err = errors.New("leader not available")
			err := n.SeasonReset(context.Background(), domain.SeasonResetEvent{ID: "r1"})
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When it is closed", func() {
			convey.So(n.Close(), convey.ShouldBeNil)
			convey.So(changes.closed, convey.ShouldBeTrue)
			convey.So(resets.closed, convey.ShouldBeTrue)
		})
	})
}
