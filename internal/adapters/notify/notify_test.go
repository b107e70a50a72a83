package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/abdulrahmanalageeli/match-sub002/internal/adapters/notify"
	logging "github.com/abdulrahmanalageeli/match-sub002/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	mu      sync.Mutex
	msgs    []published
	fail    error
	drained bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.msgs = append(f.msgs, published{subject: subject, data: data})
	return nil
}

func (f *fakeConn) Drain() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drained = true
	return nil
}

func TestNATSPublisher(t *testing.T) {
	convey.Convey("Given a NATS publisher over a connection", t, func() {
		conn := &fakeConn{}
		pub := notify.NewNATS(conn, notify.WithSubject("test.arr"), notify.WithLogger(logging.NewNop()))
		ctx := context.Background()

		convey.Convey("When an event is published", func() {
			err := pub.Publish(ctx, notify.Event{
				Type:    notify.TypeCommitted,
				EventID: "ev-1",
				Version: 4,
				Groups:  []int{2, 5},
			})

			convey.Convey("Then it lands on the event subject as JSON", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(conn.msgs, convey.ShouldHaveLength, 1)
				convey.So(conn.msgs[0].subject, convey.ShouldEqual, "test.arr.ev-1")

				var ev notify.Event
				convey.So(json.Unmarshal(conn.msgs[0].data, &ev), convey.ShouldBeNil)
				convey.So(ev.Type, convey.ShouldEqual, notify.TypeCommitted)
				convey.So(ev.Version, convey.ShouldEqual, 4)
				convey.So(ev.Groups, convey.ShouldResemble, []int{2, 5})
				convey.So(ev.At.IsZero(), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When the connection fails", func() {
			conn.fail = errors.New("boom")
			err := pub.Publish(ctx, notify.Event{Type: notify.TypeFinalized, EventID: "ev-1"})

			convey.Convey("Then the error is returned", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, conn.fail), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			err := pub.Publish(cctx, notify.Event{EventID: "ev-1"})

			convey.Convey("Then nothing is sent", func() {
				convey.So(errors.Is(err, context.Canceled), convey.ShouldBeTrue)
				convey.So(conn.msgs, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When the publisher is closed", func() {
			convey.So(pub.Close(), convey.ShouldBeNil)
			convey.So(pub.Close(), convey.ShouldBeNil)

			convey.Convey("Then the connection is drained and publishing fails", func() {
				convey.So(conn.drained, convey.ShouldBeTrue)
				convey.So(pub.Publish(ctx, notify.Event{EventID: "ev-1"}), convey.ShouldEqual, notify.ErrClosed)
			})
		})
	})

	convey.Convey("Given the no-op notifier", t, func() {
		var n notify.Notifier = notify.Nop{}

		convey.Convey("Then publishing and closing succeed", func() {
			convey.So(n.Publish(context.Background(), notify.Event{}), convey.ShouldBeNil)
			convey.So(n.Close(), convey.ShouldBeNil)
		})
	})
}
