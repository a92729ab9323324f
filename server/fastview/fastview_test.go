package fastview

import (
	"context"
	"html/template"
	"testing"
	"time"

	channerics "github.com/niceyeti/channerics/channels"
	. "github.com/smartystreets/goconvey/convey"
)

// testView emits one update per view-model, using the view-model as the ele-id.
type testView struct {
	updates <-chan []EleUpdate
}

func newTestView(done <-chan struct{}, vms <-chan string) ViewComponent {
	return &testView{
		updates: channerics.Convert(done, vms, func(vm string) []EleUpdate {
			return []EleUpdate{{EleId: vm}}
		}),
	}
}

func (tv *testView) Updates() <-chan []EleUpdate {
	return tv.updates
}

func (tv *testView) Parse(t *template.Template) (string, error) {
	_, err := t.Parse(`{{ define "testview" }}test{{ end }}`)
	return "testview", err
}

func TestViewBuilder(t *testing.T) {
	Convey("Given a view builder", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		input := make(chan int)

		Convey("Build fails without views", func() {
			_, err := NewViewBuilder[int, string]().
				WithModel(input, func(i int) string { return "x" }).
				Build()
			So(err, ShouldEqual, ErrNoViews)
		})

		Convey("Build fails without a model", func() {
			_, err := NewViewBuilder[int, string]().
				WithView(newTestView).
				Build()
			So(err, ShouldEqual, ErrNoModel)
		})

		Convey("Every view receives each converted model", func() {
			views, err := NewViewBuilder[int, string]().
				WithContext(ctx).
				WithModel(input, func(i int) string { return string(rune('a' + i)) }).
				WithView(newTestView).
				WithView(newTestView).
				Build()
			So(err, ShouldBeNil)
			So(len(views), ShouldEqual, 2)

			go func() { input <- 2 }()
			for _, view := range views {
				select {
				case updates := <-view.Updates():
					So(updates, ShouldResemble, []EleUpdate{{EleId: "c"}})
				case <-time.After(time.Second):
					So("timed out", ShouldBeEmpty)
				}
			}
		})
	})
}

func TestBatch(t *testing.T) {
	Convey("Batch keeps the latest update per ele-id in first-seen order", t, func() {
		source := make(chan []EleUpdate)
		out := Batch(nil, source, time.Hour)

		go func() {
			defer close(source)
			source <- []EleUpdate{{EleId: "a", Ops: []Op{{"textContent", "1"}}}}
			source <- []EleUpdate{
				{EleId: "b", Ops: []Op{{"textContent", "1"}}},
				{EleId: "a", Ops: []Op{{"textContent", "2"}}},
			}
		}()

		var batches [][]EleUpdate
		for batch := range out {
			batches = append(batches, batch)
		}
		So(len(batches), ShouldEqual, 1)
		So(batches[0], ShouldResemble, []EleUpdate{
			{EleId: "a", Ops: []Op{{"textContent", "2"}}},
			{EleId: "b", Ops: []Op{{"textContent", "1"}}},
		})
	})

	Convey("FanIn merges the updates of every view", t, func() {
		first := make(chan string)
		second := make(chan string)
		views := []ViewComponent{newTestView(nil, first), newTestView(nil, second)}
		out := FanIn(nil, views, 0)

		go func() {
			first <- "x"
			second <- "y"
			close(first)
			close(second)
		}()

		seen := map[string]bool{}
		for batch := range out {
			for _, update := range batch {
				seen[update.EleId] = true
			}
		}
		So(seen, ShouldResemble, map[string]bool{"x": true, "y": true})
	})
}
