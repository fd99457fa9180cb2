package docstore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSplitDoc(t *testing.T) {
	col, id, err := SplitDoc("users/u1/notifications/n1")
	if err != nil || col != "users/u1/notifications" || id != "n1" {
		t.Fatalf("SplitDoc = %q, %q, %v", col, id, err)
	}
	for _, bad := range []string{"", "users", "users/u1/played", "/users/u1", "users//x/y", "users/u1/"} {
		if _, _, err := SplitDoc(bad); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("SplitDoc(%q) err = %v; want ErrInvalidPath", bad, err)
		}
	}
}

func TestValidateCollection(t *testing.T) {
	if err := ValidateCollection("users/u1/played"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := ValidateCollection("users/u1"); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("document path accepted as collection")
	}
}

func TestNewID_Length(t *testing.T) {
	a, b := NewID(), NewID()
	if len(a) != 20 || a == b {
		t.Fatalf("ids %q %q", a, b)
	}
}

type entry struct {
	Name  string    `firestore:"name"`
	Cover *string   `firestore:"cover"`
	At    time.Time `firestore:"addedAt"`
	Likes int       `firestore:"likes"`
	Skip  string    `firestore:"-"`
}

func TestDecode_StringTimesAndNulls(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 30, 0, 123, time.UTC)
	var e entry
	err := Decode(Fields{
		"name":    "Hades",
		"cover":   nil,
		"addedAt": at.Format(time.RFC3339Nano),
		"likes":   float64(3),
	}, &e)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if e.Name != "Hades" || e.Cover != nil || !e.At.Equal(at) || e.Likes != 3 {
		t.Fatalf("decoded %+v", e)
	}

	if err := Decode(Fields{"addedAt": at}, &e); err != nil || !e.At.Equal(at) {
		t.Fatalf("native time: %+v %v", e, err)
	}
	if err := Decode(Fields{"name": []int{1}}, &e); err == nil {
		t.Fatalf("expected type error")
	}
}

func TestApply_OrdersByTimeThenID(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	snaps := []Snapshot{
		{ID: "a", Fields: Fields{"ts": t0.Format(time.RFC3339Nano)}},
		{ID: "b", Fields: Fields{"ts": t0.Add(2 * time.Second).Format(time.RFC3339Nano)}},
		{ID: "c", Fields: Fields{"ts": t0.Add(500 * time.Millisecond).Format(time.RFC3339Nano)}},
		{ID: "d", Fields: Fields{"ts": t0.Format(time.RFC3339Nano)}},
	}
	got := Apply(snaps, Query{OrderBy: "ts", Desc: true, Limit: 3})
	want := []string{"b", "c", "d"}
	if len(got) != 3 {
		t.Fatalf("len = %d", len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("order = %v; want %v", ids(got), want)
		}
	}
}

func TestApply_Numbers(t *testing.T) {
	snaps := []Snapshot{
		{ID: "x", Fields: Fields{"likes": int64(2)}},
		{ID: "y", Fields: Fields{"likes": float64(10)}},
		{ID: "z", Fields: Fields{}},
	}
	got := Apply(snaps, Query{OrderBy: "likes"})
	if ids(got) != "zxy" {
		t.Fatalf("order = %s", ids(got))
	}
}

func ids(s []Snapshot) string {
	out := ""
	for _, x := range s {
		out += x.ID
	}
	return out
}

func TestHub_WatchCoalescesAndStops(t *testing.T) {
	h := NewHub()
	ch, stop := h.Watch("users/u1/played")
	h.Publish(context.Background(), "users/u1/played")
	h.Publish(context.Background(), "users/u1/played")
	h.Publish(context.Background(), "users/u2/played")

	select {
	case <-ch:
	default:
		t.Fatalf("expected a signal")
	}
	select {
	case <-ch:
		t.Fatalf("signals should coalesce")
	default:
	}

	stop()
	stop()
	if n := h.Watching("users/u1/played"); n != 0 {
		t.Fatalf("watchers = %d", n)
	}
}

type recNotifier struct{ got []string }

func (r *recNotifier) Notify(_ context.Context, c string) error {
	r.got = append(r.got, c)
	return errors.New("offline")
}

func TestHub_ForwardsToNotifier(t *testing.T) {
	h := NewHub()
	n := &recNotifier{}
	h.SetNotifier(n)
	h.Publish(context.Background(), "games/1/comments")
	if len(n.got) != 1 || n.got[0] != "games/1/comments" {
		t.Fatalf("notifier got %v", n.got)
	}
}

func TestSubscription_LatestWinsAndClose(t *testing.T) {
	release := make(chan struct{})
	sub := NewSubscription(context.Background(), func(ctx context.Context, emit Emitter) error {
		emit(ctx, []Snapshot{{ID: "1"}})
		emit(ctx, []Snapshot{{ID: "2"}})
		<-release
		<-ctx.Done()
		return nil
	})

	got := <-sub.C
	if len(got) != 1 || got[0].ID != "2" {
		t.Fatalf("expected latest result set, got %+v", got)
	}
	close(release)
	sub.Close()
	sub.Close()
	if _, ok := <-sub.C; ok {
		t.Fatalf("channel should be closed")
	}
	if sub.Err() != nil {
		t.Fatalf("unexpected err: %v", sub.Err())
	}
}

func TestSubscription_RecordsError(t *testing.T) {
	boom := errors.New("listener failed")
	sub := NewSubscription(context.Background(), func(ctx context.Context, emit Emitter) error {
		return boom
	})
	<-sub.Done()
	if !errors.Is(sub.Err(), boom) {
		t.Fatalf("Err = %v", sub.Err())
	}
	sub.Close()
}
