package store

import (
	"errors"
	"testing"
	"time"

	"github.com/lazypower/lethe/internal/retention"
)

var base = time.Date(2026, 5, 1, 8, 30, 0, 123456789, time.UTC)

func mustCreate(t *testing.T, db *DB, id, kind string, created time.Time) *retention.Node {
	t.Helper()
	n := &retention.Node{ID: id, Content: "content of " + id, Type: kind, CreatedAt: created}
	if err := db.CreateNode(n); err != nil {
		t.Fatalf("CreateNode(%s): %v", id, err)
	}
	return n
}

func TestCreateAndGetNode(t *testing.T) {
	db := testDB(t)
	n := mustCreate(t, db, "n1", retention.TypeInsight, base)

	got, err := db.GetNode("n1")
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if got == nil {
		t.Fatal("expected node, got nil")
	}
	if got.Content != n.Content || got.Type != retention.TypeInsight {
		t.Errorf("got %+v, want %+v", got, n)
	}
	if !got.CreatedAt.Equal(base) {
		t.Errorf("created_at = %v, want %v (nanoseconds must survive)", got.CreatedAt, base)
	}
	if !got.LastTouchedAt.Equal(base) {
		t.Errorf("last_touched_at = %v, want created_at", got.LastTouchedAt)
	}
}

func TestGetNodeMissing(t *testing.T) {
	db := testDB(t)
	n, err := db.GetNode("nope")
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if n != nil {
		t.Error("expected nil for unknown id")
	}
}

func TestCreateNodeDefaults(t *testing.T) {
	db := testDB(t)
	n := &retention.Node{ID: "d"}
	if err := db.CreateNode(n); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	if n.Type != retention.TypeNote {
		t.Errorf("type = %q, want note", n.Type)
	}
	if n.CreatedAt.IsZero() {
		t.Error("created_at should default to now")
	}

	if err := db.CreateNode(&retention.Node{}); err == nil {
		t.Error("expected error for empty id")
	}
}

func TestTouchNode(t *testing.T) {
	db := testDB(t)
	mustCreate(t, db, "t", retention.TypeNote, base)

	later := base.Add(48 * time.Hour)
	if err := db.TouchNode("t", retention.InteractionSelect, later); err != nil {
		t.Fatalf("TouchNode: %v", err)
	}
	// An older touch must not move last_touched_at backwards.
	if err := db.TouchNode("t", retention.InteractionView, base.Add(time.Hour)); err != nil {
		t.Fatalf("TouchNode: %v", err)
	}

	n, _ := db.GetNode("t")
	if !n.LastTouchedAt.Equal(later) {
		t.Errorf("last_touched_at = %v, want %v", n.LastTouchedAt, later)
	}

	counts, err := db.InteractionCounts(base)
	if err != nil {
		t.Fatalf("InteractionCounts: %v", err)
	}
	if counts["t"] != 2 {
		t.Errorf("count = %d, want 2", counts["t"])
	}

	counts, _ = db.InteractionCounts(base.Add(24 * time.Hour))
	if counts["t"] != 1 {
		t.Errorf("windowed count = %d, want 1", counts["t"])
	}

	err = db.TouchNode("ghost", retention.InteractionEdit, later)
	var nf *retention.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("touch unknown: err = %v, want NotFoundError", err)
	}
	if err := db.TouchNode("t", "stare", later); err == nil {
		t.Error("expected error for unknown interaction kind")
	}
}

func TestUpdateContentAndPin(t *testing.T) {
	db := testDB(t)
	mustCreate(t, db, "u", retention.TypeNote, base)

	if err := db.UpdateContent("u", "rewritten", base.Add(time.Hour)); err != nil {
		t.Fatalf("UpdateContent: %v", err)
	}
	if err := db.SetPinned("u", true); err != nil {
		t.Fatalf("SetPinned: %v", err)
	}
	n, _ := db.GetNode("u")
	if n.Content != "rewritten" || !n.Pinned {
		t.Errorf("got %+v", n)
	}

	var nf *retention.NotFoundError
	if err := db.SetPinned("ghost", true); !errors.As(err, &nf) {
		t.Errorf("SetPinned unknown: %v", err)
	}
}

func TestLinkAndDegrees(t *testing.T) {
	db := testDB(t)
	for _, id := range []string{"a", "b", "c", "d"} {
		mustCreate(t, db, id, retention.TypeNote, base)
	}

	links := [][2]string{{"a", "b"}, {"c", "a"}, {"b", "a"}} // third is a duplicate
	for _, l := range links {
		if err := db.Link(l[0], l[1], base); err != nil {
			t.Fatalf("Link(%s,%s): %v", l[0], l[1], err)
		}
	}
	if err := db.Link("a", "a", base); err == nil {
		t.Error("expected error for self link")
	}
	var nf *retention.NotFoundError
	if err := db.Link("a", "ghost", base); !errors.As(err, &nf) {
		t.Errorf("link to unknown: %v", err)
	}

	degrees, err := db.Degrees()
	if err != nil {
		t.Fatalf("Degrees: %v", err)
	}
	want := map[string]int{"a": 2, "b": 1, "c": 1, "d": 0}
	for id, d := range want {
		if degrees[id] != d {
			t.Errorf("degree[%s] = %d, want %d", id, degrees[id], d)
		}
	}

	counts, _ := db.InteractionCounts(base)
	if counts["a"] != 2 {
		t.Errorf("connect interactions on a = %d, want 2", counts["a"])
	}

	if err := db.Unlink("b", "a"); err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	degrees, _ = db.Degrees()
	if degrees["a"] != 1 {
		t.Errorf("degree[a] after unlink = %d, want 1", degrees["a"])
	}
}

func TestRecordEmotionKeepsMax(t *testing.T) {
	db := testDB(t)
	mustCreate(t, db, "e", retention.TypeNote, base)
	mustCreate(t, db, "f", retention.TypeNote, base)

	for _, v := range []float64{0.4, 0.9, 0.2} {
		if err := db.RecordEmotion("e", v, base); err != nil {
			t.Fatalf("RecordEmotion: %v", err)
		}
	}
	got, err := db.EmotionIntensities([]string{"e", "f"})
	if err != nil {
		t.Fatalf("EmotionIntensities: %v", err)
	}
	if got["e"] != 0.9 {
		t.Errorf("intensity = %v, want 0.9", got["e"])
	}
	if _, ok := got["f"]; ok {
		t.Error("f has no recorded emotion and should be absent")
	}

	var ve *retention.ValidationError
	if err := db.RecordEmotion("e", 1.5, base); !errors.As(err, &ve) {
		t.Errorf("out of range intensity: %v", err)
	}
}

func TestSnapshot(t *testing.T) {
	db := testDB(t)
	mustCreate(t, db, "x", retention.TypeNote, base)
	mustCreate(t, db, "y", retention.TypeIdea, base.Add(time.Minute))
	db.Link("x", "y", base.Add(time.Hour))

	now := base.Add(10 * 24 * time.Hour)
	snap, err := db.Snapshot(now, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Nodes) != 2 || snap.Nodes[0].ID != "x" {
		t.Fatalf("nodes = %+v", snap.Nodes)
	}
	if snap.Degrees["x"] != 1 || snap.Interactions["y"] != 1 {
		t.Errorf("degrees=%v interactions=%v", snap.Degrees, snap.Interactions)
	}
	if !snap.TakenAt.Equal(now) {
		t.Errorf("taken_at = %v, want %v", snap.TakenAt, now)
	}
}

func TestTimestampsAtTheEdges(t *testing.T) {
	db := testDB(t)
	epoch := time.Unix(0, 0).UTC()
	mustCreate(t, db, "epoch", retention.TypeNote, epoch)

	got, err := db.GetNode("epoch")
	if err != nil || got == nil {
		t.Fatalf("GetNode: %v, %v", got, err)
	}
	if !got.CreatedAt.Equal(epoch) || got.CreatedAt.IsZero() {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, epoch)
	}

	for _, at := range []time.Time{
		time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC),
	} {
		err := db.CreateNode(&retention.Node{ID: "far-" + at.Format("2006"), CreatedAt: at})
		var ve *retention.ValidationError
		if !errors.As(err, &ve) || ve.Field != "created_at" {
			t.Errorf("CreateNode(%v) = %v, want created_at ValidationError", at, err)
		}
	}
	if n, _ := db.CountNodes(); n != 1 {
		t.Errorf("count = %d, rejected nodes must not be stored", n)
	}

	if err := CheckTime("created_at", time.Time{}); err != nil {
		t.Errorf("zero time: %v", err)
	}
}
