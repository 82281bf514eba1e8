package syncx

import (
	"context"
	"testing"

	"github.com/mind-engage/mindengage-quiz/internal/db"
)

func TestEventRepoAppendAndList(t *testing.T) {
	ctx := context.Background()
	sqlDB, err := db.Open(ctx, db.DriverSQLite, "file:eventlog?mode=memory&cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	defer sqlDB.Close()

	repo := NewEventRepo(sqlDB, "")
	for _, e := range []Event{
		{Type: TypeAttemptStarted, Key: "a-1", DataJSON: `{"n":1}`},
		{Type: TypeAttemptStarted, Key: "a-2", DataJSON: `{}`},
		{Type: TypeAnswersSaved, Key: "a-1", DataJSON: `{"n":2}`},
		{Type: TypeAttemptCompleted, Key: "a-1", DataJSON: `{"n":3}`, SiteID: "lab"},
	} {
		if err := repo.Append(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := repo.ListByKey(ctx, "a-1")
	if err != nil {
		t.Fatal(err)
	}
	wantTypes := []string{TypeAttemptStarted, TypeAnswersSaved, TypeAttemptCompleted}
	if len(got) != len(wantTypes) {
		t.Fatalf("events = %+v", got)
	}
	for i, e := range got {
		if e.Type != wantTypes[i] {
			t.Fatalf("event %d type = %s, want %s", i, e.Type, wantTypes[i])
		}
		if i > 0 && e.Seq <= got[i-1].Seq {
			t.Fatalf("seq not increasing: %d after %d", e.Seq, got[i-1].Seq)
		}
		if e.CreatedAt == 0 {
			t.Fatal("created_at not set")
		}
	}
	if got[0].SiteID != "local" || got[2].SiteID != "lab" {
		t.Fatalf("site ids = %q, %q", got[0].SiteID, got[2].SiteID)
	}

	none, err := repo.ListByKey(ctx, "missing")
	if err != nil || len(none) != 0 {
		t.Fatalf("missing key = %v, %v", none, err)
	}
}
