package audit

import (
	"fmt"
	"testing"
	"time"
)

func TestLogBoundedNewestFirst(t *testing.T) {
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	tick := 0
	l := New(100, func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	})

	const n = 250
	for i := 0; i < n; i++ {
		l.Append(ActionWorkOrderCreated, fmt.Sprintf("entry %d", i), ActorSystem)
	}

	entries := l.Entries(0)
	if len(entries) != 100 {
		t.Fatalf("len = %d, want 100", len(entries))
	}
	if l.Len() != 100 {
		t.Errorf("Len = %d, want 100", l.Len())
	}
	for i, e := range entries {
		want := fmt.Sprintf("entry %d", n-1-i)
		if e.Details != want {
			t.Fatalf("entries[%d] = %q, want %q", i, e.Details, want)
		}
		if i > 0 && !e.Timestamp.Before(entries[i-1].Timestamp) {
			t.Errorf("entries[%d] not older than entries[%d]", i, i-1)
		}
	}
}

func TestLogBelowCapacity(t *testing.T) {
	l := New(0, nil)
	if l.Capacity() != DefaultCapacity {
		t.Errorf("capacity = %d, want %d", l.Capacity(), DefaultCapacity)
	}
	l.Append(ActionDecisionRecorded, "a", ActorSystem)
	l.Append(ActionNotificationSent, "b", ActorSystem)
	l.Append(ActionInputRejected, "c", ActorOperator)

	entries := l.Entries(0)
	if len(entries) != 3 {
		t.Fatalf("len = %d, want 3", len(entries))
	}
	if entries[0].Details != "c" || entries[2].Details != "a" {
		t.Errorf("order = %q %q %q", entries[0].Details, entries[1].Details, entries[2].Details)
	}
	if entries[0].Actor != ActorOperator || entries[0].Action != ActionInputRejected {
		t.Errorf("newest entry = %+v", entries[0])
	}
	if entries[0].ID == "" || entries[0].ID == entries[1].ID {
		t.Error("entries need distinct ids")
	}

	if got := l.Entries(2); len(got) != 2 || got[0].Details != "c" {
		t.Errorf("limited entries = %+v", got)
	}
}

func TestLogOnAppend(t *testing.T) {
	l := New(5, nil)
	var seen []string
	l.OnAppend = func(e Entry) { seen = append(seen, e.Action) }
	l.Append(ActionAnomalySkipped, "cap", ActorSystem)
	l.Append(ActionAnomalyDuplicate, "dup", ActorSystem)
	if len(seen) != 2 || seen[0] != ActionAnomalySkipped || seen[1] != ActionAnomalyDuplicate {
		t.Errorf("hook saw %v", seen)
	}
}
