package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

var now = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func roles(recs []Record) []Role {
	out := make([]Role, len(recs))
	for i, r := range recs {
		out[i] = r.Role
	}
	return out
}

func TestFanOutRoles(t *testing.T) {
	start := now.Add(3 * time.Hour)
	tests := []struct {
		name    string
		subject Subject
		want    []Role
	}{
		{"bare", Subject{WorkOrderID: "WO-1", Source: "Main Spindle"}, []Role{RoleMaintenance, RoleSupervisor}},
		{"assigned", Subject{WorkOrderID: "WO-2", Source: "Main Spindle", TechnicianID: "tech-2", TechnicianName: "J. Okafor", ScheduledTime: &start},
			[]Role{RoleMaintenance, RoleSupervisor, RoleTechnician}},
		{"parts", Subject{WorkOrderID: "WO-3", Source: "Punch Assembly", Parts: []string{"1x Upper Punch Set"}},
			[]Role{RoleMaintenance, RoleSupervisor, RoleStores}},
		{"all four", Subject{WorkOrderID: "WO-4", Source: "Turret Drive", TechnicianID: "tech-3", Parts: []string{"1x Drive Belt"}},
			[]Role{RoleMaintenance, RoleSupervisor, RoleTechnician, RoleStores}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recs := FanOut(tc.subject, now)
			got := roles(recs)
			if len(got) != len(tc.want) {
				t.Fatalf("roles = %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("roles[%d] = %s, want %s", i, got[i], tc.want[i])
				}
			}
			for _, r := range recs {
				if r.Acknowledged {
					t.Error("records start unacknowledged")
				}
				if r.WorkOrderID != tc.subject.WorkOrderID || !r.SentAt.Equal(now) || r.ID == "" {
					t.Errorf("record = %+v", r)
				}
			}
		})
	}
}

func TestFanOutMessages(t *testing.T) {
	start := now.Add(2 * time.Hour)
	recs := FanOut(Subject{
		WorkOrderID:    "WO-9",
		Source:         "Compression Roller",
		Type:           "spare_replacement",
		Priority:       "critical",
		Status:         "waiting-spares",
		TechnicianID:   "tech-1",
		TechnicianName: "A. Moreno",
		ScheduledTime:  &start,
		Parts:          []string{"1x Compression Roller", "2x Spindle Bearing"},
	}, now)
	if !strings.Contains(recs[0].Message, "spare_replacement") || !strings.Contains(recs[0].Message, "critical") {
		t.Errorf("maintenance message = %q", recs[0].Message)
	}
	if !strings.Contains(recs[1].Message, start.Format(time.RFC3339)) {
		t.Errorf("supervisor message = %q", recs[1].Message)
	}
	if recs[2].Recipient != "A. Moreno" {
		t.Errorf("technician recipient = %q", recs[2].Recipient)
	}
	if !strings.Contains(recs[3].Message, "2x Spindle Bearing") {
		t.Errorf("stores message = %q", recs[3].Message)
	}
}

func TestDispatchBestEffort(t *testing.T) {
	var delivered []string
	good := SinkFunc(func(_ context.Context, rec Record) error {
		delivered = append(delivered, rec.ID)
		return nil
	})
	bad := SinkFunc(func(context.Context, Record) error { return errors.New("broker down") })

	var logged []string
	d := NewDispatcher(bad, good)
	d.SetLogger(func(format string, args ...any) { logged = append(logged, format) })

	recs := FanOut(Subject{WorkOrderID: "WO-1", Source: "Main Spindle"}, now)
	failed := d.Dispatch(context.Background(), recs)
	if failed != 2 {
		t.Errorf("failed = %d, want 2", failed)
	}
	if len(delivered) != 2 {
		t.Errorf("good sink got %d records, want 2", len(delivered))
	}
	if len(logged) != 2 {
		t.Errorf("logged %d failures, want 2", len(logged))
	}
}

func TestRoleValid(t *testing.T) {
	for _, r := range Roles {
		if !r.Valid() {
			t.Errorf("%s should be valid", r)
		}
	}
	if Role("ceo").Valid() {
		t.Error("unknown role should be invalid")
	}
}

func TestNATSSubject(t *testing.T) {
	s := &NATSSink{Prefix: "maint.notify"}
	if got := s.Subject(RoleStores); got != "maint.notify.stores" {
		t.Errorf("subject = %q", got)
	}
}
