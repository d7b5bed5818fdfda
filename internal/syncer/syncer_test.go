package syncer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/pontifexx/supplier-portal/internal/logger"
	"github.com/pontifexx/supplier-portal/internal/store"
	"github.com/pontifexx/supplier-portal/internal/ultimo"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// rewriteTransport lets the client build production-shaped https URLs while
// every request lands on the local test server.
type rewriteTransport struct {
	host string
}

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = rt.host
	return http.DefaultTransport.RoundTrip(req)
}

// testSyncer wires a syncer against a fresh db and an httptest-backed Ultimo
// client. The returned host doubles as the customer domain.
func testSyncer(t *testing.T, handler http.Handler) (*Syncer, *store.DB, string) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("failed to parse test server URL: %v", err)
	}

	db := testDB(t)
	client := ultimo.NewClient(&http.Client{Transport: rewriteTransport{host: u.Host}})
	s := New(db, client, logger.Default())
	return s, db, u.Host
}

// jobsHandler serves a fixed job list on the Job endpoint and records the
// filter of the last request.
type jobsHandler struct {
	items      string
	lastFilter string
	calls      int
}

func (h *jobsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.calls++
	h.lastFilter = r.URL.Query().Get("filter")
	_, _ = w.Write([]byte(`{"items":[` + h.items + `]}`))
}

const jobJSON = `{
	"Id": "JOB-1",
	"Description": "Pump failure",
	"ProgressStatus": "10",
	"RecordChangeDate": "2025-06-01T08:30:00",
	"Equipment": {"Id": "EQ-1", "Description": "Main pump"},
	"ProcessFunction": {"Id": "PF-1", "Description": "Cooling"},
	"Vendor": {
		"Id": "V-1",
		"Description": "Pumps BV",
		"ObjectContacts": [
			{"Employee": {"Id": "E-1", "Description": "Jan", "EmailAddress": "jan@pumps.example"}}
		]
	}
}`

func TestTickInitialSync(t *testing.T) {
	handler := &jobsHandler{items: jobJSON}
	s, db, domain := testSyncer(t, handler)

	if _, err := db.CreateCustomer("Acme", domain, "key"); err != nil {
		t.Fatalf("failed to create customer: %v", err)
	}

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	// Never-synced control rows are always due, with no filter.
	if handler.calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", handler.calls)
	}
	if handler.lastFilter != "" {
		t.Errorf("expected no filter on first sync, got %q", handler.lastFilter)
	}

	job, err := db.CachedJob("JOB-1")
	if err != nil {
		t.Fatalf("job not cached: %v", err)
	}
	if job.EquipmentDescription != "Main pump" || job.VendorID != "V-1" {
		t.Errorf("unexpected cached job: %+v", job)
	}
	var raw map[string]any
	if err := json.Unmarshal(job.Data, &raw); err != nil {
		t.Fatalf("cached data not valid JSON: %v", err)
	}

	ok, err := db.JobHasContact("JOB-1", "jan@pumps.example")
	if err != nil || !ok {
		t.Errorf("expected contact index entry, ok=%v err=%v", ok, err)
	}

	ctl, err := db.SyncControl()
	if err != nil {
		t.Fatalf("failed to read control row: %v", err)
	}
	if ctl.InProgress || ctl.LastSync == nil {
		t.Errorf("expected finished control row, got %+v", ctl)
	}
}

func TestTickIntervalGate(t *testing.T) {
	handler := &jobsHandler{items: jobJSON}
	s, db, domain := testSyncer(t, handler)
	if _, err := db.CreateCustomer("Acme", domain, "key"); err != nil {
		t.Fatalf("failed to create customer: %v", err)
	}

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("first tick failed: %v", err)
	}
	if handler.calls != 1 {
		t.Fatalf("expected 1 call after first tick, got %d", handler.calls)
	}

	// Inside the interval: nothing happens.
	s.now = func() time.Time { return base.Add(30 * time.Minute) }
	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("second tick failed: %v", err)
	}
	if handler.calls != 1 {
		t.Fatalf("expected tick inside interval to be a no-op, got %d calls", handler.calls)
	}

	// Interval elapsed: refresh runs again.
	s.now = func() time.Time { return base.Add(61 * time.Minute) }
	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("third tick failed: %v", err)
	}
	if handler.calls != 2 {
		t.Fatalf("expected refresh after interval elapsed, got %d calls", handler.calls)
	}
}

func TestTickForceSync(t *testing.T) {
	handler := &jobsHandler{items: jobJSON}
	s, db, domain := testSyncer(t, handler)
	if _, err := db.CreateCustomer("Acme", domain, "key"); err != nil {
		t.Fatalf("failed to create customer: %v", err)
	}

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("first tick failed: %v", err)
	}

	// Force wins over the interval check.
	s.now = func() time.Time { return base.Add(time.Minute) }
	if err := s.TriggerNow(); err != nil {
		t.Fatalf("TriggerNow failed: %v", err)
	}
	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("forced tick failed: %v", err)
	}
	if handler.calls != 2 {
		t.Fatalf("expected forced refresh, got %d calls", handler.calls)
	}

	// The force flag is consumed by the refresh.
	ctl, err := db.SyncControl()
	if err != nil {
		t.Fatalf("failed to read control row: %v", err)
	}
	if ctl.ForceSync {
		t.Error("expected force flag to be cleared after refresh")
	}
}

func TestTriggerNowWhileBusy(t *testing.T) {
	s, db, _ := testSyncer(t, &jobsHandler{items: jobJSON})

	if ok, err := db.ClaimSync(); err != nil || !ok {
		t.Fatalf("failed to claim sync: ok=%v err=%v", ok, err)
	}
	if err := s.TriggerNow(); err != ErrSyncBusy {
		t.Errorf("expected ErrSyncBusy, got %v", err)
	}
}

func TestTickWatermarkFilter(t *testing.T) {
	handler := &jobsHandler{items: jobJSON}
	s, db, domain := testSyncer(t, handler)
	if _, err := db.CreateCustomer("Acme", domain, "key"); err != nil {
		t.Fatalf("failed to create customer: %v", err)
	}

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("first tick failed: %v", err)
	}

	if err := s.TriggerNow(); err != nil {
		t.Fatalf("TriggerNow failed: %v", err)
	}
	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("second tick failed: %v", err)
	}

	want := "RecordChangeDate gt 2025-06-01T08:30:00Z"
	if handler.lastFilter != want {
		t.Errorf("expected filter %q, got %q", want, handler.lastFilter)
	}
}

func TestSyncCustomerFailureIsolation(t *testing.T) {
	// One tenant is broken; the other still syncs.
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/object/Job", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("ApiKey") == "bad-key" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"invalid api key"}`))
			return
		}
		_, _ = w.Write([]byte(`{"items":[` + jobJSON + `]}`))
	})
	s, db, domain := testSyncer(t, mux)

	if _, err := db.CreateCustomer("Broken", domain, "bad-key"); err != nil {
		t.Fatalf("failed to create customer: %v", err)
	}
	if _, err := db.CreateCustomer("Acme", domain, "good-key"); err != nil {
		t.Fatalf("failed to create customer: %v", err)
	}

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	if _, err := db.CachedJob("JOB-1"); err != nil {
		t.Errorf("expected healthy customer to sync despite broken one: %v", err)
	}
	ctl, err := db.SyncControl()
	if err != nil {
		t.Fatalf("failed to read control row: %v", err)
	}
	if ctl.InProgress {
		t.Error("expected control row to be released after partial failure")
	}
}

func TestTickReleasesClaimWhenFinishFails(t *testing.T) {
	s, db, _ := testSyncer(t, &jobsHandler{items: jobJSON})

	// Make recording a completion fail while leaving other control-row
	// updates alone.
	_, err := db.Exec(`
		CREATE TRIGGER sync_control_finish_fails
		BEFORE UPDATE ON sync_control
		WHEN NEW.last_sync IS NOT NULL
		BEGIN SELECT RAISE(ABORT, 'disk full'); END`)
	if err != nil {
		t.Fatalf("failed to create trigger: %v", err)
	}

	if err := s.Tick(context.Background()); err == nil {
		t.Fatal("expected error when completion cannot be recorded")
	}

	ctl, err := db.SyncControl()
	if err != nil {
		t.Fatalf("failed to read control row: %v", err)
	}
	if ctl.InProgress {
		t.Error("expected in-progress flag released after failed completion")
	}
	if ctl.LastSync != nil {
		t.Errorf("expected no completion recorded, got %v", ctl.LastSync)
	}
}

func TestMissingChangeDateDefaultsToNow(t *testing.T) {
	handler := &jobsHandler{items: `{"Id":"JOB-2","Description":"No date","ProgressStatus":"10"}`}
	s, db, domain := testSyncer(t, handler)
	if _, err := db.CreateCustomer("Acme", domain, "key"); err != nil {
		t.Fatalf("failed to create customer: %v", err)
	}

	fixed := time.Date(2025, 6, 2, 9, 15, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	job, err := db.CachedJob("JOB-2")
	if err != nil {
		t.Fatalf("job not cached: %v", err)
	}
	if job.RecordChangeDate != "2025-06-02 09:15:00" {
		t.Errorf("expected defaulted change date, got %q", job.RecordChangeDate)
	}
}

func TestFormatWatermark(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"2025-06-01T08:30:00", "2025-06-01T08:30:00Z"},
		{"2025-06-01T08:30:00Z", "2025-06-01T08:30:00Z"},
		{"2025-06-01T08:30:00+02:00", "2025-06-01T06:30:00Z"},
		{"2025-06-01 08:30:00", "2025-06-01T08:30:00Z"},
		{"not a timestamp", "not a timestamp"},
	}
	for _, tt := range tests {
		if got := formatWatermark(tt.raw); got != tt.want {
			t.Errorf("formatWatermark(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
