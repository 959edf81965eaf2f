package session

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/ChrissHeIs/electricco-vehicle-image-manager/candidates"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/models"
	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"go.uber.org/goleak"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

var staticSearch = candidates.SearcherFunc(func(ctx context.Context, key models.SearchKey) ([]string, error) {
	return []string{"https://img/" + key.Brand + "/" + key.Model}, nil
})

func vehicles() []models.VehicleRecord {
	return []models.VehicleRecord{
		{Brand: "Audi", Model: "A3", Year: "2020"},
		{Brand: "BMW", Model: "X5", Year: "2021"},
	}
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(context.Background(), time.Hour, staticSearch, quietLogger())
	t.Cleanup(r.Close)
	return r
}

func TestRegistry_CreateGetDelete(t *testing.T) {
	defer goleak.VerifyNone(t)
	r := newTestRegistry(t)

	s := r.Create()
	got, err := r.Get(s.ID)
	if err != nil || got != s {
		t.Fatalf("expected to find session, err=%v", err)
	}
	if err := r.Delete(s.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := r.Get(s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := r.Delete(s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestRegistry_SweepExpiresIdleSessions(t *testing.T) {
	defer goleak.VerifyNone(t)
	r := newTestRegistry(t)

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	r.now = func() time.Time { return clock }

	idle := r.Create()
	active := r.Create()

	clock = base.Add(50 * time.Minute)
	if _, err := r.Get(active.ID); err != nil {
		t.Fatalf("Get error: %v", err)
	}

	if n := r.Sweep(base.Add(61 * time.Minute)); n != 1 {
		t.Fatalf("expected 1 expired session, got %d", n)
	}
	if _, err := r.Get(idle.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("idle session should be gone, got %v", err)
	}
	if _, err := r.Get(active.ID); err != nil {
		t.Fatalf("active session should survive, got %v", err)
	}
	if err := idle.ReplaceVehicles(vehicles(), "x.csv"); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected swept session to be closed, got %v", err)
	}
}

func TestRegistry_JanitorStopsOnClose(t *testing.T) {
	defer goleak.VerifyNone(t)
	r := NewRegistry(context.Background(), time.Hour, staticSearch, quietLogger())
	r.StartJanitor(time.Millisecond)
	r.Create()
	time.Sleep(5 * time.Millisecond)
	r.Close()
	if r.Len() != 0 {
		t.Fatalf("expected no sessions after Close, got %d", r.Len())
	}
}

func TestSession_ReplaceVehiclesDiscardsSelections(t *testing.T) {
	defer goleak.VerifyNone(t)
	r := newTestRegistry(t)
	s := r.Create()

	if err := s.ReplaceVehicles(vehicles(), "first.csv"); err != nil {
		t.Fatalf("ReplaceVehicles error: %v", err)
	}
	s.Tracker().Ensure(vehicles()[0])
	s.Tracker().Wait()
	s.Store().SetOverrideAt(0, "https://img/override.png")
	s.SetBaseline([]models.VehicleImage{{Vehicle: vehicles()[1], URL: "https://img/base.png"}})

	if err := s.ReplaceVehicles(vehicles()[:1], "second.csv"); err != nil {
		t.Fatalf("ReplaceVehicles error: %v", err)
	}
	if s.Store().Snapshot().Len() != 0 {
		t.Fatalf("expected selections to be discarded")
	}
	if _, ok := s.Tracker().State(vehicles()[0].Key()); ok {
		t.Fatalf("expected a fresh candidate tracker")
	}
	if s.Source() != "second.csv" || len(s.Vehicles()) != 1 {
		t.Fatalf("unexpected list state source=%s len=%d", s.Source(), len(s.Vehicles()))
	}
	if c, ok := s.ImportedCandidate(vehicles()[1].Key()); !ok || c.URL != "https://img/base.png" || c.Provenance != models.ProvenanceImportedManifest {
		t.Fatalf("imported manifest should survive a new list")
	}
}

func TestSession_ExportListMergesBaseline(t *testing.T) {
	defer goleak.VerifyNone(t)
	r := newTestRegistry(t)
	s := r.Create()
	_ = s.ReplaceVehicles(vehicles(), "list.csv")

	kia := models.VehicleRecord{Brand: "Kia", Model: "EV6", Year: "2022"}
	s.SetBaseline([]models.VehicleImage{
		{Vehicle: vehicles()[1], URL: "https://img/old-x5.png"},
		{Vehicle: kia, URL: "https://img/ev6.png"},
	})
	s.Store().SetOverrideAt(1, "https://img/new-x5.png")
	s.Store().SetOverrideAt(0, "https://img/a3.png")

	want := []models.VehicleImage{
		{Vehicle: vehicles()[1], URL: "https://img/new-x5.png"},
		{Vehicle: kia, URL: "https://img/ev6.png"},
		{Vehicle: vehicles()[0], URL: "https://img/a3.png"},
	}
	list, store := s.ExportList()
	if store != s.Store() {
		t.Fatalf("ExportList must report the current store")
	}
	if diff := cmp.Diff(want, list); diff != "" {
		t.Fatalf("ExportList mismatch (-want +got):\n%s", diff)
	}
}

func TestSession_StartJobRules(t *testing.T) {
	defer goleak.VerifyNone(t)
	r := newTestRegistry(t)
	s := r.Create()
	_ = s.ReplaceVehicles(vehicles(), "list.csv")

	if _, _, _, err := s.StartJob(); !errors.Is(err, ErrNothingSelected) {
		t.Fatalf("expected ErrNothingSelected, got %v", err)
	}

	s.Store().SetOverrideAt(0, "https://img/a3.png")
	job, ctx, list, err := s.StartJob()
	if err != nil {
		t.Fatalf("StartJob error: %v", err)
	}
	if len(list) != 1 || list[0].URL != "https://img/a3.png" {
		t.Fatalf("unexpected export list %+v", list)
	}
	if _, _, _, err := s.StartJob(); !errors.Is(err, ErrExportRunning) {
		t.Fatalf("expected ErrExportRunning, got %v", err)
	}

	if err := job.Cancel(); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if ctx.Err() == nil {
		t.Fatalf("expected job context to be cancelled")
	}
	if _, _, _, err := s.StartJob(); err != nil {
		t.Fatalf("expected a new job after cancel, got %v", err)
	}
	if len(s.Jobs()) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(s.Jobs()))
	}
	if _, err := s.Job("nope"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestJob_Lifecycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	j := newJob(cancel, nil)

	if j.Status() != JobPending {
		t.Fatalf("expected pending, got %s", j.Status())
	}
	if err := j.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	j.SetProgress(40)
	j.SetProgress(20)
	if p := j.Snapshot().Progress; p != 40 {
		t.Fatalf("progress must not go backwards, got %d", p)
	}
	if _, ok := j.Data(); ok {
		t.Fatalf("running job has no data")
	}
	if err := j.Succeed([]byte("zip"), 3, 1, "", ""); err != nil {
		t.Fatalf("Succeed error: %v", err)
	}
	<-j.Done()
	if ctx.Err() == nil {
		t.Fatalf("expected job context to be released")
	}

	snap := j.Snapshot()
	if snap.Status != JobSucceeded || snap.Progress != 100 || snap.Size != 3 || snap.FinishedAt == nil {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if data, ok := j.Data(); !ok || string(data) != "zip" {
		t.Fatalf("expected archive bytes")
	}
	if err := j.Cancel(); !errors.Is(err, ErrJobFinished) {
		t.Fatalf("expected ErrJobFinished, got %v", err)
	}
	if err := j.Fail(errors.New("late")); !errors.Is(err, ErrJobFinished) {
		t.Fatalf("expected ErrJobFinished, got %v", err)
	}
}

func TestJob_FailRecordsReason(t *testing.T) {
	_, cancel := context.WithCancel(context.Background())
	j := newJob(cancel, nil)
	_ = j.Start()
	if err := j.Fail(errors.New("decode image: unknown format")); err != nil {
		t.Fatalf("Fail error: %v", err)
	}
	snap := j.Snapshot()
	if snap.Status != JobFailed || snap.Error != "decode image: unknown format" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestJob_ResetSelectionsKeepsLaterList(t *testing.T) {
	defer goleak.VerifyNone(t)
	r := newTestRegistry(t)
	s := r.Create()
	_ = s.ReplaceVehicles(vehicles(), "first.csv")
	s.Store().SetOverrideAt(0, "https://img/a3.png")

	job, _, _, err := s.StartJob()
	if err != nil {
		t.Fatalf("StartJob error: %v", err)
	}
	first := s.Store()

	_ = s.ReplaceVehicles(vehicles(), "second.csv")
	s.Store().SetOverrideAt(1, "https://img/x5.png")
	_ = job.Cancel()
	job.ResetSelections()

	if first.Snapshot().Len() != 0 {
		t.Fatalf("expected the exported list's selections to be cleared")
	}
	if n := s.Store().Snapshot().Len(); n != 1 {
		t.Fatalf("expected the new list to keep 1 selection, got %d", n)
	}
}

func TestSession_RowKeepsItsList(t *testing.T) {
	defer goleak.VerifyNone(t)
	r := newTestRegistry(t)
	s := r.Create()
	_ = s.ReplaceVehicles(vehicles(), "first.csv")

	row, ok := s.Row(0)
	if !ok || row.Vehicle != vehicles()[0] {
		t.Fatalf("unexpected row %+v", row)
	}
	_ = s.ReplaceVehicles(vehicles(), "second.csv")
	row.Store.SetOverride(row.Vehicle.Key(), "https://img/a3.png")

	if s.Store().Snapshot().Len() != 0 {
		t.Fatalf("a write through an old row must not reach the new list")
	}
	if _, ok := s.Row(len(vehicles())); ok {
		t.Fatalf("expected out-of-range row to be missing")
	}
}
