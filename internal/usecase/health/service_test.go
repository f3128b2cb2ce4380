package health

import (
	"context"
	"errors"
	"testing"
)

type mockDBPinger struct {
	err error
}

func (m *mockDBPinger) Ping(_ context.Context) error {
	return m.err
}

type mockEmbeddingChecker struct {
	err error
}

func (m *mockEmbeddingChecker) HealthCheck(_ context.Context) error {
	return m.err
}

type mockIndexChecker struct {
	indexed bool
	err     error
}

func (m *mockIndexChecker) IsIndexed(_ context.Context) (bool, error) {
	return m.indexed, m.err
}

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockEmbeddingChecker{}, &mockIndexChecker{indexed: true})

	report := svc.Check(context.Background())

	if report.Status != Healthy {
		t.Errorf("expected healthy, got %q", report.Status)
	}
	for _, name := range []string{"database", "embedding", "index"} {
		if report.Checks[name] != CheckOK {
			t.Errorf("check %q = %q, want ok", name, report.Checks[name])
		}
	}
}

func TestCheck_DatabaseError(t *testing.T) {
	svc := New(&mockDBPinger{err: errors.New("locked")}, &mockEmbeddingChecker{}, &mockIndexChecker{indexed: true})

	report := svc.Check(context.Background())

	if report.Status != Degraded {
		t.Errorf("expected degraded, got %q", report.Status)
	}
	if report.Checks["database"] != CheckError {
		t.Errorf("expected database error, got %q", report.Checks["database"])
	}
}

func TestCheck_EmbeddingError(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockEmbeddingChecker{err: errors.New("quota")}, &mockIndexChecker{indexed: true})

	report := svc.Check(context.Background())

	if report.Status != Degraded {
		t.Errorf("expected degraded, got %q", report.Status)
	}
	if report.Checks["embedding"] != CheckError {
		t.Errorf("expected embedding error, got %q", report.Checks["embedding"])
	}
}

func TestCheck_EmptyIndexDegrades(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockEmbeddingChecker{}, &mockIndexChecker{indexed: false})

	report := svc.Check(context.Background())

	if report.Status != Degraded {
		t.Errorf("an empty index must degrade, got %q", report.Status)
	}
	if report.Checks["index"] != CheckEmpty {
		t.Errorf("expected empty index check, got %q", report.Checks["index"])
	}
}

func TestCheck_IndexError(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockEmbeddingChecker{}, &mockIndexChecker{err: errors.New("disk")})

	report := svc.Check(context.Background())

	if report.Checks["index"] != CheckError {
		t.Errorf("expected index error, got %q", report.Checks["index"])
	}
}

func TestCheck_NilOptionalCheckersOmitted(t *testing.T) {
	svc := New(&mockDBPinger{}, nil, nil)

	report := svc.Check(context.Background())

	if report.Status != Healthy {
		t.Errorf("expected healthy with only the database check, got %q", report.Status)
	}
	if len(report.Checks) != 1 {
		t.Errorf("expected only the database check, got %v", report.Checks)
	}
}
