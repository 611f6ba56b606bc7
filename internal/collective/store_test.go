package collective

import (
	"path/filepath"
	"testing"

	"github.com/conclave-ai/conclave/internal/classify"
	"github.com/conclave-ai/conclave/pkg/models"
)

func tempStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "learning.db")
	s, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestStoreMigrateIdempotent(t *testing.T) {
	s, _ := tempStore(t)
	// Running migrations again must be a no-op.
	if err := s.migrate(); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
}

func TestStoreSaveAndLoad(t *testing.T) {
	s, path := tempStore(t)

	if err := s.SaveAgent("analytical_agent", 0.85, 12, classify.DomainAnalytical, 0.9); err != nil {
		t.Fatal(err)
	}
	// Upsert overwrites.
	if err := s.SaveAgent("analytical_agent", 0.88, 13, classify.DomainAnalytical, 0.92); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveAgent("analytical_agent", 0.88, 14, classify.DomainCreative, 0.4); err != nil {
		t.Fatal(err)
	}
	s.Close()

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	e, err := New(WithStore(reopened))
	if err != nil {
		t.Fatal(err)
	}
	if got := e.Reliability("analytical_agent"); got != 0.88 {
		t.Errorf("loaded reliability = %v, want 0.88", got)
	}
	if got := e.DomainExpertise("analytical_agent", classify.DomainAnalytical); got != 0.92 {
		t.Errorf("loaded analytical expertise = %v, want 0.92", got)
	}
	if got := e.DomainExpertise("analytical_agent", classify.DomainCreative); got != 0.4 {
		t.Errorf("loaded creative expertise = %v, want 0.4", got)
	}
	if got := e.Reliability("other_agent"); got != defaultReliability {
		t.Errorf("unpersisted agent reliability = %v, want default", got)
	}
}

func TestEngineWritesThroughStore(t *testing.T) {
	s, path := tempStore(t)

	e, err := New(WithStore(s))
	if err != nil {
		t.Fatal(err)
	}
	e.RecordOutcomes([]models.IndividualResult{
		{AgentID: "technical_agent", Confidence: 0.9, Success: true},
	}, classify.DomainTechnical)
	want := e.Reliability("technical_agent")
	s.Close()

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	fresh, err := New(WithStore(reopened))
	if err != nil {
		t.Fatal(err)
	}
	if got := fresh.Reliability("technical_agent"); got != want {
		t.Errorf("reloaded reliability = %v, want %v", got, want)
	}
}
