package domain_test

import (
	"testing"
	"time"

	"github.com/aldalur/plantmap/internal/core/domain"
)

func TestNormalizeStatus(t *testing.T) {
	tests := map[string]string{
		"Healthy":           "healthy",
		"needs-replacement": "need_replacement",
		"needsreplacement":  "need_replacement",
		"Needs Replacement": "need_replacement",
		"need_replacement":  "need_replacement",
		"  ALIVE ":          "healthy",
		"Seedling":          "sprouting",
		"dead":              "dead",
	}
	for raw, want := range tests {
		if got := domain.NormalizeStatus(raw); got != want {
			t.Errorf("NormalizeStatus(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestDisplayLabel(t *testing.T) {
	tests := map[string]string{
		"need_replacement": "Need Replacement",
		"healthy":          "Healthy",
		"sick":             "Sick",
	}
	for key, want := range tests {
		if got := domain.DisplayLabel(key); got != want {
			t.Errorf("DisplayLabel(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestTreeStatus_IsActive(t *testing.T) {
	if !domain.StatusHealthy.IsActive() {
		t.Error("healthy should be active")
	}
	if !domain.TreeStatus("Sprouting").IsActive() {
		t.Error("sprouting should be active regardless of case")
	}
	if domain.StatusDead.IsActive() {
		t.Error("dead should not be active")
	}
	if domain.StatusNeedReplacement.IsActive() {
		t.Error("need_replacement should not be active")
	}
}

func TestCountTasks(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-48 * time.Hour)
	future := now.Add(48 * time.Hour)

	tasks := []domain.Task{
		{Status: "Done"},
		{Status: "done"},
		{Status: "open", DueAt: &past},
		{Status: "open", DueAt: &future},
		{Status: "open"},
	}

	c := domain.CountTasks(tasks, now)
	if c.Total != 5 {
		t.Errorf("total = %d, want 5", c.Total)
	}
	if c.Done != 2 {
		t.Errorf("done = %d, want 2", c.Done)
	}
	if c.Pending != 3 {
		t.Errorf("pending = %d, want 3", c.Pending)
	}
	if c.Overdue != 1 {
		t.Errorf("overdue = %d, want 1", c.Overdue)
	}
}
