package model

import (
	"testing"
	"time"
)

func TestIsOverdue(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		task Task
		want bool
	}{
		{"past deadline, open", Task{Status: StatusInProgress, DueAt: &past}, true},
		{"past deadline, done", Task{Status: StatusDone, DueAt: &past}, false},
		{"future deadline", Task{Status: StatusNotStarted, DueAt: &future}, false},
		{"no deadline", Task{Status: StatusNotStarted}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.task.IsOverdue(now); got != tt.want {
				t.Errorf("IsOverdue = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDueWithin(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	window := 7 * 24 * time.Hour

	inWindow := now.Add(48 * time.Hour)
	beyond := now.Add(10 * 24 * time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name string
		task Task
		want bool
	}{
		{"inside the window", Task{Status: StatusNotStarted, DueAt: &inWindow}, true},
		{"beyond the window", Task{Status: StatusNotStarted, DueAt: &beyond}, false},
		{"already overdue", Task{Status: StatusNotStarted, DueAt: &past}, false},
		{"done inside the window", Task{Status: StatusDone, DueAt: &inWindow}, false},
		{"no deadline", Task{Status: StatusNotStarted}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.task.DueWithin(now, window); got != tt.want {
				t.Errorf("DueWithin = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPriorityWeightOrdersPriorities(t *testing.T) {
	if PriorityWeight(PriorityHigh) <= PriorityWeight(PriorityMedium) {
		t.Error("high should outrank medium")
	}
	if PriorityWeight(PriorityMedium) <= PriorityWeight(PriorityLow) {
		t.Error("medium should outrank low")
	}
	if PriorityWeight("bogus") >= PriorityWeight(PriorityLow) {
		t.Error("unknown priorities should sort last")
	}
}

func TestValidStatusAndPriority(t *testing.T) {
	for _, s := range Statuses {
		if !ValidStatus(s) {
			t.Errorf("ValidStatus(%q) = false", s)
		}
	}
	if ValidStatus("archived") {
		t.Error("ValidStatus(archived) = true, want false")
	}

	for _, p := range Priorities {
		if !ValidPriority(p) {
			t.Errorf("ValidPriority(%q) = false", p)
		}
	}
	if ValidPriority("urgent") {
		t.Error("ValidPriority(urgent) = true, want false")
	}
}
