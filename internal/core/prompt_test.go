package core

import (
	"strings"
	"testing"
	"time"

	"github.com/amarareunion/dismaman-pwa/internal/store"
)

func TestChildAgeMonths(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		birthYear  int
		birthMonth int
		want       int
	}{
		{"five and a bit", 2020, 3, 63},
		{"born this month", 2025, 6, 0},
		{"future birth clamps to zero", 2026, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChildAgeMonths(tt.birthYear, tt.birthMonth, now); got != tt.want {
				t.Errorf("ChildAgeMonths() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestChildAgeYears(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	// Born March 2020: five years and three months.
	got := ChildAgeYears(3, 2020, now)
	want := 5.25
	if got != want {
		t.Errorf("ChildAgeYears() = %v, want %v", got, want)
	}

	// Birthday later this year: still four.
	got = ChildAgeYears(9, 2020, now)
	if got != 4.0 {
		t.Errorf("ChildAgeYears() = %v, want 4.0", got)
	}
}

func TestComplexityDescriptorCoversAllLevels(t *testing.T) {
	seen := make(map[string]bool)
	for level := -2; level <= 2; level++ {
		desc := complexityDescriptor(level, 7)
		if desc == "" {
			t.Fatalf("empty descriptor for level %d", level)
		}
		if seen[desc] {
			t.Errorf("descriptor for level %d duplicates another level", level)
		}
		seen[desc] = true
	}
}

func TestComplexityDescriptorClampsAge(t *testing.T) {
	// A two-year-old at the lowest level must not go below the 3-year floor.
	desc := complexityDescriptor(-2, 2)
	if !strings.Contains(desc, "3 ans") {
		t.Errorf("descriptor did not clamp to the 3-year floor: %q", desc)
	}

	// A teenager at the highest level must not exceed the 12-year ceiling.
	desc = complexityDescriptor(2, 15)
	if !strings.Contains(desc, "12 ans") {
		t.Errorf("descriptor did not clamp to the 12-year ceiling: %q", desc)
	}
}

func TestBuildSystemMessageStructure(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	child := &store.Child{
		Name:       "Emma",
		Gender:     "girl",
		BirthMonth: 3,
		BirthYear:  2018,
	}

	msg := BuildSystemMessage(child, now)

	for _, want := range []string{
		"Emma",                   // addresses the child by name
		"re-expliquer",           // instructs term re-explanation before answering
		"TERMINER par une question", // instructs a closing engagement question
		"SUJETS INTERDITS",       // fixed safety policy
		"Comment on fait les bébés ?", // reproduction explicitly not redirected
		"une fille",
		"petite",
		"curieuse",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("system message missing %q", want)
		}
	}
}

func TestBuildSystemMessageUsesBoyPronouns(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	child := &store.Child{Name: "Lucas", Gender: "boy", BirthMonth: 8, BirthYear: 2019}

	msg := BuildSystemMessage(child, now)
	if !strings.Contains(msg, "un garçon") {
		t.Errorf("system message missing boy gender text")
	}
	if strings.Contains(msg, "une fille de") {
		t.Errorf("system message used girl gender text for a boy")
	}
}

func TestBuildSystemMessageVariesWithComplexity(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	child := &store.Child{Name: "Emma", Gender: "girl", BirthMonth: 3, BirthYear: 2018}

	messages := make(map[string]int)
	for level := -2; level <= 2; level++ {
		child.ComplexityLevel = level
		messages[BuildSystemMessage(child, now)] = level
	}
	if len(messages) != 5 {
		t.Errorf("expected 5 distinct system messages across levels, got %d", len(messages))
	}
}

func TestBuildSystemMessageIsDeterministic(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	child := &store.Child{Name: "Emma", Gender: "girl", BirthMonth: 3, BirthYear: 2018, ComplexityLevel: 1}

	if BuildSystemMessage(child, now) != BuildSystemMessage(child, now) {
		t.Error("BuildSystemMessage is not deterministic for identical inputs")
	}
}

func TestBuildElaborationMessage(t *testing.T) {
	msg := BuildElaborationMessage("Emma")
	if !strings.Contains(msg, "Emma") {
		t.Error("elaboration message does not reference the child by name")
	}
	if !strings.Contains(msg, "Plus d'infos") {
		t.Error("elaboration message missing the section marker")
	}
	if !strings.Contains(msg, "UNIQUEMENT la section supplémentaire") {
		t.Error("elaboration message must demand only the supplementary section")
	}
}

func TestDegradedAnswerAddressesChild(t *testing.T) {
	answer := DegradedAnswer("Lucas")
	if !strings.Contains(answer, "Lucas") {
		t.Error("degraded answer does not address the child by name")
	}
	if !strings.Contains(answer, "redemander") {
		t.Error("degraded answer does not invite a retry")
	}
}
