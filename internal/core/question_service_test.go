package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/amarareunion/dismaman-pwa/internal/store"
)

func newTestQuestionService(fs *fakeStore, gen Generator) *QuestionService {
	svc := NewQuestionService(fs, fs, gen)
	svc.now = func() time.Time { return frozenNow }
	return svc
}

func TestAskQuestionHappyPath(t *testing.T) {
	fs := newFakeStore()
	fs.addChild(&store.Child{ID: "child-a", ParentID: "user-1", Name: "Emma", Gender: "girl", BirthMonth: 3, BirthYear: 2018})
	gen := &fakeGenerator{answer: "Parce que le ciel est bleu !"}
	svc := newTestQuestionService(fs, gen)

	resp, err := svc.AskQuestion(context.Background(), trialUser("user-1"), "child-a", "Pourquoi le ciel est bleu ?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Answer != "Parce que le ciel est bleu !" {
		t.Errorf("answer = %q", resp.Answer)
	}
	if resp.ChildName != "Emma" {
		t.Errorf("child name = %q, want Emma", resp.ChildName)
	}
	if resp.ID == "" {
		t.Error("response was not persisted")
	}
	if len(gen.calls) != 1 {
		t.Fatalf("expected one generation call, got %d", len(gen.calls))
	}
	if !strings.Contains(gen.calls[0].system, "Emma") {
		t.Error("instruction does not address the child")
	}
}

func TestAskQuestionUnknownChild(t *testing.T) {
	svc := newTestQuestionService(newFakeStore(), &fakeGenerator{answer: "x"})

	_, err := svc.AskQuestion(context.Background(), trialUser("user-1"), "missing", "Pourquoi ?")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAskQuestionDegradesOnProviderFailure(t *testing.T) {
	fs := newFakeStore()
	fs.addChild(&store.Child{ID: "child-a", ParentID: "user-1", Name: "Emma", Gender: "girl", BirthMonth: 3, BirthYear: 2018})
	svc := newTestQuestionService(fs, &fakeGenerator{err: ErrProviderUnavailable})

	resp, err := svc.AskQuestion(context.Background(), trialUser("user-1"), "child-a", "Pourquoi ?")
	if err != nil {
		t.Fatalf("generation failure must not surface as an error, got %v", err)
	}
	if !strings.Contains(resp.Answer, "Emma") {
		t.Errorf("degraded answer does not address the child: %q", resp.Answer)
	}
	if resp.ID == "" {
		t.Error("degraded response was not persisted")
	}
}

func TestAskQuestionQuotaBoundary(t *testing.T) {
	fs := newFakeStore()
	fs.addChild(&store.Child{ID: "child-a", ParentID: "user-1", Name: "Emma", Gender: "girl", BirthMonth: 3, BirthYear: 2018})
	fs.addChild(&store.Child{ID: "child-b", ParentID: "user-1", Name: "Lucas", Gender: "boy", BirthMonth: 8, BirthYear: 2019})
	svc := newTestQuestionService(fs, &fakeGenerator{answer: "réponse"})

	user := postTrialUser("user-1")

	// First question of the period is admitted.
	if _, err := svc.AskQuestion(context.Background(), user, "child-a", "Pourquoi ?"); err != nil {
		t.Fatalf("first question rejected: %v", err)
	}

	// Second question is rejected regardless of which child is used.
	for _, childID := range []string{"child-a", "child-b"} {
		if _, err := svc.AskQuestion(context.Background(), user, childID, "Encore ?"); !errors.Is(err, ErrQuotaExceeded) {
			t.Errorf("second question for %s: err = %v, want ErrQuotaExceeded", childID, err)
		}
	}
}

func TestAskQuestionNonActiveChildRejected(t *testing.T) {
	fs := newFakeStore()
	fs.addChild(&store.Child{ID: "child-a", ParentID: "user-1", Name: "Emma", Gender: "girl", BirthMonth: 3, BirthYear: 2018})
	fs.addChild(&store.Child{ID: "child-b", ParentID: "user-1", Name: "Lucas", Gender: "boy", BirthMonth: 8, BirthYear: 2019})
	svc := newTestQuestionService(fs, &fakeGenerator{answer: "réponse"})

	user := postTrialUser("user-1")
	childA := "child-a"
	user.ActiveChildID = &childA

	_, err := svc.AskQuestion(context.Background(), user, "child-b", "Pourquoi ?")
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("err = %v, want ErrQuotaExceeded even with zero usage", err)
	}
}

func TestAskQuestionPremiumUnlimited(t *testing.T) {
	fs := newFakeStore()
	fs.addChild(&store.Child{ID: "child-a", ParentID: "user-1", Name: "Emma", Gender: "girl", BirthMonth: 3, BirthYear: 2018})
	svc := newTestQuestionService(fs, &fakeGenerator{answer: "réponse"})

	user := premiumUser("user-1")
	for i := 0; i < 5; i++ {
		if _, err := svc.AskQuestion(context.Background(), user, "child-a", "Pourquoi ?"); err != nil {
			t.Fatalf("premium question %d rejected: %v", i+1, err)
		}
	}
}

func TestAskQuestionCancelledContextCommitsNothing(t *testing.T) {
	fs := newFakeStore()
	fs.addChild(&store.Child{ID: "child-a", ParentID: "user-1", Name: "Emma", Gender: "girl", BirthMonth: 3, BirthYear: 2018})
	svc := newTestQuestionService(fs, &fakeGenerator{err: context.Canceled})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.AskQuestion(ctx, trialUser("user-1"), "child-a", "Pourquoi ?")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(fs.responses) != 0 {
		t.Error("a cancelled request must not log a response")
	}
}

func TestTierStatusCountsUsage(t *testing.T) {
	fs := newFakeStore()
	fs.addChild(&store.Child{ID: "child-a", ParentID: "user-1", Name: "Emma", Gender: "girl", BirthMonth: 3, BirthYear: 2018})
	svc := newTestQuestionService(fs, &fakeGenerator{answer: "réponse"})

	user := trialUser("user-1")
	if _, err := svc.AskQuestion(context.Background(), user, "child-a", "Pourquoi ?"); err != nil {
		t.Fatalf("question failed: %v", err)
	}

	decision, err := svc.TierStatus(user)
	if err != nil {
		t.Fatalf("TierStatus failed: %v", err)
	}
	if decision.Tier != TierTrial {
		t.Errorf("Tier = %v, want trial", decision.Tier)
	}
	if decision.UsageThisPeriod != 1 {
		t.Errorf("UsageThisPeriod = %d, want 1", decision.UsageThisPeriod)
	}
}

func TestHistoryUnknownChild(t *testing.T) {
	svc := newTestQuestionService(newFakeStore(), &fakeGenerator{answer: "x"})
	if _, err := svc.History(trialUser("user-1"), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
