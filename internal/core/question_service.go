package core

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/amarareunion/dismaman-pwa/internal/store"
)

// historyLimit caps the per-child response history read-back.
const historyLimit = 20

type ChildStore interface {
	GetChild(childID, parentID string) (*store.Child, error)
}

type ResponseStore interface {
	CreateResponse(resp *store.Response) error
	CreateResponseCapped(resp *store.Response, since time.Time, limit int) (bool, error)
	CountResponsesSince(parentID string, since time.Time) (int, error)
	GetResponsesByChild(childID, parentID string, limit int) ([]store.Response, error)
}

// QuestionService gates, generates, and logs answers to children's questions.
type QuestionService struct {
	children  ChildStore
	responses ResponseStore
	generator Generator
	now       func() time.Time
}

func NewQuestionService(children ChildStore, responses ResponseStore, generator Generator) *QuestionService {
	return &QuestionService{
		children:  children,
		responses: responses,
		generator: generator,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// AskQuestion answers a question for one of the account's children. Policy
// rejections surface as ErrQuotaExceeded; generation failure degrades to a
// canned answer and is never an error to the caller.
func (s *QuestionService) AskQuestion(ctx context.Context, user *store.User, childID, question string) (*store.Response, error) {
	child, err := s.children.GetChild(childID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up child: %w", err)
	}
	if child == nil {
		return nil, ErrNotFound
	}

	now := s.now()
	since := StartOfMonth(now)
	usage, err := s.responses.CountResponsesSince(user.ID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count monthly usage: %w", err)
	}
	if err := AuthorizeQuestion(user, child.ID, usage, now); err != nil {
		return nil, err
	}

	system := BuildSystemMessage(child, now)
	answer, usedFallback, err := s.generator.Generate(ctx, system, question, answerMaxTokens)
	if err != nil {
		// A cancelled request must not commit a partial write.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Printf("All generation attempts failed for child %s: %v", child.ID, err)
		answer = DegradedAnswer(child.Name)
	} else if usedFallback {
		log.Printf("Secondary model answered for child %s", child.ID)
	}

	resp := &store.Response{
		ChildID:        child.ID,
		ParentID:       user.ID,
		Question:       question,
		Answer:         answer,
		ChildName:      child.Name,
		ChildAgeMonths: ChildAgeMonths(child.BirthYear, child.BirthMonth, now),
	}

	decision := EvaluateTier(user, usage, now)
	if decision.Tier == TierPostTrialFree {
		inserted, err := s.responses.CreateResponseCapped(resp, since, monthlyFreeQuestions)
		if err != nil {
			return nil, fmt.Errorf("failed to log response: %w", err)
		}
		if !inserted {
			return nil, ErrQuotaExceeded
		}
	} else {
		if err := s.responses.CreateResponse(resp); err != nil {
			return nil, fmt.Errorf("failed to log response: %w", err)
		}
	}

	return resp, nil
}

// History returns the child's most recent responses, newest first.
func (s *QuestionService) History(user *store.User, childID string) ([]store.Response, error) {
	child, err := s.children.GetChild(childID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up child: %w", err)
	}
	if child == nil {
		return nil, ErrNotFound
	}
	return s.responses.GetResponsesByChild(childID, user.ID, historyLimit)
}

// TierStatus recomputes the account's tier decision from current facts.
func (s *QuestionService) TierStatus(user *store.User) (TierDecision, error) {
	now := s.now()
	usage, err := s.responses.CountResponsesSince(user.ID, StartOfMonth(now))
	if err != nil {
		return TierDecision{}, fmt.Errorf("failed to count monthly usage: %w", err)
	}
	return EvaluateTier(user, usage, now), nil
}
