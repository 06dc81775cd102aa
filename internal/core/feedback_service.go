package core

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/amarareunion/dismaman-pwa/internal/store"
)

type FeedbackKind string

const (
	FeedbackAcknowledged   FeedbackKind = "acknowledged"
	FeedbackTooComplex     FeedbackKind = "too_complex"
	FeedbackNeedMoreDetail FeedbackKind = "need_more_detail"
)

// ParseFeedbackKind validates a wire value.
func ParseFeedbackKind(value string) (FeedbackKind, error) {
	switch FeedbackKind(value) {
	case FeedbackAcknowledged, FeedbackTooComplex, FeedbackNeedMoreDetail:
		return FeedbackKind(value), nil
	}
	return "", fmt.Errorf("unknown feedback kind %q", value)
}

type FeedbackChildStore interface {
	GetChild(childID, parentID string) (*store.Child, error)
	AdjustChildComplexity(childID string, delta int) (int, error)
}

type FeedbackResponseStore interface {
	GetResponse(responseID, parentID string) (*store.Response, error)
	UpdateResponseFeedback(responseID, feedback string) error
	UpdateResponseAnswer(responseID, answer string) error
}

type FeedbackResult struct {
	Response    *store.Response `json:"response"`
	Regenerated bool            `json:"regenerated"`
	// RegenerationFailed reports that every provider attempt failed, so the
	// stored answer, level, and feedback marker were left untouched.
	RegenerationFailed bool `json:"regeneration_failed,omitempty"`
}

// FeedbackService consumes caregiver feedback, adjusts the child's
// complexity level, and regenerates the answer in one of two modes.
type FeedbackService struct {
	children  FeedbackChildStore
	responses FeedbackResponseStore
	generator Generator
	now       func() time.Time
}

func NewFeedbackService(children FeedbackChildStore, responses FeedbackResponseStore, generator Generator) *FeedbackService {
	return &FeedbackService{
		children:  children,
		responses: responses,
		generator: generator,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Submit records feedback on a response. too_complex lowers the complexity
// level and regenerates the answer wholesale; need_more_detail raises the
// level and appends an elaboration section after the verbatim original
// answer; acknowledged only records.
func (s *FeedbackService) Submit(ctx context.Context, user *store.User, responseID string, kind FeedbackKind) (*FeedbackResult, error) {
	now := s.now()
	if err := AuthorizeFeedback(user, kind, now); err != nil {
		return nil, err
	}

	resp, err := s.responses.GetResponse(responseID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up response: %w", err)
	}
	if resp == nil {
		return nil, ErrNotFound
	}

	child, err := s.children.GetChild(resp.ChildID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up child: %w", err)
	}
	if child == nil {
		return nil, ErrNotFound
	}

	if kind == FeedbackAcknowledged {
		if err := s.responses.UpdateResponseFeedback(responseID, string(kind)); err != nil {
			return nil, fmt.Errorf("failed to record feedback: %w", err)
		}
		feedback := string(kind)
		resp.Feedback = &feedback
		return &FeedbackResult{Response: resp}, nil
	}

	// The new level is computed locally for the instruction and persisted
	// only after generation succeeds, so a cancelled request commits neither
	// the complexity mutation nor the feedback marker.
	delta := 1
	if kind == FeedbackTooComplex {
		delta = -1
	}
	child.ComplexityLevel = maxInt(-2, minInt(2, child.ComplexityLevel+delta))

	var newAnswer string
	switch kind {
	case FeedbackTooComplex:
		// Full regeneration: same question, new level, answer replaced wholesale.
		system := BuildSystemMessage(child, now)
		answer, _, genErr := s.generator.Generate(ctx, system, resp.Question, answerMaxTokens)
		if genErr != nil {
			return s.regenerationFailed(ctx, resp, child.ID, genErr)
		}
		newAnswer = answer

	case FeedbackNeedMoreDetail:
		// Append-only elaboration: the original answer stays byte-for-byte.
		system := BuildElaborationMessage(child.Name)
		section, _, genErr := s.generator.Generate(ctx, system, ElaborationPrompt(resp.Question), elaborationMaxTokens)
		if genErr != nil {
			return s.regenerationFailed(ctx, resp, child.ID, genErr)
		}
		newAnswer = resp.Answer + "\n\n" + section
	}

	if _, err := s.children.AdjustChildComplexity(child.ID, delta); err != nil {
		return nil, fmt.Errorf("failed to adjust complexity level: %w", err)
	}
	if err := s.responses.UpdateResponseFeedback(responseID, string(kind)); err != nil {
		return nil, fmt.Errorf("failed to record feedback: %w", err)
	}
	feedback := string(kind)
	resp.Feedback = &feedback

	if err := s.responses.UpdateResponseAnswer(responseID, newAnswer); err != nil {
		return nil, fmt.Errorf("failed to store regenerated answer: %w", err)
	}
	resp.Answer = newAnswer
	resp.Regenerated = true

	return &FeedbackResult{Response: resp, Regenerated: true}, nil
}

// regenerationFailed leaves the stored response and level untouched and
// reports the failure as a result, not an error, unless the request itself
// went away.
func (s *FeedbackService) regenerationFailed(ctx context.Context, resp *store.Response, childID string, genErr error) (*FeedbackResult, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	log.Printf("Could not regenerate answer for child %s: %v", childID, genErr)
	return &FeedbackResult{Response: resp, RegenerationFailed: true}, nil
}
