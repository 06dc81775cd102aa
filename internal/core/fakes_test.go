package core

import (
	"context"
	"fmt"
	"time"

	"github.com/amarareunion/dismaman-pwa/internal/store"
)

// frozenNow is the clock the service tests pin their services and users to.
var frozenNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// fakeStore is an in-memory stand-in for the SQLite store, implementing the
// child and response store interfaces the core services depend on.
type fakeStore struct {
	children  map[string]*store.Child
	responses map[string]*store.Response
	seq       int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		children:  make(map[string]*store.Child),
		responses: make(map[string]*store.Response),
	}
}

func (f *fakeStore) addChild(child *store.Child) {
	f.children[child.ID] = child
}

func (f *fakeStore) GetChild(childID, parentID string) (*store.Child, error) {
	child, ok := f.children[childID]
	if !ok || child.ParentID != parentID {
		return nil, nil
	}
	copied := *child
	return &copied, nil
}

func (f *fakeStore) AdjustChildComplexity(childID string, delta int) (int, error) {
	child, ok := f.children[childID]
	if !ok {
		return 0, fmt.Errorf("child not found")
	}
	level := child.ComplexityLevel + delta
	if level < -2 {
		level = -2
	}
	if level > 2 {
		level = 2
	}
	child.ComplexityLevel = level
	return level, nil
}

func (f *fakeStore) CreateResponse(resp *store.Response) error {
	f.seq++
	resp.ID = fmt.Sprintf("resp-%d", f.seq)
	resp.CreatedAt = frozenNow
	copied := *resp
	f.responses[resp.ID] = &copied
	return nil
}

func (f *fakeStore) CreateResponseCapped(resp *store.Response, since time.Time, limit int) (bool, error) {
	count, _ := f.CountResponsesSince(resp.ParentID, since)
	if count >= limit {
		return false, nil
	}
	return true, f.CreateResponse(resp)
}

func (f *fakeStore) CountResponsesSince(parentID string, since time.Time) (int, error) {
	count := 0
	for _, resp := range f.responses {
		if resp.ParentID == parentID && !resp.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) GetResponsesByChild(childID, parentID string, limit int) ([]store.Response, error) {
	var out []store.Response
	for _, resp := range f.responses {
		if resp.ChildID == childID && resp.ParentID == parentID && len(out) < limit {
			out = append(out, *resp)
		}
	}
	return out, nil
}

func (f *fakeStore) GetResponse(responseID, parentID string) (*store.Response, error) {
	resp, ok := f.responses[responseID]
	if !ok || resp.ParentID != parentID {
		return nil, nil
	}
	copied := *resp
	return &copied, nil
}

func (f *fakeStore) UpdateResponseFeedback(responseID, feedback string) error {
	resp, ok := f.responses[responseID]
	if !ok {
		return fmt.Errorf("response not found")
	}
	resp.Feedback = &feedback
	return nil
}

func (f *fakeStore) UpdateResponseAnswer(responseID, answer string) error {
	resp, ok := f.responses[responseID]
	if !ok {
		return fmt.Errorf("response not found")
	}
	resp.Answer = answer
	resp.Regenerated = true
	return nil
}

// generatorCall records one Generate invocation.
type generatorCall struct {
	system    string
	prompt    string
	maxTokens int32
}

// fakeGenerator returns a scripted answer or error.
type fakeGenerator struct {
	answer       string
	usedFallback bool
	err          error
	calls        []generatorCall
}

func (f *fakeGenerator) Generate(ctx context.Context, system, prompt string, maxTokens int32) (string, bool, error) {
	f.calls = append(f.calls, generatorCall{system: system, prompt: prompt, maxTokens: maxTokens})
	if f.err != nil {
		return "", false, f.err
	}
	return f.answer, f.usedFallback, nil
}

func trialUser(id string) *store.User {
	return &store.User{
		ID:         id,
		Email:      id + "@example.com",
		TrialStart: frozenNow.Add(-24 * time.Hour),
		TrialDays:  30,
	}
}

func postTrialUser(id string) *store.User {
	return &store.User{
		ID:         id,
		Email:      id + "@example.com",
		TrialStart: frozenNow.Add(-60 * 24 * time.Hour),
		TrialDays:  30,
	}
}

func premiumUser(id string) *store.User {
	user := postTrialUser(id)
	user.IsPremium = true
	return user
}
