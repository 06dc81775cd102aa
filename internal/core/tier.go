package core

import (
	"math"
	"time"

	"github.com/amarareunion/dismaman-pwa/internal/store"
)

type Tier string

const (
	TierPremium       Tier = "premium"
	TierTrial         Tier = "trial"
	TierPostTrialFree Tier = "post_trial_free"
)

type Signal string

const (
	SignalNone                   Signal = "none"
	SignalChildSelectionRequired Signal = "child_selection_required"
	SignalMonthlyLimitReached    Signal = "monthly_limit_reached"
)

// monthlyFreeQuestions is the post-trial free tier's per-month allowance.
const monthlyFreeQuestions = 1

// TierDecision is derived on every request and never persisted.
type TierDecision struct {
	Tier            Tier   `json:"tier"`
	DaysLeft        int    `json:"trial_days_left"`
	UsageThisPeriod int    `json:"questions_this_month"`
	Signal          Signal `json:"signal"`
}

// EvaluateTier classifies an account's current entitlements. It is a pure
// function of the persisted account facts, the usage count, and the clock.
func EvaluateTier(user *store.User, usageThisPeriod int, now time.Time) TierDecision {
	decision := TierDecision{
		Tier:            TierPostTrialFree,
		UsageThisPeriod: usageThisPeriod,
		Signal:          SignalNone,
	}

	if user.IsPremium {
		decision.Tier = TierPremium
		return decision
	}

	trialEnd := user.TrialStart.Add(time.Duration(user.TrialDays) * 24 * time.Hour)
	if now.Before(trialEnd) {
		decision.Tier = TierTrial
		decision.DaysLeft = int(math.Ceil(trialEnd.Sub(now).Hours() / 24))
		return decision
	}

	if user.ActiveChildID == nil {
		decision.Signal = SignalChildSelectionRequired
	} else if usageThisPeriod >= monthlyFreeQuestions {
		decision.Signal = SignalMonthlyLimitReached
	}
	return decision
}

// AuthorizeQuestion rejects a question in the post-trial free tier when it
// targets a child other than the selected one, or when the monthly allowance
// is already spent.
func AuthorizeQuestion(user *store.User, childID string, usageThisPeriod int, now time.Time) error {
	decision := EvaluateTier(user, usageThisPeriod, now)
	if decision.Tier != TierPostTrialFree {
		return nil
	}
	if user.ActiveChildID != nil && *user.ActiveChildID != childID {
		return ErrQuotaExceeded
	}
	if usageThisPeriod >= monthlyFreeQuestions {
		return ErrQuotaExceeded
	}
	return nil
}

// AuthorizeFeedback gates the complexity-adjusting feedback kinds behind
// premium or an active trial. Acknowledged feedback is open to every tier.
func AuthorizeFeedback(user *store.User, kind FeedbackKind, now time.Time) error {
	decision := EvaluateTier(user, 0, now)
	if decision.Tier == TierPostTrialFree && kind != FeedbackAcknowledged {
		return ErrFeatureGated
	}
	return nil
}

// StartOfMonth returns the first instant of now's calendar month, the lower
// bound of the usage counting period.
func StartOfMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}
