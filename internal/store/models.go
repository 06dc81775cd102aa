package store

import "time"

type User struct {
	ID               string    `json:"id"` // Using UUID for external ID
	Email            string    `json:"email"`
	PasswordHash     string    `json:"-"` // Do not expose this in JSON responses
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	IsPremium        bool      `json:"is_premium"`
	TrialStart       time.Time `json:"trial_start"`
	TrialDays        int       `json:"trial_days"`
	SubscriptionType *string   `json:"subscription_type"` // "monthly" or "annual", nullable
	ActiveChildID    *string   `json:"active_child_id"`   // Single allowed child for post-trial free accounts
	CreatedAt        time.Time `json:"created_at"`
}

type Child struct {
	ID              string    `json:"id"` // Using UUID for external ID
	ParentID        string    `json:"parent_id"`
	Name            string    `json:"name"`
	Gender          string    `json:"gender"` // "boy" or "girl"
	BirthMonth      int       `json:"birth_month"`
	BirthYear       int       `json:"birth_year"`
	ComplexityLevel int       `json:"complexity_level"` // -2 to 2, steers answer complexity
	CreatedAt       time.Time `json:"created_at"`
}

type Response struct {
	ID             string    `json:"id"` // Using UUID for external ID
	ChildID        string    `json:"child_id"`
	ParentID       string    `json:"-"`
	Question       string    `json:"question"`
	Answer         string    `json:"answer"`
	ChildName      string    `json:"child_name"`
	ChildAgeMonths int       `json:"child_age_months"`
	CreatedAt      time.Time `json:"created_at"`
	Feedback       *string   `json:"feedback"` // Nullable until a caregiver reacts
	Regenerated    bool      `json:"regenerated"`
}
