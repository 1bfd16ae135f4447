// Package profile manages the per-user profile document: display details,
// subscription plan and the monthly request quota that caption generation
// draws from.
package profile

import (
	"context"
	"errors"
	"time"
)

// Plan names.
const (
	PlanFree = "free"
	PlanPro  = "pro"
)

// TrialLength is how long a pro trial lasts.
const TrialLength = 7 * 24 * time.Hour

// planLimits maps a plan to its monthly request limit.
var planLimits = map[string]int{
	PlanFree: 10,
	PlanPro:  100,
}

// Limit returns the monthly request limit for plan, falling back to the free
// plan's limit for unknown names.
func Limit(plan string) int {
	if n, ok := planLimits[plan]; ok {
		return n
	}
	return planLimits[PlanFree]
}

var (
	// ErrQuotaExceeded is returned when the user has no requests left in the
	// current window.
	ErrQuotaExceeded = errors.New("request limit reached for this billing period")
	// ErrTrialUsed is returned when a trial was already started once.
	ErrTrialUsed = errors.New("trial already used")
	// ErrNotFound is returned when a profile does not exist.
	ErrNotFound = errors.New("profile not found")
	// ErrInvalidPatch is returned for rejected profile updates.
	ErrInvalidPatch = errors.New("invalid profile update")
	// ErrConflict is returned by Store.SwapProfile when the stored usage
	// moved since it was read.
	ErrConflict = errors.New("profile changed concurrently")
)

// UserProfile is the stored profile document.
type UserProfile struct {
	UID           string     `json:"uid" dynamodbav:"-"`
	DisplayName   string     `json:"displayName" dynamodbav:"displayName"`
	Email         string     `json:"email" dynamodbav:"email"`
	PhotoURL      string     `json:"photoURL,omitempty" dynamodbav:"photoURL,omitempty"`
	CreatedAt     time.Time  `json:"createdAt,omitzero" dynamodbav:"createdAt"`
	PlanType      string     `json:"plan_type" dynamodbav:"plan_type"`
	SelectedPlan  string     `json:"selected_plan,omitempty" dynamodbav:"selected_plan,omitempty"`
	RequestsLimit int        `json:"requests_limit" dynamodbav:"requests_limit"`
	RequestsUsed  int        `json:"requests_used" dynamodbav:"requests_used"`
	ResetDate     time.Time  `json:"reset_date,omitzero" dynamodbav:"reset_date"`
	HasUsedTrial  bool       `json:"has_used_trial" dynamodbav:"has_used_trial"`
	TrialEndDate  *time.Time `json:"trial_end_date" dynamodbav:"trial_end_date,omitempty"`
	TrialPending  bool       `json:"trial_pending" dynamodbav:"trial_pending"`
}

// Remaining returns how many requests are left in the current window.
func (p *UserProfile) Remaining() int {
	if n := p.RequestsLimit - p.RequestsUsed; n > 0 {
		return n
	}
	return 0
}

// Store persists profiles. GetProfile returns (nil, nil) when the profile
// does not exist; PutProfile replaces it. SwapProfile replaces it only while
// the stored requests_used still equals prevUsed, and returns ErrConflict
// otherwise.
type Store interface {
	GetProfile(ctx context.Context, uid string) (*UserProfile, error)
	PutProfile(ctx context.Context, p *UserProfile) error
	SwapProfile(ctx context.Context, p *UserProfile, prevUsed int) error
}

// Patch carries user-editable profile fields. Nil fields are left unchanged.
type Patch struct {
	DisplayName  *string `json:"displayName"`
	PhotoURL     *string `json:"photoURL"`
	SelectedPlan *string `json:"selected_plan"`
}
