package model

// OnboardingStatus tracks how far a learner has progressed through sign-up.
type OnboardingStatus string

const (
	OnboardingRegistered       OnboardingStatus = "registered"
	OnboardingVerified         OnboardingStatus = "verified"
	OnboardingAssessed         OnboardingStatus = "assessed"
	OnboardingProfileCompleted OnboardingStatus = "profile_completed"
)

var onboardingRank = map[OnboardingStatus]int{
	OnboardingRegistered:       1,
	OnboardingVerified:         2,
	OnboardingAssessed:         3,
	OnboardingProfileCompleted: 4,
}

// Reached reports whether s is at or beyond milestone. Unknown statuses never
// reach anything.
func (s OnboardingStatus) Reached(milestone OnboardingStatus) bool {
	have, ok := onboardingRank[s]
	if !ok {
		return false
	}
	return have >= onboardingRank[milestone]
}

// Learner is the slice of the users table this service reads.
type Learner struct {
	ID               int64            `json:"id"`
	FullName         string           `json:"full_name"`
	Email            string           `json:"email"`
	Role             string           `json:"role"`
	OnboardingStatus OnboardingStatus `json:"onboarding_status"`
}
