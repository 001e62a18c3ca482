package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOnboardingStatus_Reached(t *testing.T) {
	assert.False(t, OnboardingRegistered.Reached(OnboardingVerified))
	assert.True(t, OnboardingVerified.Reached(OnboardingVerified))
	assert.True(t, OnboardingAssessed.Reached(OnboardingVerified))
	assert.True(t, OnboardingProfileCompleted.Reached(OnboardingVerified))
	assert.False(t, OnboardingStatus("banned").Reached(OnboardingRegistered))
}
