// Package util provides utility functions for the CareFlow application.
package util

import "github.com/google/uuid"

// GenerateID generates a unique ID with the given prefix.
func GenerateID(prefix string) string {
	return prefix + uuid.NewString()
}

// GenerateAnonymousID generates the external-facing pseudonym for a session.
func GenerateAnonymousID() string {
	return GenerateID("anon_")
}

// GenerateAssessmentID generates a unique assessment record ID.
func GenerateAssessmentID() string {
	return GenerateID("asmt_")
}

// GenerateMoodID generates a unique mood entry ID.
func GenerateMoodID() string {
	return GenerateID("mood_")
}

// GenerateReferralID generates a unique referral ID.
func GenerateReferralID() string {
	return GenerateID("ref_")
}
