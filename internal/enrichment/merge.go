// Package enrichment turns enrichment requests into stored users: the
// publisher queues requests, the processor consumes them and Merge combines
// the HR record with the directory view.
package enrichment

import (
	"strings"
	"user-onboarding/internal/models"
)

// Merge combines the HR payload with the directory user. It is pure: the
// same inputs always give an identical record, and neither input is modified.
func Merge(hr models.HRPayload, dir *models.DirectoryUser) *models.EnrichedUser {
	var profile models.DirectoryProfile
	var groups, apps []string
	if dir != nil {
		profile = dir.Profile
		groups = dir.Groups
		apps = dir.Applications
	}

	first := firstNonBlank(hr.PreferredName, hr.FirstName, profile.FirstName)
	last := firstNonBlank(hr.LastName, profile.LastName)

	return &models.EnrichedUser{
		ID:           hr.EmployeeID,
		Name:         strings.TrimSpace(first + " " + last),
		Email:        firstNonBlank(hr.Email, profile.Email),
		Title:        hr.Title,
		Department:   hr.Department,
		StartDate:    hr.StartDate,
		Groups:       cloneStrings(groups),
		Applications: cloneStrings(apps),
		Onboarded:    true,
	}
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// cloneStrings never returns nil so the stored JSON always carries arrays.
func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
