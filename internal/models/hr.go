// Package models holds the wire contracts shared by the webhook, the
// enrichment workers and the dead-letter path.
package models

import "user-onboarding/internal/common/validation"

var validate = validation.NewCentralizedValidator()

// HRPayload is the employee record posted by the HR system.
type HRPayload struct {
	EmployeeID       string `json:"employee_id" validate:"required,not_blank"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	PreferredName    string `json:"preferred_name,omitempty"`
	Email            string `json:"email" validate:"omitempty,email"`
	Title            string `json:"title,omitempty"`
	Department       string `json:"department,omitempty"`
	ManagerEmail     string `json:"manager_email,omitempty" validate:"omitempty,email"`
	Location         string `json:"location,omitempty"`
	Office           string `json:"office,omitempty"`
	EmploymentType   string `json:"employment_type,omitempty"`
	EmploymentStatus string `json:"employment_status,omitempty"`
	StartDate        string `json:"start_date,omitempty" validate:"iso_date"`
	TerminationDate  string `json:"termination_date,omitempty" validate:"iso_date"`
	CostCenter       string `json:"cost_center,omitempty"`
	EmployeeType     string `json:"employee_type,omitempty"`
	WorkPhone        string `json:"work_phone,omitempty"`
	MobilePhone      string `json:"mobile_phone,omitempty"`
	Country          string `json:"country,omitempty"`
	TimeZone         string `json:"time_zone,omitempty"`
	LegalEntity      string `json:"legal_entity,omitempty"`
	Division         string `json:"division,omitempty"`
}

// Validate checks the payload and returns a Validation AppError on failure.
func (p *HRPayload) Validate() error {
	return validate.ValidateStruct(p)
}
