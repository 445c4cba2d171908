package models

// DirectoryProfile is the canonical identity held by the directory.
type DirectoryProfile struct {
	Login          string `json:"login"`
	Email          string `json:"email"`
	FirstName      string `json:"firstName,omitempty"`
	LastName       string `json:"lastName,omitempty"`
	EmployeeNumber string `json:"employeeNumber,omitempty"`
}

// DirectoryUser is produced fresh for every lookup and never cached.
type DirectoryUser struct {
	ID           string           `json:"id"`
	Profile      DirectoryProfile `json:"profile"`
	Groups       []string         `json:"groups"`
	Applications []string         `json:"applications"`
}

// EnrichedUser is the merged record kept in the store under its employee id.
type EnrichedUser struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Title        string   `json:"title,omitempty"`
	Department   string   `json:"department,omitempty"`
	StartDate    string   `json:"startDate,omitempty"`
	Groups       []string `json:"groups"`
	Applications []string `json:"applications"`
	Onboarded    bool     `json:"onboarded"`
}
