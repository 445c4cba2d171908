package directory

import "strings"

type userResource struct {
	ID      string `json:"id"`
	Profile struct {
		Login          string `json:"login"`
		Email          string `json:"email"`
		FirstName      string `json:"firstName"`
		LastName       string `json:"lastName"`
		EmployeeNumber string `json:"employeeNumber"`
	} `json:"profile"`
}

type groupResource struct {
	Type    string `json:"type"`
	Label   string `json:"label"`
	Profile *struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"profile"`
}

// name prefers the profile name, then description, label and type.
func (g groupResource) name() string {
	if g.Profile != nil {
		if n := firstNonEmpty(g.Profile.Name, g.Profile.Description); n != "" {
			return n
		}
	}
	return firstNonEmpty(g.Label, g.Type)
}

type appLinkResource struct {
	Label   string `json:"label"`
	AppName string `json:"appName"`
}

// nextLink extracts the rel="next" target from an RFC 8288 Link header.
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		segments := strings.Split(part, ";")
		if len(segments) < 2 {
			continue
		}
		target := strings.TrimSpace(segments[0])
		if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
			continue
		}
		for _, param := range segments[1:] {
			key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
			if !ok || !strings.EqualFold(strings.TrimSpace(key), "rel") {
				continue
			}
			for _, rel := range strings.Fields(strings.Trim(strings.TrimSpace(value), `"`)) {
				if strings.EqualFold(rel, "next") {
					return target[1 : len(target)-1]
				}
			}
		}
	}
	return ""
}
