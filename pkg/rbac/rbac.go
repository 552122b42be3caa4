// Package rbac maps roles to the file domains and categories they may read,
// and checks capability strings carried in tokens.
//
// Every role resolves to a FilePermissions policy: either the builtin table
// below or a database override stored on the role. Access checks run at
// query, download and delete time; they never run during ingestion.
package rbac

import (
	"encoding/json"
	"fmt"
)

// Capability strings embedded in tokens. The single "*" capability grants
// everything.
const (
	CapAll                 = "*"
	CapFilesUpload         = "files.upload"
	CapFilesDeleteOwn      = "files.delete.own"
	CapFilesDeleteAll      = "files.delete.all"
	CapFilesDownload       = "files.download"
	CapAdminDashboard      = "admin.dashboard"
	CapAnalyticsView       = "analytics.view"
	CapAnalyticsClearCache = "analytics.clear_cache"
	CapCategoriesCreate    = "categories.create"
	CapCategoriesDelete    = "categories.delete"
	CapViewDuplicates      = "files.view_duplicates"
	CapDeleteDuplicates    = "files.delete_duplicates"
)

// AccessList is either the wildcard "*" or an explicit list of names.
// It marshals to the JSON shape stored in role file_permissions blobs.
type AccessList struct {
	All    bool
	Values []string
}

// Wildcard is the full-access list.
func Wildcard() *AccessList {
	return &AccessList{All: true}
}

// List builds an explicit access list.
func List(values ...string) *AccessList {
	return &AccessList{Values: values}
}

// Contains reports whether name is covered by the list.
func (l *AccessList) Contains(name string) bool {
	if l == nil {
		return false
	}
	if l.All {
		return true
	}
	for _, v := range l.Values {
		if v == name {
			return true
		}
	}
	return false
}

// MarshalJSON encodes the wildcard as the string "*".
func (l AccessList) MarshalJSON() ([]byte, error) {
	if l.All {
		return json.Marshal("*")
	}
	return json.Marshal(l.Values)
}

// UnmarshalJSON accepts "*" or a string array.
func (l *AccessList) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "*" {
			return fmt.Errorf("access list string must be %q, got %q", "*", s)
		}
		l.All = true
		l.Values = nil
		return nil
	}

	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("access list must be %q or a string array: %w", "*", err)
	}
	l.All = false
	l.Values = values
	return nil
}

// FilePermissions is a role's file access policy.
//
// AllowedCategories nil means no positive category restriction; only
// DeniedCategories applies then.
type FilePermissions struct {
	AllowedDomains    *AccessList `json:"allowed_domains,omitempty"`
	AllowedCategories *AccessList `json:"allowed_categories,omitempty"`
	DeniedCategories  []string    `json:"denied_categories,omitempty"`
	Description       string      `json:"description,omitempty"`
}

// builtinRoleAccess is the default role policy table, used when a role has no
// database-stored override.
var builtinRoleAccess = map[string]*FilePermissions{
	"Admin": {
		AllowedDomains:    Wildcard(),
		AllowedCategories: Wildcard(),
		Description:       "Full access to all files",
	},
	"Manager": {
		AllowedDomains:   List("Company", "Business", "Finance", "Technology"),
		DeniedCategories: []string{"Personal", "Medical"},
		Description:      "Business and company files",
	},
	"Teacher": {
		AllowedDomains:   List("Education", "School", "College", "ResearchPaper", "Technology"),
		DeniedCategories: []string{"Admin", "HR", "Finance"},
		Description:      "Educational content, no admin records",
	},
	"Student": {
		AllowedDomains:   List("Education", "School", "College", "Technology"),
		DeniedCategories: []string{"Admin", "Placement", "HR"},
		Description:      "Course materials only, no admin access",
	},
	"Doctor": {
		AllowedDomains:   List("Healthcare", "ResearchPaper"),
		DeniedCategories: []string{},
		Description:      "All healthcare and research files",
	},
	"Nurse": {
		AllowedDomains:    List("Healthcare"),
		AllowedCategories: List("Clinical", "LabReport", "Imaging"),
		DeniedCategories:  []string{"Finance", "Admin", "HR"},
		Description:       "Patient files only, no admin/finance",
	},
	"Accountant": {
		AllowedDomains:    List("Finance", "Company"),
		AllowedCategories: List("Accounting", "Tax", "Payroll"),
		DeniedCategories:  []string{"Personal", "Medical"},
		Description:       "Financial documents only",
	},
	"HR": {
		AllowedDomains:    List("Company"),
		AllowedCategories: List("HR", "Payroll"),
		DeniedCategories:  []string{"Finance", "Medical", "Product"},
		Description:       "HR and employee files",
	},
	"Developer": {
		AllowedDomains:   List("Technology", "Code", "Documentation"),
		DeniedCategories: []string{"Finance", "HR", "Personal"},
		Description:      "Technical and code files",
	},
}

// Resolver supplies database-stored file permission overrides per role.
type Resolver interface {
	// FilePermissions returns the stored policy for a role, or false when
	// the role carries no override.
	FilePermissions(role string) (*FilePermissions, bool)
}

// Policy answers file access questions for roles.
type Policy struct {
	overrides Resolver
}

// NewPolicy builds a policy. overrides may be nil; the builtin table then
// stands alone.
func NewPolicy(overrides Resolver) *Policy {
	return &Policy{overrides: overrides}
}

// Permissions resolves the effective file policy for a role.
// Database overrides win over the builtin table; unknown roles resolve to nil.
func (p *Policy) Permissions(role string) *FilePermissions {
	if p.overrides != nil {
		if perms, ok := p.overrides.FilePermissions(role); ok && perms != nil {
			return perms
		}
	}
	return builtinRoleAccess[role]
}

// Access decides whether a role may read a file classified into the given
// domain and category. category may be empty; only the domain is checked then.
func (p *Policy) Access(role, domain, category string) bool {
	perms := p.Permissions(role)
	if perms == nil {
		return false
	}

	if perms.AllowedDomains != nil && perms.AllowedDomains.All {
		return true
	}

	if !perms.AllowedDomains.Contains(domain) {
		return false
	}

	if category != "" {
		for _, denied := range perms.DeniedCategories {
			if category == denied {
				return false
			}
		}
		if perms.AllowedCategories != nil && !perms.AllowedCategories.All {
			if !perms.AllowedCategories.Contains(category) {
				return false
			}
		}
	}

	return true
}

// Description returns the human-readable summary of a builtin role's access.
func Description(role string) string {
	if perms, ok := builtinRoleAccess[role]; ok {
		return perms.Description
	}
	return "Unknown role"
}

// HasCapability reports whether the capability set grants the required
// capability. The "*" capability grants everything.
func HasCapability(capabilities []string, required string) bool {
	for _, c := range capabilities {
		if c == CapAll || c == required {
			return true
		}
	}
	return false
}
