package domain

// EmailValidity mirrors the Lead.isEmailValid enum.
type EmailValidity string

const (
	EmailValid   EmailValidity = "VALID"
	EmailInvalid EmailValidity = "INVALID"
	EmailUnknown EmailValidity = "UNKNOWN"
)

// Lead is the immutable-for-this-core identity and profile record.
// Enrichment fields are flattened onto the struct because the template
// processor needs them as a flat variable namespace (internal/template).
type Lead struct {
	ID                  string
	Email               string
	FirstName           string
	LastName            string
	JobTitle            string
	CompanyName         string
	Industry            string
	CompanySize         string
	Country             string
	State               string
	Address              string
	LinkedInURL         string
	Source              string
	IsSubscribedToEmail bool
	IsEmailValid        EmailValidity
}

func (l *Lead) FullName() string {
	switch {
	case l.FirstName != "" && l.LastName != "":
		return l.FirstName + " " + l.LastName
	case l.FirstName != "":
		return l.FirstName
	default:
		return l.LastName
	}
}

// Eligible reports whether the worker is permitted to hand this lead to the
// provider, per spec.md §4.3 step 3.
func (l *Lead) Eligible() bool {
	if l == nil {
		return false
	}
	if l.Email == "" {
		return false
	}
	if !l.IsSubscribedToEmail {
		return false
	}
	if l.IsEmailValid == EmailInvalid {
		return false
	}
	return true
}
