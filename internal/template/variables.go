package template

import (
	"strings"

	"github.com/dripwave/sequencer/internal/domain"
)

// FlattenLead maps a Lead onto the placeholder namespace (spec.md §4.4):
// lower-cased base keys plus a "t"-prefixed title-cased variant of each
// (tfirstname, tlastname, ...), for templates that want
// "[[tfirstname]]" to render "Ada" while "[[firstname]]" renders the value
// exactly as stored on the lead.
func FlattenLead(lead domain.Lead) map[string]string {
	base := map[string]string{
		"id":          lead.ID,
		"email":       lead.Email,
		"firstname":   lead.FirstName,
		"lastname":    lead.LastName,
		"fullname":    lead.FullName(),
		"jobtitle":    lead.JobTitle,
		"companyname": lead.CompanyName,
		"industry":    lead.Industry,
		"companysize": lead.CompanySize,
		"country":     lead.Country,
		"state":       lead.State,
		"address":     lead.Address,
		"linkedinurl": lead.LinkedInURL,
		"source":      lead.Source,
	}

	out := make(map[string]string, len(base)*2)
	for k, v := range base {
		out[k] = v
		out["t"+k] = titleCase(v)
	}
	return out
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		if len(r) > 0 {
			r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		}
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// MergeCustom overlays custom variables on top of the flattened lead
// namespace, lower-casing their keys, custom values taking precedence.
func MergeCustom(base map[string]string, custom map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(custom))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range custom {
		out[strings.ToLower(k)] = v
	}
	return out
}
