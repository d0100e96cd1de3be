// Package template implements the `[[key]]` / `[[key || fallback]]`
// placeholder processor from spec.md §4.4. This grammar is new — the
// teacher uses html/template for fixed verification/reset emails (see
// email-service/app/email/templates.go) — only the "render subject/body
// against a lead" shape and the package's overall service style are
// grounded on that file.
package template

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// placeholderRe matches [[key]] or [[key || fallback]]. The fallback is the
// text before the closing ]], without surrounding whitespace; it cannot
// itself contain a ']'.
var placeholderRe = regexp.MustCompile(`\[\[\s*([A-Za-z0-9_]+)\s*(?:\|\|\s*([^\]]*?)\s*)?\]\]`)

// SpecialFunc resolves a "special" key like aiOpener or currentDate. It
// receives the lead id for keys (like unsubscribe) that need it.
type SpecialFunc func(ctx context.Context, leadID string) (string, error)

// Processor renders subject/body templates against a flattened variable
// namespace plus a registry of special, dynamically-dispatched keys
// (spec.md §9: "model as a tagged sum ... or as a registry name -> fn").
type Processor struct {
	BaseURL string

	// AllowUndefinedVariables, when false, replaces any placeholder left
	// unresolved after both passes with Replacement (spec.md §4.4 "strict
	// mode"). Default true (lenient: a placeholder with no value, no
	// special handler and no fallback resolves to the empty string, so no
	// "[[...]]" is left visible in customer-facing email).
	AllowUndefinedVariables bool
	Replacement             string

	specials map[string]SpecialFunc
	now      func() time.Time
}

func NewProcessor(baseURL string) *Processor {
	if baseURL != "" && !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	p := &Processor{
		BaseURL:                 baseURL,
		AllowUndefinedVariables: true,
		Replacement:             "",
		now:                     time.Now,
	}
	p.specials = map[string]SpecialFunc{
		"unsubscribe":   p.resolveUnsubscribe,
		"currentdate":   p.resolveCurrentDate,
		"currentyear":   p.resolveCurrentYear,
		"currentmonth":  p.resolveCurrentMonth,
		"currentday":    p.resolveCurrentDay,
	}
	return p
}

// RegisterSpecial installs or overrides a special-key handler — used to
// wire in aiOpener, which depends on an external client this package does
// not itself construct.
func (p *Processor) RegisterSpecial(key string, fn SpecialFunc) {
	p.specials[strings.ToLower(key)] = fn
}

// Render resolves every [[key]]/[[key || fallback]] occurrence in tmpl.
// vars holds the flattened lead attributes plus any custom variables,
// keyed case-insensitively (callers should lower-case their keys before
// calling, see FlattenLead).
func (p *Processor) Render(ctx context.Context, tmpl string, leadID string, vars map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		groups := placeholderRe.FindStringSubmatch(match)
		key := strings.ToLower(strings.TrimSpace(groups[1]))
		fallback := groups[2]

		if v, ok := vars[key]; ok && v != "" {
			return v
		}

		if fn, ok := p.specials[key]; ok {
			// A special func's string return is always safe to use, even
			// alongside a non-nil error: aiOpener and friends return their
			// fallback text on failure precisely so a render never regresses
			// to an empty placeholder just because an upstream call failed.
			if v, _ := fn(ctx, leadID); v != "" {
				return v
			}
		}

		if fallback != "" {
			return fallback
		}

		if !p.AllowUndefinedVariables {
			return p.Replacement
		}
		return ""
	})
}

// resolveUnsubscribe builds "{baseUrl}{key}/{leadId}" per spec.md §4.4 —
// no separator is inserted before the key itself; BaseURL is normalized to
// always carry its own trailing slash in NewProcessor so the concatenation
// still produces a well-formed URL.
func (p *Processor) resolveUnsubscribe(ctx context.Context, leadID string) (string, error) {
	if p.BaseURL == "" || leadID == "" {
		return "", fmt.Errorf("missing baseURL or leadID")
	}
	return fmt.Sprintf("%sunsubscribe/%s", p.BaseURL, leadID), nil
}

func (p *Processor) resolveCurrentDate(ctx context.Context, leadID string) (string, error) {
	return p.now().Format("2006-01-02"), nil
}

func (p *Processor) resolveCurrentYear(ctx context.Context, leadID string) (string, error) {
	return fmt.Sprintf("%d", p.now().Year()), nil
}

func (p *Processor) resolveCurrentMonth(ctx context.Context, leadID string) (string, error) {
	return fmt.Sprintf("%d", int(p.now().Month())), nil
}

func (p *Processor) resolveCurrentDay(ctx context.Context, leadID string) (string, error) {
	return fmt.Sprintf("%d", p.now().Day()), nil
}
