package pii

import (
	"context"
	"fmt"
	"regexp"
)

// Pattern categories shipped with DefaultRules.
const (
	CategoryNRIC               = "nric_fin"
	CategoryPassport           = "passport"
	CategoryPhoneDomestic      = "phone_domestic"
	CategoryPhoneInternational = "phone_international"
	CategoryEmail              = "email"
	CategoryIPv4               = "ipv4"
	CategoryIPv6               = "ipv6"
	CategoryCreditCard         = "credit_card"
	CategoryLoyaltyNumber      = "loyalty_number"
	CategoryFlightTicket       = "flight_ticket"
	CategorySeat               = "seat"
	CategoryBookingCode        = "booking_code"
)

// Rule is a named detection pattern. The name doubles as the category of
// every span the rule produces.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

// NewRule compiles pattern into a Rule.
func NewRule(name, pattern string) (Rule, error) {
	if name == "" {
		return Rule{}, fmt.Errorf("rule name is empty")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %q: %w", name, err)
	}
	return Rule{Name: name, Pattern: re}, nil
}

func mustRule(name, pattern string) Rule {
	r, err := NewRule(name, pattern)
	if err != nil {
		panic(err)
	}
	return r
}

// DefaultRules returns the built-in rule registry in its canonical order.
// A fresh slice is returned on each call so callers may modify it.
func DefaultRules() []Rule {
	return []Rule{
		mustRule(CategoryNRIC, `\b[FGMSTfgmst]\d{7}[A-Za-z]\b`),
		mustRule(CategoryPassport, `\b[eEkK]\d{7}[A-Za-z]\b`),
		mustRule(CategoryPhoneDomestic, `\b[689]\d{3}[\s-]?\d{4}\b`),
		mustRule(CategoryPhoneInternational, `\+\d{1,3}(?:[\s-]?\d{2,}){1,4}\b`),
		mustRule(CategoryEmail, `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		mustRule(CategoryIPv4, `\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`),
		mustRule(CategoryIPv6, `\b(?:[0-9a-fA-F]{1,4}:){7}[0-9a-fA-F]{1,4}\b|::1\b|::ffff:[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\b`),
		mustRule(CategoryCreditCard, `\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`),
		mustRule(CategoryLoyaltyNumber, `\b\d{10}\b`),
		mustRule(CategoryFlightTicket, `\b\d{3}-?\d{10,11}\b`),
		mustRule(CategorySeat, `\b(?:[1-9]\d?|\d{3})[A-HJK]\b`),
		mustRule(CategoryBookingCode, `\b[A-HJ-NP-Z0-9]{6}\b`),
	}
}

// Ruleset is the pattern detector: an ordered, immutable registry of rules.
// It is constructed once at startup and shared read-only across pages.
type Ruleset struct {
	rules []Rule
}

// NewRuleset builds a Ruleset from rules. Duplicate names are rejected so a
// category always maps to exactly one pattern.
func NewRuleset(rules []Rule) (*Ruleset, error) {
	seen := make(map[string]bool, len(rules))
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.Pattern == nil {
			return nil, fmt.Errorf("rule %q has no pattern", r.Name)
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("duplicate rule %q", r.Name)
		}
		seen[r.Name] = true
		out = append(out, r)
	}
	return &Ruleset{rules: out}, nil
}

// Without returns a copy of the ruleset with the named rules removed.
// Unknown names are reported as an error to catch typos in configuration.
func (rs *Ruleset) Without(names ...string) (*Ruleset, error) {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	out := make([]Rule, 0, len(rs.rules))
	for _, r := range rs.rules {
		if drop[r.Name] {
			delete(drop, r.Name)
			continue
		}
		out = append(out, r)
	}
	for n := range drop {
		return nil, fmt.Errorf("unknown rule %q", n)
	}
	return &Ruleset{rules: out}, nil
}

// With returns a copy of the ruleset with extra rules appended. A rule whose
// name already exists replaces the existing pattern in place.
func (rs *Ruleset) With(extra ...Rule) *Ruleset {
	out := make([]Rule, len(rs.rules))
	copy(out, rs.rules)
	for _, r := range extra {
		replaced := false
		for i := range out {
			if out[i].Name == r.Name {
				out[i] = r
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, r)
		}
	}
	return &Ruleset{rules: out}
}

// Names lists the categories of the ruleset in registry order.
func (rs *Ruleset) Names() []string {
	names := make([]string, len(rs.rules))
	for i, r := range rs.rules {
		names[i] = r.Name
	}
	return names
}

// Name implements Detector.
func (rs *Ruleset) Name() string { return "patterns" }

// Detect returns one span per match of every rule. Each rule is applied
// independently, so spans from different rules may overlap; that is for
// Resolve to reconcile.
func (rs *Ruleset) Detect(ctx context.Context, text string) ([]Span, error) {
	var spans []Span
	for _, r := range rs.rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, loc := range r.Pattern.FindAllStringIndex(text, -1) {
			if loc[1] <= loc[0] {
				continue
			}
			spans = append(spans, Span{Start: loc[0], End: loc[1], Category: r.Name})
		}
	}
	return spans, nil
}
