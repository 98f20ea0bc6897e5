package usecase

import "strings"

// ExemptionPolicy lists addresses that receive paid features without a
// subscription. Matching is case-insensitive.
type ExemptionPolicy struct {
	emails map[string]struct{}
}

func NewExemptionPolicy(emails []string) *ExemptionPolicy {
	p := &ExemptionPolicy{emails: make(map[string]struct{}, len(emails))}
	for _, e := range emails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			p.emails[e] = struct{}{}
		}
	}
	return p
}

func (p *ExemptionPolicy) IsExempted(email string) bool {
	if p == nil || email == "" {
		return false
	}
	_, ok := p.emails[strings.ToLower(strings.TrimSpace(email))]
	return ok
}
