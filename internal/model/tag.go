package model

import (
	"fmt"
	"regexp"
	"strings"
)

var tagPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,49}$`)

// NormalizeTag lower-cases s and joins words with underscores. Tags are open
// sets used for grouping only, so any value matching the pattern is accepted.
func NormalizeTag(s string) (string, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	t = strings.Join(strings.FieldsFunc(t, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	}), "_")
	if !tagPattern.MatchString(t) {
		return "", fmt.Errorf("invalid tag %q", s)
	}
	return t, nil
}

// Common usage phases. Other values are allowed.
const (
	UsagePhasePreOp   = "pre_op"
	UsagePhaseIntraOp = "intra_op"
	UsagePhasePostOp  = "post_op"
)

// Common discharge destinations. Other values are allowed.
const (
	DischargeWard     = "ward"
	DischargeICU      = "icu"
	DischargeHDU      = "hdu"
	DischargeHome     = "home"
	DischargeMortuary = "mortuary"
)
