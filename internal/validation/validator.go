// Package validation classifies candidate barcodes before any network I/O.
package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Tag identifies one failed check.
type Tag string

const (
	TagRequired         Tag = "required"
	TagMinLength        Tag = "minlength"
	TagMaxLength        Tag = "maxlength"
	TagPattern          Tag = "pattern"
	TagWhitespace       Tag = "whitespace"
	TagSpecialChars     Tag = "specialChars"
	TagToteIDFormat     Tag = "toteIdFormat"
	TagBarcodeNotExists Tag = "barcodeNotExists"
	TagBlacklisted      Tag = "blacklisted"
	TagDangerous        Tag = "dangerous"
)

// precedence orders tags when a single message must be chosen.
var precedence = []Tag{
	TagRequired,
	TagMinLength,
	TagMaxLength,
	TagPattern,
	TagWhitespace,
	TagSpecialChars,
	TagToteIDFormat,
	TagBarcodeNotExists,
	TagBlacklisted,
	TagDangerous,
}

var (
	alphanumericPattern = regexp.MustCompile(`^[a-zA-Z0-9-_]+$`)
	toteIDPattern       = regexp.MustCompile(`^[a-zA-Z0-9]+-[a-zA-Z0-9]+-\d+$`)
	specialCharsPattern = regexp.MustCompile(`[^a-zA-Z0-9-_]`)
	whitespacePattern   = regexp.MustCompile(`\s`)

	dangerousPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<script`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)on\w+\s*=`),
		regexp.MustCompile(`(?i)<iframe`),
	}
)

// Rules parameterize the length and blacklist checks.
type Rules struct {
	MinLength int
	MaxLength int
	Blacklist []string
}

// DefaultRules returns the stock scanner rules.
func DefaultRules() Rules {
	return Rules{
		MinLength: 3,
		MaxLength: 50,
	}
}

// Result is the outcome of validating one candidate.
type Result struct {
	Valid bool
	// Tags holds every failed check, ordered by message precedence.
	Tags []Tag
	// Length is the trimmed candidate's length in characters.
	Length int

	rules Rules
}

// Has reports whether tag is among the failures.
func (r Result) Has(tag Tag) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Message returns the single user-facing message for the highest-precedence
// failure, or "" when the candidate is valid.
func (r Result) Message() string {
	if r.Valid {
		return ""
	}
	if len(r.Tags) == 0 {
		return GenericMessage
	}
	return r.messageFor(r.Tags[0])
}

// Messages returns one message per failed tag in precedence order.
func (r Result) Messages() []string {
	out := make([]string, 0, len(r.Tags))
	for _, t := range r.Tags {
		out = append(out, r.messageFor(t))
	}
	return out
}

// WithTag returns a copy of r that additionally fails with tag.
func (r Result) WithTag(tag Tag) Result {
	if r.Has(tag) {
		return r
	}
	tags := append(append([]Tag(nil), r.Tags...), tag)
	r.Tags = sortTags(tags)
	r.Valid = false
	return r
}

// Validator runs the synchronous checks. It holds no mutable state and is safe
// for concurrent use.
type Validator struct {
	rules     Rules
	blacklist map[string]struct{}
}

// New creates a validator. Zero lengths fall back to the defaults.
func New(rules Rules) *Validator {
	defaults := DefaultRules()
	if rules.MinLength <= 0 {
		rules.MinLength = defaults.MinLength
	}
	if rules.MaxLength <= 0 {
		rules.MaxLength = defaults.MaxLength
	}

	blacklist := make(map[string]struct{}, len(rules.Blacklist))
	for _, b := range rules.Blacklist {
		blacklist[strings.ToLower(strings.TrimSpace(b))] = struct{}{}
	}

	return &Validator{rules: rules, blacklist: blacklist}
}

// Rules returns the effective rules.
func (v *Validator) Rules() Rules {
	return v.rules
}

// Validate runs every check independently and returns the union of failures.
// Length, pattern, format and blacklist checks see the trimmed value; the
// whitespace, special character and content checks see the raw input.
// An empty raw string fails only the required check.
func (v *Validator) Validate(raw string) Result {
	trimmed := strings.TrimSpace(raw)
	length := utf8.RuneCountInString(trimmed)

	var tags []Tag

	if trimmed == "" {
		tags = append(tags, TagRequired)
	}

	if raw != "" {
		if length < v.rules.MinLength {
			tags = append(tags, TagMinLength)
		}
		if length > v.rules.MaxLength {
			tags = append(tags, TagMaxLength)
		}
		if !alphanumericPattern.MatchString(trimmed) {
			tags = append(tags, TagPattern)
		}
		if whitespacePattern.MatchString(raw) {
			tags = append(tags, TagWhitespace)
		}
		if specialCharsPattern.MatchString(raw) {
			tags = append(tags, TagSpecialChars)
		}
		if !toteIDPattern.MatchString(trimmed) {
			tags = append(tags, TagToteIDFormat)
		}
		if _, ok := v.blacklist[strings.ToLower(trimmed)]; ok {
			tags = append(tags, TagBlacklisted)
		}
		if IsDangerous(raw) {
			tags = append(tags, TagDangerous)
		}
	}

	return Result{
		Valid:  len(tags) == 0,
		Tags:   sortTags(tags),
		Length: length,
		rules:  v.rules,
	}
}

// MeetsMinLength reports whether the trimmed candidate is long enough to be
// worth prefetching.
func (v *Validator) MeetsMinLength(raw string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(raw)) >= v.rules.MinLength
}

// IsDangerous reports whether s carries markup or script injection fragments.
func IsDangerous(s string) bool {
	for _, p := range dangerousPatterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

func sortTags(tags []Tag) []Tag {
	if len(tags) == 0 {
		return nil
	}
	set := make(map[Tag]bool, len(tags))
	for _, t := range tags {
		set[t] = true
	}
	out := make([]Tag, 0, len(set))
	for _, t := range precedence {
		if set[t] {
			out = append(out, t)
			delete(set, t)
		}
	}
	// Unknown tags sort last, in insertion order.
	for _, t := range tags {
		if set[t] {
			out = append(out, t)
			delete(set, t)
		}
	}
	return out
}
