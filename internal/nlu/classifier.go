package nlu

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"ordering_assistant/pkg"
)

// Rule maps trigger phrases plus required entity types to an intent label.
// Triggers are RE2 patterns; a plain keyword is a valid trigger.
type Rule struct {
	Label    string   `yaml:"label"`
	Triggers []string `yaml:"triggers"`
	Required []string `yaml:"required"`
}

type compiledRule struct {
	Rule
	triggers []*regexp.Regexp
}

// Classifier evaluates an ordered rule table
type Classifier struct {
	rules []compiledRule
	boost map[string]float64
}

// NewClassifier compiles the rule table. Required entity types must be in
// known; anything else is a ConfigurationError.
func NewClassifier(rules []Rule, known []string) (*Classifier, error) {
	knownSet := make(map[string]bool, len(known))
	for _, k := range known {
		knownSet[k] = true
	}

	c := &Classifier{
		rules: make([]compiledRule, 0, len(rules)),
		boost: defaultIntentBoost(),
	}
	for i, r := range rules {
		field := "intents[" + r.Label + "]"
		if strings.TrimSpace(r.Label) == "" {
			return nil, pkg.NewConfigError("intents", "rule without label")
		}
		if r.Label == pkg.GenericInquiry {
			return nil, pkg.NewConfigError(field, "label is reserved")
		}
		if len(r.Triggers) == 0 {
			return nil, pkg.NewConfigError(field, "rule has no triggers")
		}
		for _, req := range r.Required {
			if !knownSet[req] {
				return nil, pkg.NewConfigError(field, "unknown entity type "+req)
			}
		}

		cr := compiledRule{Rule: rules[i]}
		for _, t := range r.Triggers {
			re, err := regexp.Compile(t)
			if err != nil {
				return nil, &pkg.ConfigurationError{Field: field, Reason: "invalid trigger " + t, Err: err}
			}
			if re.MatchString("") {
				return nil, pkg.NewConfigError(field, "trigger matches the empty string: "+t)
			}
			cr.triggers = append(cr.triggers, re)
		}
		c.rules = append(c.rules, cr)
	}
	return c, nil
}

// Classify picks the winning rule for text. Only rules whose trigger occurs
// and whose required entity types are all present compete; the one with
// the most required types wins, then declaration order. With no candidate
// the result is generic_inquiry.
func (c *Classifier) Classify(text string, entities []pkg.EntityMatch) pkg.Intent {
	present := make(map[string]bool, len(entities))
	for _, e := range entities {
		present[e.Type] = true
	}

	best, bestSpan := -1, 0
	for i := range c.rules {
		r := &c.rules[i]
		span, ok := r.longestTrigger(text)
		if !ok || !r.satisfiedBy(present) {
			continue
		}
		if best == -1 || len(r.Required) > len(c.rules[best].Required) {
			best, bestSpan = i, span
		}
	}

	if best == -1 {
		return pkg.Intent{Name: pkg.GenericInquiry, Description: DescribeIntent(pkg.GenericInquiry)}
	}

	winner := c.rules[best]
	return pkg.Intent{
		Name:               winner.Label,
		Description:        DescribeIntent(winner.Label),
		MatchedEntityTypes: append([]string(nil), winner.Required...),
		Confidence:         c.confidence(winner.Label, bestSpan, text),
	}
}

// longestTrigger returns the rune length of the longest trigger match
func (r *compiledRule) longestTrigger(text string) (int, bool) {
	longest, matched := 0, false
	for _, re := range r.triggers {
		loc := re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		matched = true
		if n := utf8.RuneCountInString(text[loc[0]:loc[1]]); n > longest {
			longest = n
		}
	}
	return longest, matched
}

func (r *compiledRule) satisfiedBy(present map[string]bool) bool {
	for _, req := range r.Required {
		if !present[req] {
			return false
		}
	}
	return true
}

// confidence is 0.5 plus up to 0.3 for the share of text covered by the
// trigger, plus the per-intent boost, clamped to 1
func (c *Classifier) confidence(label string, span int, text string) float64 {
	total := utf8.RuneCountInString(text)
	score := 0.5
	if total > 0 {
		score += float64(span) / float64(total) * 0.3
	}
	score += c.boost[label]
	return math.Min(score, 1)
}

// Labels lists the distinct intent labels in declaration order, followed by
// the reserved generic_inquiry label
func (c *Classifier) Labels() []string {
	seen := make(map[string]bool, len(c.rules))
	var labels []string
	for _, r := range c.rules {
		if !seen[r.Label] {
			seen[r.Label] = true
			labels = append(labels, r.Label)
		}
	}
	return append(labels, pkg.GenericInquiry)
}
