// Package integrity compares a generated resume with its source and reports
// facts that the source does not back. The check is advisory.
package integrity

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

type Kind string

const (
	KindYear     Kind = "unknown_year"
	KindEmployer Kind = "unknown_employer"
)

// Risk is one generated fact that was not found in the source resume.
type Risk struct {
	Kind  Kind   `json:"kind"`
	Value string `json:"value"`
}

func (r Risk) String() string {
	return fmt.Sprintf("%s: %s", r.Kind, r.Value)
}

var (
	yearPattern       = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	subheadingPattern = regexp.MustCompile(`\\resumeSubheading\s*\{([^{}]*)\}\s*\{([^{}]*)\}\s*\{([^{}]*)\}`)
	sectionPattern    = regexp.MustCompile(`\\section\*?\{([^{}]*)\}`)
	commandPattern    = regexp.MustCompile(`\\[a-zA-Z]+\*?`)
)

const experienceSection = "professional experience"

// Check returns the risks found in generated, sorted by kind and value.
// It returns nil when source is empty since there is nothing to compare with.
func Check(source, generated string) []Risk {
	if strings.TrimSpace(source) == "" || strings.TrimSpace(generated) == "" {
		return nil
	}

	known := normalize(source)
	seen := make(map[Risk]struct{})

	knownYears := make(map[string]struct{})
	for _, year := range yearPattern.FindAllString(source, -1) {
		knownYears[year] = struct{}{}
	}
	for _, year := range yearPattern.FindAllString(generated, -1) {
		if _, ok := knownYears[year]; !ok {
			seen[Risk{Kind: KindYear, Value: year}] = struct{}{}
		}
	}

	for _, employer := range Employers(generated) {
		if !strings.Contains(known, normalize(employer)) {
			seen[Risk{Kind: KindEmployer, Value: employer}] = struct{}{}
		}
	}

	if len(seen) == 0 {
		return nil
	}

	risks := make([]Risk, 0, len(seen))
	for risk := range seen {
		risks = append(risks, risk)
	}
	sort.Slice(risks, func(i, j int) bool {
		if risks[i].Kind != risks[j].Kind {
			return risks[i].Kind < risks[j].Kind
		}
		return risks[i].Value < risks[j].Value
	})
	return risks
}

// Employers returns the company argument of every \resumeSubheading in the
// Professional Experience sections of body.
func Employers(body string) []string {
	section := experience(body)
	if section == "" {
		return nil
	}

	var out []string
	for _, match := range subheadingPattern.FindAllStringSubmatch(section, -1) {
		employer := strings.TrimSpace(unescape(match[3]))
		if employer != "" {
			out = append(out, employer)
		}
	}
	return out
}

func experience(body string) string {
	var b strings.Builder
	headings := sectionPattern.FindAllStringSubmatchIndex(body, -1)
	for i, loc := range headings {
		title := strings.ToLower(strings.TrimSpace(body[loc[2]:loc[3]]))
		if title != experienceSection {
			continue
		}
		end := len(body)
		if i+1 < len(headings) {
			end = headings[i+1][0]
		}
		b.WriteString(body[loc[1]:end])
	}
	return b.String()
}

func unescape(s string) string {
	s = strings.NewReplacer(`\&`, "&", `\%`, "%", `\$`, "$", `\#`, "#", `\_`, "_").Replace(s)
	return commandPattern.ReplaceAllString(s, "")
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(unescape(s))), " ")
}
