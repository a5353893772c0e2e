package agents

import (
	"fmt"
	"strings"
)

// JobAnalysis is the structured reading of a job description.
type JobAnalysis struct {
	RequiredSkills      []string `json:"required_skills"`
	PreferredSkills     []string `json:"preferred_skills"`
	Keywords            []string `json:"keywords"`
	ExperienceLevel     string   `json:"experience_level"`
	EducationRequired   string   `json:"education_required,omitempty"`
	KeyResponsibilities []string `json:"key_responsibilities,omitempty"`
	CompanyCulture      string   `json:"company_culture,omitempty"`
}

func (j *JobAnalysis) RequiredFields() []string {
	return []string{"required_skills", "preferred_skills", "keywords", "experience_level"}
}

// ResumeAnalysis is the structured reading of a resume.
type ResumeAnalysis struct {
	Name           string       `json:"name,omitempty"`
	ContactInfo    *ContactInfo `json:"contact_info,omitempty"`
	Summary        string       `json:"summary,omitempty"`
	Skills         []string     `json:"skills"`
	Experience     []Experience `json:"experience"`
	Education      []Education  `json:"education"`
	Projects       []string     `json:"projects"`
	Achievements   []string     `json:"achievements,omitempty"`
	Certifications []string     `json:"certifications,omitempty"`
}

func (r *ResumeAnalysis) RequiredFields() []string {
	return []string{"skills", "experience", "education", "projects"}
}

type ContactInfo struct {
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Location  string `json:"location,omitempty"`
	LinkedIn  string `json:"linkedin,omitempty"`
	GitHub    string `json:"github,omitempty"`
	Portfolio string `json:"portfolio,omitempty"`
}

type Experience struct {
	Title            string   `json:"title"`
	Company          string   `json:"company"`
	Duration         string   `json:"duration"`
	Responsibilities []string `json:"responsibilities"`
}

type Education struct {
	Degree      string `json:"degree"`
	Institution string `json:"institution"`
	Year        string `json:"year"`
	Details     string `json:"details,omitempty"`
}

// Strategy is the model's judgement of how to tailor a resume to a job.
type Strategy struct {
	MatchScore    int      `json:"match_score"`
	MatchSummary  string   `json:"match_summary,omitempty"`
	StrongMatches []string `json:"strong_matches,omitempty"`
	Gaps          []Gap    `json:"gaps"`
	Emphasize     []string `json:"emphasize"`
	AddKeywords   []string `json:"add_keywords"`
	ActionItems   []string `json:"action_items"`
}

func (s *Strategy) RequiredFields() []string {
	return []string{"match_score", "gaps", "emphasize", "add_keywords", "action_items"}
}

// Validate checks the score range and normalises gap severities.
func (s *Strategy) Validate() error {
	if s.MatchScore < 0 || s.MatchScore > 100 {
		return fmt.Errorf("match_score %d is outside 0-100", s.MatchScore)
	}

	for i := range s.Gaps {
		severity := strings.ToLower(strings.TrimSpace(s.Gaps[i].Severity))
		switch severity {
		case "", SeverityCritical, SeverityModerate, SeverityMinor:
			s.Gaps[i].Severity = severity
		default:
			return fmt.Errorf("gap %d has unknown severity %q", i, s.Gaps[i].Severity)
		}
	}

	return nil
}

const (
	SeverityCritical = "critical"
	SeverityModerate = "moderate"
	SeverityMinor    = "minor"
)

type Gap struct {
	Missing    string `json:"missing"`
	Severity   string `json:"severity,omitempty"`
	Mitigation string `json:"mitigation,omitempty"`
}

// FormatLaTeX is the only document format produced today.
const FormatLaTeX = "latex"

// GeneratedDocument is a rendered, ready to compile document.
type GeneratedDocument struct {
	FormatTag string `json:"format_tag"`
	// Content is the generated section markup before it was placed into the template.
	Content string `json:"content"`
	Body    string `json:"body"`
}
