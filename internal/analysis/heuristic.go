// Package analysis scores resume text with fixed keyword heuristics and fills
// simple text templates. Nothing here tokenizes, stems or calls a model.
package analysis

import (
	"regexp"
	"strings"
	"unicode/utf16"

	"resumebuilder/internal/resume"
)

// Analyzer computes a resume analysis. Heuristic is the only implementation.
type Analyzer interface {
	Analyze(r resume.Resume) resume.Analysis
}

const (
	toneMin = 1
	toneMax = 10
	atsMin  = 30
	atsMax  = 100

	shortContentThreshold = 300

	SuggestionMoreDetail    = "Consider adding more details to your resume"
	SuggestionAddExperience = "Add at least one work experience"
)

var (
	professionalPattern = regexp.MustCompile(`(?i)manager|lead|director`)
	creativePattern     = regexp.MustCompile(`(?i)design|create|innovate`)
	technicalPattern    = regexp.MustCompile(`(?i)code|develop|algorithm`)

	achievementPattern = regexp.MustCompile(`(?i)\b(action|result|achieved)\b`)
	technologyPattern  = regexp.MustCompile(`(?i)\b(JavaScript|React|Node\.js|Python)\b`)
)

// Heuristic is the keyword-count analyzer.
type Heuristic struct{}

// NewHeuristic returns the keyword-count analyzer.
func NewHeuristic() Heuristic {
	return Heuristic{}
}

// Analyze scores the summary and experience text of r.
//
// Scores count the segments the text splits into around each keyword hit, so
// text without hits still scores one segment. For the achievement and
// technology patterns the matched keyword counts as a segment of its own.
func (Heuristic) Analyze(r resume.Resume) resume.Analysis {
	content := Content(r)

	tone := resume.PersonalityTone{
		Professional: clamp(segments(professionalPattern, content)*2, toneMin, toneMax),
		Creative:     clamp(segments(creativePattern, content)*2, toneMin, toneMax),
		Technical:    clamp(segments(technicalPattern, content)*2, toneMin, toneMax),
	}

	ats := clamp(
		capturedSegments(achievementPattern, content)*5+capturedSegments(technologyPattern, content)*3,
		atsMin,
		atsMax,
	)

	suggestions := []string{}
	if textLength(content) < shortContentThreshold {
		suggestions = append(suggestions, SuggestionMoreDetail)
	}
	if len(r.Experience) == 0 {
		suggestions = append(suggestions, SuggestionAddExperience)
	}

	return resume.Analysis{
		PersonalityTone: tone,
		ATSScore:        ats,
		Suggestions:     suggestions,
	}
}

// Content is the text the analyzer scores: the summary followed by each
// experience's title and description.
func Content(r resume.Resume) string {
	var b strings.Builder
	if r.PersonalInfo.Summary != "" {
		b.WriteString(r.PersonalInfo.Summary)
		b.WriteString(" ")
	}

	parts := make([]string, 0, len(r.Experience))
	for _, exp := range r.Experience {
		parts = append(parts, exp.Title+" "+exp.Description)
	}
	b.WriteString(strings.Join(parts, " "))
	b.WriteString(" ")
	return b.String()
}

func segments(re *regexp.Regexp, s string) int {
	return len(re.FindAllStringIndex(s, -1)) + 1
}

func capturedSegments(re *regexp.Regexp, s string) int {
	return 2*len(re.FindAllStringIndex(s, -1)) + 1
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// textLength counts UTF-16 code units, so a character outside the BMP
// counts as two.
func textLength(s string) int {
	return len(utf16.Encode([]rune(s)))
}
