package analysis

import (
	"fmt"
	"strings"
	"text/template"

	"resumebuilder/internal/resume"
)

const coverLetterTemplate = `Dear Hiring Manager,

I am excited to apply for the {{.Position}} position at {{.CompanyName}}.
With my background in {{.Background}},
I believe I would be a great fit for your team.

In my previous role as {{.PreviousRole}},
I {{.Accomplishment}}.
This experience aligns well with your requirement for {{.Requirement}}.

I would welcome the opportunity to discuss how my skills and experiences
can contribute to {{.CompanyName}}. Thank you for your consideration.

Sincerely,
{{.Name}}
`

var coverLetter = template.Must(template.New("cover-letter").Parse(coverLetterTemplate))

// JobRequest describes the position a cover letter or optimization targets.
type JobRequest struct {
	JobDescription string `json:"jobDescription" binding:"required"`
	CompanyName    string `json:"companyName"`
	Position       string `json:"position"`
}

type coverLetterData struct {
	Position       string
	CompanyName    string
	Background     string
	PreviousRole   string
	Accomplishment string
	Requirement    string
	Name           string
}

// CoverLetter fills the form letter with fragments of r and the job request.
func CoverLetter(r resume.Resume, job JobRequest) (string, error) {
	data := coverLetterData{
		Position:       job.Position,
		CompanyName:    job.CompanyName,
		Background:     orDefault(firstWords(r.PersonalInfo.Summary, 5), "this field"),
		PreviousRole:   "a professional",
		Accomplishment: "developed key skills",
		Requirement:    firstWords(job.JobDescription, 10),
		Name:           r.PersonalInfo.Name,
	}
	if len(r.Experience) > 0 {
		first := r.Experience[0]
		data.PreviousRole = orDefault(first.Title, data.PreviousRole)
		data.Accomplishment = orDefault(firstSentence(first.Description), data.Accomplishment)
	}

	var b strings.Builder
	if err := coverLetter.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render cover letter: %w", err)
	}
	return b.String(), nil
}

// Optimize returns fixed optimization hints seeded with the job description.
func Optimize(job JobRequest) []string {
	return []string{
		`Add more keywords like "` + firstWords(job.JobDescription, 3) + `"`,
		"Highlight achievements with quantifiable results",
		"Reorder experience to match job priorities",
	}
}

// firstWords splits on single spaces, so runs of spaces survive as empty
// words.
func firstWords(s string, n int) string {
	words := strings.SplitN(s, " ", n+1)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

func firstSentence(s string) string {
	before, _, _ := strings.Cut(s, ".")
	return strings.TrimSpace(before)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
