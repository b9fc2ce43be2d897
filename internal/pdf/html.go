package pdf

import (
	"bytes"
	"fmt"
	"html/template"
	"mime"
	"strings"

	"resumebuilder/internal/resume"
)

// Only summary, experience, education and skills are printed. Projects,
// certifications and languages stay in the document but have no block here.
const resumeHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{or .PersonalInfo.Name "Resume"}}'s Resume</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 0 auto; padding: 20px; }
    h1 { color: #2c3e50; border-bottom: 2px solid #2c3e50; padding-bottom: 10px; }
    h2 { color: #34495e; border-bottom: 1px solid #eee; padding-bottom: 5px; }
    .section { margin-bottom: 20px; }
    .experience-item, .education-item { margin-bottom: 15px; }
    .date { color: #7f8c8d; font-style: italic; }
    .skills-list { display: flex; flex-wrap: wrap; gap: 10px; }
    .skill { background: #ecf0f1; padding: 5px 10px; border-radius: 3px; }
  </style>
</head>
<body>
  <h1>{{or .PersonalInfo.Name "Your Name"}}</h1>
  <div class="contact-info">
    <p>{{.PersonalInfo.Email}} | {{.PersonalInfo.Phone}} | {{.PersonalInfo.LinkedIn}}</p>
  </div>
{{- with .PersonalInfo.Summary}}
  <div class="section">
    <h2>Summary</h2>
    <p>{{.}}</p>
  </div>
{{- end}}
{{- if .Experience}}
  <div class="section">
    <h2>Experience</h2>
    {{- range .Experience}}
    <div class="experience-item">
      <h3>{{.Title}}{{with .Company}} at {{.}}{{end}}</h3>
      <p class="date">{{.StartDate}} - {{if .Current}}Present{{else}}{{.EndDate}}{{end}}</p>
      {{- with .Location}}
      <p>{{.}}</p>
      {{- end}}
      {{- with .Description}}
      <p>{{.}}</p>
      {{- end}}
    </div>
    {{- end}}
  </div>
{{- end}}
{{- if .Education}}
  <div class="section">
    <h2>Education</h2>
    {{- range .Education}}
    <div class="education-item">
      <h3>{{.Institution}}</h3>
      <p class="date">{{.Degree}}{{with .FieldOfStudy}} in {{.}}{{end}}, {{.StartDate}} - {{.EndDate}}</p>
      {{- with .Description}}
      <p>{{.}}</p>
      {{- end}}
    </div>
    {{- end}}
  </div>
{{- end}}
{{- if .Skills}}
  <div class="section">
    <h2>Skills</h2>
    <div class="skills-list">
      {{- range .Skills}}
      <div class="skill">{{.Name}}{{with .Level}} ({{.}}){{end}}</div>
      {{- end}}
    </div>
  </div>
{{- end}}
</body>
</html>
`

var resumeTemplate = template.Must(template.New("resume").Parse(resumeHTML))

// BuildHTML renders the printable page for r. Every user string is escaped.
func BuildHTML(r resume.Resume) (string, error) {
	var buf bytes.Buffer
	if err := resumeTemplate.Execute(&buf, r.Sections); err != nil {
		return "", fmt.Errorf("execute resume template: %w", err)
	}
	return buf.String(), nil
}

// Filename is the attachment name for a resume owned by name.
func Filename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Resume.pdf"
	}
	return strings.ReplaceAll(name, " ", "_") + "_Resume.pdf"
}

// Disposition is the Content-Disposition value that downloads the resume of
// name as an attachment. Non-ASCII names use the RFC 2231 extended form.
func Disposition(name string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": Filename(name)})
}
