package resume

import "time"

// Template is the visual template tag selected for a resume.
type Template string

const (
	TemplateProfessional Template = "professional"
	TemplateCreative     Template = "creative"
	TemplateTechnical    Template = "technical"
)

// DefaultTemplate is applied when a resume is created without a template.
const DefaultTemplate = TemplateProfessional

// Valid reports whether t is one of the known template tags.
func (t Template) Valid() bool {
	switch t {
	case TemplateProfessional, TemplateCreative, TemplateTechnical:
		return true
	}
	return false
}

// PersonalInfo holds contact details and the free-text summary.
type PersonalInfo struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	LinkedIn  string `json:"linkedIn"`
	Portfolio string `json:"portfolio"`
	Summary   string `json:"summary"`
}

type Experience struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Current     bool   `json:"current"`
	Description string `json:"description"`
}

type Education struct {
	Institution  string `json:"institution"`
	Degree       string `json:"degree"`
	FieldOfStudy string `json:"fieldOfStudy"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	Description  string `json:"description"`
}

type Skill struct {
	Name  string `json:"name"`
	Level string `json:"level"`
}

type Project struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies"`
}

type Certification struct {
	Name   string `json:"name"`
	Issuer string `json:"issuer"`
	Date   string `json:"date"`
}

type Language struct {
	Name        string `json:"name"`
	Proficiency string `json:"proficiency"`
}

// Sections is the user-authored body of a resume. It is persisted as a single
// JSONB document.
type Sections struct {
	PersonalInfo   PersonalInfo    `json:"personalInfo"`
	Experience     []Experience    `json:"experience"`
	Education      []Education     `json:"education"`
	Skills         []Skill         `json:"skills"`
	Projects       []Project       `json:"projects"`
	Certifications []Certification `json:"certifications"`
	Languages      []Language      `json:"languages"`
}

// Normalize replaces nil lists with empty ones so they serialize as [].
func (s *Sections) Normalize() {
	if s.Experience == nil {
		s.Experience = []Experience{}
	}
	if s.Education == nil {
		s.Education = []Education{}
	}
	if s.Skills == nil {
		s.Skills = []Skill{}
	}
	if s.Projects == nil {
		s.Projects = []Project{}
	}
	for i := range s.Projects {
		if s.Projects[i].Technologies == nil {
			s.Projects[i].Technologies = []string{}
		}
	}
	if s.Certifications == nil {
		s.Certifications = []Certification{}
	}
	if s.Languages == nil {
		s.Languages = []Language{}
	}
}

// PersonalityTone scores each axis from 1 to 10.
type PersonalityTone struct {
	Professional int `json:"professional"`
	Creative     int `json:"creative"`
	Technical    int `json:"technical"`
}

// Analysis is the derived result of the last analysis request.
type Analysis struct {
	PersonalityTone PersonalityTone `json:"personalityTone"`
	ATSScore        int             `json:"atsScore"`
	Suggestions     []string        `json:"suggestions"`
}

// Resume is the API representation of a stored resume document.
type Resume struct {
	ID       uint      `json:"id"`
	UserID   uint      `json:"user"`
	Template Template  `json:"template"`
	Analysis *Analysis `json:"analysis,omitempty"`
	Sections
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
