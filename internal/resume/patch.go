package resume

// Patch carries the fields of a save request. A nil field was not provided and
// leaves the stored value untouched; a provided list, even an empty one,
// replaces the stored list.
type Patch struct {
	Template       Template        `json:"template"`
	PersonalInfo   *PersonalInfo   `json:"personalInfo"`
	Experience     []Experience    `json:"experience"`
	Education      []Education     `json:"education"`
	Skills         []Skill         `json:"skills"`
	Projects       []Project       `json:"projects"`
	Certifications []Certification `json:"certifications"`
	Languages      []Language      `json:"languages"`
}

// NewSections builds the body of a freshly created resume from p.
func (p Patch) NewSections() (Template, Sections) {
	template := p.Template
	if template == "" {
		template = DefaultTemplate
	}

	var s Sections
	if p.PersonalInfo != nil {
		s.PersonalInfo = *p.PersonalInfo
	}
	s.Experience = p.Experience
	s.Education = p.Education
	s.Skills = p.Skills
	s.Projects = p.Projects
	s.Certifications = p.Certifications
	s.Languages = p.Languages
	s.Normalize()
	return template, s
}

// Merge applies p over an existing template and body.
//
// An empty template string counts as "not provided", so a save can never clear
// the template. The same rule does not extend to personalInfo: a provided
// object replaces the stored one wholesale.
func (p Patch) Merge(template Template, s Sections) (Template, Sections) {
	if p.Template != "" {
		template = p.Template
	}
	if p.PersonalInfo != nil {
		s.PersonalInfo = *p.PersonalInfo
	}
	if p.Experience != nil {
		s.Experience = p.Experience
	}
	if p.Education != nil {
		s.Education = p.Education
	}
	if p.Skills != nil {
		s.Skills = p.Skills
	}
	if p.Projects != nil {
		s.Projects = p.Projects
	}
	if p.Certifications != nil {
		s.Certifications = p.Certifications
	}
	if p.Languages != nil {
		s.Languages = p.Languages
	}
	s.Normalize()
	return template, s
}
