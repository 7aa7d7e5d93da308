package survey

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	maxSections            = 100
	maxQuestionsPerSection = 200
	maxIdentifierLength    = 100
)

var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.-]*$`)

// Validate checks a survey's structure: at least one section, unique
// section/question ids, well-formed identifiers, known question types, and
// consistent question→section back-references. Returns an error describing
// the first violation, nil if the survey is valid.
func Validate(s *Survey) error {
	if s == nil {
		return fmt.Errorf("survey is nil")
	}
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("survey id cannot be empty")
	}
	if len(s.Sections) == 0 {
		return fmt.Errorf("survey must contain at least one section")
	}
	if len(s.Sections) > maxSections {
		return fmt.Errorf("survey contains %d sections, maximum allowed is %d", len(s.Sections), maxSections)
	}

	sectionIDs := make(map[string]bool, len(s.Sections))
	questionIDs := make(map[string]bool)

	for _, sec := range s.Sections {
		if err := validateIdentifier(sec.ID); err != nil {
			return fmt.Errorf("invalid section id %q: %w", sec.ID, err)
		}
		if sectionIDs[sec.ID] {
			return fmt.Errorf("duplicate section id %q", sec.ID)
		}
		sectionIDs[sec.ID] = true

		if len(sec.Questions) > maxQuestionsPerSection {
			return fmt.Errorf("section %q contains %d questions, maximum allowed is %d",
				sec.ID, len(sec.Questions), maxQuestionsPerSection)
		}

		for _, q := range sec.Questions {
			if err := validateIdentifier(q.ID); err != nil {
				return fmt.Errorf("invalid question id %q in section %q: %w", q.ID, sec.ID, err)
			}
			if questionIDs[q.ID] {
				return fmt.Errorf("duplicate question id %q", q.ID)
			}
			questionIDs[q.ID] = true

			if q.SectionID != "" && q.SectionID != sec.ID {
				return fmt.Errorf("question %q declares section %q but belongs to %q", q.ID, q.SectionID, sec.ID)
			}
			if !isValidQuestionType(q.Type) {
				return fmt.Errorf("question %q has invalid type %q (must be one of: text, number, singleChoice, multiChoice, matrix)", q.ID, q.Type)
			}
		}
	}

	return nil
}

func validateIdentifier(id string) error {
	if len(id) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(id) > maxIdentifierLength {
		return fmt.Errorf("identifier length %d exceeds maximum of %d characters", len(id), maxIdentifierLength)
	}
	if !validIdentifier.MatchString(id) {
		return fmt.Errorf("must start with a letter or underscore, followed by letters, digits, underscores, dots, or hyphens")
	}
	return nil
}

func isValidQuestionType(t QuestionType) bool {
	switch t {
	case TypeText, TypeNumber, TypeSingleChoice, TypeMultiChoice, TypeMatrix:
		return true
	}
	return false
}
