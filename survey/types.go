package survey

import "time"

// QuestionType describes the shape of a question's answer.
type QuestionType string

const (
	TypeText         QuestionType = "text"
	TypeNumber       QuestionType = "number"
	TypeSingleChoice QuestionType = "singleChoice"
	TypeMultiChoice  QuestionType = "multiChoice"
	TypeMatrix       QuestionType = "matrix"
)

// Question is one prompt inside a section.
type Question struct {
	ID        string       `json:"id"`
	SectionID string       `json:"sectionId"`
	Label     string       `json:"label"`
	Type      QuestionType `json:"type"`
	Options   []string     `json:"options,omitempty"`
}

// Section groups questions; sections are presented in declaration order.
type Section struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// Survey is the question/section metadata the flow validator and engine read.
// It is loaded once per evaluation session and immutable for the session's
// duration.
type Survey struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Sections  []Section `json:"sections"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// QuestionIDs returns every question id in section order.
func (s *Survey) QuestionIDs() []string {
	var ids []string
	for _, sec := range s.Sections {
		for _, q := range sec.Questions {
			ids = append(ids, q.ID)
		}
	}
	return ids
}

// SectionIDs returns every section id in declaration order.
func (s *Survey) SectionIDs() []string {
	ids := make([]string, 0, len(s.Sections))
	for _, sec := range s.Sections {
		ids = append(ids, sec.ID)
	}
	return ids
}

// SectionOf maps each question id to its enclosing section id.
func (s *Survey) SectionOf() map[string]string {
	m := make(map[string]string)
	for _, sec := range s.Sections {
		for _, q := range sec.Questions {
			m[q.ID] = sec.ID
		}
	}
	return m
}

// FirstQuestion returns the id of a section's first question, or "" when the
// section is empty or unknown.
func (s *Survey) FirstQuestion(sectionID string) string {
	for _, sec := range s.Sections {
		if sec.ID == sectionID {
			if len(sec.Questions) == 0 {
				return ""
			}
			return sec.Questions[0].ID
		}
	}
	return ""
}

// Start returns the survey's default starting position: the first question of
// the first section.
func (s *Survey) Start() (sectionID, questionID string) {
	if len(s.Sections) == 0 {
		return "", ""
	}
	sec := s.Sections[0]
	if len(sec.Questions) == 0 {
		return sec.ID, ""
	}
	return sec.ID, sec.Questions[0].ID
}
