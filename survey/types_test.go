package survey

import "testing"

func TestSurveyLookups(t *testing.T) {
	sv := validSurvey()

	ids := sv.QuestionIDs()
	if len(ids) != 3 || ids[0] != "q1" || ids[2] != "q3" {
		t.Errorf("QuestionIDs = %v", ids)
	}

	secs := sv.SectionIDs()
	if len(secs) != 2 || secs[0] != "s1" || secs[1] != "s2" {
		t.Errorf("SectionIDs = %v", secs)
	}

	byQuestion := sv.SectionOf()
	if byQuestion["q1"] != "s1" || byQuestion["q3"] != "s2" {
		t.Errorf("SectionOf = %v", byQuestion)
	}
}

func TestSurveyFirstQuestion(t *testing.T) {
	sv := validSurvey()

	if got := sv.FirstQuestion("s2"); got != "q3" {
		t.Errorf("FirstQuestion(s2) = %q, want q3", got)
	}
	if got := sv.FirstQuestion("nope"); got != "" {
		t.Errorf("FirstQuestion on an unknown section should be empty, got %q", got)
	}

	sv.Sections = append(sv.Sections, Section{ID: "s3", Title: "Empty"})
	if got := sv.FirstQuestion("s3"); got != "" {
		t.Errorf("FirstQuestion on an empty section should be empty, got %q", got)
	}
}

func TestSurveyStart(t *testing.T) {
	sv := validSurvey()
	secID, qID := sv.Start()
	if secID != "s1" || qID != "q1" {
		t.Errorf("Start = (%q, %q), want (s1, q1)", secID, qID)
	}

	empty := &Survey{ID: "sv-empty"}
	secID, qID = empty.Start()
	if secID != "" || qID != "" {
		t.Errorf("Start on a sectionless survey = (%q, %q)", secID, qID)
	}
}
