package main

import (
	"github.com/formloop/surveyflow/flow"
	"github.com/formloop/surveyflow/survey"
)

// API request and response models

// CreateSurveyRequest is the request body for creating a survey
type CreateSurveyRequest struct {
	ID       string           `json:"id,omitempty" example:"customer-sat-2026"`
	Title    string           `json:"title" example:"Customer Satisfaction"`
	Sections []survey.Section `json:"sections"`
} // @name CreateSurveyRequest

// ValidateFlowResponse is the result of statically checking a survey's logic
type ValidateFlowResponse struct {
	IsValid bool                   `json:"isValid" example:"false"`
	Errors  []flow.ValidationError `json:"errors"`
} // @name ValidateFlowResponse

// EvaluateRequest carries a full response set for an authoritative
// server-side evaluation
type EvaluateRequest struct {
	Responses flow.ResponseSet `json:"responses"`
	Position  *flow.Position   `json:"position,omitempty"`
} // @name EvaluateRequest

// EvaluateResponse is the engine's output for one evaluation pass
type EvaluateResponse struct {
	State          StateResponse `json:"state"`
	EvaluationTime string        `json:"evaluationTime" example:"412µs"`
} // @name EvaluateResponse

// StartSessionRequest is the request body for starting a participation session
type StartSessionRequest struct {
	SurveyID string `json:"surveyId" example:"customer-sat-2026"`
} // @name StartSessionRequest

// AnswerRequest records one response inside a session
type AnswerRequest struct {
	QuestionID string `json:"questionId" example:"q_age"`
	Value      any    `json:"value"`
} // @name AnswerRequest

// AdvanceRequest moves the participant to a new position
type AdvanceRequest struct {
	Position flow.Position `json:"position"`
} // @name AdvanceRequest

// StateResponse is the wire form of a FlowState; visibility sets are sorted
// arrays so clients get a stable order
type StateResponse struct {
	VisibleQuestions []string            `json:"visibleQuestions"`
	VisibleSections  []string            `json:"visibleSections"`
	CurrentPosition  flow.Position       `json:"currentPosition"`
	TerminalStatus   flow.TerminalStatus `json:"terminalStatus"`
} // @name StateResponse

// SessionResponse describes a participation session and its latest state
type SessionResponse struct {
	SessionID string        `json:"sessionId" example:"6b8e7f2a-4f35-4a9b-9d3c-2f1e0a7c5d44"`
	SurveyID  string        `json:"surveyId" example:"customer-sat-2026"`
	State     StateResponse `json:"state"`
} // @name SessionResponse

func newStateResponse(s *flow.FlowState) StateResponse {
	return StateResponse{
		VisibleQuestions: s.QuestionIDs(),
		VisibleSections:  s.SectionIDs(),
		CurrentPosition:  s.Position,
		TerminalStatus:   s.Terminal,
	}
}
