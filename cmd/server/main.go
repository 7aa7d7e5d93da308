package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/formloop/surveyflow/flow"
	"github.com/formloop/surveyflow/internal/logger"
	"github.com/formloop/surveyflow/session"
	"github.com/formloop/surveyflow/survey"
)

type Server struct {
	db       *sql.DB // nil for the in-memory backend
	surveys  survey.Store
	rules    flow.RuleStore
	sessions *session.Manager
	router   *chi.Mux
}

// NewServer selects the storage backend from the environment: DATABASE_URL
// for PostgreSQL, SQLITE_PATH for an embedded SQLite file, neither for
// in-memory stores (useful for local experiments; nothing survives a restart).
func NewServer() (*Server, error) {
	var (
		db      *sql.DB
		surveys survey.Store
		rules   flow.RuleStore
	)

	switch {
	case os.Getenv("DATABASE_URL") != "":
		var err error
		db, err = sql.Open("postgres", os.Getenv("DATABASE_URL"))
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		surveys = survey.NewPostgresStore(db)
		rules = flow.NewPostgresRuleStore(db)
		logger.Logger.Info("using postgres storage")

	case os.Getenv("SQLITE_PATH") != "":
		var err error
		db, err = sql.Open("sqlite3", os.Getenv("SQLITE_PATH"))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		if err := survey.InitSQLiteSchema(db); err != nil {
			return nil, err
		}
		if err := flow.InitSQLiteSchema(db); err != nil {
			return nil, err
		}
		surveys = survey.NewSQLiteStore(db)
		rules = flow.NewSQLiteRuleStore(db)
		logger.Logger.Info("using sqlite storage", "path", os.Getenv("SQLITE_PATH"))

	default:
		surveys = survey.NewInMemoryStore()
		rules = flow.NewInMemoryRuleStore()
		logger.Logger.Warn("no DATABASE_URL or SQLITE_PATH set, using in-memory storage")
	}

	return NewServerWithStores(db, surveys, rules), nil
}

// NewServerWithStores wires a server over explicit stores; tests use this to
// inject a database-backed or in-memory setup directly.
func NewServerWithStores(db *sql.DB, surveys survey.Store, rules flow.RuleStore) *Server {
	s := &Server{
		db:       db,
		surveys:  surveys,
		rules:    rules,
		sessions: session.NewManager(surveys, rules, logger.Logger),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/api/v1/health", s.handleHealth)

	// Survey metadata and flow logic
	r.Route("/api/v1/surveys", func(r chi.Router) {
		r.Get("/", s.handleListSurveys)
		r.Post("/", s.handleCreateSurvey)

		r.Route("/{surveyId}", func(r chi.Router) {
			r.Get("/", s.handleGetSurvey)

			// Flow validation and server-side authoritative evaluation
			r.Get("/validate", s.handleValidateFlow)
			r.Post("/evaluate", s.handleEvaluate)

			// Rule management
			r.Post("/rules", s.handleCreateRule)
			r.Get("/rules", s.handleListRules)
			r.Get("/rules/{ruleId}", s.handleGetRule)
			r.Put("/rules/{ruleId}", s.handleUpdateRule)
			r.Delete("/rules/{ruleId}", s.handleDeleteRule)

			// Condition groups
			r.Post("/groups", s.handleCreateGroup)
			r.Get("/groups", s.handleListGroups)
		})
	})

	// Participation sessions
	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.Post("/", s.handleStartSession)

		r.Route("/{sessionId}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleEndSession)
			r.Post("/answers", s.handleAnswer)
			r.Post("/advance", s.handleAdvance)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"liveSessions": s.sessions.CountSessions(),
	})
}

// Create survey handler
func (s *Server) handleCreateSurvey(w http.ResponseWriter, r *http.Request) {
	var req CreateSurveyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	sv := &survey.Survey{
		ID:       req.ID,
		Title:    req.Title,
		Sections: req.Sections,
	}
	if sv.ID == "" {
		sv.ID = uuid.NewString()
	}

	if err := survey.Validate(sv); err != nil {
		respondError(w, http.StatusBadRequest, "invalid survey", err)
		return
	}

	if err := s.surveys.Add(sv); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create survey", err)
		return
	}

	respondJSON(w, http.StatusCreated, sv)
}

// List surveys handler
func (s *Server) handleListSurveys(w http.ResponseWriter, r *http.Request) {
	surveys, err := s.surveys.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list surveys", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"surveys": surveys,
	})
}

// Get survey handler
func (s *Server) handleGetSurvey(w http.ResponseWriter, r *http.Request) {
	surveyID := chi.URLParam(r, "surveyId")

	sv, err := s.surveys.Get(surveyID)
	if err != nil {
		respondError(w, http.StatusNotFound, "survey not found", err)
		return
	}

	respondJSON(w, http.StatusOK, sv)
}

// Flow validation handler: the thin wrapper authoring tools call to check a
// survey's logic before publishing.
func (s *Server) handleValidateFlow(w http.ResponseWriter, r *http.Request) {
	surveyID := chi.URLParam(r, "surveyId")

	if _, err := s.surveys.Get(surveyID); err != nil {
		respondError(w, http.StatusNotFound, "survey not found", err)
		return
	}

	errs, err := s.sessions.ValidateFlow(surveyID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "validation failed", err)
		return
	}

	if errs == nil {
		errs = []flow.ValidationError{}
	}
	respondJSON(w, http.StatusOK, ValidateFlowResponse{
		IsValid: len(errs) == 0,
		Errors:  errs,
	})
}

// Evaluate handler: the server-side authoritative re-check. The client's own
// FlowState is advisory only; completion, disqualification, and anything
// gated on them must come from this evaluation of the server's responses.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	surveyID := chi.URLParam(r, "surveyId")

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Responses == nil {
		respondError(w, http.StatusBadRequest, "responses are required", nil)
		return
	}

	eng, err := s.sessions.Engine(surveyID)
	if err != nil {
		respondError(w, http.StatusNotFound, "survey not found", err)
		return
	}

	pos := eng.InitialState().Position
	if req.Position != nil {
		pos = *req.Position
	}

	startTime := time.Now()
	state := eng.Evaluate(nil, req.Responses, pos)
	evaluationTime := time.Since(startTime)

	respondJSON(w, http.StatusOK, EvaluateResponse{
		State:          newStateResponse(state),
		EvaluationTime: evaluationTime.String(),
	})
}

// Create rule handler
func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	surveyID := chi.URLParam(r, "surveyId")

	sv, err := s.surveys.Get(surveyID)
	if err != nil {
		respondError(w, http.StatusNotFound, "survey not found", err)
		return
	}

	var rule flow.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	rule.SurveyID = surveyID
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}

	if errs := s.checkRule(sv, &rule); len(errs) > 0 {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "rule failed validation",
			"errors": errs,
		})
		return
	}

	if err := s.rules.Add(&rule); err != nil {
		respondError(w, http.StatusBadRequest, "failed to add rule", err)
		return
	}

	s.sessions.InvalidateSurvey(surveyID)
	respondJSON(w, http.StatusCreated, &rule)
}

// checkRule runs the validator over the survey's rule set with the candidate
// included and returns the problems attributable to the candidate. Saving
// broken logic is blocked here; problems with other rules are reported by the
// validate endpoint instead.
func (s *Server) checkRule(sv *survey.Survey, candidate *flow.Rule) []flow.ValidationError {
	existing, err := s.rules.List(sv.ID)
	if err != nil {
		return []flow.ValidationError{{
			Kind:    flow.ErrMalformedRule,
			RuleID:  candidate.ID,
			Message: fmt.Sprintf("failed to load rules for validation: %v", err),
		}}
	}
	groups, err := s.rules.ListGroups(sv.ID)
	if err != nil {
		return []flow.ValidationError{{
			Kind:    flow.ErrMalformedRule,
			RuleID:  candidate.ID,
			Message: fmt.Sprintf("failed to load groups for validation: %v", err),
		}}
	}

	all := make([]*flow.Rule, 0, len(existing)+1)
	for _, r := range existing {
		if r.ID != candidate.ID {
			all = append(all, r)
		}
	}
	all = append(all, candidate)

	_, errs := flow.Validate(sv, all, groups)

	var mine []flow.ValidationError
	for _, e := range errs {
		if e.RuleID == candidate.ID {
			mine = append(mine, e)
			continue
		}
		// A cycle introduced by the candidate names several rules.
		if e.Kind == flow.ErrCircularFlow {
			for _, id := range e.InvolvedIDs {
				if id == candidate.ID {
					mine = append(mine, e)
					break
				}
			}
		}
	}
	return mine
}

// List rules handler. With ?active=true only active rules are returned.
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	surveyID := chi.URLParam(r, "surveyId")

	var rules []*flow.Rule
	var err error
	if r.URL.Query().Get("active") == "true" {
		rules, err = s.rules.ListActive(surveyID)
	} else {
		rules, err = s.rules.List(surveyID)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list rules", err)
		return
	}
	if rules == nil {
		rules = []*flow.Rule{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"rules": rules,
	})
}

// Get rule handler
func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	surveyID := chi.URLParam(r, "surveyId")
	ruleID := chi.URLParam(r, "ruleId")

	rule, err := s.rules.Get(surveyID, ruleID)
	if err != nil {
		respondError(w, http.StatusNotFound, "rule not found", err)
		return
	}

	respondJSON(w, http.StatusOK, rule)
}

// Update rule handler
func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	surveyID := chi.URLParam(r, "surveyId")
	ruleID := chi.URLParam(r, "ruleId")

	sv, err := s.surveys.Get(surveyID)
	if err != nil {
		respondError(w, http.StatusNotFound, "survey not found", err)
		return
	}

	var rule flow.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	rule.SurveyID = surveyID
	rule.ID = ruleID

	if errs := s.checkRule(sv, &rule); len(errs) > 0 {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "rule failed validation",
			"errors": errs,
		})
		return
	}

	if err := s.rules.Update(&rule); err != nil {
		respondError(w, http.StatusNotFound, "failed to update rule", err)
		return
	}

	s.sessions.InvalidateSurvey(surveyID)
	respondJSON(w, http.StatusOK, &rule)
}

// Delete rule handler
func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	surveyID := chi.URLParam(r, "surveyId")
	ruleID := chi.URLParam(r, "ruleId")

	if err := s.rules.Delete(surveyID, ruleID); err != nil {
		respondError(w, http.StatusNotFound, "rule not found", err)
		return
	}

	s.sessions.InvalidateSurvey(surveyID)
	w.WriteHeader(http.StatusNoContent)
}

// Create group handler
func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	surveyID := chi.URLParam(r, "surveyId")

	if _, err := s.surveys.Get(surveyID); err != nil {
		respondError(w, http.StatusNotFound, "survey not found", err)
		return
	}

	var group flow.Group
	if err := json.NewDecoder(r.Body).Decode(&group); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	group.SurveyID = surveyID
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	if group.Operator != flow.GroupAnd && group.Operator != flow.GroupOr {
		respondError(w, http.StatusBadRequest, "operator must be AND or OR", nil)
		return
	}

	if err := s.rules.AddGroup(&group); err != nil {
		respondError(w, http.StatusBadRequest, "failed to add group", err)
		return
	}

	s.sessions.InvalidateSurvey(surveyID)
	respondJSON(w, http.StatusCreated, &group)
}

// List groups handler
func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	surveyID := chi.URLParam(r, "surveyId")

	groups, err := s.rules.ListGroups(surveyID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list groups", err)
		return
	}
	if groups == nil {
		groups = []*flow.Group{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"groups": groups,
	})
}

// Start session handler
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.SurveyID == "" {
		respondError(w, http.StatusBadRequest, "surveyId is required", nil)
		return
	}

	sess, err := s.sessions.Start(req.SurveyID)
	if err != nil {
		respondError(w, http.StatusNotFound, "failed to start session", err)
		return
	}

	respondJSON(w, http.StatusCreated, SessionResponse{
		SessionID: sess.ID,
		SurveyID:  sess.SurveyID,
		State:     newStateResponse(sess.State()),
	})
}

// Get session handler
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "session not found", err)
		return
	}

	respondJSON(w, http.StatusOK, SessionResponse{
		SessionID: sess.ID,
		SurveyID:  sess.SurveyID,
		State:     newStateResponse(sess.State()),
	})
}

// End session handler
func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	if err := s.sessions.End(sessionID); err != nil {
		respondError(w, http.StatusNotFound, "session not found", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Answer handler: records one response and returns the re-evaluated state.
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "session not found", err)
		return
	}

	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.QuestionID == "" {
		respondError(w, http.StatusBadRequest, "questionId is required", nil)
		return
	}

	state := sess.Answer(req.QuestionID, req.Value)

	respondJSON(w, http.StatusOK, SessionResponse{
		SessionID: sess.ID,
		SurveyID:  sess.SurveyID,
		State:     newStateResponse(state),
	})
}

// Advance handler: moves the participant and returns the re-evaluated state.
func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "session not found", err)
		return
	}

	var req AdvanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	state := sess.Advance(req.Position)

	respondJSON(w, http.StatusOK, SessionResponse{
		SessionID: sess.ID,
		SurveyID:  sess.SurveyID,
		State:     newStateResponse(state),
	})
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]string{
		"error": message,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}

func main() {
	// Load .env if present; real deployments set the environment directly.
	_ = godotenv.Load()

	server, err := NewServer()
	if err != nil {
		logger.Logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}
	if server.db != nil {
		defer server.db.Close()
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		logger.Logger.Info("server starting", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Logger.Error("server shutdown error", "error", err)
	}

	logger.Logger.Info("server stopped")
}
