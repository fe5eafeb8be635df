package qmdtutor

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Exercise actions accepted by ExerciseState.HandleAction.
const (
	ActionNextHint       = "nextHint"
	ActionToggleSolution = "toggleSolution"
	ActionComplete       = "complete"
	ActionReset          = "reset"
	ActionSaveCode       = "saveCode"
)

// ExerciseState tracks a learner's progress through one exercise: how
// many hints are revealed, whether the solution is shown, and the code
// currently in the editor.
type ExerciseState struct {
	mu sync.RWMutex

	exercise *Exercise

	// Index of the last revealed hint; -1 when none are shown.
	HintIndex    int
	ShowSolution bool
	Completed    bool
	Code         string
}

// NewExerciseState creates the initial state for an exercise.
func NewExerciseState(ex *Exercise) *ExerciseState {
	return &ExerciseState{
		exercise:  ex,
		HintIndex: -1,
		Code:      ex.InitialCode,
	}
}

// HandleAction applies an exercise action.
func (s *ExerciseState) HandleAction(action string, data map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch action {
	case ActionNextHint:
		return s.handleNextHint()
	case ActionToggleSolution:
		if s.exercise.Solution == "" {
			return fmt.Errorf("exercise %s has no solution", s.exercise.ID)
		}
		s.ShowSolution = !s.ShowSolution
		return nil
	case ActionComplete:
		s.Completed = true
		return nil
	case ActionReset:
		s.HintIndex = -1
		s.ShowSolution = false
		s.Completed = false
		s.Code = s.exercise.InitialCode
		return nil
	case ActionSaveCode:
		code, ok := data["code"].(string)
		if !ok {
			return fmt.Errorf("missing code")
		}
		s.Code = code
		return nil
	default:
		return fmt.Errorf("unknown exercise action: %s", action)
	}
}

func (s *ExerciseState) handleNextHint() error {
	if len(s.exercise.Hints) == 0 {
		return fmt.Errorf("exercise %s has no hints", s.exercise.ID)
	}
	if s.HintIndex < len(s.exercise.Hints)-1 {
		s.HintIndex++
	}
	return nil
}

// Snapshot is a point-in-time copy of an ExerciseState, shaped for JSON.
type Snapshot struct {
	ExerciseID   string   `json:"exerciseId"`
	Hints        []string `json:"hints"`
	HasMoreHints bool     `json:"hasMoreHints"`
	ShowSolution bool     `json:"showSolution"`
	Solution     string   `json:"solution,omitempty"`
	Completed    bool     `json:"completed"`
	Code         string   `json:"code"`
}

// Snapshot returns the visible state. Hints are limited to those revealed
// and the solution is only included while shown.
func (s *ExerciseState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		ExerciseID:   s.exercise.ID,
		Hints:        make([]string, 0, s.HintIndex+1),
		HasMoreHints: s.HintIndex < len(s.exercise.Hints)-1,
		ShowSolution: s.ShowSolution,
		Completed:    s.Completed,
		Code:         s.Code,
	}
	snap.Hints = append(snap.Hints, s.exercise.Hints[:s.HintIndex+1]...)
	if s.ShowSolution {
		snap.Solution = s.exercise.Solution
	}
	return snap
}

// SessionState holds the exercise states of one browser session.
type SessionState struct {
	mu        sync.Mutex
	catalog   *Catalog
	exercises map[string]*ExerciseState
}

// NewSessionState creates an empty session over catalog.
func NewSessionState(catalog *Catalog) *SessionState {
	return &SessionState{
		catalog:   catalog,
		exercises: make(map[string]*ExerciseState),
	}
}

// Exercise returns the state for exerciseID, creating it on first use.
func (ss *SessionState) Exercise(exerciseID string) (*ExerciseState, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if st, ok := ss.exercises[exerciseID]; ok {
		return st, nil
	}
	ex, ok := ss.catalog.Exercise(exerciseID)
	if !ok {
		return nil, fmt.Errorf("unknown exercise: %s", exerciseID)
	}
	st := NewExerciseState(ex)
	ss.exercises[exerciseID] = st
	return st, nil
}

// MessageEnvelope wraps a client message with exercise routing information.
type MessageEnvelope struct {
	ExerciseID string          `json:"exerciseId"`
	Action     string          `json:"action"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// ResponseEnvelope wraps the resulting state.
type ResponseEnvelope struct {
	ExerciseID string    `json:"exerciseId"`
	State      *Snapshot `json:"state,omitempty"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
}

// Route applies envelope to the addressed exercise. Action failures are
// reported in the response; only an unknown exercise is an error.
func (ss *SessionState) Route(envelope *MessageEnvelope) (*ResponseEnvelope, error) {
	var dataMap map[string]interface{}
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, &dataMap); err != nil {
			dataMap = make(map[string]interface{})
		}
	}
	return ss.Apply(envelope.ExerciseID, envelope.Action, dataMap)
}

// Apply runs action on exerciseID with already decoded data and returns
// the resulting state, like Route.
func (ss *SessionState) Apply(exerciseID, action string, data map[string]interface{}) (*ResponseEnvelope, error) {
	st, err := ss.Exercise(exerciseID)
	if err != nil {
		return nil, err
	}

	resp := &ResponseEnvelope{ExerciseID: exerciseID, Success: true}
	if err := st.HandleAction(action, data); err != nil {
		resp.Success = false
		resp.Error = err.Error()
	}
	snap := st.Snapshot()
	resp.State = &snap
	return resp, nil
}
