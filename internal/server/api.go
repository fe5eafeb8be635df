package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/livetemplate/qmdtutor"
	"github.com/livetemplate/qmdtutor/internal/progress"
	"github.com/livetemplate/qmdtutor/internal/render"
)

// maxRequestBodySize limits the size of incoming request bodies (1MB)
const maxRequestBodySize = 1 << 20

// Exercise actions as they appear in /api/exercises/{id}/{action}.
var exerciseActions = map[string]string{
	"hint":     qmdtutor.ActionNextHint,
	"solution": qmdtutor.ActionToggleSolution,
	"complete": qmdtutor.ActionComplete,
	"reset":    qmdtutor.ActionReset,
	"code":     qmdtutor.ActionSaveCode,
}

type renderRequest struct {
	Document string `json:"document"`
}

type renderResponse struct {
	render.Result
	PreviewID  string `json:"previewId,omitempty"`
	PreviewURL string `json:"previewUrl,omitempty"`
}

type executeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type runResponse struct {
	qmdtutor.RunResult
	ExerciseID      string             `json:"exerciseId"`
	Passed          bool               `json:"passed"`
	PreviewID       string             `json:"previewId,omitempty"`
	PreviewURL      string             `json:"previewUrl,omitempty"`
	LessonCompleted bool               `json:"lessonCompleted"`
	State           *qmdtutor.Snapshot `json:"state"`
}

type actionResponse struct {
	*qmdtutor.ResponseEnvelope
	LessonCompleted bool `json:"lessonCompleted"`
}

type lessonSummary struct {
	ID            string              `json:"id"`
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	Difficulty    qmdtutor.Difficulty `json:"difficulty"`
	Duration      string              `json:"duration"`
	Order         int                 `json:"order"`
	ExerciseCount int                 `json:"exerciseCount"`
	Completed     bool                `json:"completed"`
}

// exerciseView hides hints and the solution; those are revealed through
// exercise actions.
type exerciseView struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Language    string `json:"language"`
	InitialCode string `json:"initialCode"`
	HintCount   int    `json:"hintCount"`
	HasSolution bool   `json:"hasSolution"`
	HasExpected bool   `json:"hasExpectedOutput"`
}

type lessonDetail struct {
	lessonSummary
	HTML      string         `json:"html"`
	Exercises []exerciseView `json:"exercises"`
	Prev      string         `json:"prev,omitempty"`
	Next      string         `json:"next,omitempty"`
}

func (s *Server) summarize(l *qmdtutor.Lesson) lessonSummary {
	return lessonSummary{
		ID:            l.ID,
		Title:         l.Title,
		Description:   l.Description,
		Difficulty:    l.Difficulty,
		Duration:      l.Duration,
		Order:         l.Order,
		ExerciseCount: len(l.Exercises),
		Completed:     s.tracker.IsCompleted(l.ID),
	}
}

func viewExercise(ex *qmdtutor.Exercise) exerciseView {
	return exerciseView{
		ID:          ex.ID,
		Title:       ex.Title,
		Description: ex.Description,
		Language:    ex.Language,
		InitialCode: ex.InitialCode,
		HintCount:   len(ex.Hints),
		HasSolution: ex.Solution != "",
		HasExpected: ex.ExpectedOutput != "",
	}
}

// handleRender renders a document. A failed render is still a 200: the
// error message is the result the editor shows.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp := renderResponse{Result: s.runner.Renderer.Render(r.Context(), req.Document)}
	if resp.Success {
		resp.PreviewID = s.previews.Put(resp.Page)
		resp.PreviewURL = previewURL(resp.PreviewID)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.runner.Executor.Execute(r.Context(), req.Code, req.Language))
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	page, ok := s.previews.Get(r.PathValue("id"))
	if !ok {
		http.Error(w, "Preview not found or expired", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write([]byte(page)); err != nil {
		log.Printf("[Server] Error writing preview: %v", err)
	}
}

func previewURL(id string) string {
	return "/preview/" + id
}

func (s *Server) handleListLessons(w http.ResponseWriter, r *http.Request) {
	lessons := s.catalog.Lessons()
	out := make([]lessonSummary, 0, len(lessons))
	for _, l := range lessons {
		out = append(out, s.summarize(l))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"lessons":  out,
		"progress": s.tracker.Summary(),
	})
}

func (s *Server) handleGetLesson(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	lesson, ok := s.catalog.Lesson(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("lesson not found: %s", id))
		return
	}

	detail := lessonDetail{
		lessonSummary: s.summarize(lesson),
		HTML:          lesson.HTML,
		Exercises:     make([]exerciseView, 0, len(lesson.Exercises)),
	}
	for _, ex := range lesson.Exercises {
		detail.Exercises = append(detail.Exercises, viewExercise(ex))
	}
	prev, next := s.catalog.Neighbors(id)
	if prev != nil {
		detail.Prev = prev.ID
	}
	if next != nil {
		detail.Next = next.ID
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Summary())
}

func (s *Server) handleCompleteLesson(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Complete(r.Context(), r.PathValue("lessonID")); err != nil {
		writeProgressError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.tracker.Summary())
}

func (s *Server) handleUncompleteLesson(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Uncomplete(r.Context(), r.PathValue("lessonID")); err != nil {
		writeProgressError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.tracker.Summary())
}

func (s *Server) handleResetProgress(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Reset(r.Context()); err != nil {
		writeProgressError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.tracker.Summary())
}

func writeProgressError(w http.ResponseWriter, err error) {
	if errors.Is(err, progress.ErrUnknownLesson) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	log.Printf("[API] Progress error: %v", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) handleExerciseState(w http.ResponseWriter, r *http.Request) {
	st, err := s.sessions.get(w, r).Exercise(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st.Snapshot())
}

func (s *Server) handleExerciseAction(w http.ResponseWriter, r *http.Request) {
	id, name := r.PathValue("id"), r.PathValue("action")
	ex, ok := s.catalog.Exercise(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown exercise: %s", id))
		return
	}
	session := s.sessions.get(w, r)

	if name == "run" {
		s.runExercise(w, r, session, ex)
		return
	}

	action, ok := exerciseActions[name]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown exercise action: %s", name))
		return
	}

	var data map[string]interface{}
	if action == qmdtutor.ActionSaveCode {
		var req codeRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		data = map[string]interface{}{"code": req.Code}
	}

	resp, err := session.Apply(id, action, data)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	out := actionResponse{ResponseEnvelope: resp}
	if action == qmdtutor.ActionComplete {
		out.LessonCompleted, err = s.completeLessonIfDone(r.Context(), session, ex)
		if err != nil {
			writeProgressError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// runExercise runs the submitted code, records it as the exercise's
// current code, and marks the exercise complete when the run passes.
func (s *Server) runExercise(w http.ResponseWriter, r *http.Request, session *qmdtutor.SessionState, ex *qmdtutor.Exercise) {
	var req codeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	st, err := session.Exercise(ex.ID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err := st.HandleAction(qmdtutor.ActionSaveCode, map[string]interface{}{"code": req.Code}); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := runResponse{ExerciseID: ex.ID, RunResult: s.runner.Run(r.Context(), ex, req.Code)}
	if resp.Page != "" {
		resp.PreviewID = s.previews.Put(resp.Page)
		resp.PreviewURL = previewURL(resp.PreviewID)
		resp.Page = ""
	}
	resp.Passed = ex.Check(resp.RunResult)
	if resp.Passed {
		if err := st.HandleAction(qmdtutor.ActionComplete, nil); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.LessonCompleted, err = s.completeLessonIfDone(r.Context(), session, ex)
		if err != nil {
			writeProgressError(w, err)
			return
		}
	}
	snap := st.Snapshot()
	resp.State = &snap
	writeJSON(w, http.StatusOK, resp)
}

// completeLessonIfDone marks ex's lesson complete once every exercise in
// it is complete in this session.
func (s *Server) completeLessonIfDone(ctx context.Context, session *qmdtutor.SessionState, ex *qmdtutor.Exercise) (bool, error) {
	lesson, ok := s.catalog.Lesson(ex.LessonID)
	if !ok {
		return false, nil
	}
	for _, other := range lesson.Exercises {
		st, err := session.Exercise(other.ID)
		if err != nil {
			return false, err
		}
		if !st.Snapshot().Completed {
			return false, nil
		}
	}
	if s.tracker.IsCompleted(lesson.ID) {
		return true, nil
	}
	if err := s.tracker.Complete(ctx, lesson.ID); err != nil {
		return false, err
	}
	return true, nil
}

// decodeJSON reads a size-limited JSON body into v, writing the error
// response itself on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[API] Error encoding JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		log.Printf("[API] Error encoding error response: %v", err)
	}
}
