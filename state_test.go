package qmdtutor

import (
	"encoding/json"
	"sync"
	"testing"
	"testing/fstest"
)

func testExercise() *Exercise {
	return &Exercise{
		ID:          "ex",
		LessonID:    "lesson",
		Language:    "markdown",
		InitialCode: "start",
		Solution:    "done",
		Hints:       []string{"one", "two"},
	}
}

func TestExerciseStateHints(t *testing.T) {
	st := NewExerciseState(testExercise())

	snap := st.Snapshot()
	if st.HintIndex != -1 || len(snap.Hints) != 0 || !snap.HasMoreHints {
		t.Fatalf("initial state = %+v", snap)
	}

	for i, want := range []int{0, 1, 1} {
		if err := st.HandleAction(ActionNextHint, nil); err != nil {
			t.Fatalf("nextHint #%d: %v", i, err)
		}
		if st.HintIndex != want {
			t.Errorf("after nextHint #%d HintIndex = %d, want %d", i, st.HintIndex, want)
		}
	}

	snap = st.Snapshot()
	if len(snap.Hints) != 2 || snap.Hints[1] != "two" {
		t.Errorf("Hints = %v, want [one two]", snap.Hints)
	}
	if snap.HasMoreHints {
		t.Error("HasMoreHints should be false after the last hint")
	}
}

func TestExerciseStateSolutionAndReset(t *testing.T) {
	st := NewExerciseState(testExercise())

	if err := st.HandleAction(ActionToggleSolution, nil); err != nil {
		t.Fatal(err)
	}
	if snap := st.Snapshot(); !snap.ShowSolution || snap.Solution != "done" {
		t.Errorf("solution should be visible: %+v", snap)
	}
	if err := st.HandleAction(ActionToggleSolution, nil); err != nil {
		t.Fatal(err)
	}
	if snap := st.Snapshot(); snap.ShowSolution || snap.Solution != "" {
		t.Errorf("solution should be hidden: %+v", snap)
	}

	_ = st.HandleAction(ActionNextHint, nil)
	_ = st.HandleAction(ActionToggleSolution, nil)
	_ = st.HandleAction(ActionComplete, nil)
	_ = st.HandleAction(ActionSaveCode, map[string]interface{}{"code": "edited"})
	if snap := st.Snapshot(); !snap.Completed || snap.Code != "edited" {
		t.Errorf("state before reset = %+v", snap)
	}

	if err := st.HandleAction(ActionReset, nil); err != nil {
		t.Fatal(err)
	}
	snap := st.Snapshot()
	if st.HintIndex != -1 || snap.ShowSolution || snap.Completed || snap.Code != "start" {
		t.Errorf("state after reset = %+v", snap)
	}
}

func TestExerciseStateErrors(t *testing.T) {
	bare := &Exercise{ID: "bare", Language: "r"}
	st := NewExerciseState(bare)

	tests := []struct {
		action string
		data   map[string]interface{}
	}{
		{ActionNextHint, nil},
		{ActionToggleSolution, nil},
		{ActionSaveCode, map[string]interface{}{"code": 42}},
		{"jump", nil},
	}
	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			if err := st.HandleAction(tt.action, tt.data); err == nil {
				t.Errorf("HandleAction(%q) should fail", tt.action)
			}
		})
	}
}

func TestExerciseStateConcurrent(t *testing.T) {
	st := NewExerciseState(testExercise())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = st.HandleAction(ActionNextHint, nil)
		}()
		go func() {
			defer wg.Done()
			_ = st.Snapshot()
		}()
	}
	wg.Wait()
	if st.HintIndex != 1 {
		t.Errorf("HintIndex = %d, want 1", st.HintIndex)
	}
}

func TestSessionStateRoute(t *testing.T) {
	fsys := fstest.MapFS{
		"a.md": {Data: []byte("---\nid: a\n---\n\n```r exercise id=a-1\nplot(x)\n```\n\n```hints for=a-1\nUse plot\n```\n")},
	}
	catalog, err := LoadFS(fsys, "")
	if err != nil {
		t.Fatal(err)
	}
	session := NewSessionState(catalog)

	resp, err := session.Route(&MessageEnvelope{ExerciseID: "a-1", Action: ActionNextHint})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if !resp.Success || len(resp.State.Hints) != 1 || resp.State.Hints[0] != "Use plot" {
		t.Errorf("response = %+v, state = %+v", resp, resp.State)
	}

	resp, err = session.Route(&MessageEnvelope{ExerciseID: "a-1", Action: ActionToggleSolution})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Success || resp.Error == "" {
		t.Errorf("toggleSolution without a solution should report failure: %+v", resp)
	}

	resp, err = session.Route(&MessageEnvelope{
		ExerciseID: "a-1",
		Action:     ActionSaveCode,
		Data:       json.RawMessage(`{"code":"summary(x)"}`),
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.State.Code != "summary(x)" {
		t.Errorf("Code = %q, want summary(x)", resp.State.Code)
	}

	again, _ := session.Exercise("a-1")
	if again.Snapshot().Code != "summary(x)" {
		t.Error("session should keep state between calls")
	}

	if _, err := session.Route(&MessageEnvelope{ExerciseID: "missing", Action: ActionReset}); err == nil {
		t.Error("unknown exercise should be an error")
	}
}

func TestSessionStateApply(t *testing.T) {
	fsys := fstest.MapFS{
		"a.md": {Data: []byte("---\nid: a\n---\n\n```r exercise id=a-1\nplot(x)\n```\n")},
	}
	catalog, err := LoadFS(fsys, "")
	if err != nil {
		t.Fatal(err)
	}
	session := NewSessionState(catalog)

	resp, err := session.Apply("a-1", ActionSaveCode, map[string]interface{}{"code": "str(x)"})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !resp.Success || resp.State.Code != "str(x)" {
		t.Errorf("response = %+v, state = %+v", resp, resp.State)
	}

	resp, err = session.Apply("a-1", ActionSaveCode, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Success || resp.Error != "missing code" {
		t.Errorf("saveCode without code should fail: %+v", resp)
	}
	if resp.State.Code != "str(x)" {
		t.Errorf("failed save changed code to %q", resp.State.Code)
	}

	if _, err := session.Apply("missing", ActionReset, nil); err == nil {
		t.Error("unknown exercise should be an error")
	}
}
