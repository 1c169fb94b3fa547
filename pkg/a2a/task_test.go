package a2a

import "testing"

func newHistoryTask(n int) *Task {
	task := &Task{ID: "t1", ContextID: "c1", Status: NewStatus(TaskStateWorking)}
	for i := 0; i < n; i++ {
		task.History = append(task.History, &Message{MessageID: string(rune('a' + i)), Role: RoleUser})
	}
	return task
}

func TestProjectTask_HistoryLength(t *testing.T) {
	task := newHistoryTask(5)

	limit := 2
	got := ProjectTask(task, &limit, true)
	if len(got.History) != 2 {
		t.Fatalf("Expected history tail of 2, got %d", len(got.History))
	}
	if got.History[1].MessageID != task.History[4].MessageID {
		t.Error("Expected the tail of the history to be kept")
	}
	if len(task.History) != 5 {
		t.Error("Expected the source task to be untouched")
	}

	zero := 0
	if got := ProjectTask(task, &zero, true); got.History != nil {
		t.Errorf("Expected empty history for limit 0, got %d entries", len(got.History))
	}

	if got := ProjectTask(task, nil, true); len(got.History) != 5 {
		t.Errorf("Expected full history for nil limit, got %d entries", len(got.History))
	}
}

func TestProjectTask_DropArtifacts(t *testing.T) {
	task := newHistoryTask(1)
	task.Artifacts = []*Artifact{{ArtifactID: "a1", Parts: []Part{NewTextPart("x")}}}

	got := ProjectTask(task, nil, false)
	if got.Artifacts != nil {
		t.Error("Expected artifacts to be dropped")
	}
	if len(task.Artifacts) != 1 {
		t.Error("Expected the source task to keep its artifacts")
	}
}

func TestTask_CloneIsolation(t *testing.T) {
	task := newHistoryTask(2)
	task.Artifacts = []*Artifact{{ArtifactID: "a1", Parts: []Part{NewTextPart("x")}}}
	task.Metadata = map[string]interface{}{"k": "v"}

	clone := task.Clone()
	clone.History = append(clone.History, &Message{MessageID: "extra"})
	clone.Artifacts[0].Parts = append(clone.Artifacts[0].Parts, NewTextPart("y"))
	clone.Metadata["k"] = "changed"
	clone.Status.State = TaskStateFailed

	if len(task.History) != 2 {
		t.Error("Clone history append leaked into the source")
	}
	if len(task.Artifacts[0].Parts) != 1 {
		t.Error("Clone artifact append leaked into the source")
	}
	if task.Metadata["k"] != "v" {
		t.Error("Clone metadata write leaked into the source")
	}
	if task.Status.State != TaskStateWorking {
		t.Error("Clone status write leaked into the source")
	}
}
