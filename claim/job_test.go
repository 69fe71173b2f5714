package claim

import (
	"testing"

	"github.com/halcyonlabs/claimd/errors"
)

func TestJobLifecycleSuccess(t *testing.T) {
	job := NewJob("acct-1", "batch-1")

	if job.State != JobStatePending {
		t.Errorf("new job should be pending, got %s", job.State)
	}
	if job.State.IsTerminal() {
		t.Error("pending should not be terminal")
	}

	job.Acquiring()
	if job.State != JobStateAcquiring {
		t.Errorf("expected acquiring, got %s", job.State)
	}

	job.Run()
	if job.State != JobStateRunning {
		t.Errorf("expected running, got %s", job.State)
	}
	if job.StartedAt == nil {
		t.Error("Run should set StartedAt")
	}

	job.Succeed([]string{"Cash", "Gems"})
	if job.State != JobStateSuccess {
		t.Errorf("expected success, got %s", job.State)
	}
	if !job.State.IsTerminal() {
		t.Error("success should be terminal")
	}
	if job.EndedAt == nil {
		t.Error("Succeed should set EndedAt")
	}
	if len(job.ItemsClaimed) != 2 {
		t.Errorf("expected 2 items, got %d", len(job.ItemsClaimed))
	}
}

func TestJobFail(t *testing.T) {
	job := NewJob("acct-2", "batch-1")
	job.Run()
	job.Fail(errors.New("page never loaded"))

	if job.State != JobStateFailed {
		t.Errorf("expected failed, got %s", job.State)
	}
	if job.Error != "page never loaded" {
		t.Errorf("unexpected error message: %s", job.Error)
	}
	if job.EndedAt == nil {
		t.Error("Fail should set EndedAt")
	}
}

func TestJobAlreadyClaimed(t *testing.T) {
	job := NewJob("acct-3", "batch-1")
	job.Run()
	job.AlreadyClaimed([]string{"Cash"})

	if job.State != JobStateAlreadyClaimed {
		t.Errorf("expected already_claimed, got %s", job.State)
	}
	if !job.State.IsTerminal() {
		t.Error("already_claimed should be terminal")
	}
	// Session outcome is kept for observability even though nothing was
	// persisted
	if len(job.ItemsClaimed) != 1 {
		t.Errorf("expected session items preserved, got %v", job.ItemsClaimed)
	}
}

func TestIsValidState(t *testing.T) {
	valid := []string{"pending", "acquiring", "running", "success", "failed", "already_claimed"}
	for _, s := range valid {
		if !IsValidState(s) {
			t.Errorf("%s should be valid", s)
		}
	}
	for _, s := range []string{"", "queued", "done", "SUCCESS"} {
		if IsValidState(s) {
			t.Errorf("%s should be invalid", s)
		}
	}
}

func TestJobDurationBeforeStart(t *testing.T) {
	job := NewJob("acct-4", "batch-1")
	if d := job.Duration(); d != 0 {
		t.Errorf("unstarted job should have zero duration, got %s", d)
	}
}
