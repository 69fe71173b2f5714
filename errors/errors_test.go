package errors

import (
	"testing"
)

func TestSentinelWrapping(t *testing.T) {
	err := Wrap(ErrPoolClosed, "acquire failed")
	if !Is(err, ErrPoolClosed) {
		t.Errorf("wrapped sentinel should still match ErrPoolClosed")
	}
	if Is(err, ErrAlreadyClaimed) {
		t.Errorf("wrapped ErrPoolClosed should not match ErrAlreadyClaimed")
	}
}

func TestIsNotFoundError(t *testing.T) {
	if IsNotFoundError(nil) {
		t.Error("nil should not be a not-found error")
	}
	if !IsNotFoundError(NewNotFoundError("batch %s", "B1")) {
		t.Error("NewNotFoundError result should match")
	}
	if IsNotFoundError(New("unrelated")) {
		t.Error("unrelated error should not match")
	}
}

func TestDetailsSurviveWrapping(t *testing.T) {
	err := New("boom")
	err = WithDetail(err, "Account: 42")
	err = Wrap(err, "claim failed")

	details := GetAllDetails(err)
	if len(details) != 1 || details[0] != "Account: 42" {
		t.Errorf("expected one detail to survive wrapping, got %v", details)
	}
}
