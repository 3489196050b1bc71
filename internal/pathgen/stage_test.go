package pathgen

import (
	"encoding/json"
	"testing"
)

func TestStageValid(t *testing.T) {
	for _, s := range []Stage{StageAnalyzing, StageResearching, StageGenerating, StageEnriching, StageCompleted, StageError} {
		if !s.Valid() {
			t.Fatalf("stage %q should be valid", s)
		}
	}
	if Stage("polishing").Valid() {
		t.Fatalf("unknown stage accepted")
	}
}

func TestStageTerminal(t *testing.T) {
	if !StageCompleted.Terminal() || !StageError.Terminal() {
		t.Fatalf("completed and error must be terminal")
	}
	if StageAnalyzing.Terminal() || StageEnriching.Terminal() {
		t.Fatalf("intermediate stage reported terminal")
	}
}

func TestStageBefore(t *testing.T) {
	if !StageAnalyzing.Before(StageResearching) {
		t.Fatalf("analyzing should precede researching")
	}
	if !StageEnriching.Before(StageCompleted) {
		t.Fatalf("enriching should precede completed")
	}
	if StageCompleted.Before(StageAnalyzing) {
		t.Fatalf("ordering reversed")
	}
	if StageError.Before(StageCompleted) || StageGenerating.Before(StageError) {
		t.Fatalf("error has no pipeline position")
	}
}

func TestClampProgress(t *testing.T) {
	if got := ClampProgress(150); got != 100 {
		t.Fatalf("clamp(150) = %d, want 100", got)
	}
	if got := ClampProgress(-3); got != 0 {
		t.Fatalf("clamp(-3) = %d, want 0", got)
	}
	if got := ClampProgress(42); got != 42 {
		t.Fatalf("clamp(42) = %d, want 42", got)
	}
}

func TestWorkOutcomeWellFormed(t *testing.T) {
	ok := WorkOutcome{Kind: OutcomeSucceeded, UserID: "u", TraceID: "t", Result: json.RawMessage(`{"topic":"Rust"}`)}
	if !ok.WellFormed() {
		t.Fatalf("succeeded outcome with result should be well formed")
	}

	failed := WorkOutcome{Kind: OutcomeFailed, UserID: "u", TraceID: "t", Error: "boom"}
	if !failed.WellFormed() {
		t.Fatalf("failed outcome with error should be well formed")
	}

	cases := []WorkOutcome{
		{Kind: OutcomeSucceeded, UserID: "u", TraceID: "t"},          // no result
		{Kind: OutcomeFailed, UserID: "u", TraceID: "t"},             // no error
		{Kind: "done", UserID: "u", TraceID: "t", Error: "x"},        // unknown discriminant
		{Kind: OutcomeFailed, UserID: "u", Error: "x"},               // no trace
		{Kind: OutcomeSucceeded, TraceID: "t", Result: ok.Result},    // no user
	}
	for i, c := range cases {
		if c.WellFormed() {
			t.Fatalf("case %d should be malformed: %+v", i, c)
		}
	}
}
