package core

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNormalizePseudo(t *testing.T) {
	p, err := NormalizePseudo("  Alice ")
	if err != nil || p != "Alice" {
		t.Fatalf("got %v %v", p, err)
	}
	if _, err := NormalizePseudo("   "); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := NormalizePseudo(strings.Repeat("é", MaxPseudoLen)); err != nil {
		t.Fatalf("50 runes should be accepted: %v", err)
	}
	if _, err := NormalizePseudo(strings.Repeat("x", MaxPseudoLen+1)); !IsValidation(err) {
		t.Fatalf("expected too long error, got %v", err)
	}
}

func TestParseScore(t *testing.T) {
	cases := []struct {
		in      any
		want    int64
		wantErr bool
	}{
		{json.Number("100"), 100, false},
		{json.Number("0"), 0, false},
		{json.Number("150.0"), 150, false},
		{json.Number("12.5"), 0, true},
		{json.Number("-1"), 0, true},
		{float64(42), 42, false},
		{json.Number("9007199254740991"), MaxScore, false},
		{json.Number("9007199254740992"), 0, true},
		{json.Number("9223372036854775807"), 0, true},
		{float64(1 << 60), 0, true},
		{"100", 0, true},
		{nil, 0, true},
		{true, 0, true},
	}
	for _, c := range cases {
		got, err := ParseScore(c.in)
		if c.wantErr {
			if !IsValidation(err) {
				t.Fatalf("ParseScore(%v): expected validation error, got %v", c.in, err)
			}
			continue
		}
		if err != nil || got != c.want {
			t.Fatalf("ParseScore(%v) = %d, %v", c.in, got, err)
		}
	}
}

func TestValidateLimit(t *testing.T) {
	if _, err := ValidateLimit(0); !IsValidation(err) {
		t.Fatal("zero limit should be invalid")
	}
	if l, _ := ValidateLimit(500); l != MaxLimit {
		t.Fatalf("expected clamp to %d, got %d", MaxLimit, l)
	}
	if l, _ := ValidateLimit(3); l != 3 {
		t.Fatalf("got %d", l)
	}
}

func TestNewSubmitResult(t *testing.T) {
	created := NewSubmitResult(Created(100))
	if !created.Success || !created.New || created.Updated != nil {
		t.Fatalf("unexpected created result: %+v", created)
	}
	improved := NewSubmitResult(Updated(150, 100))
	if !improved.IsImproved() || *improved.OldScore != 100 {
		t.Fatalf("unexpected improved result: %+v", improved)
	}
	rejected := NewSubmitResult(Rejected(50, 100))
	if rejected.Updated == nil || *rejected.Updated || rejected.OldScore != nil {
		t.Fatalf("unexpected rejected result: %+v", rejected)
	}
	b, _ := json.Marshal(rejected)
	if !strings.Contains(string(b), `"updated":false`) {
		t.Fatalf("updated=false must be serialized: %s", b)
	}
}

func TestLessOrdering(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := PlayerScore{Pseudo: "a", BestScore: 10, LastUpdated: t0.Add(time.Minute)}
	b := PlayerScore{Pseudo: "b", BestScore: 10, LastUpdated: t0}
	c := PlayerScore{Pseudo: "c", BestScore: 20, LastUpdated: t0.Add(time.Hour)}
	if !Less(c, a) || !Less(b, a) || Less(a, b) {
		t.Fatal("unexpected ordering")
	}
	d := PlayerScore{Pseudo: "d", BestScore: 10, LastUpdated: t0}
	if !Less(b, d) {
		t.Fatal("pseudo should break remaining ties")
	}
}

func TestWrapStorage(t *testing.T) {
	if WrapStorage("op", nil) != nil {
		t.Fatal("nil stays nil")
	}
	if !errors.Is(WrapStorage("op", ErrNotFound), ErrNotFound) || IsStorage(WrapStorage("op", ErrNotFound)) {
		t.Fatal("not found must not become a storage error")
	}
	base := errors.New("connection refused")
	err := WrapStorage("upsert", base)
	if !IsStorage(err) || !errors.Is(err, base) {
		t.Fatalf("expected wrapped storage error, got %v", err)
	}
}

func TestNewLeaderRule(t *testing.T) {
	r := NewLeaderRule{}
	ev := NewSubmissionEvent("alice", Created(100))
	out := r.Evaluate(context.Background(), RankInfo{Rank: 1, Pseudo: "alice", Score: 100}, ev)
	if len(out) != 1 || out[0].Type != EventNewLeader {
		t.Fatalf("expected new leader, got %+v", out)
	}
	if out := r.Evaluate(context.Background(), RankInfo{Rank: 2, Pseudo: "alice"}, ev); out != nil {
		t.Fatal("rank 2 is not a leader")
	}
	rej := NewSubmissionEvent("alice", Rejected(10, 100))
	if out := r.Evaluate(context.Background(), RankInfo{Rank: 1, Pseudo: "alice"}, rej); out != nil {
		t.Fatal("rejected submissions never emit")
	}
}
