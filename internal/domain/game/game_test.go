package game

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestParseAction(t *testing.T) {
	tests := map[string]Action{
		"attack": ActionAttack,
		"Blast":  ActionBlast,
		"blast":  ActionBlast,
		"heal":   ActionHeal,
		"Giveup": ActionGiveup,
		"giveup": ActionGiveup,
	}
	for raw, want := range tests {
		got, ok := ParseAction(raw)
		if !ok || got != want {
			t.Errorf("ParseAction(%q) = %q, %v", raw, got, ok)
		}
	}
	for _, raw := range []string{"", "ATTACK", "Heal", "game_end"} {
		if _, ok := ParseAction(raw); ok {
			t.Errorf("ParseAction(%q) accepted", raw)
		}
	}
}

func TestFinishAppliesOnce(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	g := New(primitive.NewObjectID(), "Jane", 60, start)

	g.Finish(StatusSurrendered, WinnerMonster, start.Add(12*time.Second))
	g.Finish(StatusCompleted, WinnerPlayer, start.Add(30*time.Second))

	if g.Status != StatusSurrendered || g.WinnerValue() != WinnerMonster {
		t.Fatalf("status %q winner %q", g.Status, g.WinnerValue())
	}
	if d := g.Duration(); d == nil || *d != 12 {
		t.Fatalf("duration %v", d)
	}
}

func TestServerTimeRemaining(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	g := New(primitive.NewObjectID(), "Jane", 60, start)

	if got := g.ServerTimeRemaining(start.Add(15500 * time.Millisecond)); got != 45 {
		t.Fatalf("remaining %d, want 45", got)
	}
	if got := g.ServerTimeRemaining(start.Add(2 * time.Minute)); got != 0 {
		t.Fatalf("remaining %d after expiry", got)
	}
}

func TestSummaryKeepsLastLogs(t *testing.T) {
	g := New(primitive.NewObjectID(), "Jane", 60, time.Now())
	for i := 0; i < 14; i++ {
		g.AppendLog(LogEntry{Action: string(ActionAttack), PlayerDamage: i})
	}

	s := g.Summary(SummaryLogLimit)
	if len(s.GameLogs) != SummaryLogLimit {
		t.Fatalf("summary carries %d logs", len(s.GameLogs))
	}
	if s.GameLogs[len(s.GameLogs)-1].PlayerDamage != 13 {
		t.Fatal("summary did not keep the most recent entries")
	}
	if len(g.Detail().GameLogs) != 15 {
		t.Fatal("detail must carry the full log")
	}
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 10, 21)
	if p.Pages != 3 {
		t.Fatalf("pages %d", p.Pages)
	}
	if p = NewPagination(1, 10, 0); p.Pages != 0 {
		t.Fatalf("pages %d for empty set", p.Pages)
	}
}
