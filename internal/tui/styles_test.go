package tui

import "testing"

func TestWrapSegments(t *testing.T) {
	lines := wrapSegments([]string{"s start", "r reset", "q quit"}, " · ", 17)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", lines)
	}
	if lines[0] != "s start · r reset" || lines[1] != "q quit" {
		t.Fatalf("unexpected lines %q", lines)
	}
	if got := wrapSegments([]string{"a", "b"}, " ", 0); len(got) != 1 || got[0] != "a b" {
		t.Fatalf("unexpected unbounded wrap %q", got)
	}
}

func TestWrapSegmentsLongSegment(t *testing.T) {
	lines := wrapSegments([]string{"tiny", "a-very-long-segment"}, " ", 8)
	if len(lines) != 2 || lines[1] != "a-very-long-segment" {
		t.Fatalf("unexpected lines %q", lines)
	}
}

func TestThemeFallsBackToDark(t *testing.T) {
	got := themeFor("neon", "large")
	want := themeFor("dark", "large")
	if got.title.Render("x") != want.title.Render("x") {
		t.Fatalf("expected unknown theme to use dark palette")
	}
}
