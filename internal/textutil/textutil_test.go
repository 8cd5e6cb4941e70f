package textutil

import "testing"

func TestPathToken(t *testing.T) {
	cases := map[string]string{
		"Knight Errant": "knight_errant",
		"  ":            "unknown",
		"--walk-7--":    "walk-7",
		"héro":          "h_ro",
		"down/left":     "down_left",
	}
	for input, want := range cases {
		if got := PathToken(input); got != want {
			t.Fatalf("PathToken(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestStageLabel(t *testing.T) {
	cases := map[string]string{
		"spritesheet":     "Spritesheet",
		"generate.action": "Generate Action",
		"segment_mask":    "Segment Mask",
		"":                "",
	}
	for input, want := range cases {
		if got := StageLabel(input); got != want {
			t.Fatalf("StageLabel(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestTernary(t *testing.T) {
	if Ternary(true, "yes", "no") != "yes" || Ternary(false, 1, 2) != 2 {
		t.Fatal("unexpected ternary result")
	}
}
