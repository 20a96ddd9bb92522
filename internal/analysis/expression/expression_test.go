package expression

import "testing"

func TestAnalyzeKnownMarkers(t *testing.T) {
	cases := []struct {
		emotion string
		gesture string
		aura    Aura
		motion  Motion
	}{
		{emotion: "Blushing", gesture: "Pouting", aura: Blushing, motion: Pout},
		{emotion: "Angry", gesture: "crosses arms and huffs", aura: Angry, motion: Pout},
		{emotion: "Happy", gesture: "Dancing", aura: Happy, motion: Dance},
		{emotion: "Excited", gesture: "jumps up and down", aura: Excited, motion: Jump},
		{emotion: "looks down shyly", gesture: "fidgets with sleeves", aura: Blushing, motion: Fidget},
		{emotion: "Smiles!", gesture: "Waving", aura: Excited, motion: Wave},
		{emotion: "Sad", gesture: "Bowing", aura: Sad, motion: Bow},
	}

	for _, tc := range cases {
		got := Analyze(tc.emotion, tc.gesture)
		if got.Aura != tc.aura {
			t.Errorf("Analyze(%q, %q).Aura = %s, want %s", tc.emotion, tc.gesture, got.Aura, tc.aura)
		}
		if got.Motion != tc.motion {
			t.Errorf("Analyze(%q, %q).Motion = %s, want %s", tc.emotion, tc.gesture, got.Motion, tc.motion)
		}
	}
}

func TestAnalyzeUnknownMarkers(t *testing.T) {
	got := Analyze("Pensive", "")
	if got.Aura != Calm {
		t.Fatalf("expected calm aura, got %s", got.Aura)
	}
	if got.Motion != Still {
		t.Fatalf("expected no motion, got %s", got.Motion)
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	got := Analyze("", "")
	if got != (Expression{Aura: Calm, Motion: Still}) {
		t.Fatalf("unexpected expression for empty markers: %+v", got)
	}
}
