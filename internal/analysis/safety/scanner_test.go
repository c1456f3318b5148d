package safety

import "testing"

func TestScanTripsOnTriggerPhrases(t *testing.T) {
	cases := map[string]Category{
		"Sometimes I want to kill myself":               SelfHarm,
		"He hits me when he drinks":                     PartnerViolence,
		"There is a weapon in the house":                Weapon,
		"I feel scared for my life":                     Threat,
		"She THREATENED to take the kids":               Threat,
		"he keeps a gun in the car":                     Weapon,
		"He pointed a shotgun at me last night":         Weapon,
		"My husband keeps a handgun and waved it at me": Weapon,
		"He held me at gunpoint":                        Weapon,
		"She held me at knifepoint":                     Weapon,
		"he pulled out his knives":                      Weapon,
		"I was raped last year":                         SexualAssault,
		"Is this an emergency?":                         Emergency,
		"I have been thinking about suicide":            SelfHarm,
		"there was physical abuse in my family":         PartnerViolence,
	}

	for text, want := range cases {
		finding, tripped := Detect(text)
		if !tripped {
			t.Fatalf("expected %q to trip", text)
		}
		if finding.Category != want {
			t.Fatalf("text %q: expected category %s, got %s", text, want, finding.Category)
		}
		if !Scan(text) {
			t.Fatalf("Scan disagrees with Detect for %q", text)
		}
	}
}

func TestScanLeavesBenignCounsellingTextAlone(t *testing.T) {
	benign := []string{
		"How can we communicate better?",
		"We have begun praying together again.",
		"My wife loves grapes and long walks.",
		"I scraped my knee and he was so kind about it.",
		"Read [[Ephesians 4:2]] together tonight.",
		"",
	}

	for _, text := range benign {
		if Scan(text) {
			finding, _ := Detect(text)
			t.Fatalf("expected %q to be benign, tripped on %s", text, finding.Pattern)
		}
	}
}

func TestScanIsDeterministic(t *testing.T) {
	text := "he hits me and I want to die"
	first, _ := Detect(text)
	for i := 0; i < 10; i++ {
		again, _ := Detect(text)
		if again != first {
			t.Fatalf("non-deterministic result: %+v vs %+v", first, again)
		}
	}
	if first.Category != SelfHarm {
		t.Fatalf("expected self-harm to take precedence, got %s", first.Category)
	}
}
