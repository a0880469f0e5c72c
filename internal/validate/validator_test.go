package validate

import (
	"os"
	"strings"
	"testing"

	"github.com/kalambet/brewd/internal/profile"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	schema, err := os.ReadFile("../../schema/profile.schema.json")
	if err != nil {
		t.Fatalf("reading schema: %v", err)
	}
	v, err := NewValidator(schema)
	if err != nil {
		t.Fatalf("NewValidator() error: %v", err)
	}
	return v
}

func boolPtr(b bool) *bool { return &b }

// goodProfile returns a fully-formed profile that passes every check.
func goodProfile() profile.Profile {
	return profile.Profile{
		Name:        "Classic Italian",
		ID:          "a2a466a4-8c11-4305-8e17-2f1c29c1c86d",
		Author:      "brewd",
		AuthorID:    "b7f8f6f0-ffb2-4a9c-b2a3-06c1fd9b3c44",
		Temperature: 88,
		FinalWeight: 40,
		Variables:   []profile.Variable{},
		Stages: []profile.Stage{
			{
				Name: "Pre-infusion",
				Key:  "preinfusion",
				Type: "flow",
				Dynamics: profile.Dynamics{
					Points:        []profile.Point{{profile.Num(0), profile.Num(4)}, {profile.Num(25), profile.Num(4)}},
					Over:          "time",
					Interpolation: "linear",
				},
				ExitTriggers: []profile.ExitTrigger{
					{Type: "pressure", Value: profile.Num(3), Relative: boolPtr(false), Comparison: ">="},
					{Type: "weight", Value: profile.Num(4), Relative: boolPtr(false), Comparison: ">="},
					{Type: "time", Value: profile.Num(30), Relative: boolPtr(false), Comparison: ">="},
				},
				Limits: []profile.Limit{
					{Type: "pressure", Value: profile.Num(3)},
				},
			},
			{
				Name: "Extraction",
				Key:  "extraction",
				Type: "pressure",
				Dynamics: profile.Dynamics{
					Points:        []profile.Point{{profile.Num(0), profile.Num(9)}, {profile.Num(20), profile.Num(6)}},
					Over:          "time",
					Interpolation: "linear",
				},
				ExitTriggers: []profile.ExitTrigger{
					{Type: "weight", Value: profile.Num(36), Relative: boolPtr(false), Comparison: ">="},
					{Type: "time", Value: profile.Num(60), Relative: boolPtr(false), Comparison: ">="},
				},
				Limits: []profile.Limit{
					{Type: "flow", Value: profile.Num(5)},
				},
			},
		},
	}
}

func mustContain(t *testing.T, violations []Violation, substr string) Violation {
	t.Helper()
	for _, v := range violations {
		if strings.Contains(v.Reason, substr) {
			return v
		}
	}
	t.Fatalf("no violation mentions %q; got %d violations: %v", substr, len(violations), violations)
	return Violation{}
}

func TestValidateGoodProfile(t *testing.T) {
	v := newTestValidator(t)
	if got := v.Validate(goodProfile()); len(got) != 0 {
		t.Errorf("Validate() on a good profile returned %d violations: %v", len(got), got)
	}
}

func TestValidateNormalizedProfileHasNoStructuralViolations(t *testing.T) {
	v := newTestValidator(t)

	// A minimal partial input: after normalization the document must be
	// schema-valid even if domain rules still flag it.
	partial := profile.Profile{
		Name:   "Bare Minimum",
		Author: "tester",
		Stages: []profile.Stage{
			{
				Name: "Only",
				Key:  "only",
				Type: "flow",
				Dynamics: profile.Dynamics{
					Points: []profile.Point{{profile.Num(0), profile.Num(2)}},
					Over:   "time",
				},
				ExitTriggers: []profile.ExitTrigger{
					{Type: "time", Value: profile.Num(30), Comparison: ">="},
				},
			},
		},
	}

	got := v.Validate(profile.Normalize(partial))
	for _, viol := range got {
		// Structural violations come from the schema and never mention a
		// stage by name; every remaining violation here must be a domain
		// rule (the missing pressure limit on the flow stage).
		if !strings.Contains(viol.Reason, "pressure limit") {
			t.Errorf("unexpected violation on normalized profile: %v", viol)
		}
	}
}

func TestValidateMissingNameIsStructural(t *testing.T) {
	v := newTestValidator(t)
	p := goodProfile()
	p.Name = ""

	// encoding/json still emits "name": "", so the schema's minLength
	// catches it rather than a required-property error.
	got := v.Validate(p)
	if len(got) == 0 {
		t.Fatal("Validate() accepted a profile without a name")
	}
}

func TestValidatePressureCeiling(t *testing.T) {
	v := newTestValidator(t)

	t.Run("exit trigger", func(t *testing.T) {
		p := goodProfile()
		p.Stages[0].ExitTriggers[0].Value = profile.Num(20)

		got := v.Validate(p)
		viol := mustContain(t, got, "exceeds the 15 bar hardware limit")
		if !strings.Contains(viol.Path, "/stages/0/exit_triggers/0") {
			t.Errorf("violation path = %q, want it under /stages/0/exit_triggers/0", viol.Path)
		}
	})

	t.Run("dynamics target", func(t *testing.T) {
		p := goodProfile()
		p.Stages[1].Dynamics.Points[0][1] = profile.Num(18)

		got := v.Validate(p)
		mustContain(t, got, "exceeds the 15 bar hardware limit")
	})

	t.Run("pressure limit", func(t *testing.T) {
		p := goodProfile()
		p.Stages[0].Limits[0].Value = profile.Num(16)

		got := v.Validate(p)
		mustContain(t, got, "exceeds the 15 bar hardware limit")
	})

	t.Run("negative pressure", func(t *testing.T) {
		p := goodProfile()
		p.Stages[1].Dynamics.Points[0][1] = profile.Num(-1)

		got := v.Validate(p)
		mustContain(t, got, "negative pressure")
	})
}

func TestValidateUnsortedDynamicsNamesStage(t *testing.T) {
	v := newTestValidator(t)
	p := goodProfile()
	p.Stages[1].Dynamics.Points = []profile.Point{
		{profile.Num(20), profile.Num(6)},
		{profile.Num(0), profile.Num(9)},
	}

	got := v.Validate(p)
	viol := mustContain(t, got, "not sorted")
	if !strings.Contains(viol.Reason, "Extraction") {
		t.Errorf("unsorted-points violation should name the stage, got: %s", viol.Reason)
	}
}

func TestValidateCurveNeedsTwoPoints(t *testing.T) {
	v := newTestValidator(t)
	p := goodProfile()
	p.Stages[0].Dynamics.Interpolation = "curve"
	p.Stages[0].Dynamics.Points = p.Stages[0].Dynamics.Points[:1]

	got := v.Validate(p)
	mustContain(t, got, "at least 2 points")
}

func TestValidateTemperatureRange(t *testing.T) {
	v := newTestValidator(t)

	for _, temp := range []float64{-5, 0, 120} {
		p := goodProfile()
		p.Temperature = temp
		got := v.Validate(p)
		mustContain(t, got, "safe range")
	}
}

func TestValidateRedundantLimit(t *testing.T) {
	v := newTestValidator(t)
	p := goodProfile()
	p.Stages[0].Limits = append(p.Stages[0].Limits, profile.Limit{Type: "flow", Value: profile.Num(4)})

	got := v.Validate(p)
	mustContain(t, got, "cannot limit the quantity you are already controlling")
}

func TestValidateTriggerParadox(t *testing.T) {
	v := newTestValidator(t)
	p := goodProfile()
	p.Stages[1].ExitTriggers = append(p.Stages[1].ExitTriggers, profile.ExitTrigger{
		Type: "pressure", Value: profile.Num(8), Relative: boolPtr(false), Comparison: ">=",
	})

	got := v.Validate(p)
	viol := mustContain(t, got, "may never fire")
	if !strings.Contains(viol.Path, "/stages/1/exit_triggers/2") {
		t.Errorf("paradox violation path = %q", viol.Path)
	}
}

func TestValidateMissingFailsafe(t *testing.T) {
	v := newTestValidator(t)
	p := goodProfile()
	p.Stages[0].ExitTriggers = p.Stages[0].ExitTriggers[:1] // pressure only

	got := v.Validate(p)
	mustContain(t, got, "failsafe")
}

func TestValidateRequiredSafetyLimits(t *testing.T) {
	v := newTestValidator(t)

	t.Run("flow stage needs pressure limit", func(t *testing.T) {
		p := goodProfile()
		p.Stages[0].Limits = []profile.Limit{}

		got := v.Validate(p)
		viol := mustContain(t, got, "without a pressure limit")
		// Pre-infusion stages get the gentler recommendation.
		if !strings.Contains(viol.Reason, "3 bar") {
			t.Errorf("pre-infusion recommendation should be 3 bar, got: %s", viol.Reason)
		}
	})

	t.Run("pressure stage needs flow limit", func(t *testing.T) {
		p := goodProfile()
		p.Stages[1].Limits = []profile.Limit{}

		got := v.Validate(p)
		mustContain(t, got, "without a flow limit")
	})
}

func TestValidateAbsoluteWeightOrdering(t *testing.T) {
	v := newTestValidator(t)
	p := goodProfile()
	// Pre-infusion gets an absolute weight trigger above the extraction one.
	p.Stages[0].ExitTriggers = append(p.Stages[0].ExitTriggers, profile.ExitTrigger{
		Type: "weight", Value: profile.Num(38), Relative: boolPtr(false), Comparison: ">=",
	})

	got := v.Validate(p)
	viol := mustContain(t, got, "would fire immediately")
	if !strings.Contains(viol.Reason, "Extraction") {
		t.Errorf("ordering violation should name the earlier stage, got: %s", viol.Reason)
	}
}

func TestValidateRelativeWeightTriggersExemptFromOrdering(t *testing.T) {
	v := newTestValidator(t)
	p := goodProfile()
	p.Stages[0].ExitTriggers = append(p.Stages[0].ExitTriggers, profile.ExitTrigger{
		Type: "weight", Value: profile.Num(50), Relative: boolPtr(true), Comparison: ">=",
	})

	if got := v.Validate(p); len(got) != 0 {
		t.Errorf("relative weight trigger should not trip ordering, got: %v", got)
	}
}

func TestValidateVariables(t *testing.T) {
	v := newTestValidator(t)

	t.Run("adjustable variable must be used", func(t *testing.T) {
		p := goodProfile()
		p.Variables = []profile.Variable{
			{Name: "Peak pressure", Key: "peak", Type: "pressure", Value: 9, Adjustable: boolPtr(true)},
		}

		got := v.Validate(p)
		mustContain(t, got, "never used")
	})

	t.Run("used adjustable variable passes", func(t *testing.T) {
		p := goodProfile()
		p.Variables = []profile.Variable{
			{Name: "Peak pressure", Key: "peak", Type: "pressure", Value: 9, Adjustable: boolPtr(true)},
		}
		p.Stages[1].Dynamics.Points[0][1] = profile.RefVal("$peak")

		if got := v.Validate(p); len(got) != 0 {
			t.Errorf("Validate() = %v, want no violations", got)
		}
	})

	t.Run("info variable needs emoji prefix", func(t *testing.T) {
		p := goodProfile()
		p.Variables = []profile.Variable{
			{Name: "Dose", Key: "dose", Type: "weight", Value: 18, Adjustable: boolPtr(false)},
		}

		got := v.Validate(p)
		mustContain(t, got, "emoji prefix")
	})

	t.Run("emoji-prefixed info variable passes", func(t *testing.T) {
		p := goodProfile()
		p.Variables = []profile.Variable{
			{Name: "ℹ️ Dose", Key: "dose", Type: "weight", Value: 18, Adjustable: boolPtr(false)},
		}

		if got := v.Validate(p); len(got) != 0 {
			t.Errorf("Validate() = %v, want no violations", got)
		}
	})

	t.Run("unknown reference", func(t *testing.T) {
		p := goodProfile()
		p.Stages[1].Dynamics.Points[0][1] = profile.RefVal("$ghost")

		got := v.Validate(p)
		mustContain(t, got, "not defined")
	})
}

func TestValidateReportsAllViolations(t *testing.T) {
	v := newTestValidator(t)
	p := goodProfile()
	p.Temperature = 150                                      // out of range
	p.Stages[0].ExitTriggers[0].Value = profile.Num(20)      // over the ceiling
	p.Stages[1].Limits = []profile.Limit{}                   // missing flow limit
	p.Stages[0].ExitTriggers = p.Stages[0].ExitTriggers[:1]  // missing failsafe

	got := v.Validate(p)
	if len(got) < 4 {
		t.Fatalf("Validate() returned %d violations, want at least 4: %v", len(got), got)
	}
	mustContain(t, got, "safe range")
	mustContain(t, got, "hardware limit")
	mustContain(t, got, "without a flow limit")
	mustContain(t, got, "failsafe")
}
