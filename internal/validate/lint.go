package validate

import (
	"fmt"
	"strings"

	"github.com/kalambet/brewd/internal/profile"
)

// Lint returns advisory warnings for a profile that already passed
// Validate. Warnings flag unusual but legal choices; they never block
// saving or running the profile.
func Lint(p profile.Profile) []string {
	var warns []string

	if p.Temperature < 80 {
		warns = append(warns, fmt.Sprintf("temperature %g°C is unusually low; espresso profiles typically sit in the 80–100°C band", p.Temperature))
	}
	if p.Temperature > 96 && p.Temperature <= 100 {
		warns = append(warns, fmt.Sprintf("temperature %g°C is on the hot side; dark roasts may taste bitter above 94°C", p.Temperature))
	}

	switch {
	case p.FinalWeight > 0 && p.FinalWeight < 10:
		warns = append(warns, fmt.Sprintf("final_weight %g g is outside the typical 10–100 g range; verify the target is intentional", p.FinalWeight))
	case p.FinalWeight > 0 && p.FinalWeight < 20:
		warns = append(warns, fmt.Sprintf("final_weight %g g is quite short; ristretto-style shots below 20 g can be intense", p.FinalWeight))
	case p.FinalWeight > 100:
		warns = append(warns, fmt.Sprintf("final_weight %g g is outside the typical 10–100 g range; verify the target is intentional", p.FinalWeight))
	case p.FinalWeight > 60:
		warns = append(warns, fmt.Sprintf("final_weight %g g is a very long shot; consider whether a lungo is intended", p.FinalWeight))
	}

	if len(p.Stages) == 1 {
		warns = append(warns, "profile has a single stage; most profiles separate pre-infusion from extraction for more even saturation")
	}

	hasPre := false
	for _, st := range p.Stages {
		if isPreinfusionName(st.Name) {
			hasPre = true
			break
		}
	}
	if len(p.Stages) > 0 && !hasPre {
		warns = append(warns, "no pre-infusion stage detected; a low-pressure soak before extraction usually improves evenness")
	}

	seenKeys := map[string]int{}
	for i, st := range p.Stages {
		name := stageName(i, st)

		if st.Key != "" {
			if prev, dup := seenKeys[st.Key]; dup {
				warns = append(warns, fmt.Sprintf("stage %q reuses key %q already taken by stage %d; stage keys should be unique", name, st.Key, prev+1))
			} else {
				seenKeys[st.Key] = i
			}
		}

		if len(st.Dynamics.Points) == 1 {
			warns = append(warns, fmt.Sprintf("stage %q has a single dynamics point; extra points give the machine a smoother ramp", name))
		}

		if isPreinfusionName(st.Name) {
			for _, lim := range st.Limits {
				if lim.Type == "pressure" && !lim.Value.IsRef() && lim.Value.Number > 4 {
					warns = append(warns, fmt.Sprintf("pre-infusion stage %q caps pressure at %g bar; 3–4 bar saturates the puck more gently", name, lim.Value.Number))
				}
			}
			hasWeight := false
			for _, tr := range st.ExitTriggers {
				if tr.Type == "weight" {
					hasWeight = true
					break
				}
			}
			if !hasWeight {
				warns = append(warns, fmt.Sprintf("pre-infusion stage %q has no weight exit trigger; an early-drip exit (weight >= 3–5 g) adapts to grind variations", name))
			}
		}

		if i > 0 && isRestingName(st.Name) {
			for _, tr := range st.ExitTriggers {
				if tr.Relative == nil || !*tr.Relative {
					warns = append(warns, fmt.Sprintf("stage %q looks like a bloom or rest stage but uses absolute exit triggers; relative: true keeps its duration independent of earlier stages", name))
					break
				}
			}
		}

		if i > 0 {
			for _, tr := range st.ExitTriggers {
				if tr.Type == "weight" && !tr.Value.IsRef() && (tr.Relative == nil || !*tr.Relative) && tr.Value.Number < 10 {
					warns = append(warns, fmt.Sprintf("stage %q has a low absolute weight trigger (%g g); if earlier stages pass that weight it fires immediately — relative: true tracks per-stage weight", name, tr.Value.Number))
				}
			}
		}

		if st.Type == "pressure" {
			for _, pt := range st.Dynamics.Points {
				if !pt[1].IsRef() && pt[1].Number > 10 && pt[1].Number <= profile.MaxPressureBar {
					warns = append(warns, fmt.Sprintf("stage %q targets %g bar; above 10 bar most baskets channel — 6–9 bar is typical for extraction", name, pt[1].Number))
					break
				}
			}
		}

		for _, tr := range st.ExitTriggers {
			if tr.Type == "time" && !tr.Value.IsRef() && tr.Value.Number > 120 {
				warns = append(warns, fmt.Sprintf("stage %q has a %g s time trigger; stages beyond two minutes are rarely intentional", name, tr.Value.Number))
			}
		}

		if strings.TrimSpace(st.Name) == "" {
			warns = append(warns, fmt.Sprintf("stage %d has no name; named stages make shot history much easier to read", i+1))
		}
	}

	// The final stage should watch total weight so the shot ends near
	// final_weight instead of relying on the machine's hard stop.
	if n := len(p.Stages); n > 0 {
		last := p.Stages[n-1]
		hasWeight := false
		for _, tr := range last.ExitTriggers {
			if tr.Type == "weight" {
				hasWeight = true
				break
			}
		}
		if !hasWeight {
			warns = append(warns, fmt.Sprintf("final stage %q has no weight exit trigger; the shot will only stop at the machine's final_weight hard stop", stageName(n-1, last)))
		}
	}

	return warns
}

// isRestingName reports whether a stage name suggests a soak or hold
// phase, where absolute triggers make the duration depend on everything
// that ran before.
func isRestingName(name string) bool {
	l := strings.ToLower(name)
	for _, term := range []string{"bloom", "soak", "hold", "rest", "pause", "wait"} {
		if strings.Contains(l, term) {
			return true
		}
	}
	return false
}
