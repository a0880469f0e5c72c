// Package validate checks espresso profiles against the machine's profile
// schema and a set of domain invariants the schema alone cannot express.
package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kalambet/brewd/internal/profile"
)

// Violation names one problem in a profile: a JSON-pointer style path into
// the document and a human-readable reason with a remediation hint.
type Violation struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

func (v Violation) String() string {
	if v.Path == "" {
		return v.Reason
	}
	return fmt.Sprintf("%s: %s", v.Path, v.Reason)
}

// Validator validates profiles against the embedded schema reference plus
// domain rules. Safe for concurrent use.
type Validator struct {
	schema *jsonschema.Schema
	raw    []byte
}

// NewValidator compiles the given Draft-07 schema document.
func NewValidator(schemaJSON []byte) (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	if err := c.AddResource("profile.schema.json", bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("loading profile schema: %w", err)
	}
	sch, err := c.Compile("profile.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compiling profile schema: %w", err)
	}
	return &Validator{schema: sch, raw: schemaJSON}, nil
}

// SchemaJSON returns the raw schema document the validator was built from.
func (v *Validator) SchemaJSON() []byte { return v.raw }

// Validate checks a (normalized) profile and returns every violation found,
// never just the first. An empty result means the profile is safe to submit
// to the machine. Structural schema violations come first, then domain
// rules in a fixed order.
func (v *Validator) Validate(p profile.Profile) []Violation {
	var out []Violation

	out = append(out, v.structural(p)...)
	out = append(out, checkPressureCeiling(p)...)
	out = append(out, checkTemperatureAndWeight(p)...)
	out = append(out, checkDynamics(p)...)
	out = append(out, checkStageTypes(p)...)
	out = append(out, checkExitTriggers(p)...)
	out = append(out, checkLimits(p)...)
	out = append(out, checkTriggerStageParadox(p)...)
	out = append(out, checkBackupTriggers(p)...)
	out = append(out, checkRequiredLimits(p)...)
	out = append(out, checkAbsoluteWeightOrder(p)...)
	out = append(out, checkVariables(p)...)

	return out
}

func (v *Validator) structural(p profile.Profile) []Violation {
	b, err := json.Marshal(p)
	if err != nil {
		return []Violation{{Path: "", Reason: fmt.Sprintf("profile is not encodable as JSON: %v", err)}}
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return []Violation{{Path: "", Reason: fmt.Sprintf("profile is not decodable as JSON: %v", err)}}
	}

	err = v.schema.Validate(doc)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []Violation{{Path: "", Reason: err.Error()}}
	}

	var out []Violation
	flattenSchemaError(ve, &out)
	return out
}

// flattenSchemaError collects the leaf causes of a schema validation error
// so the caller sees every individual problem, not the summary node.
func flattenSchemaError(ve *jsonschema.ValidationError, out *[]Violation) {
	if len(ve.Causes) == 0 {
		*out = append(*out, Violation{Path: ve.InstanceLocation, Reason: ve.Message})
		return
	}
	for _, c := range ve.Causes {
		flattenSchemaError(c, out)
	}
}

func stageName(i int, st profile.Stage) string {
	if st.Name != "" {
		return st.Name
	}
	return fmt.Sprintf("Stage %d", i+1)
}

func stagePath(i int, rest string) string {
	if rest == "" {
		return fmt.Sprintf("/stages/%d", i)
	}
	return fmt.Sprintf("/stages/%d/%s", i, rest)
}

// checkPressureCeiling enforces the 15 bar hardware ceiling on every
// pressure-typed field: dynamics targets of pressure stages, pressure exit
// triggers, and pressure limits. Negative pressure is rejected as well.
func checkPressureCeiling(p profile.Profile) []Violation {
	var out []Violation

	for i, st := range p.Stages {
		name := stageName(i, st)

		if st.Type == "pressure" {
			for j, pt := range st.Dynamics.Points {
				target := pt[1]
				if target.IsRef() {
					continue
				}
				switch {
				case target.Number > profile.MaxPressureBar:
					out = append(out, Violation{
						Path: stagePath(i, fmt.Sprintf("dynamics/points/%d/1", j)),
						Reason: fmt.Sprintf("stage %q dynamics point %d targets %g bar which exceeds the %g bar hardware limit; reduce the pressure to %g bar or below",
							name, j+1, target.Number, profile.MaxPressureBar, profile.MaxPressureBar),
					})
				case target.Number < 0:
					out = append(out, Violation{
						Path:   stagePath(i, fmt.Sprintf("dynamics/points/%d/1", j)),
						Reason: fmt.Sprintf("stage %q dynamics point %d has negative pressure %g bar; pressure must be non-negative", name, j+1, target.Number),
					})
				}
			}
		}

		for j, tr := range st.ExitTriggers {
			if tr.Type != "pressure" || tr.Value.IsRef() {
				continue
			}
			switch {
			case tr.Value.Number > profile.MaxPressureBar:
				out = append(out, Violation{
					Path: stagePath(i, fmt.Sprintf("exit_triggers/%d/value", j)),
					Reason: fmt.Sprintf("stage %q exit trigger %d is set to %g bar which exceeds the %g bar hardware limit; reduce the pressure to %g bar or below",
						name, j+1, tr.Value.Number, profile.MaxPressureBar, profile.MaxPressureBar),
				})
			case tr.Value.Number < 0:
				out = append(out, Violation{
					Path:   stagePath(i, fmt.Sprintf("exit_triggers/%d/value", j)),
					Reason: fmt.Sprintf("stage %q exit trigger %d has negative pressure %g bar; pressure must be non-negative", name, j+1, tr.Value.Number),
				})
			}
		}

		for j, lim := range st.Limits {
			if lim.Type != "pressure" || lim.Value.IsRef() {
				continue
			}
			switch {
			case lim.Value.Number > profile.MaxPressureBar:
				out = append(out, Violation{
					Path: stagePath(i, fmt.Sprintf("limits/%d/value", j)),
					Reason: fmt.Sprintf("stage %q pressure limit of %g bar exceeds the %g bar hardware limit; reduce it to %g bar or below",
						name, lim.Value.Number, profile.MaxPressureBar, profile.MaxPressureBar),
				})
			case lim.Value.Number < 0:
				out = append(out, Violation{
					Path:   stagePath(i, fmt.Sprintf("limits/%d/value", j)),
					Reason: fmt.Sprintf("stage %q has a negative pressure limit (%g bar); pressure must be non-negative", name, lim.Value.Number),
				})
			}
		}
	}

	return out
}

func checkTemperatureAndWeight(p profile.Profile) []Violation {
	var out []Violation
	if p.Temperature <= 0 || p.Temperature > 100 {
		out = append(out, Violation{
			Path:   "/temperature",
			Reason: fmt.Sprintf("temperature %g°C is outside the machine's safe range (0–100°C)", p.Temperature),
		})
	}
	if p.FinalWeight <= 0 {
		out = append(out, Violation{
			Path:   "/final_weight",
			Reason: fmt.Sprintf("final_weight %g g must be positive", p.FinalWeight),
		})
	}
	return out
}

// checkDynamics enforces non-empty, ordered dynamics points and valid
// over/interpolation settings per stage.
func checkDynamics(p profile.Profile) []Violation {
	var out []Violation

	for i, st := range p.Stages {
		name := stageName(i, st)
		dyn := st.Dynamics

		if len(dyn.Points) == 0 {
			out = append(out, Violation{
				Path:   stagePath(i, "dynamics/points"),
				Reason: fmt.Sprintf("stage %q has no dynamics points; at least one [x, y] point is required", name),
			})
		}

		if dyn.Interpolation != "" && !slices.Contains(profile.Interpolations, dyn.Interpolation) {
			out = append(out, Violation{
				Path: stagePath(i, "dynamics/interpolation"),
				Reason: fmt.Sprintf("stage %q has invalid interpolation %q; only 'linear' and 'curve' are supported — 'none' stalls the machine",
					name, dyn.Interpolation),
			})
		}
		if dyn.Interpolation == "curve" && len(dyn.Points) < 2 {
			out = append(out, Violation{
				Path: stagePath(i, "dynamics/points"),
				Reason: fmt.Sprintf("stage %q uses 'curve' interpolation with only %d point(s); curve interpolation needs at least 2 points — use 'linear' for single-point dynamics",
					name, len(dyn.Points)),
			})
		}

		if dyn.Over != "" && !slices.Contains(profile.OverValues, dyn.Over) {
			out = append(out, Violation{
				Path:   stagePath(i, "dynamics/over"),
				Reason: fmt.Sprintf("stage %q has invalid dynamics.over %q; must be one of: time, weight, piston_position", name, dyn.Over),
			})
		}

		// Points must be sorted by non-decreasing independent variable.
		// Variable references cannot be ordered statically and are skipped.
		prev := 0.0
		havePrev := false
		for j, pt := range dyn.Points {
			x := pt[0]
			if x.IsRef() {
				havePrev = false
				continue
			}
			if havePrev && x.Number < prev {
				out = append(out, Violation{
					Path: stagePath(i, fmt.Sprintf("dynamics/points/%d/0", j)),
					Reason: fmt.Sprintf("stage %q dynamics points are not sorted: point %d starts at %g %s, before the previous point at %g; order points by non-decreasing %s",
						name, j+1, x.Number, dyn.Over, prev, dyn.Over),
				})
			}
			prev = x.Number
			havePrev = true
		}
	}

	return out
}

func checkStageTypes(p profile.Profile) []Violation {
	var out []Violation
	for i, st := range p.Stages {
		if st.Type != "" && !slices.Contains(profile.StageTypes, st.Type) {
			out = append(out, Violation{
				Path:   stagePath(i, "type"),
				Reason: fmt.Sprintf("stage %q has invalid type %q; must be one of: power, flow, pressure", stageName(i, st), st.Type),
			})
		}
	}
	return out
}

func checkExitTriggers(p profile.Profile) []Violation {
	var out []Violation
	for i, st := range p.Stages {
		name := stageName(i, st)
		for j, tr := range st.ExitTriggers {
			if tr.Type != "" && !slices.Contains(profile.TriggerTypes, tr.Type) {
				out = append(out, Violation{
					Path: stagePath(i, fmt.Sprintf("exit_triggers/%d/type", j)),
					Reason: fmt.Sprintf("stage %q exit trigger %d has invalid type %q; must be one of: %s",
						name, j+1, tr.Type, strings.Join(profile.TriggerTypes, ", ")),
				})
			}
			if tr.Comparison != "" && !slices.Contains(profile.Comparisons, tr.Comparison) {
				out = append(out, Violation{
					Path:   stagePath(i, fmt.Sprintf("exit_triggers/%d/comparison", j)),
					Reason: fmt.Sprintf("stage %q exit trigger %d has invalid comparison %q; must be '>=' or '<='", name, j+1, tr.Comparison),
				})
			}
		}
	}
	return out
}

func checkLimits(p profile.Profile) []Violation {
	var out []Violation
	for i, st := range p.Stages {
		name := stageName(i, st)
		for j, lim := range st.Limits {
			if lim.Type != "" && !slices.Contains(profile.LimitTypes, lim.Type) {
				out = append(out, Violation{
					Path:   stagePath(i, fmt.Sprintf("limits/%d/type", j)),
					Reason: fmt.Sprintf("stage %q limit %d has invalid type %q; must be 'pressure' or 'flow'", name, j+1, lim.Type),
				})
			}
			if lim.Type != "" && lim.Type == st.Type {
				other := "pressure"
				if lim.Type == "pressure" {
					other = "flow"
				}
				out = append(out, Violation{
					Path: stagePath(i, fmt.Sprintf("limits/%d", j)),
					Reason: fmt.Sprintf("stage %q has a %q limit but is a %q control stage; you cannot limit the quantity you are already controlling — use a %q limit instead, or remove it",
						name, lim.Type, st.Type, other),
				})
			}
		}
	}
	return out
}

// checkTriggerStageParadox rejects exit triggers on the quantity a stage is
// already controlling: a flow stage cannot reliably exit on flow, nor a
// pressure stage on pressure.
func checkTriggerStageParadox(p profile.Profile) []Violation {
	var out []Violation
	for i, st := range p.Stages {
		if st.Type != "flow" && st.Type != "pressure" {
			continue
		}
		name := stageName(i, st)
		for j, tr := range st.ExitTriggers {
			if tr.Type != st.Type {
				continue
			}
			other := "pressure"
			if st.Type == "pressure" {
				other = "flow"
			}
			out = append(out, Violation{
				Path: stagePath(i, fmt.Sprintf("exit_triggers/%d", j)),
				Reason: fmt.Sprintf("stage %q is a %q control stage but has a %q exit trigger; the trigger may never fire since that quantity is being controlled — use 'time', 'weight', or %q instead",
					name, st.Type, tr.Type, other),
			})
		}
	}
	return out
}

// checkBackupTriggers requires a failsafe per stage: either several exit
// triggers or a time-based one, so a wrong grind cannot stall a shot
// indefinitely.
func checkBackupTriggers(p profile.Profile) []Violation {
	var out []Violation
	for i, st := range p.Stages {
		if len(st.ExitTriggers) == 0 {
			continue // caught by the schema's minItems
		}
		hasTime := false
		for _, tr := range st.ExitTriggers {
			if tr.Type == "time" {
				hasTime = true
				break
			}
		}
		if len(st.ExitTriggers) == 1 && !hasTime {
			out = append(out, Violation{
				Path: stagePath(i, "exit_triggers"),
				Reason: fmt.Sprintf("stage %q has a single %q exit trigger and no time-based failsafe; add a time trigger (e.g. time >= 45) or a second trigger so the stage cannot stall indefinitely",
					stageName(i, st), st.ExitTriggers[0].Type),
			})
		}
	}
	return out
}

// checkRequiredLimits requires the opposite-quantity safety limit per
// control type: flow stages need a pressure cap (fine grind would spike
// pressure), pressure stages need a flow cap (coarse grind would gush).
func checkRequiredLimits(p profile.Profile) []Violation {
	var out []Violation
	for i, st := range p.Stages {
		name := stageName(i, st)
		has := map[string]bool{}
		for _, lim := range st.Limits {
			has[lim.Type] = true
		}

		if st.Type == "flow" && !has["pressure"] {
			rec := "10 bar"
			if isPreinfusionName(name) {
				rec = "3 bar"
			}
			out = append(out, Violation{
				Path: stagePath(i, "limits"),
				Reason: fmt.Sprintf("stage %q is a flow control stage without a pressure limit; a fine grind could spike pressure and stall the machine — add a pressure limit (recommended: %s)",
					name, rec),
			})
		}
		if st.Type == "pressure" && !has["flow"] {
			out = append(out, Violation{
				Path: stagePath(i, "limits"),
				Reason: fmt.Sprintf("stage %q is a pressure control stage without a flow limit; a coarse grind could cause a gusher shot — add a flow limit (recommended: 5 ml/s)",
					name),
			})
		}
	}
	return out
}

// checkAbsoluteWeightOrder requires absolute weight triggers to strictly
// increase across stages; otherwise a later trigger fires the moment its
// stage starts.
func checkAbsoluteWeightOrder(p profile.Profile) []Violation {
	var out []Violation
	maxWeight := 0.0
	maxStage := ""

	for i, st := range p.Stages {
		name := stageName(i, st)
		for j, tr := range st.ExitTriggers {
			if tr.Type != "weight" || tr.Value.IsRef() {
				continue
			}
			if tr.Relative != nil && *tr.Relative {
				continue
			}
			w := tr.Value.Number
			if maxStage != "" && w <= maxWeight {
				out = append(out, Violation{
					Path: stagePath(i, fmt.Sprintf("exit_triggers/%d/value", j)),
					Reason: fmt.Sprintf("stage %q has an absolute weight trigger of %g g, not above the %g g trigger of stage %q; it would fire immediately — use relative: true or raise the threshold",
						name, w, maxWeight, maxStage),
				})
			}
			if w > maxWeight {
				maxWeight = w
				maxStage = name
			}
		}
	}
	return out
}

// checkVariables enforces the machine app's variable conventions: info
// variables carry an emoji-prefixed name, adjustable ones do not and must
// be referenced somewhere, and every $reference must resolve.
func checkVariables(p profile.Profile) []Violation {
	var out []Violation
	if len(p.Variables) == 0 {
		return checkUnknownRefs(p, nil)
	}

	defined := make(map[string]bool, len(p.Variables))
	used := usedVariableKeys(p)

	for i, v := range p.Variables {
		if v.Key == "" {
			continue
		}
		defined[v.Key] = true

		adjustable := v.Adjustable == nil || *v.Adjustable
		emoji := hasEmojiPrefix(v.Name)

		if !adjustable && !emoji {
			out = append(out, Violation{
				Path: fmt.Sprintf("/variables/%d/name", i),
				Reason: fmt.Sprintf("info variable %q (%s) must have an emoji prefix in its name so the app can distinguish it from adjustable variables",
					v.Key, v.Name),
			})
		}
		if adjustable && emoji {
			out = append(out, Violation{
				Path: fmt.Sprintf("/variables/%d/name", i),
				Reason: fmt.Sprintf("adjustable variable %q (%s) must not have an emoji prefix; emoji prefixes are reserved for info variables",
					v.Key, v.Name),
			})
		}
		if adjustable && !used[v.Key] {
			out = append(out, Violation{
				Path: fmt.Sprintf("/variables/%d", i),
				Reason: fmt.Sprintf("adjustable variable %q (%s) is never used in any stage dynamics; reference it as $%s, mark it adjustable: false, or remove it",
					v.Key, v.Name, v.Key),
			})
		}
	}

	return append(out, checkUnknownRefs(p, defined)...)
}

func checkUnknownRefs(p profile.Profile, defined map[string]bool) []Violation {
	var out []Violation
	for i, st := range p.Stages {
		name := stageName(i, st)
		for j, pt := range st.Dynamics.Points {
			for k, v := range pt {
				if v.IsRef() && !defined[v.RefKey()] {
					out = append(out, Violation{
						Path:   stagePath(i, fmt.Sprintf("dynamics/points/%d/%d", j, k)),
						Reason: fmt.Sprintf("stage %q references variable %s which is not defined in the profile's variables", name, v.Ref),
					})
				}
			}
		}
		for j, tr := range st.ExitTriggers {
			if tr.Value.IsRef() && !defined[tr.Value.RefKey()] {
				out = append(out, Violation{
					Path:   stagePath(i, fmt.Sprintf("exit_triggers/%d/value", j)),
					Reason: fmt.Sprintf("stage %q references variable %s which is not defined in the profile's variables", name, tr.Value.Ref),
				})
			}
		}
		for j, lim := range st.Limits {
			if lim.Value.IsRef() && !defined[lim.Value.RefKey()] {
				out = append(out, Violation{
					Path:   stagePath(i, fmt.Sprintf("limits/%d/value", j)),
					Reason: fmt.Sprintf("stage %q references variable %s which is not defined in the profile's variables", name, lim.Value.Ref),
				})
			}
		}
	}
	return out
}

func usedVariableKeys(p profile.Profile) map[string]bool {
	used := map[string]bool{}
	for _, st := range p.Stages {
		for _, pt := range st.Dynamics.Points {
			for _, v := range pt {
				if v.IsRef() {
					used[v.RefKey()] = true
				}
			}
		}
		for _, tr := range st.ExitTriggers {
			if tr.Value.IsRef() {
				used[tr.Value.RefKey()] = true
			}
		}
		for _, lim := range st.Limits {
			if lim.Value.IsRef() {
				used[lim.Value.RefKey()] = true
			}
		}
	}
	return used
}

// hasEmojiPrefix reports whether the first rune of s sits in one of the
// emoji/symbol blocks the machine app recognizes as an info marker.
func hasEmojiPrefix(s string) bool {
	for _, r := range s {
		switch {
		case r >= 0x1F300 && r <= 0x1F9FF, // pictographs, emoticons
			r >= 0x2600 && r <= 0x27BF, // misc symbols, dingbats
			r >= 0x2100 && r <= 0x214F, // letterlike symbols (ℹ)
			r >= 0x1F000 && r <= 0x1F02F,
			r >= 0x1FA00 && r <= 0x1FAFF,
			r >= 0xFE00 && r <= 0xFE0F: // variation selectors
			return true
		}
		return false
	}
	return false
}

func isPreinfusionName(name string) bool {
	l := strings.ToLower(name)
	for _, term := range []string{"pre-infusion", "preinfusion", "pre infusion", "fill", "bloom", "soak"} {
		if strings.Contains(l, term) {
			return true
		}
	}
	return false
}
