package profile

import "github.com/google/uuid"

// Default values applied during normalization.
const (
	DefaultTemperature = 90.0
	DefaultFinalWeight = 40.0
)

// Normalize returns a copy of p with every optional field the machine
// requires filled in with an explicit default. It never fails and never
// mutates its argument. The result is stable: normalizing an already
// normalized profile returns an equal profile.
//
// Filled defaults:
//   - id and author_id: new UUIDs when empty
//   - temperature 90°C and final_weight 40g when zero
//   - stages and variables: empty arrays when nil (the machine and its app
//     require the arrays to be present, not null)
//   - per stage: limits as an empty array when nil
//   - per exit trigger: relative as an explicit false when omitted
//   - per dynamics: "linear" interpolation when empty
func Normalize(p Profile) Profile {
	out := p

	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	if out.AuthorID == "" {
		out.AuthorID = uuid.New().String()
	}
	if out.Temperature == 0 {
		out.Temperature = DefaultTemperature
	}
	if out.FinalWeight == 0 {
		out.FinalWeight = DefaultFinalWeight
	}

	// append to a non-nil base: an empty input slice must stay an empty
	// array through repeated normalization, never decay to null.
	out.Variables = append([]Variable{}, p.Variables...)

	out.Stages = make([]Stage, len(p.Stages))
	for i, st := range p.Stages {
		out.Stages[i] = normalizeStage(st)
	}

	return out
}

func normalizeStage(st Stage) Stage {
	out := st

	if st.Dynamics.Interpolation == "" {
		out.Dynamics.Interpolation = "linear"
	}
	out.Dynamics.Points = append([]Point{}, st.Dynamics.Points...)

	out.ExitTriggers = make([]ExitTrigger, len(st.ExitTriggers))
	for i, tr := range st.ExitTriggers {
		if tr.Relative == nil {
			f := false
			tr.Relative = &f
		}
		out.ExitTriggers[i] = tr
	}

	out.Limits = append([]Limit{}, st.Limits...)

	return out
}
