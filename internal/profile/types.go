package profile

// Profile is a complete brewing program for one espresso shot: temperature,
// target yield, and an ordered sequence of stages. The field names and JSON
// tags mirror the machine's profile schema.
type Profile struct {
	Name            string           `json:"name"`
	ID              string           `json:"id"`
	Author          string           `json:"author"`
	AuthorID        string           `json:"author_id"`
	Temperature     float64          `json:"temperature"`
	FinalWeight     float64          `json:"final_weight"`
	Display         *Display         `json:"display,omitempty"`
	PreviousAuthors []PreviousAuthor `json:"previous_authors,omitempty"`
	Variables       []Variable       `json:"variables"`
	Stages          []Stage          `json:"stages"`
	LastChanged     float64          `json:"last_changed,omitempty"`
}

// Summary is the partial profile representation the machine returns from
// list endpoints.
type Summary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Stage is one phase of a brew (e.g. preinfusion, infusion) with its own
// control mode, target curve, and exit conditions.
type Stage struct {
	Name         string        `json:"name"`
	Key          string        `json:"key"`
	Type         string        `json:"type"` // StageTypes
	Dynamics     Dynamics      `json:"dynamics"`
	ExitTriggers []ExitTrigger `json:"exit_triggers"`
	Limits       []Limit       `json:"limits"`
}

// Dynamics describes the control curve of a stage: an ordered list of
// [x, y] points interpolated over an independent variable.
type Dynamics struct {
	Points        []Point `json:"points"`
	Over          string  `json:"over"`          // OverValues
	Interpolation string  `json:"interpolation"` // Interpolations
}

// Point is one [x, y] coordinate pair of a dynamics curve. Either
// coordinate may be a variable reference.
type Point [2]Value

// ExitTrigger is a condition that ends a stage. When several triggers are
// present the stage exits as soon as the first one fires.
type ExitTrigger struct {
	Type       string `json:"type"` // TriggerTypes
	Value      Value  `json:"value"`
	Relative   *bool  `json:"relative"`
	Comparison string `json:"comparison,omitempty"` // ">=" or "<="
}

// Limit is a secondary cap applied while a stage runs, e.g. a pressure
// ceiling on a flow-controlled stage.
type Limit struct {
	Type  string `json:"type"` // LimitTypes
	Value Value  `json:"value"`
}

// Variable is a named, typed parameter that dynamics points and values can
// reference as "$key". Non-adjustable variables are informational only.
type Variable struct {
	Name       string  `json:"name"`
	Key        string  `json:"key"`
	Type       string  `json:"type"`
	Value      float64 `json:"value"`
	Adjustable *bool   `json:"adjustable,omitempty"`
}

// Display holds optional presentation metadata for the machine's UI.
type Display struct {
	Image            string `json:"image,omitempty"`
	AccentColor      string `json:"accentColor,omitempty"`
	ShortDescription string `json:"shortDescription,omitempty"`
	Description      string `json:"description,omitempty"`
}

// PreviousAuthor records an earlier author of a shared profile.
type PreviousAuthor struct {
	Name      string `json:"name"`
	AuthorID  string `json:"author_id"`
	ProfileID string `json:"profile_id,omitempty"`
}

// Enumerations accepted by the machine.
var (
	StageTypes     = []string{"power", "flow", "pressure"}
	TriggerTypes   = []string{"weight", "pressure", "flow", "time", "piston_position", "power", "user_interaction"}
	LimitTypes     = []string{"pressure", "flow"}
	OverValues     = []string{"time", "weight", "piston_position"}
	Interpolations = []string{"linear", "curve"}
	Comparisons    = []string{">=", "<="}
)

// MaxPressureBar is the hardware safety ceiling: no pressure field anywhere
// in a profile may exceed it.
const MaxPressureBar = 15.0
