package api

// knowledgeDoc is the espresso profiling guide served at
// espresso://knowledge. Agents should read it before designing a profile
// from scratch.
const knowledgeDoc = `# Espresso Profiling Guide

## How a profile works

A profile is an ordered list of **stages**. Each stage controls one
quantity — pressure (bar), flow (ml/s), or raw pump power (%) — along a
curve, and ends when one of its **exit triggers** fires. The machine heats
water to the profile's temperature, runs the stages in order, and stops
the shot when the cup weight reaches final_weight.

### Stages

- "type": what the stage controls: "pressure", "flow", or "power".
- "dynamics.points": the target curve as [x, y] pairs. y is the controlled
  value; x advances over "time" (seconds), "weight" (grams in cup), or
  "piston_position". Points must be ordered by increasing x.
- "dynamics.interpolation": "linear" ramps between points; "curve" (needs
  at least 2 points) smooths through them. A single point holds a constant
  target.
- "exit_triggers": conditions that end the stage. Types: time, weight,
  pressure, flow, piston_position, power, user_interaction. "relative"
  time/weight counts from the start of the stage; absolute counts from the
  start of the shot. Absolute weight triggers must increase from stage to
  stage or a later stage exits instantly.
- "limits": safety caps enforced while the stage runs. A flow stage needs a
  pressure limit (a fine grind would spike pressure); a pressure stage
  needs a flow limit (a coarse grind would gush).

### Hard rules

- No pressure value anywhere may exceed **15 bar**.
- A stage must not exit-trigger on the quantity it controls: a pressure
  stage holding 9 bar will sit at 9 bar, so a "pressure >= 9" trigger
  either fires instantly or never.
- Every stage needs a failsafe: multiple triggers, or a time trigger, so a
  bad grind cannot stall the shot forever.
- Water temperature must be between 0 and 100 °C; 85–95 °C is typical.

### Variables

Variables expose parameters the user can tweak on the machine without
editing the profile: define {"name", "key", "type", "value", "adjustable"}
and reference them in stages as "$key". Adjustable variables must actually
be referenced; informational (adjustable: false) variables carry an emoji
prefix in their name, e.g. "ℹ️ Dose".

## Blueprints

**Classic Italian** — 88 °C. Pre-infusion: flow 4 ml/s, pressure limit
3 bar, exit on pressure >= 3 or time >= 30. Extraction: pressure from 9
down to 6 bar over 20 s, flow limit 5 ml/s, exit on weight or time >= 60.

**Gentle lever** — 92 °C. Fill: flow 6 ml/s until pressure >= 2. Soak:
pressure 2 bar for 10–20 s. Extraction: pressure peaks at 8 bar then
declines linearly to 4 bar, mimicking a spring lever.

**Turbo** — 94 °C, coarser grind. Pre-infusion: flow 8 ml/s until
pressure >= 4. Extraction: flat 6 bar, flow limit 8 ml/s; shots finish in
around 15 s with higher extraction and lower bitterness.

**Allongé** — 94 °C, 1:4 ratio or longer. Like a turbo but final_weight
around 80 g; grind coarse to keep the shot under 40 s.

## Troubleshooting

- **Sour / underextracted**: grind finer, raise temperature 1–2 °C, extend
  pre-infusion, or slow the extraction ramp.
- **Bitter / overextracted**: grind coarser, lower temperature, shorten the
  shot, or taper pressure toward the end.
- **Channeling (spritzers, patchy flow)**: longer and gentler pre-infusion;
  cap pre-infusion pressure at 3 bar; improve puck prep before blaming the
  profile.
- **Shot stalls (no flow)**: grind coarser or lower the dose; confirm the
  flow stage's pressure limit is not set below the puck's resistance.
- **Shot gushes**: grind finer or raise the dose; confirm the pressure
  stage has a flow limit around 4–5 ml/s.
`
