package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/brewd/internal/device"
	"github.com/kalambet/brewd/internal/profile"
	"github.com/kalambet/brewd/internal/validate"
)

// Gateway abstracts the machine's REST API for the MCP layer.
type Gateway interface {
	ListProfiles(ctx context.Context) ([]profile.Summary, error)
	GetProfile(ctx context.Context, id string) (profile.Profile, error)
	SaveProfile(ctx context.Context, p profile.Profile) (profile.Profile, error)
	DeleteProfile(ctx context.Context, id string) error
	LoadProfileByID(ctx context.Context, id string) error
	ExecuteAction(ctx context.Context, action string) (json.RawMessage, error)
	MachineStatus(ctx context.Context) (json.RawMessage, error)
	Settings(ctx context.Context) (json.RawMessage, error)
	UpdateSetting(ctx context.Context, key string, value any) (json.RawMessage, error)
	HistoryDates(ctx context.Context) ([]string, error)
	ShotFiles(ctx context.Context, date string) ([]string, error)
	ShotURL(date, file string) string
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Gateway   Gateway
	Validator *validate.Validator
}

// NewMCPServer creates an MCP server with all brewd tools, resources, and
// prompts registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"brewd",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithInstructions("brewd — design, validate, and run espresso brewing profiles on a networked espresso machine. Read espresso://knowledge before designing a profile from scratch."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("create_profile",
			mcp.WithDescription("Create a new espresso profile on the machine. The profile is normalized (ids, defaults) and validated against the machine's schema and safety rules before saving; on validation failure nothing is saved and every violation is returned."),
			mcp.WithString("name", mcp.Description("Profile name shown on the machine"), mcp.Required()),
			mcp.WithArray("stages", mcp.Description(`Brew stages in order. Each stage is an object: {"name", "key", "type" (power|flow|pressure), "dynamics": {"points": [[x, y], ...], "over" (time|weight|piston_position), "interpolation" (linear|curve)}, "exit_triggers": [{"type", "value", "relative", "comparison"}], "limits": [{"type", "value"}]}. Values may reference variables as "$key".`), mcp.Required()),
			mcp.WithString("author", mcp.Description("Author name (default: brewd)")),
			mcp.WithNumber("temperature", mcp.Description("Brew water temperature in °C (default 90)")),
			mcp.WithNumber("final_weight", mcp.Description("Target shot weight in grams (default 40)")),
			mcp.WithArray("variables", mcp.Description(`Optional adjustable parameters: [{"name", "key", "type", "value", "adjustable"}]. Reference them in stages as "$key".`)),
			mcp.WithString("accent_color", mcp.Description("Optional display accent color, e.g. #FF5733")),
			mcp.WithString("description", mcp.Description("Optional short description shown in the machine UI")),
		),
		mcpCreateProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("list_profiles",
			mcp.WithDescription("List the id and name of every profile stored on the machine."),
		),
		mcpListProfiles(deps),
	)

	s.AddTool(
		mcp.NewTool("get_profile",
			mcp.WithDescription("Fetch one complete profile document from the machine by id."),
			mcp.WithString("id", mcp.Description("Profile id"), mcp.Required()),
		),
		mcpGetProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("update_profile",
			mcp.WithDescription("Update an existing profile on the machine. Scalar fields are changed only when provided; stages and variables, when provided, replace the existing arrays entirely. The result is re-validated before saving."),
			mcp.WithString("id", mcp.Description("Profile id to update"), mcp.Required()),
			mcp.WithString("name", mcp.Description("New profile name")),
			mcp.WithString("author", mcp.Description("New author name")),
			mcp.WithNumber("temperature", mcp.Description("New brew temperature in °C")),
			mcp.WithNumber("final_weight", mcp.Description("New target shot weight in grams")),
			mcp.WithArray("stages", mcp.Description("Replacement stage array (same shape as create_profile)")),
			mcp.WithArray("variables", mcp.Description("Replacement variable array (same shape as create_profile)")),
			mcp.WithString("accent_color", mcp.Description("New display accent color")),
		),
		mcpUpdateProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("duplicate_profile",
			mcp.WithDescription("Copy an existing profile under a new id, optionally renaming it or changing the temperature. Useful for A/B testing a tweak without touching the original."),
			mcp.WithString("id", mcp.Description("Profile id to duplicate"), mcp.Required()),
			mcp.WithString("new_name", mcp.Description("Name for the copy (default: 'Copy of <name>')")),
			mcp.WithNumber("temperature", mcp.Description("Temperature override for the copy in °C")),
		),
		mcpDuplicateProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("delete_profile",
			mcp.WithDescription("Permanently delete a profile from the machine. This cannot be undone; confirm with the user before calling."),
			mcp.WithString("id", mcp.Description("Profile id to delete"), mcp.Required()),
		),
		mcpDeleteProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("validate_profile",
			mcp.WithDescription("Normalize and validate a profile JSON document without contacting the machine. Returns the normalized document, all violations, and advisory warnings."),
			mcp.WithString("profile", mcp.Description("Complete or partial profile document as a JSON string"), mcp.Required()),
		),
		mcpValidateProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("run_profile",
			mcp.WithDescription("Load a stored profile by id and start brewing immediately. Make sure a cup is in place and the portafilter is locked in before calling."),
			mcp.WithString("id", mcp.Description("Profile id to brew"), mcp.Required()),
		),
		mcpRunProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("select_profile",
			mcp.WithDescription("Make a stored profile the machine's active profile without starting a shot."),
			mcp.WithString("id", mcp.Description("Profile id to select"), mcp.Required()),
		),
		mcpSelectProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("get_machine_status",
			mcp.WithDescription("Read the machine's live status: state, sensor readings, firmware."),
		),
		mcpMachineStatus(deps),
	)

	s.AddTool(
		mcp.NewTool("get_settings",
			mcp.WithDescription("Read the machine's settings document."),
		),
		mcpGetSettings(deps),
	)

	s.AddTool(
		mcp.NewTool("update_setting",
			mcp.WithDescription("Change one machine setting by key. The value type depends on the setting (boolean, number, or string)."),
			mcp.WithString("key", mcp.Description("Setting key, e.g. auto_purge_after_shot"), mcp.Required()),
			mcp.WithString("value", mcp.Description("New value as JSON: true, 12, or \"text\""), mcp.Required()),
		),
		mcpUpdateSetting(deps),
	)

	s.AddTool(
		mcp.NewTool("list_shot_history",
			mcp.WithDescription("List recorded shots: without a date, returns the dates that have shots; with a date, returns that day's shot files."),
			mcp.WithString("date", mcp.Description("Optional date in YYYY-MM-DD form")),
		),
		mcpListShotHistory(deps),
	)

	s.AddTool(
		mcp.NewTool("get_shot_url",
			mcp.WithDescription("Build the download URL for one recorded shot file."),
			mcp.WithString("date", mcp.Description("Shot date in YYYY-MM-DD form"), mcp.Required()),
			mcp.WithString("file", mcp.Description("Shot file name as returned by list_shot_history"), mcp.Required()),
		),
		mcpShotURL(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"espresso://knowledge",
			"Espresso Profiling Guide",
			mcp.WithResourceDescription("How profiles work: stage types, triggers, limits, variables, and proven profile blueprints"),
			mcp.WithMIMEType("text/markdown"),
		),
		mcpResourceKnowledge(),
	)

	s.AddResource(
		mcp.NewResource(
			"espresso://schema",
			"Profile Schema",
			mcp.WithResourceDescription("The machine's JSON Schema for profile documents"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSchema(deps),
	)

	s.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"espresso://profile/{id}",
			"Stored Profile",
			mcp.WithTemplateDescription("A complete profile document from the machine, by id"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		mcpResourceProfile(deps),
	)

	registerPrompts(s)

	return s
}

// decodeArg pulls a structured argument (array or object) out of the raw
// arguments map and decodes it into out via a JSON round trip. Returns
// false when the argument is absent.
func decodeArg(req mcp.CallToolRequest, key string, out any) (bool, error) {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return false, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return true, fmt.Errorf("re-encoding %s: %w", key, err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return true, fmt.Errorf("decoding %s: %w", key, err)
	}
	return true, nil
}

func mcpCreateProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("name")
		if err != nil {
			return mcpError("name is required"), nil
		}

		p := profile.Profile{
			Name:        name,
			Author:      req.GetString("author", "brewd"),
			Temperature: req.GetFloat("temperature", 0),
			FinalWeight: req.GetFloat("final_weight", 0),
		}

		if ok, err := decodeArg(req, "stages", &p.Stages); !ok {
			return mcpError("stages is required"), nil
		} else if err != nil {
			return mcpError(fmt.Sprintf("invalid stages: %v", err)), nil
		}
		if _, err := decodeArg(req, "variables", &p.Variables); err != nil {
			return mcpError(fmt.Sprintf("invalid variables: %v", err)), nil
		}
		applyDisplay(&p, req.GetString("accent_color", ""), req.GetString("description", ""))

		return saveValidated(ctx, deps, p)
	}
}

func mcpListProfiles(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		summaries, err := deps.Gateway.ListProfiles(ctx)
		if err != nil {
			return deviceError("listing profiles", err), nil
		}
		if summaries == nil {
			summaries = []profile.Summary{}
		}
		return mcpJSON(summaries), nil
	}
}

func mcpGetProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		p, err := deps.Gateway.GetProfile(ctx, id)
		if err != nil {
			return deviceError(fmt.Sprintf("fetching profile %s", id), err), nil
		}
		return mcpJSON(p), nil
	}
}

func mcpUpdateProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		p, err := deps.Gateway.GetProfile(ctx, id)
		if err != nil {
			return deviceError(fmt.Sprintf("fetching profile %s", id), err), nil
		}

		args := req.GetArguments()
		if _, ok := args["name"]; ok {
			p.Name = req.GetString("name", p.Name)
		}
		if _, ok := args["author"]; ok {
			p.Author = req.GetString("author", p.Author)
		}
		if _, ok := args["temperature"]; ok {
			p.Temperature = req.GetFloat("temperature", p.Temperature)
		}
		if _, ok := args["final_weight"]; ok {
			p.FinalWeight = req.GetFloat("final_weight", p.FinalWeight)
		}
		// Decode into fresh slices: unmarshalling over the fetched profile
		// would merge element fields instead of replacing the arrays.
		var stages []profile.Stage
		if ok, err := decodeArg(req, "stages", &stages); ok {
			if err != nil {
				return mcpError(fmt.Sprintf("invalid stages: %v", err)), nil
			}
			p.Stages = stages
		}
		var variables []profile.Variable
		if ok, err := decodeArg(req, "variables", &variables); ok {
			if err != nil {
				return mcpError(fmt.Sprintf("invalid variables: %v", err)), nil
			}
			p.Variables = variables
		}
		applyDisplay(&p, req.GetString("accent_color", ""), "")

		return saveValidated(ctx, deps, p)
	}
}

func mcpDuplicateProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		p, err := deps.Gateway.GetProfile(ctx, id)
		if err != nil {
			return deviceError(fmt.Sprintf("fetching profile %s", id), err), nil
		}

		p.ID = "" // normalization assigns a fresh id
		if name := req.GetString("new_name", ""); name != "" {
			p.Name = name
		} else {
			p.Name = "Copy of " + p.Name
		}
		if _, ok := req.GetArguments()["temperature"]; ok {
			p.Temperature = req.GetFloat("temperature", p.Temperature)
		}

		return saveValidated(ctx, deps, p)
	}
}

func mcpDeleteProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		if err := deps.Gateway.DeleteProfile(ctx, id); err != nil {
			return deviceError(fmt.Sprintf("deleting profile %s", id), err), nil
		}
		return mcpText(fmt.Sprintf("Deleted profile %s", id)), nil
	}
}

func mcpValidateProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := req.RequireString("profile")
		if err != nil {
			return mcpError("profile is required"), nil
		}

		var p profile.Profile
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return mcpError(fmt.Sprintf("invalid profile JSON: %v", err)), nil
		}

		normalized := profile.Normalize(p)
		violations := deps.Validator.Validate(normalized)
		result := struct {
			Valid      bool                 `json:"valid"`
			Violations []validate.Violation `json:"violations"`
			Warnings   []string             `json:"warnings"`
			Normalized profile.Profile      `json:"normalized"`
		}{
			Valid:      len(violations) == 0,
			Violations: violations,
			Warnings:   validate.Lint(normalized),
			Normalized: normalized,
		}
		if result.Violations == nil {
			result.Violations = []validate.Violation{}
		}
		if result.Warnings == nil {
			result.Warnings = []string{}
		}
		return mcpJSON(result), nil
	}
}

func mcpRunProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		if err := deps.Gateway.LoadProfileByID(ctx, id); err != nil {
			return deviceError(fmt.Sprintf("loading profile %s", id), err), nil
		}
		if _, err := deps.Gateway.ExecuteAction(ctx, "start"); err != nil {
			return deviceError("starting the shot", err), nil
		}
		return mcpText(fmt.Sprintf("Brewing started with profile %s", id)), nil
	}
}

func mcpSelectProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		if err := deps.Gateway.LoadProfileByID(ctx, id); err != nil {
			return deviceError(fmt.Sprintf("selecting profile %s", id), err), nil
		}
		return mcpText(fmt.Sprintf("Profile %s is now active on the machine", id)), nil
	}
}

func mcpMachineStatus(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := deps.Gateway.MachineStatus(ctx)
		if err != nil {
			return deviceError("reading machine status", err), nil
		}
		return mcpText(string(raw)), nil
	}
}

func mcpGetSettings(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := deps.Gateway.Settings(ctx)
		if err != nil {
			return deviceError("reading settings", err), nil
		}
		return mcpText(string(raw)), nil
	}
}

func mcpUpdateSetting(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := req.RequireString("key")
		if err != nil {
			return mcpError("key is required"), nil
		}
		rawValue, err := req.RequireString("value")
		if err != nil {
			return mcpError("value is required"), nil
		}

		// The value arrives as a JSON literal so booleans and numbers keep
		// their types on the wire.
		var value any
		if err := json.Unmarshal([]byte(rawValue), &value); err != nil {
			value = rawValue
		}

		updated, err := deps.Gateway.UpdateSetting(ctx, key, value)
		if err != nil {
			return deviceError(fmt.Sprintf("updating setting %s", key), err), nil
		}
		return mcpText(string(updated)), nil
	}
}

func mcpListShotHistory(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		date := req.GetString("date", "")
		if date == "" {
			dates, err := deps.Gateway.HistoryDates(ctx)
			if err != nil {
				return deviceError("listing shot history", err), nil
			}
			if dates == nil {
				dates = []string{}
			}
			return mcpJSON(dates), nil
		}

		files, err := deps.Gateway.ShotFiles(ctx, date)
		if err != nil {
			return deviceError(fmt.Sprintf("listing shots for %s", date), err), nil
		}
		if files == nil {
			files = []string{}
		}
		return mcpJSON(files), nil
	}
}

func mcpShotURL(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		date, err := req.RequireString("date")
		if err != nil {
			return mcpError("date is required"), nil
		}
		file, err := req.RequireString("file")
		if err != nil {
			return mcpError("file is required"), nil
		}
		return mcpText(deps.Gateway.ShotURL(date, file)), nil
	}
}

// applyDisplay sets display metadata when either field is non-empty,
// preserving any existing display block.
func applyDisplay(p *profile.Profile, accentColor, description string) {
	if accentColor == "" && description == "" {
		return
	}
	if p.Display == nil {
		p.Display = &profile.Display{}
	}
	if accentColor != "" {
		p.Display.AccentColor = accentColor
	}
	if description != "" {
		p.Display.ShortDescription = description
	}
}

// saveValidated runs the normalize → validate → save pipeline shared by
// every profile-writing tool. Validation failure returns the full violation
// list and nothing reaches the machine.
func saveValidated(ctx context.Context, deps MCPDeps, p profile.Profile) (*mcp.CallToolResult, error) {
	normalized := profile.Normalize(p)

	if violations := deps.Validator.Validate(normalized); len(violations) > 0 {
		payload := struct {
			Valid      bool                 `json:"valid"`
			Violations []validate.Violation `json:"violations"`
		}{Valid: false, Violations: violations}
		b, err := json.Marshal(payload)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal violations: %v", err)), nil
		}
		return mcpError(string(b)), nil
	}

	saved, err := deps.Gateway.SaveProfile(ctx, normalized)
	if err != nil {
		return deviceError(fmt.Sprintf("saving profile %q", normalized.Name), err), nil
	}

	result := struct {
		ID       string          `json:"id"`
		Name     string          `json:"name"`
		Warnings []string        `json:"warnings"`
		Profile  profile.Profile `json:"profile"`
	}{
		ID:       saved.ID,
		Name:     saved.Name,
		Warnings: validate.Lint(saved),
		Profile:  saved,
	}
	if result.Warnings == nil {
		result.Warnings = []string{}
	}
	return mcpJSON(result), nil
}

func mcpResourceKnowledge() server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "text/markdown",
				Text:     knowledgeDoc,
			},
		}, nil
	}
}

func mcpResourceSchema(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(deps.Validator.SchemaJSON()),
			},
		}, nil
	}
}

func mcpResourceProfile(deps MCPDeps) server.ResourceTemplateHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		id := strings.TrimPrefix(req.Params.URI, "espresso://profile/")
		if id == "" || id == req.Params.URI {
			return nil, fmt.Errorf("invalid profile resource URI: %s", req.Params.URI)
		}

		p, err := deps.Gateway.GetProfile(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get profile %s: %w", id, err)
		}

		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profile: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

// deviceError maps device failures to tool errors: a missing profile is
// reported distinctly, any other device message passes through verbatim.
func deviceError(what string, err error) *mcp.CallToolResult {
	if errors.Is(err, device.ErrNotFound) {
		return mcpError(fmt.Sprintf("%s: profile not found on the machine", what))
	}
	return mcpError(fmt.Sprintf("%s: %v", what, err))
}

func mcpJSON(v any) *mcp.CallToolResult {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err))
	}
	return mcpText(string(b))
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
