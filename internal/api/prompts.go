package api

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// registerPrompts adds the profile-design prompt templates to the server.
func registerPrompts(s *server.MCPServer) {
	s.AddPrompt(
		mcp.NewPrompt("create_espresso_profile",
			mcp.WithPromptDescription("Design a new espresso profile for a described coffee and taste goal"),
			mcp.WithArgument("coffee",
				mcp.ArgumentDescription("The coffee being brewed: origin, roast level, process"),
				mcp.RequiredArgument(),
			),
			mcp.WithArgument("taste_goal",
				mcp.ArgumentDescription("What the shot should taste like, e.g. 'bright and juicy' or 'classic syrupy'"),
			),
		),
		promptCreateProfile,
	)

	s.AddPrompt(
		mcp.NewPrompt("modify_espresso_profile",
			mcp.WithPromptDescription("Adjust an existing profile toward a taste goal"),
			mcp.WithArgument("profile_id",
				mcp.ArgumentDescription("Id of the profile to adjust"),
				mcp.RequiredArgument(),
			),
			mcp.WithArgument("adjustment",
				mcp.ArgumentDescription("What to change, e.g. 'less bitter' or 'longer pre-infusion'"),
				mcp.RequiredArgument(),
			),
		),
		promptModifyProfile,
	)

	s.AddPrompt(
		mcp.NewPrompt("troubleshoot_profile",
			mcp.WithPromptDescription("Diagnose a bad shot and propose profile changes"),
			mcp.WithArgument("symptom",
				mcp.ArgumentDescription("What went wrong: sour, bitter, channeling, stalled, gushed"),
				mcp.RequiredArgument(),
			),
			mcp.WithArgument("profile_id",
				mcp.ArgumentDescription("Id of the profile that produced the shot, if known"),
			),
		),
		promptTroubleshoot,
	)
}

func promptCreateProfile(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	coffee := req.Params.Arguments["coffee"]
	if coffee == "" {
		return nil, fmt.Errorf("coffee argument is required")
	}
	goal := req.Params.Arguments["taste_goal"]
	if goal == "" {
		goal = "a balanced, classic espresso"
	}

	text := fmt.Sprintf(`Design an espresso profile for this coffee: %s.
Taste goal: %s.

First read espresso://knowledge and pick the closest blueprint. Then build
the profile with create_profile, respecting the hard rules: 15 bar ceiling,
opposite-quantity safety limits on every flow and pressure stage, a
time-based failsafe trigger per stage, and dynamics points ordered by x.
Lighter roasts generally want higher temperature and longer pre-infusion;
darker roasts want the opposite. Explain each stage choice briefly before
creating the profile.`, coffee, goal)

	return &mcp.GetPromptResult{
		Description: "Espresso profile design briefing",
		Messages: []mcp.PromptMessage{
			{Role: mcp.RoleUser, Content: mcp.TextContent{Type: "text", Text: text}},
		},
	}, nil
}

func promptModifyProfile(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	id := req.Params.Arguments["profile_id"]
	if id == "" {
		return nil, fmt.Errorf("profile_id argument is required")
	}
	adjustment := req.Params.Arguments["adjustment"]
	if adjustment == "" {
		return nil, fmt.Errorf("adjustment argument is required")
	}

	text := fmt.Sprintf(`Fetch profile %s with get_profile and adjust it: %s.

Prefer duplicate_profile over update_profile so the original stays intact
for comparison. Change one thing at a time — temperature, ramp shape, or
pre-infusion length — and say what you expect the change to do to the cup.
Keep every safety rule from espresso://knowledge intact.`, id, adjustment)

	return &mcp.GetPromptResult{
		Description: "Profile adjustment briefing",
		Messages: []mcp.PromptMessage{
			{Role: mcp.RoleUser, Content: mcp.TextContent{Type: "text", Text: text}},
		},
	}, nil
}

func promptTroubleshoot(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	symptom := req.Params.Arguments["symptom"]
	if symptom == "" {
		return nil, fmt.Errorf("symptom argument is required")
	}
	id := req.Params.Arguments["profile_id"]

	text := fmt.Sprintf("A shot went wrong: %s.\n\n", symptom)
	if id != "" {
		text += fmt.Sprintf("It was brewed with profile %s; fetch it with get_profile and check list_shot_history for the recording.\n\n", id)
	}
	text += `Use the troubleshooting section of espresso://knowledge to separate
grind/prep problems from profile problems. Recommend grind or dose changes
first if they fit the symptom; only then propose a profile change, as a
duplicate_profile call the user can accept or decline.`

	return &mcp.GetPromptResult{
		Description: "Shot troubleshooting briefing",
		Messages: []mcp.PromptMessage{
			{Role: mcp.RoleUser, Content: mcp.TextContent{Type: "text", Text: text}},
		},
	}, nil
}
