package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kalambet/brewd/internal/config"
	"github.com/kalambet/brewd/internal/device"
	"github.com/kalambet/brewd/internal/profile"
	"github.com/kalambet/brewd/internal/validate"
)

func newGateway() (*device.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return device.New(cfg.Device.URL), nil
}

func newValidator(schemaJSON []byte) (*validate.Validator, error) {
	v, err := validate.NewValidator(schemaJSON)
	if err != nil {
		return nil, fmt.Errorf("building validator: %w", err)
	}
	return v, nil
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	fmt.Println(string(b))
	return nil
}

// --- profiles ---

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Manage profiles stored on the machine",
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles on the machine",
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := newGateway()
		if err != nil {
			return err
		}
		if full, _ := cmd.Flags().GetBool("full"); full {
			profiles, err := gw.FetchAllProfiles(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(profiles)
		}
		summaries, err := gw.ListProfiles(cmd.Context())
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			printWarning("no profiles on the machine")
			return nil
		}
		for _, s := range summaries {
			fmt.Printf("%-36s  %s\n", s.ID, s.Name)
		}
		return nil
	},
}

var profilesGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print one profile as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := newGateway()
		if err != nil {
			return err
		}
		p, err := gw.GetProfile(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(p)
	},
}

var profilesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a profile from the machine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			return fmt.Errorf("deletion is permanent; re-run with --confirm")
		}
		gw, err := newGateway()
		if err != nil {
			return err
		}
		if err := gw.DeleteProfile(cmd.Context(), args[0]); err != nil {
			return err
		}
		printSuccess("Deleted profile %s", args[0])
		return nil
	},
}

var profilesRunCmd = &cobra.Command{
	Use:   "run <id>",
	Short: "Load a profile and start brewing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := newGateway()
		if err != nil {
			return err
		}
		if err := gw.LoadProfileByID(cmd.Context(), args[0]); err != nil {
			return err
		}
		if _, err := gw.ExecuteAction(cmd.Context(), "start"); err != nil {
			return err
		}
		printSuccess("Brewing started with profile %s", args[0])
		return nil
	},
}

var profilesSelectCmd = &cobra.Command{
	Use:   "select <id>",
	Short: "Make a profile the machine's active one without brewing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := newGateway()
		if err != nil {
			return err
		}
		if err := gw.LoadProfileByID(cmd.Context(), args[0]); err != nil {
			return err
		}
		printSuccess("Profile %s is now active", args[0])
		return nil
	},
}

var profilesLoadCmd = &cobra.Command{
	Use:   "load <file>",
	Short: "Load a local profile JSON onto the machine without saving it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		normalized, err := checkFile(args[0])
		if err != nil {
			return err
		}
		gw, err := newGateway()
		if err != nil {
			return err
		}
		if err := gw.LoadProfile(cmd.Context(), normalized); err != nil {
			return err
		}
		printSuccess("Profile %q is now active (not saved to the library)", normalized.Name)
		return nil
	},
}

func init() {
	profilesListCmd.Flags().Bool("full", false, "print complete profile documents as JSON")
	profilesDeleteCmd.Flags().Bool("confirm", false, "confirm permanent deletion")
	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesGetCmd)
	profilesCmd.AddCommand(profilesDeleteCmd)
	profilesCmd.AddCommand(profilesRunCmd)
	profilesCmd.AddCommand(profilesSelectCmd)
	profilesCmd.AddCommand(profilesLoadCmd)
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Normalize and validate a profile JSON file offline",
	Long: `Normalize and validate a profile JSON file offline.

The file is checked against the machine's profile schema and the safety
rules without contacting the machine. The normalized document is printed
to stdout on success.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateFile(args[0])
	},
}

func validateFile(path string) error {
	normalized, err := checkFile(path)
	if err != nil {
		return err
	}
	printSuccess("profile is valid")
	return printJSON(normalized)
}

// checkFile reads, normalizes, and validates a profile file, printing every
// violation and warning. Returns the normalized profile on success.
func checkFile(path string) (profile.Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("reading %s: %w", path, err)
	}

	var p profile.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return profile.Profile{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	schemaPath, err := config.SchemaPath()
	if err != nil {
		return profile.Profile{}, err
	}
	schemaJSON, err := os.ReadFile(schemaPath)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("reading profile schema: %w", err)
	}
	v, err := newValidator(schemaJSON)
	if err != nil {
		return profile.Profile{}, err
	}

	normalized := profile.Normalize(p)

	violations := v.Validate(normalized)
	for _, viol := range violations {
		printError("%s", viol)
	}
	for _, warn := range validate.Lint(normalized) {
		printWarning("%s", warn)
	}
	if len(violations) > 0 {
		return profile.Profile{}, fmt.Errorf("%d violation(s)", len(violations))
	}
	return normalized, nil
}

// --- machine ---

var machineCmd = &cobra.Command{
	Use:   "machine",
	Short: "Inspect and adjust the machine",
}

var machineStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the machine's live status",
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := newGateway()
		if err != nil {
			return err
		}
		raw, err := gw.MachineStatus(cmd.Context())
		if err != nil {
			return err
		}
		return printRawJSON(raw)
	},
}

var machineSettingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show the machine's settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := newGateway()
		if err != nil {
			return err
		}
		raw, err := gw.Settings(cmd.Context())
		if err != nil {
			return err
		}
		return printRawJSON(raw)
	},
}

var machineSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one machine setting",
	Long: `Change one machine setting.

The value is parsed as a JSON literal so booleans and numbers keep their
types: brewd machine set auto_purge_after_shot true`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := newGateway()
		if err != nil {
			return err
		}

		var value any
		if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
			value = args[1]
		}

		updated, err := gw.UpdateSetting(cmd.Context(), args[0], value)
		if err != nil {
			return err
		}
		printSuccess("Updated %s", args[0])
		return printRawJSON(updated)
	},
}

var machineHistoryCmd = &cobra.Command{
	Use:   "history [date]",
	Short: "List recorded shots: dates, or files for one date",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := newGateway()
		if err != nil {
			return err
		}

		if len(args) == 0 {
			dates, err := gw.HistoryDates(cmd.Context())
			if err != nil {
				return err
			}
			for _, d := range dates {
				fmt.Println(d)
			}
			return nil
		}

		files, err := gw.ShotFiles(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Printf("%s  %s\n", f, gw.ShotURL(args[0], f))
		}
		return nil
	},
}

func init() {
	machineCmd.AddCommand(machineStatusCmd)
	machineCmd.AddCommand(machineSettingsCmd)
	machineCmd.AddCommand(machineSetCmd)
	machineCmd.AddCommand(machineHistoryCmd)
}

func printRawJSON(raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return nil
	}
	fmt.Println(buf.String())
	return nil
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect brewd configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, ki := range config.ShowAll(cfg) {
			printStatus(ki.Key, "%s  (%s)", ki.Value, ki.EnvVar)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}
