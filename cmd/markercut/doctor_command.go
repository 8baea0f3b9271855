package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"markercut/internal/deps"
	"markercut/internal/preflight"
	"markercut/internal/services"
)

type doctorView struct {
	ConfigPath   string                  `json:"config_path"`
	ConfigExists bool                    `json:"config_exists"`
	Dependencies []deps.Status           `json:"dependencies"`
	Checks       []preflight.Result      `json:"checks"`
	Versions     []preflight.ToolVersion `json:"versions"`
}

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools, directories, and disk space",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runCtx := cmd.Context()
			view := doctorView{
				ConfigPath:   ctx.configPath,
				ConfigExists: ctx.configExists,
				Dependencies: preflight.CheckSystemDeps(runCtx, cfg),
				Checks:       preflight.RunAll(runCtx, cfg),
				Versions:     preflight.ProbeToolVersions(runCtx, cfg),
			}
			if jsonOutput {
				if err := writeJSON(cmd.OutOrStdout(), view); err != nil {
					return err
				}
			} else {
				renderDoctor(cmd, view)
			}
			problems := len(deps.Missing(view.Dependencies)) + len(preflight.Failed(view.Checks))
			if problems > 0 {
				return services.Wrap(services.ErrConfiguration, "doctor", "check", fmt.Sprintf("%d problem(s) found", problems), nil)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	return cmd
}

func renderDoctor(cmd *cobra.Command, view doctorView) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	section := func(title string) {
		for _, line := range renderSectionHeader(title, colorize) {
			fmt.Fprintln(out, line)
		}
	}

	section("Configuration")
	if view.ConfigExists {
		fmt.Fprintln(out, renderStatusLine("Config file", statusOK, view.ConfigPath, colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Config file", statusInfo, "not found, using defaults ("+view.ConfigPath+")", colorize))
	}

	fmt.Fprintln(out)
	section("Dependencies")
	for _, status := range view.Dependencies {
		kind, message := statusOK, status.Path
		if message == "" {
			message = status.Command
		}
		if !status.Available {
			kind, message = statusError, status.Detail
			if status.Optional {
				kind = statusWarn
			}
		}
		fmt.Fprintln(out, renderStatusLine(status.Name, kind, message, colorize))
	}

	fmt.Fprintln(out)
	section("Preflight")
	for _, check := range view.Checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}

	fmt.Fprintln(out)
	section("Versions")
	for _, v := range view.Versions {
		kind := statusInfo
		if v.Version == "unavailable" {
			kind = statusWarn
		}
		fmt.Fprintln(out, renderStatusLine(v.Name, kind, v.Version, colorize))
	}
}
