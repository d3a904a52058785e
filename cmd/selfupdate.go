package cmd

import (
	"errors"
	"fmt"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"
)

// githubRepoSlug is the repository releases are fetched from.
const githubRepoSlug = "giantswarm/mcp-k8s-guard"

var errDevVersion = errors.New("cannot self-update a development version")

// newSelfUpdateCmd creates the Cobra command that replaces the running
// binary with the latest GitHub release.
func newSelfUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "self-update",
		Short: "Update mcp-k8s-guard to the latest version",
		Long: `Checks the GitHub releases of mcp-k8s-guard and, when a newer
version exists, replaces the current binary with it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			currentVersion := rootCmd.Version
			if currentVersion == "" || currentVersion == "dev" {
				return errDevVersion
			}

			ctx := cmd.Context()
			latest, found, err := selfupdate.DetectLatest(ctx, selfupdate.ParseSlug(githubRepoSlug))
			if err != nil {
				return fmt.Errorf("error detecting latest version: %w", err)
			}
			if !found {
				return fmt.Errorf("latest version for %s could not be found on GitHub", githubRepoSlug)
			}

			if latest.LessOrEqual(currentVersion) {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Current version (%s) is the latest\n", currentVersion)
				return nil
			}

			exe, err := selfupdate.ExecutablePath()
			if err != nil {
				return fmt.Errorf("could not locate executable path: %w", err)
			}

			if err := selfupdate.UpdateTo(ctx, latest.AssetURL, latest.AssetName, exe); err != nil {
				return fmt.Errorf("error occurred while updating binary: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Successfully updated to version %s\n", latest.Version())
			return nil
		},
	}
}
