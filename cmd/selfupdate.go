package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"
)

// githubRepoSlug is the release repository, set at build time with
// -ldflags "-X integctl/cmd.githubRepoSlug=owner/repo".
var githubRepoSlug = ""

// repositoryEnv overrides the build-time release repository.
const repositoryEnv = "INTEGCTL_RELEASE_REPOSITORY"

var selfUpdateRepository string

func newSelfUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "self-update",
		Short: "Update integctl to the latest version",
		Long: `Checks for the latest release of integctl on GitHub and
updates the current binary if a newer version is found.

The release repository is taken from --repository, then from
` + repositoryEnv + `, then from the value the binary was built with.`,
		Args: cobra.NoArgs,
		RunE: runSelfUpdate,
	}
	cmd.Flags().StringVar(&selfUpdateRepository, "repository", "", "GitHub release repository as owner/name")
	return cmd
}

// releaseSlug picks the release repository from the flag, the environment
// or the build.
func releaseSlug(flag string) (string, error) {
	slug := flag
	if slug == "" {
		slug = os.Getenv(repositoryEnv)
	}
	if slug == "" {
		slug = githubRepoSlug
	}
	if slug == "" {
		return "", fmt.Errorf("no release repository configured, use --repository or %s", repositoryEnv)
	}
	owner, name, ok := strings.Cut(slug, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("invalid release repository %q, expected owner/name", slug)
	}
	return slug, nil
}

func runSelfUpdate(cmd *cobra.Command, args []string) error {
	current := rootCmd.Version
	if current == "" || current == "dev" {
		return errors.New("cannot self-update a development version")
	}
	slug, err := releaseSlug(selfUpdateRepository)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if cmd != nil && cmd.Context() != nil {
		ctx = cmd.Context()
	}

	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return fmt.Errorf("failed to create GitHub source: %w", err)
	}
	updater, err := selfupdate.NewUpdater(selfupdate.Config{
		Source:    source,
		Validator: &selfupdate.ChecksumValidator{UniqueFilename: "checksums.txt"},
	})
	if err != nil {
		return fmt.Errorf("failed to create updater: %w", err)
	}

	latest, found, err := updater.DetectLatest(ctx, selfupdate.ParseSlug(slug))
	if err != nil {
		return fmt.Errorf("error occurred while detecting version: %w", err)
	}
	if !found {
		return fmt.Errorf("latest version for %s could not be found", slug)
	}
	if latest.LessOrEqual(current) {
		fmt.Printf("Current version (%s) is the latest\n", current)
		return nil
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("could not locate executable path: %w", err)
	}
	if err := updater.UpdateTo(ctx, latest, exe); err != nil {
		return fmt.Errorf("error occurred while updating binary: %w", err)
	}
	fmt.Printf("Successfully updated to version %s\n", latest.Version())
	return nil
}
