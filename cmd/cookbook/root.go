package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// execute runs the command line and releases the stores afterwards, also
// when the command failed
func (a *app) execute(args []string) error {
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	err := root.Execute()
	if terr := a.teardown(); terr != nil && err == nil {
		err = terr
	}
	return err
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cookbook",
		Short: "Recipe catalog backed by a git repository",
		Long: `cookbook keeps recipes, categories and cuisines as JSON collections in a
remote store (a GitHub repository in production) with unsynced edits kept as
local drafts until they are published.

Configuration Sources (in order of precedence):
1. Command line flags
2. Environment variables (COOKBOOK_*)
3. Configuration file (--config, COOKBOOK_CONFIG, ./cookbook.yaml,
   ~/.cookbook/cookbook.yaml, /etc/cookbook/cookbook.yaml)
4. Defaults

Examples:
  # Recipes tagged "hiver", most servings first
  cookbook list --filter tags=hiver --sort servings:desc

  # Relevance search with highlighted matches
  cookbook search royal

  # Keep an edit local until it is published
  cookbook edit 3f2c --set servings=4 --draft
  cookbook publish 3f2c

  # Serve the JSON API
  COOKBOOK_REMOTE_BACKEND=github COOKBOOK_GITHUB_OWNER=me COOKBOOK_GITHUB_REPO=recipes cookbook serve`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "Config file path")
	flags.String("env-file", ".env", "Environment file loaded before the configuration")
	flags.String("remote", "", "Remote backend (memory|file|github|redis|sqlite|mongo)")
	flags.String("drafts", "", "Drafts backend (memory|file|redis|sqlite|mongo|remote)")
	flags.String("remote-dir", "", "Directory of the file remote backend")
	flags.String("drafts-dir", "", "Directory of the file drafts backend")
	flags.String("cache", "", "Cache policy (remote|all)")
	flags.String("log-level", "", "Log level (debug|info|warn|error)")
	flags.BoolP("verbose", "v", false, "Mirror logs to stderr")
	flags.StringP("format", "f", "table", "Output format (table|json|yaml)")

	bindings := map[string]string{
		"config":     "config",
		"env-file":   "env-file",
		"remote":     "remote.backend",
		"drafts":     "drafts.backend",
		"remote-dir": "remote.dir",
		"drafts-dir": "drafts.dir",
		"cache":      "cache.policy",
		"log-level":  "log.level",
		"verbose":    "log.stderr",
		"format":     "format",
	}
	for flag, key := range bindings {
		_ = a.viper.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		a.listCmd(),
		a.showCmd(),
		a.searchCmd(),
		a.countCmd(),
		a.addCmd(),
		a.editCmd(),
		a.deleteCmd(),
		a.draftsCmd(),
		a.publishCmd(),
		a.importCmd(),
		a.exportCmd(),
		a.serveCmd(),
	)
	return root
}

// collectionFlag adds --collection to cmd
func collectionFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("collection", "c", "recipes", "Collection to operate on")
}

func exactlyOneID(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%s takes exactly one document id", cmd.Name())
	}
	return nil
}
