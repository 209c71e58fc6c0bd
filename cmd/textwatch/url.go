package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/srg/textwatch/internal/companion"
	"github.com/srg/textwatch/internal/protocol"
	"github.com/srg/textwatch/internal/store"
)

// urlCmd represents the url command
var urlCmd = &cobra.Command{
	Use:   "url [settings-json]",
	Short: "Print the configuration page URL",
	Long: `Prints the configuration page URL for the stored settings, or for the settings
given as argument.

Examples:
  textwatch url
  textwatch url '{"invert":true}' --store ./storage.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runURL,
}

func runURL(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var options string
	if len(args) == 1 {
		if _, err := protocol.ParseSettings(args[0]); err != nil {
			return err
		}
		options = args[0]
	}
	cmd.SilenceUsage = true

	if options == "" {
		st, err := store.OpenFile(cfg.StorePath)
		if err != nil {
			return err
		}
		if options, err = store.LoadOptions(st); err != nil {
			return err
		}
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), companion.ConfigurationURL(cfg.ConfigureURL, cfg.Version, options))
	return err
}
