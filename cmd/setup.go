package cmd

import (
	"cda/internal/config"
	"cda/internal/ui"
	"cda/pkg/errors"
	"github.com/spf13/cobra"
)

func newSetupCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactive configuration setup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := root.loadConfig(false)
			if err != nil {
				return err
			}

			cfg, err := ui.NewConfigWizard().Run(*base)
			if err != nil {
				return err
			}

			if err := config.StorePassword(&cfg.Snowflake); err != nil {
				return errors.Wrap(err, errors.GetErrorCode(err), "Password was not saved").
					WithSuggestions("Set CDA_SNOWFLAKE_PASSWORD in the environment or a .env file instead")
			}

			path := root.configFile
			if path == "" {
				path = config.GetConfigFile()
			}
			if err := config.SaveFile(cfg, path); err != nil {
				return err
			}

			ui.ShowSuccess("Configuration saved to " + path)
			ui.ShowInfo("Check the landing data with: cda validate")
			return nil
		},
	}
}
