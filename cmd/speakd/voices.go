package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iabetor/speakd/internal/app"
	"github.com/iabetor/speakd/internal/logger"
)

func newVoicesCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:     "voices",
		Short:   "List the voices of the configured engine",
		Example: `speakd voices`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()

			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			voices, err := a.Service().Voices(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tGENDER")
			for _, v := range voices {
				gender := string(v.Gender)
				if gender == "" {
					gender = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", v.ID, v.Name, gender)
			}
			return tw.Flush()
		},
	}
}
