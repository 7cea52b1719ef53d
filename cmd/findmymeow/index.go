package main

import (
	"fmt"

	"github.com/hupe1980/findmymeow/codec"
	"github.com/spf13/cobra"
)

func newResetIndexCmd(flags *globalFlags) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset-index",
		Short: "Replace the similarity index with an empty one",
		Long: `reset-index publishes an empty index snapshot. Image and post records
are kept; images have to be uploaded again to become searchable.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to reset the index without --yes")
			}

			a, err := flags.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			before := a.Index.Len()
			if err := a.Service.ResetIndex(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "index reset (%d vectors dropped)\n", before)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}

func newIndexStatsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "index-stats",
		Short: "Print statistics of the persisted index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := flags.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			out, err := codec.GoJSON{}.MarshalIndent(a.Service.IndexStats())
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
