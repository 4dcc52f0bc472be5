package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var restoreID string

var restoreCmd = &cobra.Command{
	Use:   "restore [archive]",
	Short: "Overwrite the live database and documents from a snapshot",
	Long: `restore decrypts a snapshot and writes its database and document
directories over the live ones. Give either an archive path or --id.
Stop the application first: the live database must not be open for writing.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if (len(args) == 1) == (restoreID != "") {
			return errors.New("give exactly one of an archive path or --id")
		}
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		var restored bool
		source := restoreID
		if restoreID != "" {
			restored, err = a.manager.RestoreByID(cmd.Context(), restoreID)
		} else {
			source = args[0]
			restored, err = a.manager.Restore(cmd.Context(), source)
		}
		if err != nil {
			return err
		}
		if !restored {
			fmt.Fprintf(cmd.OutOrStdout(), "nothing to restore in %s\n", source)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "restored from %s\n", source)
		return nil
	},
}

func init() {
	restoreCmd.Flags().StringVar(&restoreID, "id", "", "catalog id of the snapshot to restore")
}
