package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pruneKeep int

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest snapshots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		keep := a.cfg.Retention.KeepLast
		if cmd.Flags().Changed("keep") {
			keep = pruneKeep
		}
		result, err := a.manager.Prune(cmd.Context(), keep)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "kept %d, deleted %d", result.Kept, len(result.Deleted))
		if result.FileErrors > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), " (%d archive files could not be removed)", result.FileErrors)
		}
		fmt.Fprintln(cmd.OutOrStdout())
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one snapshot and its archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.manager.DeleteBackup(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	},
}

var pathCmd = &cobra.Command{
	Use:   "path <id>",
	Short: "Print the archive path of a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		path, err := a.manager.GetFilePath(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	pruneCmd.Flags().IntVar(&pruneKeep, "keep", 0, "number of snapshots to keep (default retention.keep_last)")
}
