package cmd

import (
	"errors"
	"fmt"

	"batchwatch/internal/autostart"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the watch daemon from autostart",
	RunE: func(cmd *cobra.Command, args []string) error {
		err := autostart.Unregister(autostart.New())
		if errors.Is(err, autostart.ErrNotInstalled) {
			fmt.Println(color.YellowString("batchwatch daemon is not registered"))
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Println(color.GreenString("batchwatch daemon autostart removed"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}
