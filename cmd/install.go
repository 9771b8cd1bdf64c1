package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"batchwatch/internal/autostart"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var installForce bool

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Register the watch daemon to start on login",
	RunE: func(cmd *cobra.Command, args []string) error {
		execPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}

		svcArgs := []string{"watch"}
		if cfgFile != "" {
			abs, err := filepath.Abs(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to resolve config path: %w", err)
			}
			svcArgs = append(svcArgs, "--config", abs)
		}

		err = autostart.Register(autostart.New(), execPath, svcArgs, installForce)
		if errors.Is(err, autostart.ErrAlreadyInstalled) {
			fmt.Println(color.YellowString("batchwatch daemon is already registered, use --force to replace it"))
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Println(color.GreenString("batchwatch daemon registered for autostart"))
		return nil
	},
}

func init() {
	installCmd.Flags().BoolVar(&installForce, "force", false, "replace an existing registration")
	rootCmd.AddCommand(installCmd)
}
