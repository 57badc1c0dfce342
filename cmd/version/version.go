// Package versioncmder provides the version command shared by both CLIs.
package versioncmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rotaworks/rotachat/pkg/utils"
)

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "rotachat %s (%s) built %s\n",
				utils.Version, utils.Commit, utils.BuildTime)
			return nil
		},
	}
}
