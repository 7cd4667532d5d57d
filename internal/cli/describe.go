package cli

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/phyalf/model"
)

// RunDescribe prints a summary of the dataset in args[0].
func RunDescribe(cmd *cobra.Command, args []string) error {
	m, err := model.Load(args[0])
	if err != nil {
		return err
	}
	return m.Describe(cmd.OutOrStdout())
}
