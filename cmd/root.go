package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cartograph",
	Short: "Cartograph - cross-reference mapping for codebases and docs",
	Long: `Cartograph infers relationships between extracted code and documentation
artifacts and partitions the resulting map into AI-sized chunks.`,
}

func Execute() error {
	return rootCmd.Execute()
}
