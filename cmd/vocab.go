package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/spigell/jobmatch/internal/vocab"
)

var vocabCmd = &cobra.Command{
	Use:   "vocab",
	Short: "Print the effective vocabulary as YAML",
	Long: `Print the effective vocabulary as YAML.
The output is the built-in vocabulary with the configured vocabulary file
applied, and can be used as a starting point for a custom one.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		v, err := vocab.Load(viper.GetString("vocabulary"))
		if err != nil {
			return err
		}

		out, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding vocabulary: %w", err)
		}

		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	rootCmd.AddCommand(vocabCmd)
}
