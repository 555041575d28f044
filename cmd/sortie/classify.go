package main

import (
	"fmt"

	"github.com/Veraticus/sortie/internal/cli"
	"github.com/Veraticus/sortie/internal/taxonomy"
	"github.com/spf13/cobra"
)

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify NAME...",
		Short: "Show the taxonomy destination of file names",
		Long: `Resolve each file name against the taxonomy rules and print the
destination path. Names are matched on their classification code: the text
before the first space.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			classifier, err := loadClassifier(settings)
			if err != nil {
				return err
			}
			return printClassifications(cmd, classifier, args)
		},
	}
}

func printClassifications(cmd *cobra.Command, classifier *taxonomy.Classifier, names []string) error {
	out := cmd.OutOrStdout()
	for _, name := range names {
		path, ok := classifier.Resolve(name)
		if !ok {
			fmt.Fprintf(out, "%s\t%s\n", name, cli.WarningStyle.Render("no match"))
			continue
		}
		fmt.Fprintf(out, "%s\t%s\n", name, path)
	}
	return nil
}
