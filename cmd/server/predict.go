package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Brownie44l1/anidex/internal/model"
	"github.com/Brownie44l1/anidex/internal/pokedex"
)

func predictCommand(a *app) *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "predict <image>...",
		Short: "Classify image files and print the ranked probabilities",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			classifier, err := model.Load(a.settings.Model)
			if err != nil {
				return err
			}
			defer func() {
				_ = classifier.Close()
				_ = model.ShutdownRuntime()
			}()

			dex := pokedex.Default()
			out := cmd.OutOrStdout()
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", path, err)
				}
				result, err := classifier.Predict(cmd.Context(), data)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}

				card := dex.Card(result.PredictedLabel)
				fmt.Fprintf(out, "%s: %s (%.1f%%)\n", path, card.Title(), result.Confidence*100)
				if result.Confidence < a.settings.Dashboard.ConfidenceThreshold {
					fmt.Fprintf(out, "  low confidence, below %.0f%%\n", a.settings.Dashboard.ConfidenceThreshold*100)
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				for _, p := range result.Top(top) {
					fmt.Fprintf(w, "  %s\t%.2f%%\n", dex.DisplayName(p.Label), p.Probability*100)
				}
				if err := w.Flush(); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&top, "top", 5, "number of ranked labels to print")
	return cmd
}
