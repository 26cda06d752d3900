package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Brownie44l1/anidex/internal/model"
	"github.com/Brownie44l1/anidex/internal/pokedex"
)

func labelsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "labels",
		Short: "Print the label set in model output order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			labels, err := model.LoadLabels(a.settings.Model.Labels)
			if err != nil {
				return err
			}
			dex := pokedex.Default()
			for i, label := range labels {
				fmt.Fprintf(cmd.OutOrStdout(), "%2d  %-10s %s\n", i, label, dex.Card(label).Title())
			}
			return nil
		},
	}
}
