package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sheetflow-ai/sheetflow/langflow"
)

func newFlowCmd() *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "flow <flow-id>",
		Short: "Run a hosted LangFlow flow and print its output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := langflow.NewClient(langflow.Options{
				BaseURL: cfg.LangFlowURL,
				APIKey:  cfg.LangFlowAPIKey,
			})

			result, err := client.Run(cmd.Context(), langflow.RunRequest{
				FlowID: args[0],
				Input:  input,
			})
			if err != nil {
				return err
			}

			if result.Text != "" {
				fmt.Println(result.Text)
			} else {
				fmt.Println(warnStyle.Render("flow returned no chat output"))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "input value handed to the flow")
	return cmd
}
