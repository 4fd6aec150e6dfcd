package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sheetflow-ai/sheetflow/agent"
	"github.com/sheetflow-ai/sheetflow/mail"
	"github.com/sheetflow-ai/sheetflow/rag/store"
)

func newEmailCmd() *cobra.Command {
	var htmlOut string

	cmd := &cobra.Command{
		Use:   "email <message.eml>",
		Short: "Draft a reply answering the questions in an email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := mail.ParseFile(args[0])
			if err != nil {
				return err
			}

			llm, err := newLLM()
			if err != nil {
				return err
			}
			embedder, err := newEmbedder()
			if err != nil {
				return err
			}

			vs := store.NewMemoryStore(embedder)
			if err := vs.LoadInto(cfg.VectorStorageDir); err != nil {
				return err
			}

			answering := agent.NewVectorAgent(llm, vs, 0)
			reply, err := agent.NewEmailAgent(llm, answering).DraftReply(cmd.Context(), msg)
			if err != nil {
				return err
			}

			fmt.Println(titleStyle.Render(reply.Subject))
			fmt.Println(reply.Markdown)
			if htmlOut != "" {
				if err := os.WriteFile(htmlOut, []byte(reply.HTML), 0o644); err != nil {
					return err
				}
				fmt.Println(faintStyle.Render("HTML written to " + htmlOut))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&htmlOut, "html", "", "also write the rendered HTML reply to this file")
	return cmd
}
