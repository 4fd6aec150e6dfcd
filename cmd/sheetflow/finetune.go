package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sheetflow-ai/sheetflow/finetune"
)

func newFinetuneCmd() *cobra.Command {
	var (
		createModel     bool
		deleteModel     bool
		confirmDelete   bool
		rewriteTraining bool
		trainingFile    string
		suffix          string
	)

	cmd := &cobra.Command{
		Use:   "finetune",
		Short: "Create, use or delete a fine-tuned model",
		Long: `Manages the fine-tuned model lifecycle.

Creation runs only with --create. Deletion runs only with BOTH --delete and
--confirm-delete; either flag alone is refused.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.RequireOpenAI(); err != nil {
				return err
			}

			agent := finetune.New(cfg.OpenAIAPIKey, finetune.Options{
				BaseModel:           cfg.FineTuningBaseModel,
				FineTunedModel:      cfg.FineTunedModel,
				TrainingFile:        trainingFile,
				RewriteTrainingFile: rewriteTraining,
				Examples:            finetune.DefaultExamples(),
				Suffix:              suffix,
				CreateModel:         createModel,
				DeleteModel:         deleteModel,
				DeleteSafetyTrigger: confirmDelete,
			})

			switch {
			case createModel:
				fmt.Println(titleStyle.Render("Starting fine-tuning job"))
				model, err := agent.Create(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Println(successStyle.Render("fine-tuned model: " + model))
				fmt.Println(faintStyle.Render("set SHEETFLOW_FINE_TUNED_MODEL to use it"))
			case deleteModel || confirmDelete:
				if err := agent.Delete(cmd.Context()); err != nil {
					return err
				}
				fmt.Println(warnStyle.Render("deleted model " + cfg.FineTunedModel))
			default:
				model, err := agent.Resolve(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Println("active model: " + model)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&createModel, "create", false, "create a fine-tuned model from the training file")
	cmd.Flags().BoolVar(&deleteModel, "delete", false, "delete the configured fine-tuned model")
	cmd.Flags().BoolVar(&confirmDelete, "confirm-delete", false, "required second confirmation for --delete")
	cmd.Flags().BoolVar(&rewriteTraining, "rewrite-training", false, "regenerate the training file from the built-in examples before upload")
	cmd.Flags().StringVar(&trainingFile, "training-file", "training.jsonl", "chat format JSONL training file")
	cmd.Flags().StringVar(&suffix, "suffix", "sheetflow", "suffix for the fine-tuned model name")
	return cmd
}

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models visible to the configured API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.RequireOpenAI(); err != nil {
				return err
			}

			agent := finetune.New(cfg.OpenAIAPIKey, finetune.Options{})
			ids, err := agent.ListModels(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}
}
