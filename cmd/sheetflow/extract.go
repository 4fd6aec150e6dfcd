package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/sheetflow-ai/sheetflow/analytics"
	"github.com/sheetflow-ai/sheetflow/extract"
	"github.com/sheetflow-ai/sheetflow/flow"
	redisstore "github.com/sheetflow-ai/sheetflow/store/redis"
	"github.com/sheetflow-ai/sheetflow/store/sqlite"
	"github.com/sheetflow-ai/sheetflow/trace"
)

func newExtractCmd() *cobra.Command {
	var (
		inputDir      string
		outputFile    string
		templatesFile string
		noLLM         bool
		noCache       bool
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract spreadsheets in the input directory into the master file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputDir == "" {
				inputDir = cfg.InputDir
			}
			if outputFile == "" {
				outputFile = cfg.OutputDir + "/master.csv"
			}

			usage := analytics.NewCollector()
			opts := extract.Options{
				InputDir:      inputDir,
				OutputFile:    outputFile,
				TemplatesFile: templatesFile,
				Usage:         usage,
				Model:         cfg.ChatModel,
			}

			if !noLLM {
				llm, err := newLLM()
				if err != nil {
					return err
				}
				opts.LLM = llm
			}
			if cfg.RedisAddr != "" && !noCache {
				cache := redisstore.NewResultCache(redisstore.Options{Addr: cfg.RedisAddr})
				defer cache.Close()
				opts.Cache = cache
			}
			runs, err := sqlite.NewRunStore(sqlite.Options{Path: cfg.SQLitePath})
			if err != nil {
				return err
			}
			defer runs.Close()
			opts.Runs = runs

			var observer flow.StepObserver
			if cfg.TracingEnabled {
				observer = trace.NewFlowObserver(newTracer())
				opts.Observer = observer
			}

			pipeline, err := extract.NewPipeline(opts)
			if err != nil {
				return err
			}

			fmt.Println(titleStyle.Render("Extracting " + inputDir))
			report, err := pipeline.Run(cmd.Context())
			if err != nil {
				return err
			}
			printReport(report)
			for _, s := range usage.Summarize() {
				fmt.Println(faintStyle.Render(fmt.Sprintf(
					"  %s: %d files in %s", s.Pipeline, s.Calls, s.TotalDuration.Round(time.Millisecond))))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputDir, "input", "i", "", "input directory (default from config)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "master output file (default from config)")
	cmd.Flags().StringVarP(&templatesFile, "templates", "t", "templates.csv", "parametrization file")
	cmd.Flags().BoolVar(&noLLM, "no-llm", false, "match templates by similarity only")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "process files even when cached")
	return cmd
}

func printReport(report *extract.Report) {
	for _, r := range report.Able {
		fmt.Println(successStyle.Render(
			fmt.Sprintf("  %s: %d rows (template %s)", r.File, r.Rows, r.Template)))
	}
	files := make([]string, 0, len(report.Unable))
	for file := range report.Unable {
		files = append(files, file)
	}
	sort.Strings(files)
	for _, file := range files {
		fmt.Println(errorStyle.Render(
			fmt.Sprintf("  %s: %s", file, report.Unable[file])))
	}
	for _, file := range report.Skipped {
		fmt.Println(faintStyle.Render("  " + file + ": cached, skipped"))
	}
	fmt.Printf("run %s: %d extracted, %d failed, %d skipped\n",
		report.RunID, len(report.Able), len(report.Unable), len(report.Skipped))
}
