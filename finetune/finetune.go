// Package finetune manages the lifecycle of fine-tuned chat models: training
// file preparation, job creation and polling, model resolution, and guarded
// deletion.
//
// Creation and deletion are destructive or billable operations, so both sit
// behind explicit flags. Deletion additionally requires a second safety
// trigger flag; without both flags set, Delete refuses to run.
package finetune

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sheetflow-ai/sheetflow/log"
)

var (
	// ErrCreateDisabled is returned when Create is called without the create flag.
	ErrCreateDisabled = errors.New("fine-tuning model creation is disabled")

	// ErrDeleteDisabled is returned when Delete is called without the delete flag.
	ErrDeleteDisabled = errors.New("fine-tuning model deletion is disabled")

	// ErrSafetyTriggerNotSet is returned when Delete is called with the delete
	// flag but without the safety trigger.
	ErrSafetyTriggerNotSet = errors.New("deletion requested without the safety trigger")

	// ErrJobFailed is returned when a fine-tuning job ends in a failed state.
	ErrJobFailed = errors.New("fine-tuning job failed")
)

// Options configures the fine-tuning agent.
type Options struct {
	// BaseModel is the model fine-tuning jobs start from.
	BaseModel string
	// FineTunedModel is an already trained model to use when set.
	FineTunedModel string
	// TrainingFile is the JSONL file uploaded for training.
	TrainingFile string
	// RewriteTrainingFile regenerates TrainingFile from Examples before the
	// upload in Create.
	RewriteTrainingFile bool
	// Examples are the conversations written when RewriteTrainingFile is set.
	Examples []Example
	// Suffix is appended to the fine-tuned model name.
	Suffix string

	// CreateModel enables Create.
	CreateModel bool
	// DeleteModel enables Delete, together with DeleteSafetyTrigger.
	DeleteModel bool
	// DeleteSafetyTrigger is the second confirmation required by Delete.
	DeleteSafetyTrigger bool

	// PollInterval is how often job status is checked. Defaults to 5s.
	PollInterval time.Duration
	// PollTimeout bounds the wait for job completion. Defaults to 30m.
	PollTimeout time.Duration
}

// Client is the slice of the OpenAI API the agent needs.
type Client interface {
	ListModels(ctx context.Context) (openai.ModelsList, error)
	CreateFile(ctx context.Context, request openai.FileRequest) (openai.File, error)
	CreateFineTuningJob(ctx context.Context, request openai.FineTuningJobRequest) (openai.FineTuningJob, error)
	RetrieveFineTuningJob(ctx context.Context, jobID string) (openai.FineTuningJob, error)
	DeleteFineTuneModel(ctx context.Context, modelID string) (openai.FineTuneModelDeleteResponse, error)
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Agent drives the fine-tuning lifecycle against the OpenAI API.
type Agent struct {
	client Client
	opts   Options
}

// New creates an agent with its own API client.
func New(apiKey string, opts Options) *Agent {
	return NewWithClient(openai.NewClient(apiKey), opts)
}

// NewWithClient creates an agent over an existing client.
func NewWithClient(client Client, opts Options) *Agent {
	if opts.PollInterval == 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.PollTimeout == 0 {
		opts.PollTimeout = 30 * time.Minute
	}
	return &Agent{client: client, opts: opts}
}

// ListModels returns the ids of all models visible to the API key.
func (a *Agent) ListModels(ctx context.Context) ([]string, error) {
	list, err := a.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// ModelExists reports whether a model id is visible to the API key.
func (a *Agent) ModelExists(ctx context.Context, id string) (bool, error) {
	ids, err := a.ListModels(ctx)
	if err != nil {
		return false, err
	}
	for _, existing := range ids {
		if existing == id {
			return true, nil
		}
	}
	return false, nil
}

// Create uploads the training file, starts a fine-tuning job and waits for
// it to finish. It returns the fine-tuned model id. The CreateModel flag
// must be set.
func (a *Agent) Create(ctx context.Context) (string, error) {
	if !a.opts.CreateModel {
		return "", ErrCreateDisabled
	}
	if a.opts.TrainingFile == "" {
		return "", fmt.Errorf("no training file configured")
	}
	if a.opts.RewriteTrainingFile {
		if err := WriteTrainingFile(a.opts.TrainingFile, a.opts.Examples); err != nil {
			return "", err
		}
	}

	file, err := a.client.CreateFile(ctx, openai.FileRequest{
		FilePath: a.opts.TrainingFile,
		Purpose:  "fine-tune",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload training file: %w", err)
	}
	log.Info("uploaded training file %s as %s", a.opts.TrainingFile, file.ID)

	job, err := a.client.CreateFineTuningJob(ctx, openai.FineTuningJobRequest{
		TrainingFile: file.ID,
		Model:        a.opts.BaseModel,
		Suffix:       a.opts.Suffix,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create fine-tuning job: %w", err)
	}
	log.Info("fine-tuning job %s started on base model %s", job.ID, a.opts.BaseModel)

	return a.waitForJob(ctx, job.ID)
}

func (a *Agent) waitForJob(ctx context.Context, jobID string) (string, error) {
	deadline := time.Now().Add(a.opts.PollTimeout)
	for {
		job, err := a.client.RetrieveFineTuningJob(ctx, jobID)
		if err != nil {
			return "", fmt.Errorf("failed to retrieve job %s: %w", jobID, err)
		}

		switch job.Status {
		case "succeeded":
			log.Info("fine-tuning job %s produced model %s", jobID, job.FineTunedModel)
			return job.FineTunedModel, nil
		case "failed", "cancelled":
			return "", fmt.Errorf("%w: job %s ended with status %s", ErrJobFailed, jobID, job.Status)
		}

		if time.Now().After(deadline) {
			return "", fmt.Errorf("timed out waiting for job %s", jobID)
		}
		log.Debug("job %s status %s", jobID, job.Status)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(a.opts.PollInterval):
		}
	}
}

// Delete removes the configured fine-tuned model. Both DeleteModel and
// DeleteSafetyTrigger must be set; the trigger alone is not enough and the
// delete flag alone is refused.
func (a *Agent) Delete(ctx context.Context) error {
	if !a.opts.DeleteModel {
		return ErrDeleteDisabled
	}
	if !a.opts.DeleteSafetyTrigger {
		return ErrSafetyTriggerNotSet
	}
	if a.opts.FineTunedModel == "" {
		return fmt.Errorf("no fine-tuned model configured")
	}

	resp, err := a.client.DeleteFineTuneModel(ctx, a.opts.FineTunedModel)
	if err != nil {
		return fmt.Errorf("failed to delete model %s: %w", a.opts.FineTunedModel, err)
	}
	if !resp.Deleted {
		return fmt.Errorf("model %s was not deleted", a.opts.FineTunedModel)
	}
	log.Info("deleted fine-tuned model %s", a.opts.FineTunedModel)
	return nil
}

// Resolve returns the model to chat with: the fine-tuned model when
// configured and visible, otherwise the base model.
func (a *Agent) Resolve(ctx context.Context) (string, error) {
	if a.opts.FineTunedModel == "" {
		return a.opts.BaseModel, nil
	}
	exists, err := a.ModelExists(ctx, a.opts.FineTunedModel)
	if err != nil {
		return "", err
	}
	if !exists {
		log.Warn("fine-tuned model %s not found, falling back to %s",
			a.opts.FineTunedModel, a.opts.BaseModel)
		return a.opts.BaseModel, nil
	}
	return a.opts.FineTunedModel, nil
}

// Chat sends a prompt to the resolved model and returns the completion.
func (a *Agent) Chat(ctx context.Context, system, prompt string) (string, error) {
	model, err := a.Resolve(ctx)
	if err != nil {
		return "", err
	}

	messages := []openai.ChatCompletionMessage{}
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleSystem, Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser, Content: prompt,
	})

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Example is one training conversation for the JSONL training file.
type Example struct {
	System    string
	User      string
	Assistant string
}

const exampleSystem = "You map spreadsheet columns from heterogeneous payroll files to master output columns."

// DefaultExamples returns the built-in training conversations used when the
// training file is regenerated before upload.
func DefaultExamples() []Example {
	return []Example{
		{
			System:    exampleSystem,
			User:      "Header: Colaborador;Montante;Data Pagamento. Which column holds the beneficiary name?",
			Assistant: "Colaborador",
		},
		{
			System:    exampleSystem,
			User:      "Header: Beneficiario;Quantia. Which column holds the paid amount?",
			Assistant: "Quantia",
		},
		{
			System:    exampleSystem,
			User:      "Header: Nome;Valor;Data. Which column holds the payment date?",
			Assistant: "Data",
		},
	}
}

type trainingMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type trainingLine struct {
	Messages []trainingMessage `json:"messages"`
}

// WriteTrainingFile writes examples as chat format JSONL, one conversation
// per line, overwriting any existing file.
func WriteTrainingFile(path string, examples []Example) error {
	if len(examples) == 0 {
		return fmt.Errorf("no training examples")
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create training file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, ex := range examples {
		line := trainingLine{}
		if ex.System != "" {
			line.Messages = append(line.Messages, trainingMessage{Role: "system", Content: ex.System})
		}
		line.Messages = append(line.Messages,
			trainingMessage{Role: "user", Content: ex.User},
			trainingMessage{Role: "assistant", Content: ex.Assistant},
		)
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("failed to encode training example: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write training file: %w", err)
	}
	log.Info("wrote %d training examples to %s", len(examples), path)
	return nil
}

// ReadTrainingFile parses a chat format JSONL training file back into
// examples.
func ReadTrainingFile(path string) ([]Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open training file: %w", err)
	}
	defer f.Close()

	var examples []Example
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var line trainingLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			return nil, fmt.Errorf("invalid training line: %w", err)
		}
		var ex Example
		for _, m := range line.Messages {
			switch m.Role {
			case "system":
				ex.System = m.Content
			case "user":
				ex.User = m.Content
			case "assistant":
				ex.Assistant = m.Content
			}
		}
		examples = append(examples, ex)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read training file: %w", err)
	}
	return examples, nil
}
