package finetune

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	models        []string
	jobStatuses   []string
	statusCalls   int
	uploadedFile  string
	createdJob    openai.FineTuningJobRequest
	deletedModel  string
	deleteOK      bool
	chatRequests  []openai.ChatCompletionRequest
	chatResponse  string
	listModelsErr error
}

func (c *fakeClient) ListModels(ctx context.Context) (openai.ModelsList, error) {
	if c.listModelsErr != nil {
		return openai.ModelsList{}, c.listModelsErr
	}
	list := openai.ModelsList{}
	for _, id := range c.models {
		list.Models = append(list.Models, openai.Model{ID: id})
	}
	return list, nil
}

func (c *fakeClient) CreateFile(ctx context.Context, req openai.FileRequest) (openai.File, error) {
	c.uploadedFile = req.FilePath
	return openai.File{ID: "file-123"}, nil
}

func (c *fakeClient) CreateFineTuningJob(ctx context.Context, req openai.FineTuningJobRequest) (openai.FineTuningJob, error) {
	c.createdJob = req
	return openai.FineTuningJob{ID: "ftjob-1", Status: "queued"}, nil
}

func (c *fakeClient) RetrieveFineTuningJob(ctx context.Context, jobID string) (openai.FineTuningJob, error) {
	status := c.jobStatuses[len(c.jobStatuses)-1]
	if c.statusCalls < len(c.jobStatuses) {
		status = c.jobStatuses[c.statusCalls]
	}
	c.statusCalls++
	job := openai.FineTuningJob{ID: jobID, Status: status}
	if status == "succeeded" {
		job.FineTunedModel = "ft:gpt-4o-mini:acme::abc123"
	}
	return job, nil
}

func (c *fakeClient) DeleteFineTuneModel(ctx context.Context, modelID string) (openai.FineTuneModelDeleteResponse, error) {
	c.deletedModel = modelID
	return openai.FineTuneModelDeleteResponse{ID: modelID, Deleted: c.deleteOK}, nil
}

func (c *fakeClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.chatRequests = append(c.chatRequests, req)
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: c.chatResponse}},
		},
	}, nil
}

func fastOptions(opts Options) Options {
	opts.PollInterval = time.Millisecond
	opts.PollTimeout = time.Second
	return opts
}

func TestCreate_RequiresFlag(t *testing.T) {
	a := NewWithClient(&fakeClient{}, fastOptions(Options{TrainingFile: "train.jsonl"}))
	_, err := a.Create(context.Background())
	assert.ErrorIs(t, err, ErrCreateDisabled)
}

func TestCreate_Lifecycle(t *testing.T) {
	client := &fakeClient{jobStatuses: []string{"queued", "running", "succeeded"}}
	a := NewWithClient(client, fastOptions(Options{
		BaseModel:    "gpt-4o-mini-2024-07-18",
		TrainingFile: "train.jsonl",
		Suffix:       "sheetflow",
		CreateModel:  true,
	}))

	model, err := a.Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ft:gpt-4o-mini:acme::abc123", model)
	assert.Equal(t, "train.jsonl", client.uploadedFile)
	assert.Equal(t, "file-123", client.createdJob.TrainingFile)
	assert.Equal(t, "gpt-4o-mini-2024-07-18", client.createdJob.Model)
	assert.Equal(t, "sheetflow", client.createdJob.Suffix)
	assert.Equal(t, 3, client.statusCalls)
}

func TestCreate_RewritesTrainingFile(t *testing.T) {
	trainingFile := filepath.Join(t.TempDir(), "train.jsonl")
	client := &fakeClient{jobStatuses: []string{"succeeded"}}
	a := NewWithClient(client, fastOptions(Options{
		BaseModel:           "gpt-4o-mini-2024-07-18",
		TrainingFile:        trainingFile,
		RewriteTrainingFile: true,
		Examples:            DefaultExamples(),
		CreateModel:         true,
	}))

	_, err := a.Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, trainingFile, client.uploadedFile)

	examples, err := ReadTrainingFile(trainingFile)
	require.NoError(t, err)
	assert.Equal(t, DefaultExamples(), examples)
}

func TestCreate_JobFailed(t *testing.T) {
	client := &fakeClient{jobStatuses: []string{"running", "failed"}}
	a := NewWithClient(client, fastOptions(Options{
		BaseModel: "gpt-4o-mini-2024-07-18", TrainingFile: "train.jsonl", CreateModel: true,
	}))

	_, err := a.Create(context.Background())
	assert.ErrorIs(t, err, ErrJobFailed)
}

func TestDelete_Guards(t *testing.T) {
	client := &fakeClient{deleteOK: true}

	// Neither flag set.
	a := NewWithClient(client, Options{FineTunedModel: "ft:x"})
	assert.ErrorIs(t, a.Delete(context.Background()), ErrDeleteDisabled)

	// Delete flag without the trigger.
	a = NewWithClient(client, Options{FineTunedModel: "ft:x", DeleteModel: true})
	assert.ErrorIs(t, a.Delete(context.Background()), ErrSafetyTriggerNotSet)

	// Trigger without the delete flag still refuses.
	a = NewWithClient(client, Options{FineTunedModel: "ft:x", DeleteSafetyTrigger: true})
	assert.ErrorIs(t, a.Delete(context.Background()), ErrDeleteDisabled)

	assert.Empty(t, client.deletedModel)
}

func TestDelete_BothFlags(t *testing.T) {
	client := &fakeClient{deleteOK: true}
	a := NewWithClient(client, Options{
		FineTunedModel: "ft:gpt-4o-mini:acme::abc123", DeleteModel: true, DeleteSafetyTrigger: true,
	})

	require.NoError(t, a.Delete(context.Background()))
	assert.Equal(t, "ft:gpt-4o-mini:acme::abc123", client.deletedModel)
}

func TestDelete_NotDeleted(t *testing.T) {
	client := &fakeClient{deleteOK: false}
	a := NewWithClient(client, Options{
		FineTunedModel: "ft:x", DeleteModel: true, DeleteSafetyTrigger: true,
	})
	assert.ErrorContains(t, a.Delete(context.Background()), "was not deleted")
}

func TestResolve(t *testing.T) {
	client := &fakeClient{models: []string{"gpt-4o-mini", "ft:gpt-4o-mini:acme::abc123"}}

	a := NewWithClient(client, Options{BaseModel: "gpt-4o-mini"})
	model, err := a.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", model)

	a = NewWithClient(client, Options{BaseModel: "gpt-4o-mini", FineTunedModel: "ft:gpt-4o-mini:acme::abc123"})
	model, err = a.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ft:gpt-4o-mini:acme::abc123", model)

	// Missing fine-tuned model falls back to base.
	a = NewWithClient(client, Options{BaseModel: "gpt-4o-mini", FineTunedModel: "ft:gone"})
	model, err = a.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", model)
}

func TestResolve_ListError(t *testing.T) {
	client := &fakeClient{listModelsErr: errors.New("boom")}
	a := NewWithClient(client, Options{BaseModel: "gpt-4o-mini", FineTunedModel: "ft:x"})
	_, err := a.Resolve(context.Background())
	assert.Error(t, err)
}

func TestChat(t *testing.T) {
	client := &fakeClient{models: []string{"ft:x"}, chatResponse: "olá"}
	a := NewWithClient(client, Options{BaseModel: "gpt-4o-mini", FineTunedModel: "ft:x"})

	out, err := a.Chat(context.Background(), "sê breve", "bom dia")
	require.NoError(t, err)
	assert.Equal(t, "olá", out)

	require.Len(t, client.chatRequests, 1)
	req := client.chatRequests[0]
	assert.Equal(t, "ft:x", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Equal(t, "bom dia", req.Messages[1].Content)
}

func TestTrainingFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.jsonl")
	examples := []Example{
		{System: "és um assistente", User: "olá", Assistant: "bom dia"},
		{User: "qual o montante?", Assistant: "100"},
	}

	require.NoError(t, WriteTrainingFile(path, examples))

	got, err := ReadTrainingFile(path)
	require.NoError(t, err)
	assert.Equal(t, examples, got)
}

func TestWriteTrainingFile_Empty(t *testing.T) {
	err := WriteTrainingFile(filepath.Join(t.TempDir(), "x.jsonl"), nil)
	assert.ErrorContains(t, err, "no training examples")
}
