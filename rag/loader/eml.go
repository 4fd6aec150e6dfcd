package loader

import (
	"context"
	"fmt"

	"github.com/sheetflow-ai/sheetflow/log"
	"github.com/sheetflow-ai/sheetflow/mail"
	"github.com/sheetflow-ai/sheetflow/rag"
)

// EMLLoader loads email files into documents: one per body plus one per
// attachment reference, mirroring how email content is ingested for RAG.
type EMLLoader struct {
	paths       []string
	logContents bool
}

// EMLLoaderOption configures the EMLLoader.
type EMLLoaderOption func(*EMLLoader)

// WithContentLogging enables logging of the loaded documents.
func WithContentLogging(enabled bool) EMLLoaderOption {
	return func(l *EMLLoader) {
		l.logContents = enabled
	}
}

// NewEMLLoader creates a loader for the given .eml file paths.
func NewEMLLoader(paths []string, opts ...EMLLoaderOption) *EMLLoader {
	l := &EMLLoader{paths: paths}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load parses every EML file and returns its body and attachment documents.
func (l *EMLLoader) Load(ctx context.Context) ([]rag.Document, error) {
	var docs []rag.Document
	for _, path := range l.paths {
		msg, err := mail.ParseFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}

		header := fmt.Sprintf("From: %s\nTo: %s\nSubject: %s\nDate: %s",
			msg.From, msg.To, msg.Subject, msg.Date.Format("2006-01-02 15:04:05"))

		docs = append(docs, rag.Document{
			ID:      path,
			Content: header + "\n\n" + msg.Body(),
			Metadata: map[string]any{
				"source":       path,
				"subject":      msg.Subject,
				"date":         msg.Date.Unix(),
				"content_type": "email_body",
			},
		})

		for i, name := range msg.Attachments {
			docs = append(docs, rag.Document{
				ID:      fmt.Sprintf("%s#attachment_%d", path, i),
				Content: fmt.Sprintf("Email %q has attachment %q", msg.Subject, name),
				Metadata: map[string]any{
					"source":              path,
					"subject":             msg.Subject,
					"content_type":        "attachment",
					"attachment_filename": name,
					"attachment_index":    i,
				},
			})
		}

		if l.logContents {
			log.Info("processed EML %s: %d attachments, body %d chars",
				path, len(msg.Attachments), len(msg.Body()))
		}
	}
	return docs, nil
}

// Questions extracts the interrogative lines from the bodies of the loaded
// emails, newest email first. Pipelines answering email questions use this
// as the default question source.
func (l *EMLLoader) Questions(ctx context.Context) ([]string, error) {
	msgs := make([]*mail.Message, 0, len(l.paths))
	for _, path := range l.paths {
		msg, err := mail.ParseFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		msgs = append(msgs, msg)
	}

	// Newest first
	for i := 0; i < len(msgs); i++ {
		for j := i + 1; j < len(msgs); j++ {
			if msgs[j].Date.After(msgs[i].Date) {
				msgs[i], msgs[j] = msgs[j], msgs[i]
			}
		}
	}

	var questions []string
	for _, msg := range msgs {
		questions = append(questions, mail.ExtractQuestions(msg.Body())...)
	}
	return questions, nil
}

var _ rag.DocumentLoader = (*EMLLoader)(nil)
