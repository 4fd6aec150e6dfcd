package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/tmc/langchaingo/llms"

	"github.com/sheetflow-ai/sheetflow/mail"
)

const emailSystemPrompt = `You draft polite, concise email replies in the language of the original message. Answer every question using only the provided answers. Do not invent information.`

// Reply is a drafted email response in markdown and rendered HTML.
type Reply struct {
	Subject  string
	Markdown string
	HTML     string
}

// EmailAgent drafts replies to incoming messages, answering the questions
// they contain through a vector agent.
type EmailAgent struct {
	llm       llms.Model
	answering *VectorAgent
}

// NewEmailAgent creates an agent that drafts replies with llm and answers
// questions through answering.
func NewEmailAgent(llm llms.Model, answering *VectorAgent) *EmailAgent {
	return &EmailAgent{llm: llm, answering: answering}
}

// DraftReply answers the questions found in msg and composes a reply.
func (a *EmailAgent) DraftReply(ctx context.Context, msg *mail.Message) (Reply, error) {
	questions := mail.ExtractQuestions(msg.Body())
	if len(questions) == 0 {
		return Reply{}, fmt.Errorf("no questions found in message %q", msg.Subject)
	}

	var answered strings.Builder
	for _, q := range questions {
		answer, err := a.answering.Ask(ctx, q)
		if err != nil {
			return Reply{}, fmt.Errorf("failed to answer %q: %w", q, err)
		}
		fmt.Fprintf(&answered, "Q: %s\nA: %s\n\n", q, answer.Text)
	}

	prompt := fmt.Sprintf("Original message from %s:\nSubject: %s\n\n%s\n\nAnswered questions:\n%s\nWrite the reply body in markdown.",
		msg.From, msg.Subject, msg.Body(), answered.String())

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, emailSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	resp, err := a.llm.GenerateContent(ctx, messages, llms.WithTemperature(0.2))
	if err != nil {
		return Reply{}, fmt.Errorf("reply generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Reply{}, fmt.Errorf("model returned no choices")
	}

	body := strings.TrimSpace(resp.Choices[0].Content)
	return Reply{
		Subject:  replySubject(msg.Subject),
		Markdown: body,
		HTML:     RenderMarkdown(body),
	}, nil
}

// RenderMarkdown renders markdown text to HTML.
func RenderMarkdown(text string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(text))

	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return string(markdown.Render(doc, renderer))
}

func replySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}
