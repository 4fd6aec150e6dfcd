// Package mail parses .eml files into a form the RAG agents can ingest:
// headers, plain and HTML bodies, and attachment names. HTML bodies are
// sanitized and flattened to text.
package mail

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"os"
	"strings"
	"time"
)

// Message is the parsed content of an EML file.
type Message struct {
	Path        string
	Subject     string
	From        string
	To          string
	Date        time.Time
	TextBody    string
	HTMLBody    string
	Attachments []string
}

// Body returns the preferred body text: the plain part when present,
// otherwise the HTML part flattened to text.
func (m *Message) Body() string {
	if strings.TrimSpace(m.TextBody) != "" {
		return m.TextBody
	}
	return FlattenHTML(m.HTMLBody)
}

// ParseFile reads and parses the EML file at path.
func ParseFile(path string) (*Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open eml file: %w", err)
	}
	defer f.Close()

	msg, err := mail.ReadMessage(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse eml file %s: %w", path, err)
	}

	parsed := &Message{
		Path:    path,
		Subject: decodeHeader(msg.Header.Get("Subject")),
		From:    decodeHeader(msg.Header.Get("From")),
		To:      decodeHeader(msg.Header.Get("To")),
	}

	if date, err := msg.Header.Date(); err == nil {
		parsed.Date = date
	}

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		if err := parsed.readMultipart(msg.Body, params["boundary"]); err != nil {
			return nil, err
		}
	} else {
		body, err := decodeBody(msg.Body, msg.Header.Get("Content-Transfer-Encoding"))
		if err != nil {
			return nil, err
		}
		if mediaType == "text/html" {
			parsed.HTMLBody = body
		} else {
			parsed.TextBody = body
		}
	}

	return parsed, nil
}

func (m *Message) readMultipart(r io.Reader, boundary string) error {
	if boundary == "" {
		return fmt.Errorf("multipart message without boundary in %s", m.Path)
	}

	mr := multipart.NewReader(r, boundary)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read mime part: %w", err)
		}

		if filename := part.FileName(); filename != "" {
			m.Attachments = append(m.Attachments, filename)
			continue
		}

		partType, partParams, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if err != nil {
			partType = "text/plain"
		}

		// Nested multipart (e.g. multipart/alternative inside multipart/mixed)
		if strings.HasPrefix(partType, "multipart/") {
			if err := m.readMultipart(part, partParams["boundary"]); err != nil {
				return err
			}
			continue
		}

		body, err := decodeBody(part, part.Header.Get("Content-Transfer-Encoding"))
		if err != nil {
			return err
		}

		switch partType {
		case "text/html":
			m.HTMLBody += body
		case "text/plain":
			m.TextBody += body
		}
	}
}

func decodeBody(r io.Reader, encoding string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		r = quotedprintable.NewReader(r)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to decode body: %w", err)
	}
	return string(data), nil
}

func decodeHeader(value string) string {
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}
