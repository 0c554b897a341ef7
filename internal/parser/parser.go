// Package parser turns the raw RFC 5322 message of a Mailgun "mime" webhook
// into an inbound message.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/shineum/mail-reply-relay/internal/email"
)

// ParseInbound parses a raw message. Headers keep their first value under
// the canonical key. BodyPlain is the first text/plain part that is not an
// attachment, searched depth-first through nested multiparts. Text is
// BodyPlain with the quoted reply and signature removed.
func ParseInbound(raw []byte) (*email.Inbound, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if err != nil {
		slog.Warn("unknown charset in message", "error", err)
	}
	defer mr.Close()

	result := &email.Inbound{
		Headers: make(map[string]string),
	}
	fields := mr.Header.Fields()
	for fields.Next() {
		key := fields.Key()
		if _, ok := result.Headers[key]; !ok {
			result.Headers[key] = mr.Header.Get(key)
		}
	}

	result.From = mr.Header.Get("From")
	result.Recipient = mr.Header.Get("To")
	if result.Subject, err = mr.Header.Subject(); err != nil {
		result.Subject = mr.Header.Get("Subject")
	}

	mediaType, params, err := mr.Header.ContentType()
	if err == nil && strings.HasPrefix(mediaType, "multipart/") && params["boundary"] == "" {
		return nil, errors.New("multipart message missing boundary")
	}

	text, err := findPlainText(mr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse message body: %w", err)
	}
	if text == "" {
		slog.Warn("no plain text body", "content_type", mediaType)
	}

	result.BodyPlain = text
	result.Text = StripQuoted(result.BodyPlain)
	return result, nil
}

// findPlainText returns the body of the first plain text part. A part with an
// unparseable Content-Type is read as plain text unless it is an attachment.
func findPlainText(mr *mail.Reader) (string, error) {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return "", nil
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return "", fmt.Errorf("failed to read next part: %w", err)
		}

		h := partHeader(part)
		if disp, _, _ := h.ContentDisposition(); disp == "attachment" {
			continue
		}

		mediaType, _, err := h.ContentType()
		if err != nil {
			slog.Warn("failed to parse content type, treating as plain text",
				"content_type", h.Get("Content-Type"),
				"error", err,
			)
			mediaType = "text/plain"
		}
		if mediaType != "text/plain" {
			continue
		}

		// Transfer encoding and charset are already undone by the reader.
		content, err := io.ReadAll(part.Body)
		if err != nil {
			slog.Warn("failed to read text part", "error", err)
			continue
		}
		return string(content), nil
	}
}

func partHeader(p *mail.Part) *message.Header {
	switch h := p.Header.(type) {
	case *mail.InlineHeader:
		return &h.Header
	case *mail.AttachmentHeader:
		return &h.Header
	}
	return &message.Header{}
}

// StripQuoted drops the signature block and the trailing quoted reply from a
// plain text body. A quoted reply is the run of "> " lines at the end of the
// body together with the attribution line ("On ... wrote:") just above it.
func StripQuoted(body string) string {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")

	for i, l := range lines {
		if l == "-- " {
			lines = lines[:i]
			break
		}
	}

	end := len(lines)
	quoted := false
	for end > 0 {
		l := strings.TrimSpace(lines[end-1])
		if strings.HasPrefix(l, ">") {
			quoted = true
		} else if l != "" {
			break
		}
		end--
	}
	if quoted && end > 0 {
		l := strings.TrimSpace(lines[end-1])
		if strings.HasPrefix(l, "On ") && strings.HasSuffix(l, "wrote:") {
			end--
		}
	}

	return strings.TrimSpace(strings.Join(lines[:end], "\n"))
}
