// Package webhook decodes Mailgun inbound-route webhook requests.
package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/textproto"
)

// Inbound webhook field names.
const (
	FieldFrom           = "from"
	FieldRecipient      = "recipient"
	FieldSubject        = "subject"
	FieldMessageHeaders = "message-headers"
	FieldStrippedText   = "stripped-text"
	FieldBodyPlain      = "body-plain"
	FieldTimestamp      = "timestamp"
	FieldToken          = "token"
	FieldSignature      = "signature"
	// FieldBodyMIME carries the full message when the route forwards to a
	// URL ending in "mime".
	FieldBodyMIME = "body-mime"
)

// ReadFields reads every named form field of a webhook POST into a flat map.
// A repeated field keeps its last value. File parts are drained and skipped.
// Both multipart/form-data and application/x-www-form-urlencoded bodies are
// accepted; anything else is an error.
func ReadFields(r *http.Request) (map[string]string, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse content type: %w", err)
	}

	switch mediaType {
	case "multipart/form-data":
		return readMultipart(r)
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("failed to parse form: %w", err)
		}
		fields := make(map[string]string, len(r.PostForm))
		for name, values := range r.PostForm {
			if len(values) > 0 {
				fields[name] = values[len(values)-1]
			}
		}
		return fields, nil
	default:
		return nil, fmt.Errorf("unsupported content type %q", mediaType)
	}
}

func readMultipart(r *http.Request) (map[string]string, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("failed to open multipart body: %w", err)
	}

	fields := make(map[string]string)
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read next part: %w", err)
		}

		name := part.FormName()
		if name == "" || part.FileName() != "" {
			if _, err := io.Copy(io.Discard, part); err != nil {
				return nil, fmt.Errorf("failed to skip part: %w", err)
			}
			continue
		}

		value, err := io.ReadAll(part)
		if err != nil {
			return nil, fmt.Errorf("failed to read field %q: %w", name, err)
		}
		fields[name] = string(value)
	}

	return fields, nil
}

// DecodeHeaders converts the message-headers field, a JSON array of
// [name, value] pairs, into a map keyed by canonical MIME header name. A
// later pair overrides an earlier one with the same name. An empty field
// decodes to an empty map.
func DecodeHeaders(raw string) (map[string]string, error) {
	headers := make(map[string]string)
	if raw == "" {
		return headers, nil
	}

	var pairs [][]string
	if err := json.Unmarshal([]byte(raw), &pairs); err != nil {
		return nil, fmt.Errorf("failed to decode message headers: %w", err)
	}

	for i, pair := range pairs {
		if len(pair) != 2 {
			return nil, fmt.Errorf("message header %d: want [name, value] pair, got %d elements", i, len(pair))
		}
		headers[textproto.CanonicalMIMEHeaderKey(pair[0])] = pair[1]
	}
	return headers, nil
}
