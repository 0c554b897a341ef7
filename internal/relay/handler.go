package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/shineum/mail-reply-relay/internal/email"
	"github.com/shineum/mail-reply-relay/internal/parser"
	"github.com/shineum/mail-reply-relay/internal/provider"
	"github.com/shineum/mail-reply-relay/internal/webhook"
)

// requestIDHeader is read from the inbound request when present so log
// records line up with the hosting server's access log.
const requestIDHeader = "X-Request-Id"

// ServeHTTP handles one inbound webhook in ReplyErrors mode.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, ReplyErrors)
}

// Handler returns an http.Handler that treats handler errors according to mode.
func (s *Service) Handler(mode ReplyMode) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.serve(w, r, mode)
	})
}

func (s *Service) serve(w http.ResponseWriter, r *http.Request, mode ReplyMode) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	logger := s.logger.With("request_id", requestID(r))

	if s.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	}

	fields, err := webhook.ReadFields(r)
	if err != nil {
		logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if s.verifier != nil {
		if err := s.verifier.Verify(r.Context(), fields); err != nil {
			// 406 tells Mailgun not to retry the delivery.
			logger.Warn("rejected webhook", "error", err)
			w.WriteHeader(http.StatusNotAcceptable)
			return
		}
	}

	status := s.dispatch(r.Context(), logger, fields, mode)
	if status >= http.StatusInternalServerError && s.verifier != nil {
		if err := s.verifier.Release(context.WithoutCancel(r.Context()), fields); err != nil {
			logger.Error("failed to release webhook token", "error", err)
		}
	}
	w.WriteHeader(status)
}

// dispatch routes a verified webhook to its handler and returns the status
// to answer the webhook with.
func (s *Service) dispatch(ctx context.Context, logger *slog.Logger, fields map[string]string, mode ReplyMode) int {
	msg, err := s.inboundMessage(fields)
	if err != nil {
		logger.Error("failed to decode webhook fields", "error", err)
		return http.StatusInternalServerError
	}

	logger.Info("message",
		"subject", msg.Subject,
		"from", msg.From,
	)

	h, ok := s.handlers[msg.Subject]
	if !ok {
		logger.Warn("no handler", "subject", msg.Subject)
		return http.StatusOK
	}

	reply, err := h.Handle(ctx, msg)
	if err != nil {
		if mode == FireAndForget {
			logger.Info("not replying", "error", err)
			return http.StatusOK
		}
		reply = err.Error()
	} else if reply == "" {
		logger.Info("not replying")
		return http.StatusOK
	}

	return s.sendReply(ctx, logger, msg, reply)
}

// inboundMessage extracts the message from the raw webhook fields. When the
// webhook carries body-mime, the parsed message fills in whatever the
// individual fields leave out.
func (s *Service) inboundMessage(fields map[string]string) (*email.Inbound, error) {
	msg := &email.Inbound{}
	if raw := fields[webhook.FieldBodyMIME]; raw != "" {
		parsed, err := parser.ParseInbound([]byte(raw))
		if err != nil {
			return nil, err
		}
		msg = parsed
	}

	if raw, ok := fields[webhook.FieldMessageHeaders]; ok || msg.Headers == nil {
		headers, err := webhook.DecodeHeaders(raw)
		if err != nil {
			return nil, err
		}
		msg.Headers = headers
	}

	msg.From = firstNonEmpty(fields[webhook.FieldFrom], msg.From)
	msg.Recipient = firstNonEmpty(fields[webhook.FieldRecipient], msg.Recipient)
	msg.Subject = s.normalizeSubject(firstNonEmpty(fields[webhook.FieldSubject], msg.Subject))
	msg.Text = firstNonEmpty(fields[webhook.FieldStrippedText], msg.Text)
	msg.BodyPlain = firstNonEmpty(fields[webhook.FieldBodyPlain], msg.BodyPlain)
	return msg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// sendReply makes the single delivery attempt and returns the status to
// answer the webhook with.
func (s *Service) sendReply(ctx context.Context, logger *slog.Logger, msg *email.Inbound, text string) int {
	err := s.provider.Send(ctx, email.NewReply(s.address, msg, text))

	var statusErr *provider.StatusError
	switch {
	case err == nil:
		logger.Info("response",
			"provider", s.provider.Name(),
			"statusCode", http.StatusOK,
		)
		return http.StatusOK
	case errors.As(err, &statusErr):
		logger.Info("response",
			"provider", s.provider.Name(),
			"statusCode", statusErr.StatusCode,
		)
		logger.Error("send error", "message", statusErr.Body)
		return http.StatusInternalServerError
	default:
		logger.Error("send error",
			"provider", s.provider.Name(),
			"error", fmt.Errorf("failed to send reply: %w", err),
		)
		return http.StatusInternalServerError
	}
}

func requestID(r *http.Request) string {
	if id := r.Header.Get(requestIDHeader); id != "" {
		return id
	}
	return uuid.NewString()
}
