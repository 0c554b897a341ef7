package relay

import (
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes carried by errors returned from New and On.
const (
	TextCodeMissingOption    = "MISSING_OPTION"
	TextCodeDuplicateSubject = "DUPLICATE_SUBJECT"
)

func relayError(
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func missingOption(name string) error {
	return relayError(
		fmt.Sprintf("missing %s option", name),
		goerrors.CategoryBadInput,
		http.StatusBadRequest,
		TextCodeMissingOption,
		map[string]any{"option": name},
	)
}

func duplicateSubject(subject string) error {
	return relayError(
		fmt.Sprintf("already set a handler for the subject %q", subject),
		goerrors.CategoryConflict,
		http.StatusConflict,
		TextCodeDuplicateSubject,
		map[string]any{"subject": subject},
	)
}

// IsMissingOption reports whether err came from New rejecting an absent
// required option.
func IsMissingOption(err error) bool {
	return hasTextCode(err, TextCodeMissingOption)
}

// IsDuplicateSubject reports whether err came from On rejecting a subject
// that already has a handler.
func IsDuplicateSubject(err error) bool {
	return hasTextCode(err, TextCodeDuplicateSubject)
}

func hasTextCode(err error, code string) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.TextCode == code
}
