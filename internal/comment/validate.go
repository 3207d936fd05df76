package comment

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/banterhq/banter/internal/errors"
)

// MinFieldLength is the minimum length, after trimming surrounding
// whitespace, for both the author name and the comment body.
const MinFieldLength = 3

// Focus targets name the UI element a caller should direct attention to.
// The engine only requests focus; the presentation layer owns the actual
// focus and scroll mechanics.
const (
	FocusAuthorInput  = "author-input"
	FocusCommentInput = "comment-input"
)

// FocusNode returns the focus target for a rendered comment node, used to
// scroll a freshly inserted comment into view.
func FocusNode(id ID) string {
	return fmt.Sprintf("node(%d)", id)
}

// Limits holds the server-configured field length limits. Zero means no limit.
type Limits struct {
	MaxAuthorLength  int
	MaxCommentLength int
}

// ValidateSubmission checks author and body ahead of a network submission.
// Both fields, with surrounding whitespace stripped, must be non-empty and at
// least MinFieldLength characters. A failure is reported as a validation
// error carrying the focus target of the offending field; no state changes.
func ValidateSubmission(author, body string, limits Limits) error {
	trimmedAuthor := strings.TrimSpace(author)
	if utf8.RuneCountInString(trimmedAuthor) < MinFieldLength {
		return errors.NewValidation(FocusAuthorInput,
			fmt.Sprintf("author must be at least %d characters", MinFieldLength))
	}
	if limits.MaxAuthorLength > 0 && utf8.RuneCountInString(trimmedAuthor) > limits.MaxAuthorLength {
		return errors.NewValidation(FocusAuthorInput,
			fmt.Sprintf("author must be at most %d characters", limits.MaxAuthorLength))
	}

	trimmedBody := strings.TrimSpace(body)
	if utf8.RuneCountInString(trimmedBody) < MinFieldLength {
		return errors.NewValidation(FocusCommentInput,
			fmt.Sprintf("comment must be at least %d characters", MinFieldLength))
	}
	if limits.MaxCommentLength > 0 && utf8.RuneCountInString(trimmedBody) > limits.MaxCommentLength {
		return errors.NewValidation(FocusCommentInput,
			fmt.Sprintf("comment must be at most %d characters", limits.MaxCommentLength))
	}

	return nil
}
