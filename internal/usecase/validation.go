package usecase

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Nef3rp1tou/BlogMvc/internal/domain"
)

type fieldRule struct {
	label    string
	min, max int
}

var (
	titleRule   = fieldRule{"Title", domain.TitleMinLength, domain.TitleMaxLength}
	contentRule = fieldRule{"Content", domain.ContentMinLength, domain.ContentMaxLength}
	authorRule  = fieldRule{"Author", domain.AuthorMinLength, domain.AuthorMaxLength}
)

// check returns a message for value, or empty when it passes. Lengths are
// counted in characters, not bytes.
func (r fieldRule) check(value string) string {
	if strings.TrimSpace(value) == "" {
		return r.label + " is required"
	}
	if n := utf8.RuneCountInString(value); n < r.min || n > r.max {
		return fmt.Sprintf("%s must be between %d and %d characters", r.label, r.min, r.max)
	}
	return ""
}

// normalizePostInput trims every field and validates the result. All
// violations are reported at once, joined with "; ".
func normalizePostInput(in domain.PostInput) (domain.PostInput, error) {
	out := domain.PostInput{
		Title:   strings.TrimSpace(in.Title),
		Content: strings.TrimSpace(in.Content),
		Author:  strings.TrimSpace(in.Author),
	}

	var msgs []string
	for _, c := range []struct {
		rule  fieldRule
		value string
	}{
		{titleRule, out.Title},
		{contentRule, out.Content},
		{authorRule, out.Author},
	} {
		if m := c.rule.check(c.value); m != "" {
			msgs = append(msgs, m)
		}
	}
	if len(msgs) > 0 {
		return out, domain.Validation(strings.Join(msgs, "; "))
	}
	return out, nil
}

func validateID(id int64) error {
	if id <= 0 {
		return domain.Validation("Invalid post ID")
	}
	return nil
}

func validateSearchTerm(term string) (string, error) {
	term = strings.TrimSpace(term)
	if utf8.RuneCountInString(term) > domain.SearchTermMaxLength {
		return "", domain.Validation(fmt.Sprintf("Search term must not exceed %d characters", domain.SearchTermMaxLength))
	}
	return term, nil
}

func validateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return domain.Validation("User ID is required")
	}
	return nil
}
