package models

import "strings"

// Completion is the text a model returned for one prompt. Providers may
// answer with a single string or with several parts.
type Completion struct {
	Parts []string `json:"parts"`
}

// NewCompletion wraps a single string
func NewCompletion(text string) Completion {
	return Completion{Parts: []string{text}}
}

// Text joins all parts with single spaces
func (c Completion) Text() string {
	return strings.Join(c.Parts, " ")
}
