// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

func TestNewClient_NoKey(t *testing.T) {
	t.Setenv("QUILL_OPENAI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewClient()
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestNewClient_KeyPrecedence(t *testing.T) {
	t.Setenv("QUILL_OPENAI_API_KEY", "quill-key")
	t.Setenv("OPENAI_API_KEY", "generic-key")
	t.Setenv("QUILL_OPENAI_MODEL", "")

	c, err := NewClient()
	assert.NoError(t, err)
	assert.Equal(t, defaultModel, c.model)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(&openai.APIError{HTTPStatusCode: 429}))
	assert.True(t, isRetryable(&openai.APIError{HTTPStatusCode: 503}))
	assert.False(t, isRetryable(&openai.APIError{HTTPStatusCode: 401}))
	assert.False(t, isRetryable(errors.New("dial tcp: connection refused")))
}

func TestBackoffDelay_Bounds(t *testing.T) {
	for attempt := 1; attempt <= 3; attempt++ {
		base := time.Second << (attempt - 1)
		d := backoffDelay(attempt)
		assert.GreaterOrEqual(t, d, base)
		assert.Less(t, d, base+base/4+time.Millisecond)
	}
}

func TestBuildPrompt_Go(t *testing.T) {
	prompt := buildPrompt(DocRequest{
		ItemName: "Store.Save",
		ItemType: "method",
		Language: "go",
		Source:   "func (s *Store) Save() error { return nil }",
	})
	assert.Contains(t, prompt, `"Store.Save"`)
	assert.Contains(t, prompt, `"Save" per Go convention`)
	assert.Contains(t, prompt, "func (s *Store) Save()")
}

func TestBuildPrompt_Python(t *testing.T) {
	prompt := buildPrompt(DocRequest{
		ItemName: "make_widget",
		ItemType: "function",
		Language: "python",
		Source:   "def make_widget(name):\n    return Widget()",
	})
	assert.Contains(t, prompt, "PEP 257")
	assert.Contains(t, prompt, "make_widget")
}

func TestCleanResponse(t *testing.T) {
	assert.Equal(t, "Save persists the manifest.",
		cleanResponse("Save persists the manifest."))
	assert.Equal(t, "Save persists the manifest.",
		cleanResponse("```go\nSave persists the manifest.\n```"))
	assert.Equal(t, "Save persists the manifest.",
		cleanResponse("\"Save persists the manifest.\""))
	assert.Equal(t, "multi\nline",
		cleanResponse("```\nmulti\nline\n```\n"))
}
