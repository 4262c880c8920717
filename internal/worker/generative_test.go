package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"campus-assistant/internal/domain"
)

type mockParams struct {
	vals  map[string]string
	err   error
	calls int
}

func (m *mockParams) GetParameter(_ context.Context, name string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.vals[name]
	if !ok {
		return "", fmt.Errorf("param not found: %s", name)
	}
	return v, nil
}

type mockLLM struct {
	answer    string
	chatErr   error
	flagged   bool
	modErr    error
	model     string
	messages  []domain.ChatMessage
	chatCalls int
}

func (m *mockLLM) Chat(_ context.Context, model string, messages []domain.ChatMessage) (string, error) {
	m.chatCalls++
	m.model = model
	m.messages = messages
	return m.answer, m.chatErr
}

func (m *mockLLM) Moderate(_ context.Context, _ string) (bool, error) {
	return m.flagged, m.modErr
}

func testParams() *mockParams {
	return &mockParams{vals: map[string]string{
		"/campus/faq_system_prompt":   "Answer for UAH.",
		"/campus/config/openai_model": "gpt-4o-mini",
	}}
}

func TestNewGenerator_Validation(t *testing.T) {
	_, err := NewGenerator(nil, &mockLLM{}, "/campus")
	require.Error(t, err)
	_, err = NewGenerator(testParams(), nil, "/campus")
	require.Error(t, err)
	_, err = NewGenerator(testParams(), &mockLLM{}, "  / ")
	require.Error(t, err)
}

func TestGenerator_Answer(t *testing.T) {
	llm := &mockLLM{answer: `{"in_scope":true,"answer":"Apply through the housing portal."}`}
	params := testParams()
	g, err := NewGenerator(params, llm, "/campus/")
	require.NoError(t, err)

	examples := []domain.FAQ{{Question: "Where can I park?", Answer: "Lot 4."}, {Question: "", Answer: "skipped"}}
	got, err := g.Answer(context.Background(), "housing", examples)
	require.NoError(t, err)
	require.Equal(t, "Apply through the housing portal.", got)
	require.Equal(t, "gpt-4o-mini", llm.model)

	// policy, custom prompt, one example pair, user topic
	require.Len(t, llm.messages, 5)
	require.Equal(t, "Answer for UAH.", llm.messages[1].Content)
	require.Equal(t, "Where can I park?", llm.messages[2].Content)
	require.JSONEq(t, `{"in_scope":true,"answer":"Lot 4."}`, llm.messages[3].Content)
	require.Equal(t, domain.ChatMessage{Role: "user", Content: "housing"}, llm.messages[4])

	_, err = g.Answer(context.Background(), "parking permits", nil)
	require.NoError(t, err)
	require.Equal(t, 2, params.calls)
}

func TestGenerator_OutOfScope(t *testing.T) {
	g, err := NewGenerator(testParams(), &mockLLM{answer: `{"in_scope":false,"answer":""}`}, "/campus")
	require.NoError(t, err)
	got, err := g.Answer(context.Background(), "bitcoin price", nil)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestGenerator_Errors(t *testing.T) {
	tests := []struct {
		name   string
		params *mockParams
		llm    *mockLLM
		code   ErrorCode
		target error
	}{
		{"params", &mockParams{err: errors.New("ssm down")}, &mockLLM{}, ErrorUnavailable, nil},
		{"flagged", testParams(), &mockLLM{flagged: true}, ErrorGeneration, ErrFlagged},
		{"moderation", testParams(), &mockLLM{modErr: errors.New("429")}, ErrorGeneration, nil},
		{"chat", testParams(), &mockLLM{chatErr: errors.New("timeout")}, ErrorGeneration, nil},
		{"malformed", testParams(), &mockLLM{answer: `{"in_scope":true}`}, ErrorGeneration, nil},
		{"trailing", testParams(), &mockLLM{answer: `{"in_scope":false,"answer":""} {}`}, ErrorGeneration, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGenerator(tt.params, tt.llm, "/campus")
			require.NoError(t, err)
			_, err = g.Answer(context.Background(), "housing", nil)
			var werr *Error
			require.ErrorAs(t, err, &werr)
			require.Equal(t, tt.code, werr.Code)
			if tt.target != nil {
				require.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestGenerator_RetriesConfigAfterFailure(t *testing.T) {
	params := &mockParams{err: errors.New("temporary")}
	g, err := NewGenerator(params, &mockLLM{answer: `{"in_scope":true,"answer":"ok"}`}, "/campus")
	require.NoError(t, err)

	_, err = g.Answer(context.Background(), "housing", nil)
	require.Error(t, err)

	params.err = nil
	params.vals = testParams().vals
	got, err := g.Answer(context.Background(), "housing", nil)
	require.NoError(t, err)
	require.Equal(t, "ok", got)
}

func TestGenerator_EmptyTopic(t *testing.T) {
	llm := &mockLLM{}
	g, err := NewGenerator(testParams(), llm, "/campus")
	require.NoError(t, err)
	_, err = g.Answer(context.Background(), " ", nil)
	var werr *Error
	require.ErrorAs(t, err, &werr)
	require.Equal(t, ErrorMissingParams, werr.Code)
	require.Zero(t, llm.chatCalls)
}
