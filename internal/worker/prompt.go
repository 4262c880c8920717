package worker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"campus-assistant/internal/domain"
)

type campusAnswer struct {
	InScope bool   `json:"in_scope"`
	Answer  string `json:"answer"`
}

func buildFAQPromptMessages(systemPrompt, topic string, examples []domain.FAQ) []domain.ChatMessage {
	messages := []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: buildPolicyPrompt()},
	}
	if s := strings.TrimSpace(systemPrompt); s != "" {
		messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: s})
	}
	for _, faq := range examples {
		messages = append(messages, exampleToPromptMessages(faq)...)
	}
	return append(messages, domain.ChatMessage{
		Role:    domain.RoleUser,
		Content: normalizePromptInput(topic),
	})
}

func buildPolicyPrompt() string {
	return strings.Join([]string{
		"Role:",
		"You are the campus information assistant for a university.",
		"",
		"Task:",
		"Decide whether the question is about campus life, services or policies.",
		"If it is, answer it briefly in the style of the example answers.",
		"If it is not, return out of scope.",
		"",
		"Behavior Rules:",
		behaviorRules(),
		"",
		"Output Contract:",
		outputContract(),
	}, "\n")
}

func exampleToPromptMessages(faq domain.FAQ) []domain.ChatMessage {
	question := strings.TrimSpace(faq.Question)
	answer := strings.TrimSpace(faq.Answer)
	if question == "" || answer == "" {
		return nil
	}
	reply, err := json.Marshal(campusAnswer{InScope: true, Answer: answer})
	if err != nil {
		return nil
	}
	return []domain.ChatMessage{
		{Role: domain.RoleUser, Content: question},
		{Role: domain.RoleAssistant, Content: string(reply)},
	}
}

func behaviorRules() string {
	return strings.Join([]string{
		"1) Answer in at most two sentences suitable for reading aloud.",
		"2) Do not invent phone numbers, prices, dates or room numbers.",
		"3) If you are unsure, suggest contacting the relevant campus office.",
	}, "\n")
}

func outputContract() string {
	return "Return JSON only with keys in_scope (boolean) and answer (string). " +
		"If out of scope, return in_scope=false and answer=\"\"."
}

func normalizePromptInput(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}

func parseCampusAnswer(raw string) (campusAnswer, error) {
	var out campusAnswer
	dec := json.NewDecoder(bytes.NewBufferString(strings.TrimSpace(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return campusAnswer{}, fmt.Errorf("worker: decode campus answer: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return campusAnswer{}, errors.New("worker: decode campus answer: multiple JSON values")
		}
		return campusAnswer{}, fmt.Errorf("worker: decode campus answer trailing data: %w", err)
	}
	out.Answer = strings.TrimSpace(out.Answer)
	if out.InScope && out.Answer == "" {
		return campusAnswer{}, errors.New("worker: campus answer missing text for in-scope topic")
	}
	return out, nil
}
