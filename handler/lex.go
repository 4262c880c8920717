// Package handler adapts Lambda events to the turn router and the lookup
// workers.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"strings"

	"github.com/aws/aws-lambda-go/lambdacontext"

	"campus-assistant/internal/domain"
)

const (
	contentTypePlainText = "PlainText"
	intentStateFulfilled = "Fulfilled"
	intentStateProgress  = "InProgress"
)

// LexEvent is the subset of the Lex V2 code-hook event the router reads.
type LexEvent struct {
	SessionID        string          `json:"sessionId"`
	UserID           string          `json:"userId,omitempty"`
	InputTranscript  string          `json:"inputTranscript"`
	InputText        string          `json:"inputText,omitempty"`
	InputMode        string          `json:"inputMode,omitempty"`
	InvocationSource string          `json:"invocationSource,omitempty"`
	SessionState     LexSessionState `json:"sessionState"`
}

type LexSessionState struct {
	SessionAttributes    map[string]string `json:"sessionAttributes,omitempty"`
	Intent               *LexIntent        `json:"intent,omitempty"`
	DialogAction         *LexDialogAction  `json:"dialogAction,omitempty"`
	OriginatingRequestID string            `json:"originatingRequestId,omitempty"`
}

type LexIntent struct {
	Name  string              `json:"name"`
	State string              `json:"state,omitempty"`
	Slots map[string]*LexSlot `json:"slots,omitempty"`
}

type LexSlot struct {
	Value *LexSlotValue `json:"value,omitempty"`
}

type LexSlotValue struct {
	OriginalValue    string   `json:"originalValue,omitempty"`
	InterpretedValue string   `json:"interpretedValue,omitempty"`
	ResolvedValues   []string `json:"resolvedValues,omitempty"`
}

type LexDialogAction struct {
	Type         string `json:"type"`
	SlotToElicit string `json:"slotToElicit,omitempty"`
}

type LexMessage struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// LexResponse is the code-hook reply.
type LexResponse struct {
	SessionState LexSessionState `json:"sessionState"`
	Messages     []LexMessage    `json:"messages"`
}

// TurnRouter resolves one typed turn.
type TurnRouter interface {
	Route(ctx context.Context, req domain.TurnRequest) domain.TurnResponse
}

// LexHandler is the only place that knows the Lex V2 payload shape.
type LexHandler struct {
	router TurnRouter
	logger *slog.Logger
}

func NewLexHandler(router TurnRouter, logger *slog.Logger) (*LexHandler, error) {
	if router == nil {
		return nil, errors.New("handler: router must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LexHandler{router: router, logger: logger}, nil
}

// Handle never returns an error; every turn yields a Lex response.
func (h *LexHandler) Handle(ctx context.Context, ev LexEvent) (LexResponse, error) {
	req := toTurnRequest(ev)
	logger := h.logger
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		logger = logger.With("request_id", lc.AwsRequestID)
	}
	logger.DebugContext(ctx, "lex turn", "intent", req.Utterance.Intent, "session_id", req.SessionID)

	resp := h.router.Route(ctx, req)
	return toLexResponse(ev, resp), nil
}

func toTurnRequest(ev LexEvent) domain.TurnRequest {
	transcript := ev.InputTranscript
	if strings.TrimSpace(transcript) == "" {
		transcript = ev.InputText
	}

	var intent string
	slots := map[string]string{}
	if in := ev.SessionState.Intent; in != nil {
		intent = in.Name
		for name, slot := range in.Slots {
			if v := slotValue(slot); v != "" {
				slots[name] = v
			}
		}
	}

	userID := firstNonEmpty(ev.SessionID, ev.UserID)
	attrs := domain.SessionAttributes(maps.Clone(ev.SessionState.SessionAttributes))
	if attrs == nil {
		attrs = domain.SessionAttributes{}
	}

	return domain.TurnRequest{
		Utterance: domain.Utterance{
			Transcript: transcript,
			Intent:     intent,
			Slots:      slots,
		},
		UserID:     userID,
		SessionID:  firstNonEmpty(ev.SessionID, userID),
		Attributes: attrs,
	}
}

// slotValue prefers the interpreted value over what the user said.
func slotValue(s *LexSlot) string {
	if s == nil || s.Value == nil {
		return ""
	}
	return strings.TrimSpace(firstNonEmpty(s.Value.InterpretedValue, s.Value.OriginalValue))
}

func toLexResponse(ev LexEvent, resp domain.TurnResponse) LexResponse {
	state := ev.SessionState
	state.SessionAttributes = map[string]string(resp.Attributes)
	if state.SessionAttributes == nil {
		state.SessionAttributes = map[string]string{}
	}

	intent := &LexIntent{Name: resp.Intent}
	if in := ev.SessionState.Intent; in != nil && in.Name == resp.Intent {
		intent.Slots = in.Slots
	}

	switch resp.Action {
	case domain.ActionElicitSlot:
		intent.State = intentStateProgress
		state.DialogAction = &LexDialogAction{Type: string(domain.ActionElicitSlot), SlotToElicit: resp.SlotToElicit}
	default:
		intent.State = intentStateFulfilled
		state.DialogAction = &LexDialogAction{Type: string(domain.ActionClose)}
	}
	state.Intent = intent

	return LexResponse{
		SessionState: state,
		Messages:     []LexMessage{{ContentType: contentTypePlainText, Content: resp.Message}},
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
