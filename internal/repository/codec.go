package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"campus-assistant/internal/domain"
)

const (
	contextKey    = "context"
	maxItemBytes  = 35000
	minQueryLimit = 1
	maxQueryLimit = 100
)

// ErrItemTooLarge is returned when an encoded record exceeds maxItemBytes.
var ErrItemTooLarge = errors.New("repository: item too large")

// sessionPrefix is the sort-key prefix shared by every turn of a session.
func sessionPrefix(sessionID string) string {
	return "session#" + sessionID + "#"
}

// turnKey orders turns by time within a session; the turn id breaks ties.
func turnKey(sessionID string, ts time.Time, turnID string) string {
	return fmt.Sprintf("%sturn#%013d#%s", sessionPrefix(sessionID), ts.UnixMilli(), turnID)
}

func clampLimit(limit int) int {
	return max(minQueryLimit, min(maxQueryLimit, limit))
}

func encodeAttrs(attrs domain.SessionAttributes) (string, error) {
	if attrs == nil {
		attrs = domain.SessionAttributes{}
	}
	raw, err := json.Marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("repository: encode attributes: %w", err)
	}
	if len(raw) > maxItemBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrItemTooLarge, len(raw))
	}
	return string(raw), nil
}

func decodeAttrs(data string) (domain.SessionAttributes, error) {
	var attrs domain.SessionAttributes
	if err := json.Unmarshal([]byte(data), &attrs); err != nil {
		return nil, fmt.Errorf("repository: decode attributes: %w", err)
	}
	return attrs, nil
}

func encodeTurn(rec domain.TurnRecord) (string, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("repository: encode turn: %w", err)
	}
	if len(raw) > maxItemBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrItemTooLarge, len(raw))
	}
	return string(raw), nil
}

func decodeTurn(data string) (domain.TurnRecord, error) {
	var rec domain.TurnRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return domain.TurnRecord{}, fmt.Errorf("repository: decode turn: %w", err)
	}
	rec.Timestamp = time.UnixMilli(rec.TimestampMS).UTC()
	return rec, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

// optStrAttr returns "" for a missing attribute and renders numbers as text.
func optStrAttr(item map[string]types.AttributeValue, key string) string {
	switch v := item[key].(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	}
	return ""
}

// floatAttr accepts both number and string encodings.
func floatAttr(item map[string]types.AttributeValue, key string) (*float64, error) {
	raw := optStrAttr(item, key)
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return &f, nil
}

func numAttr(n int64) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}
