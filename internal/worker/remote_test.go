package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/stretchr/testify/require"

	"campus-assistant/internal/domain"
)

type fakeLambda struct {
	out *lambda.InvokeOutput
	err error

	gotFunction string
	gotPayload  []byte
}

func (f *fakeLambda) Invoke(_ context.Context, in *lambda.InvokeInput, _ ...func(*lambda.Options)) (*lambda.InvokeOutput, error) {
	f.gotFunction = aws.ToString(in.FunctionName)
	f.gotPayload = in.Payload
	return f.out, f.err
}

func newTestRemote(t *testing.T, api *fakeLambda) *Remote {
	t.Helper()
	r, err := NewRemote(api, map[Capability]string{
		CapabilityHours:      "campus-hours",
		CapabilityInstructor: "campus-instructor",
		CapabilityFAQ:        " ",
	}, nil)
	require.NoError(t, err)
	return r
}

func TestNewRemote_NilAPI(t *testing.T) {
	_, err := NewRemote(nil, nil, nil)
	require.Error(t, err)
}

func TestRemote_Dispatch(t *testing.T) {
	api := &fakeLambda{out: &lambda.InvokeOutput{
		StatusCode: 200,
		Payload: []byte(`{"message":"Library hours: 8-5. Address: 1 Main.","session_attrs":{"last_building_name":"Library",` +
			`"last_intent":"GetBuildingHoursIntent"},"building":"Library"}`),
	}}
	r := newTestRemote(t, api)

	res := r.Dispatch(context.Background(), Request{Capability: CapabilityHours, BuildingName: " library "})
	require.False(t, res.Failed())
	require.Equal(t, "Library hours: 8-5. Address: 1 Main.", res.Message)
	require.Equal(t, "Library", res.Building)
	require.Equal(t, domain.SessionAttributes{
		domain.AttrLastBuildingName: "Library",
		domain.AttrLastIntent:       domain.IntentBuildingHours,
	}, res.Attributes)

	require.Equal(t, "campus-hours", api.gotFunction)
	var sent map[string]string
	require.NoError(t, json.Unmarshal(api.gotPayload, &sent))
	require.Equal(t, map[string]string{"capability": "hours", "building_name": "library"}, sent)
}

func TestRemote_ErrorEnvelopePassesThrough(t *testing.T) {
	api := &fakeLambda{out: &lambda.InvokeOutput{
		Payload: []byte(`{"message":"I couldn't find the instructor for that course.","error":"not_found"}`),
	}}
	r := newTestRemote(t, api)
	res := r.Dispatch(context.Background(), Request{Capability: CapabilityInstructor, CourseCode: "CS101"})
	require.Equal(t, ErrorNotFound, res.ErrorCode)
	require.Equal(t, "I couldn't find the instructor for that course.", res.Message)
}

func TestRemote_Unavailable(t *testing.T) {
	tests := []struct {
		name string
		api  *fakeLambda
		req  Request
	}{
		{"not configured", &fakeLambda{}, Request{Capability: CapabilitySchedule, StudentID: "s", CourseCode: "CS101"}},
		{"blank function name", &fakeLambda{}, Request{Capability: CapabilityFAQ, Topic: "parking"}},
		{"invoke error", &fakeLambda{err: errors.New("AccessDenied")}, Request{Capability: CapabilityHours, BuildingName: "x"}},
		{"function error", &fakeLambda{out: &lambda.InvokeOutput{FunctionError: aws.String("Unhandled"), Payload: []byte(`{}`)}}, Request{Capability: CapabilityHours, BuildingName: "x"}},
		{"nil output", &fakeLambda{}, Request{Capability: CapabilityHours, BuildingName: "x"}},
		{"bad payload", &fakeLambda{out: &lambda.InvokeOutput{Payload: []byte(`not json`)}}, Request{Capability: CapabilityHours, BuildingName: "x"}},
		{"empty message", &fakeLambda{out: &lambda.InvokeOutput{Payload: []byte(`{"message":" "}`)}}, Request{Capability: CapabilityHours, BuildingName: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newTestRemote(t, tt.api).Dispatch(context.Background(), tt.req)
			require.Equal(t, ErrorUnavailable, res.ErrorCode)
			require.Equal(t, UnavailableMessage, res.Message)
		})
	}
}
