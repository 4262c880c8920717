package handler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"campus-assistant/internal/catalog"
	"campus-assistant/internal/domain"
	"campus-assistant/internal/worker"
)

type stubDispatcher struct {
	out worker.Result
	in  worker.Request
}

func (s *stubDispatcher) Dispatch(_ context.Context, req worker.Request) worker.Result {
	s.in = req
	return s.out
}

type noLookup struct{}

func (noLookup) GetSchedule(context.Context, string, string) (*domain.ScheduleEntry, error) {
	return nil, nil
}

func (noLookup) GetInstructor(context.Context, string) (*domain.Instructor, error) {
	return nil, nil
}

func TestNewWorkerHandler_ValidatesDependency(t *testing.T) {
	_, err := NewWorkerHandler(nil, nil)
	require.Error(t, err)
}

func TestWorkerHandle_PassesReplyThrough(t *testing.T) {
	d := &stubDispatcher{out: worker.Result{
		Message:    "CS101 meets at MWF 10:00 in Shelby Center (Room 107).",
		Attributes: domain.SessionAttributes{domain.AttrLastCourseCode: "CS101"},
		CourseCode: "CS101",
	}}
	h, err := NewWorkerHandler(d, nil)
	require.NoError(t, err)

	req := worker.Request{Capability: worker.CapabilitySchedule, StudentID: "student123", CourseCode: "CS101"}
	reply, err := h.Handle(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, req, d.in)
	require.Equal(t, "CS101", reply.CourseCode)
	require.Empty(t, reply.Error)
	require.Equal(t, d.out, reply.Result())
}

func TestWorkerHandle_ErrorsTravelInReply(t *testing.T) {
	cat := catalog.NewStatic(nil, []domain.Building{{Name: "Shelby Center", Hours: "7am-11pm"}}, nil)
	local, err := worker.NewLocal(cat, noLookup{})
	require.NoError(t, err)
	h, err := NewWorkerHandler(local, nil)
	require.NoError(t, err)

	reply, err := h.Handle(context.Background(), worker.Request{Capability: worker.CapabilityHours, BuildingName: "Nowhere Hall"})
	require.NoError(t, err)
	require.Equal(t, string(worker.ErrorNotFound), reply.Error)
	require.NotEmpty(t, reply.Message)

	reply, err = h.Handle(context.Background(), worker.Request{Capability: worker.CapabilityHours, BuildingName: "shelby center"})
	require.NoError(t, err)
	require.Empty(t, reply.Error)
	require.Equal(t, "Shelby Center", reply.Building)
}
