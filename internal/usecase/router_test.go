package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"campus-assistant/internal/catalog"
	"campus-assistant/internal/domain"
	"campus-assistant/internal/session"
	"campus-assistant/internal/worker"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type memStore struct {
	attrs    domain.SessionAttributes
	turns    []domain.TurnRecord
	getErr   error
	puts     []domain.SessionAttributes
	appended []domain.TurnRecord
}

func (s *memStore) Get(context.Context, string) (domain.SessionAttributes, error) {
	return s.attrs, s.getErr
}

func (s *memStore) Put(_ context.Context, _ string, attrs domain.SessionAttributes) error {
	s.puts = append(s.puts, attrs)
	return nil
}

func (s *memStore) AppendTurn(_ context.Context, _, _ string, rec domain.TurnRecord) error {
	s.appended = append(s.appended, rec)
	return nil
}

func (s *memStore) QueryRecentTurns(context.Context, string, string, int) ([]domain.TurnRecord, error) {
	return s.turns, nil
}

type fakeLookup struct {
	schedules   map[string]domain.ScheduleEntry
	instructors map[string]domain.Instructor
}

func (f *fakeLookup) GetSchedule(_ context.Context, studentID, courseCode string) (*domain.ScheduleEntry, error) {
	e, ok := f.schedules[studentID+"/"+courseCode]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (f *fakeLookup) GetInstructor(_ context.Context, courseCode string) (*domain.Instructor, error) {
	i, ok := f.instructors[courseCode]
	if !ok {
		return nil, nil
	}
	return &i, nil
}

type recordingDispatcher struct {
	next worker.Dispatcher
	reqs []worker.Request
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, req worker.Request) worker.Result {
	d.reqs = append(d.reqs, req)
	return d.next.Dispatch(ctx, req)
}

type unavailableDispatcher struct{}

func (unavailableDispatcher) Dispatch(context.Context, worker.Request) worker.Result {
	return worker.Result{Message: worker.UnavailableMessage, ErrorCode: worker.ErrorUnavailable}
}

type fixture struct {
	router     *Router
	store      *memStore
	dispatcher *recordingDispatcher
}

type fixtureOption func(*Options)

func withSchedulesDisabled() fixtureOption {
	return func(o *Options) { o.SchedulesEnabled = false }
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, persisted domain.SessionAttributes, opts ...fixtureOption) *fixture {
	t.Helper()
	cat := catalog.NewStatic(
		[]domain.Rule{{Keywords: []string{"find", "shelby"}, Intent: domain.IntentCampusLocation}},
		[]domain.Building{
			{Name: "M. Louis Salmon Library", Hours: "8am-10pm", Address: "301 Sparkman Dr"},
			{Name: "Shelby Center", Hours: "7am-11pm", Address: "301 Sparkman Dr NW"},
		},
		[]domain.FAQ{{Question: "Where can I park?", Answer: "Any lot with a permit.", Keywords: []string{"parking"}}},
	)
	lookup := &fakeLookup{
		schedules: map[string]domain.ScheduleEntry{
			"student123/CS101": {Time: "MWF 9:00", Building: "Shelby Center", Location: "Room 107"},
			"alice/CS101":      {Time: "TR 1:00", Building: "Shelby Center", Location: "Room 204"},
		},
		instructors: map[string]domain.Instructor{
			"ECE301": {InstructorName: "Dr. Ada", Email: "ada@uah.edu"},
		},
	}
	local, err := worker.NewLocal(cat, lookup, worker.WithLogger(discardLogger()))
	require.NoError(t, err)

	store := &memStore{attrs: persisted}
	dispatcher := &recordingDispatcher{next: local}
	o := Options{SchedulesEnabled: true, InstructorsEnabled: true}
	for _, opt := range opts {
		opt(&o)
	}
	r, err := NewRouter(cat, dispatcher, session.NewMemory(store, true, discardLogger()), o, discardLogger())
	require.NoError(t, err)
	r.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return &fixture{router: r, store: store, dispatcher: dispatcher}
}

func request(intent, transcript string, slots map[string]string) domain.TurnRequest {
	return domain.TurnRequest{
		Utterance: domain.Utterance{Transcript: transcript, Intent: intent, Slots: slots},
		UserID:    "user-1",
		SessionID: "sess-1",
	}
}

func TestNewRouter_Validation(t *testing.T) {
	cat := catalog.NewStatic(nil, nil, nil)
	mem := session.NewMemory(nil, false, nil)
	_, err := NewRouter(nil, unavailableDispatcher{}, mem, Options{}, nil)
	require.Error(t, err)
	_, err = NewRouter(cat, nil, mem, Options{}, nil)
	require.Error(t, err)
	_, err = NewRouter(cat, unavailableDispatcher{}, nil, Options{}, nil)
	require.Error(t, err)

	r, err := NewRouter(cat, unavailableDispatcher{}, mem, Options{}, nil)
	require.NoError(t, err)
	require.Equal(t, "student123", r.opts.DefaultStudentID)
	require.Equal(t, 5, r.opts.RecentTurnsLimit)
}

func TestRoute_HoursFromSlot(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.router.Route(context.Background(), request(domain.IntentBuildingHours,
		"what are the hours for the library", map[string]string{domain.SlotBuildingName: "the library"}))

	require.Equal(t, domain.ActionClose, resp.Action)
	require.Equal(t, "M. Louis Salmon Library hours: 8am-10pm. Address: 301 Sparkman Dr.", resp.Message)
	require.Equal(t, "M. Louis Salmon Library", resp.Attributes[domain.AttrLastBuildingName])
	require.Equal(t, domain.IntentBuildingHours, resp.Attributes[domain.AttrLastIntent])

	require.Len(t, f.store.puts, 1)
	require.Len(t, f.store.appended, 1)
	rec := f.store.appended[0]
	require.Equal(t, "sess-1", rec.SessionID)
	require.Equal(t, "what are the hours for the library", rec.UserInput)
	require.Equal(t, resp.Message, rec.AssistantResponse)
	require.Equal(t, int64(1700000000000), rec.TimestampMS)
	require.NotEmpty(t, rec.TurnID)
}

func TestRoute_PronounFirstLocationFromFallback(t *testing.T) {
	f := newFixture(t, domain.SessionAttributes{domain.AttrLastBuildingName: "Library"})
	resp := f.router.Route(context.Background(), request(domain.IntentFallback, "where is it?", nil))

	require.Equal(t, domain.ActionClose, resp.Action)
	require.Equal(t, "M. Louis Salmon Library is at 301 Sparkman Dr.", resp.Message)
	require.Equal(t, domain.IntentCampusLocation, resp.Intent)
	require.Equal(t, []worker.Request{{Capability: worker.CapabilityLocation, BuildingName: "M. Louis Salmon Library"}}, f.dispatcher.reqs)
	require.Equal(t, "M. Louis Salmon Library", resp.Attributes[domain.AttrLastBuildingName])
}

func TestRoute_ScheduleIntentReroutedToHours(t *testing.T) {
	f := newFixture(t, domain.SessionAttributes{domain.AttrLastBuildingName: "Library"})
	resp := f.router.Route(context.Background(), request(domain.IntentClassSchedule, "when is it open", nil))

	require.Equal(t, domain.ActionClose, resp.Action)
	require.Equal(t, "M. Louis Salmon Library hours: 8am-10pm. Address: 301 Sparkman Dr.", resp.Message)
	require.Equal(t, domain.IntentBuildingHours, resp.Attributes[domain.AttrLastIntent])
}

func TestRoute_ScheduleRerouteWithUnknownRememberedBuilding(t *testing.T) {
	f := newFixture(t, domain.SessionAttributes{domain.AttrLastBuildingName: "Old Gym"})
	resp := f.router.Route(context.Background(), request(domain.IntentClassSchedule, "when is it open", nil))

	require.Equal(t, []worker.Request{{Capability: worker.CapabilityHours, BuildingName: "Old Gym"}}, f.dispatcher.reqs)
	require.Equal(t, "I couldn't find that building.", resp.Message)
	require.Equal(t, "Old Gym", resp.Attributes[domain.AttrLastBuildingName])
}

func TestRoute_InvalidCourseSlotElicits(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.router.Route(context.Background(), request(domain.IntentInstructorLookup,
		"who teaches library", map[string]string{domain.SlotCourseCode: "library"}))

	require.Equal(t, domain.ActionElicitSlot, resp.Action)
	require.Equal(t, domain.SlotCourseCode, resp.SlotToElicit)
	require.Equal(t, "Which course code? e.g., ECE301", resp.Message)
	require.Empty(t, f.dispatcher.reqs)
}

func TestRoute_ScheduleElicitPrompt(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.router.Route(context.Background(), request(domain.IntentClassSchedule, "when is my class", nil))
	require.Equal(t, domain.ActionElicitSlot, resp.Action)
	require.Equal(t, "Which course code? e.g., CS101", resp.Message)
}

func TestRoute_ExplicitCourseBeatsBuildingMemory(t *testing.T) {
	f := newFixture(t, domain.SessionAttributes{
		domain.AttrLastBuildingName: "Library",
		domain.AttrLastIntent:       domain.IntentCampusLocation,
	})
	resp := f.router.Route(context.Background(), request(domain.IntentInstructorLookup,
		"Who teaches ECE301?", map[string]string{domain.SlotCourseCode: "ECE301"}))

	require.Equal(t, "ECE301 is taught by Dr. Ada, (email: ada@uah.edu).", resp.Message)
	require.Equal(t, "ECE301", resp.Attributes[domain.AttrLastCourseCode])
	require.Equal(t, "Library", resp.Attributes[domain.AttrLastBuildingName])
	require.Equal(t, domain.IntentInstructorLookup, resp.Attributes[domain.AttrLastIntent])
}

func TestRoute_CourseCodeFromTranscriptWhenSlotMissing(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.router.Route(context.Background(), request(domain.IntentClassSchedule, "when is cs 101", nil))
	require.Equal(t, "CS101 meets at MWF 9:00 in Shelby Center (Room 107).", resp.Message)
}

func TestRoute_PronounFirstCourse(t *testing.T) {
	f := newFixture(t, domain.SessionAttributes{
		domain.AttrLastCourseCode: "ECE301",
		domain.AttrLastIntent:     domain.IntentClassSchedule,
	})
	resp := f.router.Route(context.Background(), request(domain.IntentFallback, "who teaches it?", nil))
	require.Equal(t, "ECE301 is taught by Dr. Ada, (email: ada@uah.edu).", resp.Message)
	require.Equal(t, domain.IntentInstructorLookup, resp.Intent)
}

func TestRoute_StudentIDFromAttributes(t *testing.T) {
	f := newFixture(t, domain.SessionAttributes{domain.AttrStudentID: "alice"})
	resp := f.router.Route(context.Background(), request(domain.IntentClassSchedule,
		"when is CS101", map[string]string{domain.SlotCourseCode: "CS101"}))
	require.Equal(t, "CS101 meets at TR 1:00 in Shelby Center (Room 204).", resp.Message)
	require.Equal(t, "alice", f.dispatcher.reqs[0].StudentID)
}

func TestRoute_RuleOverride(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.router.Route(context.Background(), request(domain.IntentFallback, "find shelby", nil))
	require.Equal(t, domain.IntentCampusLocation, resp.Intent)
	require.Equal(t, "Shelby Center is at 301 Sparkman Dr NW.", resp.Message)
}

func TestRoute_BuiltinHoursInferenceForUnknownIntent(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.router.Route(context.Background(), request("SmallTalkIntent", "shelby center hours please", nil))
	require.Equal(t, domain.IntentBuildingHours, resp.Intent)
	require.Equal(t, "Shelby Center hours: 7am-11pm. Address: 301 Sparkman Dr NW.", resp.Message)
}

func TestRoute_ElicitBuildingWhenUnresolvedKeyword(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.router.Route(context.Background(), request(domain.IntentBuildingHours,
		"what are the hours for the stadium building", nil))
	require.Equal(t, domain.ActionElicitSlot, resp.Action)
	require.Equal(t, domain.SlotBuildingName, resp.SlotToElicit)
	require.Equal(t, "Which building?", resp.Message)
}

func TestRoute_ElicitBuildingForEmptyTurn(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.router.Route(context.Background(), request(domain.IntentCampusLocation, "", nil))
	require.Equal(t, domain.ActionElicitSlot, resp.Action)
	require.Equal(t, domain.SlotBuildingName, resp.SlotToElicit)
}

func TestRoute_BuildingNotFound(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.router.Route(context.Background(), request(domain.IntentCampusLocation,
		"where is the stadium", map[string]string{domain.SlotBuildingName: "stadium"}))
	require.Equal(t, domain.ActionClose, resp.Action)
	require.Equal(t, "I couldn't find that building. Try 'Where is the engineering building?'", resp.Message)
	require.Equal(t, domain.IntentCampusLocation, resp.Attributes[domain.AttrLastIntent])
	require.Empty(t, f.dispatcher.reqs)

	resp = f.router.Route(context.Background(), request(domain.IntentBuildingHours,
		"stadium", map[string]string{domain.SlotBuildingName: "stadium"}))
	require.Equal(t, "I couldn't find that building. Try asking 'What are the hours for the library?'", resp.Message)
}

func TestRoute_FAQ(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.router.Route(context.Background(), request(domain.IntentFAQ,
		"tell me about parking", map[string]string{domain.SlotFAQTopic: "parking"}))
	require.Equal(t, "Any lot with a permit.", resp.Message)
	require.Equal(t, "parking", resp.Attributes[domain.AttrLastTopic])
	require.Equal(t, domain.IntentFAQ, resp.Attributes[domain.AttrLastIntent])

	resp = f.router.Route(context.Background(), request(domain.IntentFAQ, "I have a question", nil))
	require.Equal(t, domain.ActionElicitSlot, resp.Action)
	require.Equal(t, domain.SlotFAQTopic, resp.SlotToElicit)
	require.Equal(t, "What topic would you like to ask about?", resp.Message)
}

func TestRoute_FeatureDisabled(t *testing.T) {
	f := newFixture(t, nil, withSchedulesDisabled())
	resp := f.router.Route(context.Background(), request(domain.IntentClassSchedule,
		"when is CS101", map[string]string{domain.SlotCourseCode: "CS101"}))

	require.Equal(t, domain.ActionClose, resp.Action)
	require.Equal(t, "Class schedule feature is currently disabled.", resp.Message)
	require.Empty(t, f.dispatcher.reqs)
	require.Empty(t, f.store.puts)
	require.Empty(t, f.store.appended)
}

func TestRoute_FeatureDisabledForRememberedCourse(t *testing.T) {
	f := newFixture(t, domain.SessionAttributes{domain.AttrLastCourseCode: "CS101"}, withSchedulesDisabled())
	resp := f.router.Route(context.Background(), request(domain.IntentFallback, "what time is class", nil))
	require.Equal(t, "Class schedule feature is currently disabled.", resp.Message)
	require.Empty(t, f.dispatcher.reqs)
}

func TestRoute_WorkerNotFoundKeepsLabels(t *testing.T) {
	f := newFixture(t, domain.SessionAttributes{domain.AttrLastCourseCode: "CS101"})
	resp := f.router.Route(context.Background(), request(domain.IntentClassSchedule,
		"when is EE999", map[string]string{domain.SlotCourseCode: "EE999"}))
	require.Equal(t, "I couldn't find that class in your schedule.", resp.Message)
	require.Equal(t, "CS101", resp.Attributes[domain.AttrLastCourseCode])
	require.Equal(t, domain.IntentClassSchedule, resp.Attributes[domain.AttrLastIntent])
	require.Len(t, f.store.puts, 1)
}

func TestRoute_UnavailableWorker(t *testing.T) {
	store := &memStore{}
	r, err := NewRouter(
		catalog.NewStatic(nil, []domain.Building{{Name: "Shelby Center"}}, nil),
		unavailableDispatcher{},
		session.NewMemory(store, false, discardLogger()),
		Options{SchedulesEnabled: true, InstructorsEnabled: true},
		discardLogger(),
	)
	require.NoError(t, err)

	resp := r.Route(context.Background(), request(domain.IntentBuildingHours, "shelby center hours", nil))
	require.Equal(t, domain.ActionClose, resp.Action)
	require.Equal(t, worker.UnavailableMessage, resp.Message)
	require.Empty(t, resp.Attributes[domain.AttrLastBuildingName])
	require.Len(t, store.puts, 1)
}

func TestRoute_RememberedCourseSchedule(t *testing.T) {
	f := newFixture(t, domain.SessionAttributes{
		domain.AttrLastCourseCode:   "CS101",
		domain.AttrLastBuildingName: "Shelby Center",
	})
	resp := f.router.Route(context.Background(), request(domain.IntentFallback, "schedule for my class", nil))
	require.Equal(t, "CS101 meets at MWF 9:00 in Shelby Center (Room 107).", resp.Message)
}

func TestRoute_CascadeUsesRememberedBuilding(t *testing.T) {
	f := newFixture(t, domain.SessionAttributes{domain.AttrLastBuildingName: "Old Gym"})
	resp := f.router.Route(context.Background(), request(domain.IntentFallback, "location please", nil))
	require.Equal(t, []worker.Request{{Capability: worker.CapabilityLocation, BuildingName: "Old Gym"}}, f.dispatcher.reqs)
	require.Equal(t, "I couldn't find that building.", resp.Message)
	require.Equal(t, domain.IntentCampusLocation, resp.Intent)
}

func TestRoute_NotUnderstood(t *testing.T) {
	persisted := domain.SessionAttributes{domain.AttrLastBuildingName: "Shelby Center"}
	f := newFixture(t, persisted)
	resp := f.router.Route(context.Background(), request(domain.IntentFallback, "tell me a joke", nil))

	require.Equal(t, domain.ActionClose, resp.Action)
	require.Equal(t, "Sorry, I didn't understand that. You can ask about building hours, locations, or FAQs.", resp.Message)
	require.Equal(t, domain.IntentFallback, resp.Intent)
	if diff := cmp.Diff(persisted, f.store.puts[0]); diff != "" {
		t.Fatalf("persisted attrs mismatch (-want +got):\n%s", diff)
	}
}

func TestRoute_MergesMemoryAndKeepsRecentContextTransient(t *testing.T) {
	f := newFixture(t, domain.SessionAttributes{
		domain.AttrLastBuildingName: "Shelby Center",
		domain.AttrLastTopic:        "parking",
		"custom":                    "persisted",
	})
	f.store.turns = []domain.TurnRecord{
		{UserInput: "where is shelby center", AssistantResponse: "Shelby Center is at 301 Sparkman Dr NW."},
		{UserInput: "hi", AssistantResponse: "hello"},
	}

	req := request(domain.IntentFallback, "tell me a joke", nil)
	req.Attributes = domain.SessionAttributes{"custom": "current"}
	resp := f.router.Route(context.Background(), req)

	want := domain.SessionAttributes{
		domain.AttrLastBuildingName: "Shelby Center",
		domain.AttrLastTopic:        "parking",
		"custom":                    "current",
		domain.AttrRecentContext:    "user: where is shelby center / assistant: Shelby Center is at 301 Sparkman Dr NW. | user: hi / assistant: hello",
	}
	if diff := cmp.Diff(want, resp.Attributes); diff != "" {
		t.Fatalf("response attrs mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, f.store.puts, 1)
	require.NotContains(t, f.store.puts[0], domain.AttrRecentContext)
	require.NotContains(t, f.store.appended[0].SessionAttributes, domain.AttrRecentContext)
}

func TestRoute_MemoryFailureIsEmptyMemory(t *testing.T) {
	f := newFixture(t, nil)
	f.store.getErr = errors.New("dynamodb unavailable")
	resp := f.router.Route(context.Background(), request(domain.IntentFallback, "where is it?", nil))
	require.Equal(t, domain.ActionClose, resp.Action)
	require.Equal(t, msgLocationNotFound, resp.Message)
	require.Empty(t, f.dispatcher.reqs)
}

func TestRoute_DefaultIdentity(t *testing.T) {
	f := newFixture(t, nil)
	req := request(domain.IntentFAQ, "parking", map[string]string{domain.SlotFAQTopic: "parking"})
	req.UserID, req.SessionID = "", ""
	f.router.Route(context.Background(), req)
	require.Equal(t, "student123", f.store.appended[0].SessionID)
}

func TestSummarizeTurns(t *testing.T) {
	require.Empty(t, summarizeTurns(nil))
	require.Equal(t, "user: a / assistant: b", summarizeTurns([]domain.TurnRecord{{UserInput: " a ", AssistantResponse: "b"}, {}}))
}
