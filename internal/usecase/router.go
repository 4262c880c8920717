package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"campus-assistant/internal/domain"
	"campus-assistant/internal/entity"
	"campus-assistant/internal/nlu"
	"campus-assistant/internal/session"
	"campus-assistant/internal/worker"
)

const (
	defaultRecentTurns = 5
	defaultStudentID   = "student123"

	msgWhichBuilding         = "Which building?"
	msgWhichTopic            = "What topic would you like to ask about?"
	msgWhichCourseSchedule   = "Which course code? e.g., CS101"
	msgWhichCourseInstructor = "Which course code? e.g., ECE301"
	msgHoursNotFound         = "I couldn't find that building. Try asking 'What are the hours for the library?'"
	msgLocationNotFound      = "I couldn't find that building. Try 'Where is the engineering building?'"
	msgScheduleDisabled      = "Class schedule feature is currently disabled."
	msgInstructorDisabled    = "Instructor lookup feature is currently disabled."
	msgNotUnderstood         = "Sorry, I didn't understand that. You can ask about building hours, locations, or FAQs."
)

// Catalog supplies the cached rule table and building list.
type Catalog interface {
	Rules(ctx context.Context) ([]domain.Rule, error)
	Buildings(ctx context.Context) ([]domain.Building, error)
}

// Memory is the best-effort persistent memory. None of its methods fail.
type Memory interface {
	Load(ctx context.Context, userID string) domain.SessionAttributes
	Save(ctx context.Context, userID string, attrs domain.SessionAttributes)
	AppendTurn(ctx context.Context, userID, sessionID string, rec domain.TurnRecord)
	RecentTurns(ctx context.Context, userID, sessionID string, limit int) []domain.TurnRecord
	HistoryEnabled() bool
}

// Options carries the feature flags and defaults the router needs.
type Options struct {
	SchedulesEnabled   bool
	InstructorsEnabled bool
	DefaultStudentID   string
	RecentTurnsLimit   int
}

// Router resolves one conversational turn into a close or elicit response.
type Router struct {
	catalog Catalog
	workers worker.Dispatcher
	memory  Memory
	opts    Options
	logger  *slog.Logger
	now     func() time.Time
}

func NewRouter(c Catalog, w worker.Dispatcher, m Memory, opts Options, logger *slog.Logger) (*Router, error) {
	if c == nil {
		return nil, errors.New("usecase: catalog must not be nil")
	}
	if w == nil {
		return nil, errors.New("usecase: worker dispatcher must not be nil")
	}
	if m == nil {
		return nil, errors.New("usecase: memory must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts.DefaultStudentID = strings.TrimSpace(opts.DefaultStudentID)
	if opts.DefaultStudentID == "" {
		opts.DefaultStudentID = defaultStudentID
	}
	if opts.RecentTurnsLimit <= 0 {
		opts.RecentTurnsLimit = defaultRecentTurns
	}
	return &Router{
		catalog: c,
		workers: w,
		memory:  m,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// turn is the working state of one Route call.
type turn struct {
	userID     string
	sessionID  string
	utterance  domain.Utterance
	transcript string
	intent     string
	attrs      domain.SessionAttributes
	buildings  []domain.Building
	// explicitCourse is a valid course code named in this turn, if any.
	explicitCourse string
}

// outcome is a terminal branch of the turn.
type outcome struct {
	action       string
	dialog       domain.DialogAction
	message      string
	slotToElicit string
	// ephemeral outcomes are neither persisted nor recorded in history.
	ephemeral bool
	extra     []any
}

// Route never fails: every path ends in a close or elicit response.
func (r *Router) Route(ctx context.Context, req domain.TurnRequest) domain.TurnResponse {
	t := r.begin(ctx, req)
	out := r.resolve(ctx, t)
	return r.finish(ctx, t, out)
}

func (r *Router) begin(ctx context.Context, req domain.TurnRequest) *turn {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = r.opts.DefaultStudentID
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = userID
	}

	attrs := session.MergeForTurn(req.Attributes, r.memory.Load(ctx, userID))
	if r.memory.HistoryEnabled() {
		recent := r.memory.RecentTurns(ctx, userID, sessionID, r.opts.RecentTurnsLimit)
		if summary := summarizeTurns(recent); summary != "" {
			attrs[domain.AttrRecentContext] = summary
		}
	}

	buildings, err := r.catalog.Buildings(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "building list unavailable", "err", err)
	}

	t := &turn{
		userID:     userID,
		sessionID:  sessionID,
		utterance:  req.Utterance,
		transcript: strings.TrimSpace(req.Utterance.Transcript),
		intent:     strings.TrimSpace(req.Utterance.Intent),
		attrs:      attrs,
		buildings:  buildings,
	}
	if code, ok := entity.FindCourseCode(t.transcript); ok {
		t.explicitCourse = code
	} else if slot := t.utterance.Slot(domain.SlotCourseCode); entity.IsValidCourseCode(slot) {
		t.explicitCourse = entity.NormalizeCourseCode(slot)
	}
	return t
}

func (r *Router) resolve(ctx context.Context, t *turn) outcome {
	if out, ok := r.pronounFirst(ctx, t); ok {
		return out
	}
	r.overrideIntent(ctx, t)

	switch t.intent {
	case domain.IntentBuildingHours:
		return r.buildingIntent(ctx, t, worker.CapabilityHours)
	case domain.IntentCampusLocation:
		return r.buildingIntent(ctx, t, worker.CapabilityLocation)
	case domain.IntentFAQ:
		return r.faqIntent(ctx, t)
	case domain.IntentClassSchedule:
		return r.courseIntent(ctx, t, worker.CapabilitySchedule)
	case domain.IntentInstructorLookup:
		return r.courseIntent(ctx, t, worker.CapabilityInstructor)
	}
	return r.cascade(ctx, t)
}

// pronounFirst answers follow-ups such as "where is it?" from memory before
// any intent handling. A course code named in the turn disables it.
func (r *Router) pronounFirst(ctx context.Context, t *turn) (outcome, bool) {
	if t.explicitCourse != "" {
		return outcome{}, false
	}
	if !nlu.HasBarePronoun(t.transcript) && !nlu.LooksLikeAnyQuery(t.transcript) {
		return outcome{}, false
	}

	switch nlu.ResolvePronounReferent(t.transcript, t.attrs) {
	case nlu.ReferentBuilding:
		capability := worker.CapabilityLocation
		if nlu.LooksLikeHours(t.transcript) {
			capability = worker.CapabilityHours
		}
		action := "pronoun_first_" + string(capability)
		if b, ok := entity.ExtractBuilding(t.transcript, t.buildings); ok {
			return r.dispatchBuilding(ctx, t, capability, b.Name, action), true
		}
		if nlu.MentionsBuildingKeyword(t.transcript) {
			t.intent = capabilityIntent(capability)
			return elicit(domain.SlotBuildingName, msgWhichBuilding, "pronoun_first_elicit_building"), true
		}
		if b, ok := entity.FindBuilding(t.attrs.LastBuilding(), t.buildings); ok {
			return r.dispatchBuilding(ctx, t, capability, b.Name, action), true
		}
	case nlu.ReferentCourse:
		code := t.attrs.LastCourse()
		if nlu.LooksLikeSchedule(t.transcript) {
			return r.dispatchCourse(ctx, t, worker.CapabilitySchedule, code, "pronoun_first_schedule"), true
		}
		if nlu.LooksLikeInstructor(t.transcript) {
			return r.dispatchCourse(ctx, t, worker.CapabilityInstructor, code, "pronoun_first_instructor"), true
		}
	}
	return outcome{}, false
}

// overrideIntent replaces a fallback or unknown intent with one inferred
// from the rule table.
func (r *Router) overrideIntent(ctx context.Context, t *turn) {
	if t.intent != domain.IntentFallback && domain.IsKnownIntent(t.intent) {
		return
	}
	rules, err := r.catalog.Rules(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "nlu rules unavailable", "err", err)
	}
	if inferred, ok := nlu.InferIntentFromRules(t.transcript, rules); ok && domain.IsKnownIntent(inferred) {
		r.logger.DebugContext(ctx, "intent inferred from rules", "recognized", t.intent, "inferred", inferred)
		t.intent = inferred
	}
}

func (r *Router) buildingIntent(ctx context.Context, t *turn, capability worker.Capability) outcome {
	slot := t.utterance.Slot(domain.SlotBuildingName)
	name := nlu.ResolveBuildingReference(slot, t.transcript, t.attrs)
	if name == "" {
		if b, ok := entity.ExtractBuilding(t.transcript, t.buildings); ok {
			name = b.Name
		}
	}
	if name == "" {
		name = slot
	}
	if name == "" {
		name = t.transcript
	}
	if name == "" || nlu.IsBuildingPronoun(name) {
		return elicit(domain.SlotBuildingName, msgWhichBuilding, "elicit_building")
	}

	if b, ok := entity.FindBuilding(name, t.buildings); ok {
		return r.dispatchBuilding(ctx, t, capability, b.Name, "building_"+string(capability))
	}
	if nlu.MentionsBuildingKeyword(t.transcript) {
		return elicit(domain.SlotBuildingName, msgWhichBuilding, "elicit_building_unresolved")
	}

	msg := msgLocationNotFound
	if capability == worker.CapabilityHours {
		msg = msgHoursNotFound
	}
	t.attrs[domain.AttrLastIntent] = t.intent
	return closed("building_"+string(capability)+"_not_found", msg, "query", name)
}

func (r *Router) faqIntent(ctx context.Context, t *turn) outcome {
	topic := t.utterance.Slot(domain.SlotFAQTopic)
	if topic == "" {
		return elicit(domain.SlotFAQTopic, msgWhichTopic, "elicit_topic")
	}
	res := r.workers.Dispatch(ctx, worker.Request{Capability: worker.CapabilityFAQ, Topic: topic})
	r.apply(t, res, "", "")
	return closed("faq", res.Message, "topic", topic, "error", res.ErrorCode)
}

func (r *Router) courseIntent(ctx context.Context, t *turn, capability worker.Capability) outcome {
	if !r.enabled(capability) {
		return r.disabled(t, capability)
	}

	code := t.utterance.Slot(domain.SlotCourseCode)
	if nlu.IsCoursePronoun(code) || !entity.IsValidCourseCode(code) {
		code = t.explicitCourse
	}
	if code != "" {
		return r.dispatchCourse(ctx, t, capability, code, string(capability))
	}

	if capability == worker.CapabilitySchedule {
		// "When is it open?" is often recognized as a schedule question.
		if last := t.attrs.LastBuilding(); last != "" {
			if nlu.LooksLikeHours(t.transcript) {
				return r.dispatchBuilding(ctx, t, worker.CapabilityHours, r.canonicalBuilding(t, last), "hours_reroute_from_schedule")
			}
			if nlu.LooksLikeLocation(t.transcript) {
				return r.dispatchBuilding(ctx, t, worker.CapabilityLocation, r.canonicalBuilding(t, last), "location_reroute_from_schedule")
			}
		}
		return elicit(domain.SlotCourseCode, msgWhichCourseSchedule, "elicit_course")
	}
	return elicit(domain.SlotCourseCode, msgWhichCourseInstructor, "elicit_course")
}

// cascade answers from memory when no intent branch applies.
func (r *Router) cascade(ctx context.Context, t *turn) outcome {
	lastCourse := t.attrs.LastCourse()
	lastBuilding := t.attrs.LastBuilding()
	switch {
	case lastCourse != "" && nlu.LooksLikeSchedule(t.transcript):
		return r.dispatchCourse(ctx, t, worker.CapabilitySchedule, lastCourse, "fallback_schedule")
	case lastCourse != "" && nlu.LooksLikeInstructor(t.transcript):
		return r.dispatchCourse(ctx, t, worker.CapabilityInstructor, lastCourse, "fallback_instructor")
	case lastBuilding != "" && nlu.LooksLikeLocation(t.transcript):
		return r.dispatchBuilding(ctx, t, worker.CapabilityLocation, r.canonicalBuilding(t, lastBuilding), "fallback_location")
	case lastBuilding != "" && nlu.LooksLikeHours(t.transcript):
		return r.dispatchBuilding(ctx, t, worker.CapabilityHours, r.canonicalBuilding(t, lastBuilding), "fallback_hours")
	}
	return closed("fallback_unrecognized", msgNotUnderstood)
}

func (r *Router) dispatchBuilding(ctx context.Context, t *turn, capability worker.Capability, name, action string) outcome {
	t.intent = capabilityIntent(capability)
	res := r.workers.Dispatch(ctx, worker.Request{Capability: capability, BuildingName: name})
	label := res.Building
	if label == "" {
		label = name
	}
	r.apply(t, res, domain.AttrLastBuildingName, label)
	return closed(action, res.Message, "building", label, "error", res.ErrorCode)
}

func (r *Router) dispatchCourse(ctx context.Context, t *turn, capability worker.Capability, code, action string) outcome {
	if !r.enabled(capability) {
		return r.disabled(t, capability)
	}
	t.intent = capabilityIntent(capability)
	code = entity.NormalizeCourseCode(code)
	req := worker.Request{Capability: capability, CourseCode: code}
	if capability == worker.CapabilitySchedule {
		req.StudentID = r.studentID(t)
	}
	res := r.workers.Dispatch(ctx, req)
	label := res.CourseCode
	if label == "" {
		label = code
	}
	r.apply(t, res, domain.AttrLastCourseCode, entity.NormalizeCourseCode(label))
	return closed(action, res.Message, "course_code", code, "error", res.ErrorCode)
}

// apply folds a worker result into the turn's attributes. A failed result
// only records the intent.
func (r *Router) apply(t *turn, res worker.Result, labelKey, label string) {
	if !res.Failed() {
		for k, v := range res.Attributes {
			if k != domain.AttrRecentContext {
				t.attrs[k] = v
			}
		}
		if labelKey != "" && label != "" {
			t.attrs[labelKey] = label
		}
	}
	t.attrs[domain.AttrLastIntent] = t.intent
}

func elicit(slot, message, action string) outcome {
	return outcome{
		action:       action,
		dialog:       domain.ActionElicitSlot,
		message:      message,
		slotToElicit: slot,
		extra:        []any{"slot", slot},
	}
}

func (r *Router) disabled(t *turn, capability worker.Capability) outcome {
	t.intent = capabilityIntent(capability)
	msg := msgInstructorDisabled
	if capability == worker.CapabilitySchedule {
		msg = msgScheduleDisabled
	}
	out := closed(string(capability)+"_disabled", msg)
	out.ephemeral = true
	return out
}

func (r *Router) enabled(capability worker.Capability) bool {
	switch capability {
	case worker.CapabilitySchedule:
		return r.opts.SchedulesEnabled
	case worker.CapabilityInstructor:
		return r.opts.InstructorsEnabled
	}
	return true
}

func (r *Router) studentID(t *turn) string {
	if id := strings.TrimSpace(t.attrs.Get(domain.AttrStudentID)); id != "" {
		return id
	}
	return r.opts.DefaultStudentID
}

// canonicalBuilding maps a remembered name onto the catalog when possible.
func (r *Router) canonicalBuilding(t *turn, name string) string {
	if b, ok := entity.FindBuilding(name, t.buildings); ok {
		return b.Name
	}
	return name
}

func (r *Router) finish(ctx context.Context, t *turn, out outcome) domain.TurnResponse {
	resp := domain.TurnResponse{
		Action:       out.dialog,
		Message:      out.message,
		Intent:       t.intent,
		SlotToElicit: out.slotToElicit,
		Attributes:   t.attrs,
	}

	args := []any{"action", out.action, "dialog_action", resp.Action, "intent", t.intent, "attrs", t.attrs}
	r.logger.InfoContext(ctx, "session_state", append(args, out.extra...)...)

	if out.ephemeral {
		return resp
	}
	r.memory.Save(ctx, t.userID, t.attrs)
	if r.memory.HistoryEnabled() {
		now := r.now().UTC()
		r.memory.AppendTurn(ctx, t.userID, t.sessionID, domain.TurnRecord{
			TurnID:            newUUID(),
			SessionID:         t.sessionID,
			UserInput:         t.transcript,
			AssistantResponse: out.message,
			Intent:            t.intent,
			Slots:             t.utterance.Slots,
			SessionAttributes: t.attrs,
			Timestamp:         now,
			TimestampMS:       now.UnixMilli(),
		})
	}
	return resp
}

func closed(action, message string, extra ...any) outcome {
	return outcome{action: action, dialog: domain.ActionClose, message: message, extra: extra}
}

func capabilityIntent(c worker.Capability) string {
	switch c {
	case worker.CapabilityHours:
		return domain.IntentBuildingHours
	case worker.CapabilityLocation:
		return domain.IntentCampusLocation
	case worker.CapabilitySchedule:
		return domain.IntentClassSchedule
	case worker.CapabilityInstructor:
		return domain.IntentInstructorLookup
	default:
		return domain.IntentFAQ
	}
}

// summarizeTurns renders recent turns, most recent first, as a compact
// "user: ... / assistant: ..." context line.
func summarizeTurns(turns []domain.TurnRecord) string {
	parts := make([]string, 0, len(turns))
	for _, rec := range turns {
		user := strings.TrimSpace(rec.UserInput)
		assistant := strings.TrimSpace(rec.AssistantResponse)
		if user == "" && assistant == "" {
			continue
		}
		parts = append(parts, "user: "+user+" / assistant: "+assistant)
	}
	return strings.Join(parts, " | ")
}

var newUUID = func() string {
	return uuid.NewString()
}
