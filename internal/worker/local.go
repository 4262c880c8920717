package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"campus-assistant/internal/domain"
	"campus-assistant/internal/entity"
)

const (
	msgWhichBuilding      = "Which building?"
	msgBuildingNotFound   = "I couldn't find that building."
	msgMissingSchedule    = "Missing student_id or course_code."
	msgClassNotFound      = "I couldn't find that class in your schedule."
	msgScheduleLookupErr  = "There was a problem looking up your schedule. Please try again."
	msgWhichCourse        = "Which course code? e.g., ECE301"
	msgInstructorNotFound = "I couldn't find the instructor for that course."
	msgInstructorErr      = "There was a problem looking up the instructor. Please try again."
	msgWhichTopic         = "What topic would you like to ask about?"
	msgNoAnswer           = "I don't have an answer yet."

	// FAQMissMessage is returned when no FAQ matches the topic.
	FAQMissMessage = "I couldn't find that in my FAQs yet. Please try a different phrase or ask about buildings or hours."

	maxGenerativeExamples = 3
)

// Catalog supplies the cached building and FAQ lists.
type Catalog interface {
	Buildings(ctx context.Context) ([]domain.Building, error)
	FAQs(ctx context.Context) ([]domain.FAQ, error)
}

// Lookup answers keyed schedule and instructor queries. A nil record with a
// nil error means "not found".
type Lookup interface {
	GetSchedule(ctx context.Context, studentID, courseCode string) (*domain.ScheduleEntry, error)
	GetInstructor(ctx context.Context, courseCode string) (*domain.Instructor, error)
}

// Answerer produces a free-form FAQ answer when no canned FAQ matches.
type Answerer interface {
	Answer(ctx context.Context, topic string, examples []domain.FAQ) (string, error)
}

// Local runs every capability in-process.
type Local struct {
	catalog  Catalog
	lookup   Lookup
	answerer Answerer
	logger   *slog.Logger
}

type LocalOption func(*Local)

// WithAnswerer enables the generative FAQ fallback.
func WithAnswerer(a Answerer) LocalOption {
	return func(l *Local) {
		l.answerer = a
	}
}

func WithLogger(logger *slog.Logger) LocalOption {
	return func(l *Local) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func NewLocal(catalog Catalog, lookup Lookup, opts ...LocalOption) (*Local, error) {
	if catalog == nil {
		return nil, errors.New("worker: catalog must not be nil")
	}
	if lookup == nil {
		return nil, errors.New("worker: lookup must not be nil")
	}
	l := &Local{catalog: catalog, lookup: lookup, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *Local) Dispatch(ctx context.Context, req Request) Result {
	req = trimRequest(req)
	if !req.Capability.Valid() {
		return unavailableResult()
	}
	if err := req.Validate(); err != nil {
		return errorResult(newError(ErrorMissingParams, missingMessage(req.Capability), err))
	}

	var (
		res Result
		err error
	)
	switch req.Capability {
	case CapabilityHours:
		res, err = l.hours(ctx, req.BuildingName)
	case CapabilityLocation:
		res, err = l.location(ctx, req.BuildingName)
	case CapabilitySchedule:
		res, err = l.schedule(ctx, req.StudentID, req.CourseCode)
	case CapabilityInstructor:
		res, err = l.instructor(ctx, req.CourseCode)
	case CapabilityFAQ:
		res, err = l.faq(ctx, req.Topic)
	}
	if err != nil {
		var werr *Error
		if errors.As(err, &werr) && werr.Code != ErrorNotFound {
			l.logger.WarnContext(ctx, "worker failed", "capability", req.Capability, "code", werr.Code, "err", err)
		}
		return errorResult(err)
	}
	return res
}

func (l *Local) hours(ctx context.Context, name string) (Result, error) {
	b, err := l.findBuilding(ctx, name)
	if err != nil {
		return Result{}, err
	}
	msg := fmt.Sprintf("%s hours: %s. Address: %s.",
		b.Name, orDefault(b.Hours, "Hours not available"), orDefault(b.Address, "Address not available"))
	return buildingResult(msg, b.Name, domain.IntentBuildingHours), nil
}

func (l *Local) location(ctx context.Context, name string) (Result, error) {
	b, err := l.findBuilding(ctx, name)
	if err != nil {
		return Result{}, err
	}
	addr := orDefault(b.Address, "Address not available")
	msg := fmt.Sprintf("%s is at %s.", b.Name, addr)
	if b.Lat != nil && b.Lon != nil {
		msg = fmt.Sprintf("%s is at %s (lat: %v, lon: %v).", b.Name, addr, *b.Lat, *b.Lon)
	}
	return buildingResult(msg, b.Name, domain.IntentCampusLocation), nil
}

func (l *Local) findBuilding(ctx context.Context, name string) (domain.Building, error) {
	buildings, err := l.catalog.Buildings(ctx)
	if err != nil {
		return domain.Building{}, newError(ErrorLookup, msgBuildingNotFound, err)
	}
	b, ok := entity.FindBuilding(name, buildings)
	if !ok {
		return domain.Building{}, newError(ErrorNotFound, msgBuildingNotFound, nil)
	}
	return b, nil
}

func (l *Local) schedule(ctx context.Context, studentID, courseCode string) (Result, error) {
	code := entity.NormalizeCourseCode(courseCode)
	entry, err := l.lookup.GetSchedule(ctx, studentID, code)
	if err != nil {
		return Result{}, newError(ErrorLookup, msgScheduleLookupErr, err)
	}
	if entry == nil {
		return Result{}, newError(ErrorNotFound, msgClassNotFound, nil)
	}
	msg := fmt.Sprintf("%s meets at %s in %s (%s).",
		code, orDefault(entry.Time, "TBD"), orDefault(entry.Building, "TBD"), orDefault(entry.Location, "TBD"))
	return courseResult(msg, code, domain.IntentClassSchedule), nil
}

func (l *Local) instructor(ctx context.Context, courseCode string) (Result, error) {
	code := entity.NormalizeCourseCode(courseCode)
	inst, err := l.lookup.GetInstructor(ctx, code)
	if err != nil {
		return Result{}, newError(ErrorLookup, msgInstructorErr, err)
	}
	if inst == nil {
		return Result{}, newError(ErrorNotFound, msgInstructorNotFound, nil)
	}
	parts := []string{fmt.Sprintf("%s is taught by %s", code, orDefault(inst.InstructorName, "Unknown"))}
	if email := strings.TrimSpace(inst.Email); email != "" {
		parts = append(parts, "(email: "+email+")")
	}
	if office := strings.TrimSpace(inst.Office); office != "" {
		parts = append(parts, "office: "+office)
	}
	return courseResult(strings.Join(parts, ", ")+".", code, domain.IntentInstructorLookup), nil
}

func (l *Local) faq(ctx context.Context, topic string) (Result, error) {
	faqs, err := l.catalog.FAQs(ctx)
	if err != nil {
		// An unreadable FAQ list reads as an empty one.
		l.logger.WarnContext(ctx, "faq list unavailable", "err", err)
	}
	attrs := domain.SessionAttributes{
		domain.AttrLastIntent: domain.IntentFAQ,
		domain.AttrLastTopic:  topic,
	}
	if faq, ok := MatchFAQ(topic, faqs); ok {
		return Result{Message: orDefault(faq.Answer, msgNoAnswer), Attributes: attrs}, nil
	}
	msg := FAQMissMessage
	if l.answerer != nil {
		answer, err := l.answerer.Answer(ctx, topic, faqs[:min(len(faqs), maxGenerativeExamples)])
		if err != nil {
			l.logger.WarnContext(ctx, "generative faq fallback failed", "topic", topic, "err", err)
		} else if answer = strings.TrimSpace(answer); answer != "" {
			msg = answer
		}
	}
	return Result{Message: msg, Attributes: attrs}, nil
}

// MatchFAQ returns the first FAQ whose question or one of whose keywords
// contains the topic, case-insensitively.
func MatchFAQ(topic string, faqs []domain.FAQ) (domain.FAQ, bool) {
	t := strings.ToLower(strings.TrimSpace(topic))
	if t == "" {
		return domain.FAQ{}, false
	}
	for _, faq := range faqs {
		if strings.Contains(strings.ToLower(strings.TrimSpace(faq.Question)), t) {
			return faq, true
		}
		for _, kw := range faq.Keywords {
			if strings.Contains(strings.ToLower(kw), t) {
				return faq, true
			}
		}
	}
	return domain.FAQ{}, false
}

func buildingResult(msg, name, intent string) Result {
	return Result{
		Message: msg,
		Attributes: domain.SessionAttributes{
			domain.AttrLastBuildingName: name,
			domain.AttrLastIntent:       intent,
		},
		Building: name,
	}
}

func courseResult(msg, code, intent string) Result {
	return Result{
		Message: msg,
		Attributes: domain.SessionAttributes{
			domain.AttrLastCourseCode: code,
			domain.AttrLastIntent:     intent,
		},
		CourseCode: code,
	}
}

func errorResult(err error) Result {
	var werr *Error
	if !errors.As(err, &werr) {
		return unavailableResult()
	}
	return Result{Message: werr.Message, ErrorCode: werr.Code}
}

func missingMessage(c Capability) string {
	switch c {
	case CapabilityHours, CapabilityLocation:
		return msgWhichBuilding
	case CapabilitySchedule:
		return msgMissingSchedule
	case CapabilityInstructor:
		return msgWhichCourse
	default:
		return msgWhichTopic
	}
}

func trimRequest(req Request) Request {
	req.BuildingName = strings.TrimSpace(req.BuildingName)
	req.StudentID = strings.TrimSpace(req.StudentID)
	req.CourseCode = strings.TrimSpace(req.CourseCode)
	req.Topic = strings.TrimSpace(req.Topic)
	return req
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
