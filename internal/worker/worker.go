// Package worker implements the five lookup capabilities behind the
// dispatch boundary and the adapters that reach them.
package worker

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"

	"campus-assistant/internal/domain"
)

type Capability string

const (
	CapabilityHours      Capability = "hours"
	CapabilityLocation   Capability = "location"
	CapabilitySchedule   Capability = "schedule"
	CapabilityInstructor Capability = "instructor"
	CapabilityFAQ        Capability = "faq"
)

// Capabilities lists every capability in a stable order.
var Capabilities = []Capability{
	CapabilityHours,
	CapabilityLocation,
	CapabilitySchedule,
	CapabilityInstructor,
	CapabilityFAQ,
}

func (c Capability) Valid() bool {
	switch c {
	case CapabilityHours, CapabilityLocation, CapabilitySchedule, CapabilityInstructor, CapabilityFAQ:
		return true
	}
	return false
}

// UnavailableMessage is shown whenever a capability cannot be reached.
const UnavailableMessage = "Sorry, that service is unavailable right now. Please try again later."

// Request is the capability-specific lookup. Only the fields the capability
// needs are set; it is also the JSON payload sent to remote workers.
type Request struct {
	Capability   Capability `json:"capability" validate:"required"`
	BuildingName string     `json:"building_name,omitempty"`
	StudentID    string     `json:"student_id,omitempty"`
	CourseCode   string     `json:"course_code,omitempty"`
	Topic        string     `json:"topic,omitempty"`
}

// Validate reports the first missing field for the capability.
func (r Request) Validate() error {
	return validate.Struct(r)
}

// Result is the envelope every dispatch returns. Message is always set.
type Result struct {
	Message    string
	Attributes domain.SessionAttributes
	// Building and CourseCode carry the canonical label the worker resolved.
	Building   string
	CourseCode string
	ErrorCode  ErrorCode
}

func (r Result) Failed() bool { return r.ErrorCode != "" }

// Dispatcher routes a request to its capability. Dispatch never fails; a
// failure is reported through Result.ErrorCode.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) Result
}

// Reply is the JSON shape a remote worker answers with.
type Reply struct {
	Message      string            `json:"message"`
	SessionAttrs map[string]string `json:"session_attrs,omitempty"`
	Building     string            `json:"building,omitempty"`
	CourseCode   string            `json:"course_code,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// NewReply converts a Result into its wire form.
func NewReply(r Result) Reply {
	return Reply{
		Message:      r.Message,
		SessionAttrs: r.Attributes,
		Building:     r.Building,
		CourseCode:   r.CourseCode,
		Error:        string(r.ErrorCode),
	}
}

func (r Reply) Result() Result {
	var attrs domain.SessionAttributes
	if len(r.SessionAttrs) > 0 {
		attrs = domain.SessionAttributes(r.SessionAttrs).Clone()
	}
	return Result{
		Message:    r.Message,
		Attributes: attrs,
		Building:   r.Building,
		CourseCode: r.CourseCode,
		ErrorCode:  ErrorCode(r.Error),
	}
}

func decodeReply(raw []byte) (Reply, error) {
	var reply Reply
	err := json.Unmarshal(raw, &reply)
	return reply, err
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateRequest, Request{})
	return v
}

func validateRequest(sl validator.StructLevel) {
	req := sl.Current().Interface().(Request)
	required := func(value, field string) {
		if value == "" {
			sl.ReportError(value, field, field, "required", string(req.Capability))
		}
	}
	switch req.Capability {
	case CapabilityHours, CapabilityLocation:
		required(req.BuildingName, "BuildingName")
	case CapabilitySchedule:
		required(req.StudentID, "StudentID")
		required(req.CourseCode, "CourseCode")
	case CapabilityInstructor:
		required(req.CourseCode, "CourseCode")
	case CapabilityFAQ:
		required(req.Topic, "Topic")
	case "":
	default:
		sl.ReportError(req.Capability, "Capability", "Capability", "oneof", "")
	}
}
