package domain

import "maps"

// Session attribute keys the router reads and writes. Any other key is
// carried through untouched.
const (
	AttrLastBuildingName = "last_building_name"
	AttrLastCourseCode   = "last_course_code"
	AttrLastIntent       = "last_intent"
	AttrLastTopic        = "last_topic"
	AttrStudentID        = "student_id"
	// AttrRecentContext is transient and never persisted.
	AttrRecentContext = "recent_context"
)

// SessionAttributes is the string-keyed state carried across turns.
type SessionAttributes map[string]string

// Clone returns a copy that is safe to mutate. A nil receiver yields an
// empty, non-nil map.
func (a SessionAttributes) Clone() SessionAttributes {
	out := make(SessionAttributes, len(a))
	maps.Copy(out, a)
	return out
}

// Get returns the value for key, or "" when absent.
func (a SessionAttributes) Get(key string) string {
	if a == nil {
		return ""
	}
	return a[key]
}

func (a SessionAttributes) LastBuilding() string { return a.Get(AttrLastBuildingName) }
func (a SessionAttributes) LastCourse() string   { return a.Get(AttrLastCourseCode) }
func (a SessionAttributes) LastIntent() string   { return a.Get(AttrLastIntent) }
