package domain

// Building is a campus building record.
type Building struct {
	Name    string   `json:"name" yaml:"name"`
	Hours   string   `json:"hours,omitempty" yaml:"hours,omitempty"`
	Address string   `json:"address,omitempty" yaml:"address,omitempty"`
	Lat     *float64 `json:"lat,omitempty" yaml:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty" yaml:"lon,omitempty"`
}

// ScheduleEntry is one course on a student's schedule.
type ScheduleEntry struct {
	StudentID  string `json:"student_id" yaml:"student_id"`
	CourseCode string `json:"course_code" yaml:"course_code"`
	Time       string `json:"time,omitempty" yaml:"time,omitempty"`
	Building   string `json:"building,omitempty" yaml:"building,omitempty"`
	Location   string `json:"location,omitempty" yaml:"location,omitempty"`
}

// Instructor is the teaching assignment for a course.
type Instructor struct {
	CourseCode     string `json:"course_code" yaml:"course_code"`
	InstructorName string `json:"instructor_name" yaml:"instructor_name"`
	Email          string `json:"email,omitempty" yaml:"email,omitempty"`
	Office         string `json:"office,omitempty" yaml:"office,omitempty"`
}

// FAQ is a canned question/answer pair.
type FAQ struct {
	Question string   `json:"question" yaml:"question"`
	Answer   string   `json:"answer" yaml:"answer"`
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
}

// Rule maps a keyword set to an intent. A rule fires only when every keyword
// is present in the utterance.
type Rule struct {
	Keywords []string `json:"keywords" yaml:"keywords"`
	Intent   string   `json:"intent" yaml:"intent"`
}
