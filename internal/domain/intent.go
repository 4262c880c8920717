package domain

// Intent names recognized by the upstream NLU front end.
const (
	IntentBuildingHours    = "GetBuildingHoursIntent"
	IntentCampusLocation   = "GetCampusLocationIntent"
	IntentFAQ              = "GetFAQIntent"
	IntentClassSchedule    = "GetClassScheduleIntent"
	IntentInstructorLookup = "GetInstructorLookupIntent"
	IntentFallback         = "AMAZON.FallbackIntent"
)

// Slot names read by the router.
const (
	SlotBuildingName = "BuildingName"
	SlotCourseCode   = "CourseCode"
	SlotFAQTopic     = "FaqTopic"
)

// IsKnownIntent reports whether name is one of the five answerable intents.
func IsKnownIntent(name string) bool {
	switch name {
	case IntentBuildingHours, IntentCampusLocation, IntentFAQ, IntentClassSchedule, IntentInstructorLookup:
		return true
	}
	return false
}

// IsBuildingIntent reports whether name belongs to the building domain.
func IsBuildingIntent(name string) bool {
	return name == IntentBuildingHours || name == IntentCampusLocation
}

// IsCourseIntent reports whether name belongs to the course domain.
func IsCourseIntent(name string) bool {
	return name == IntentClassSchedule || name == IntentInstructorLookup
}
