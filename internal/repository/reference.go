package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"campus-assistant/internal/domain"
)

// Tables names the DynamoDB reference tables. Empty names disable the
// corresponding lookups.
type Tables struct {
	Buildings   string
	Schedules   string
	Instructors string
}

// ReferenceTables reads buildings, schedules and instructors from DynamoDB.
type ReferenceTables struct {
	api    dynamodbAPI
	tables Tables
}

func NewReferenceTables(api dynamodbAPI, tables Tables) (*ReferenceTables, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	return &ReferenceTables{api: api, tables: tables}, nil
}

// ListBuildings scans the whole buildings table, following pagination.
func (r *ReferenceTables) ListBuildings(ctx context.Context) ([]domain.Building, error) {
	if strings.TrimSpace(r.tables.Buildings) == "" {
		return nil, errors.New("repository: ListBuildings: buildings table not configured")
	}
	var buildings []domain.Building
	p := dynamodb.NewScanPaginator(r.api, &dynamodb.ScanInput{
		TableName: aws.String(r.tables.Buildings),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("repository: ListBuildings: %w", err)
		}
		for _, item := range page.Items {
			b, err := itemToBuilding(item)
			if err != nil {
				return nil, fmt.Errorf("repository: ListBuildings: %w", err)
			}
			buildings = append(buildings, b)
		}
	}
	return buildings, nil
}

// GetSchedule returns the schedule entry, or nil when the student is not
// enrolled in the course.
func (r *ReferenceTables) GetSchedule(ctx context.Context, studentID, courseCode string) (*domain.ScheduleEntry, error) {
	if strings.TrimSpace(r.tables.Schedules) == "" {
		return nil, errors.New("repository: GetSchedule: schedules table not configured")
	}
	out, err := r.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tables.Schedules),
		Key: map[string]types.AttributeValue{
			"student_id":  &types.AttributeValueMemberS{Value: studentID},
			"course_code": &types.AttributeValueMemberS{Value: courseCode},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("repository: GetSchedule: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}
	return &domain.ScheduleEntry{
		StudentID:  studentID,
		CourseCode: courseCode,
		Time:       optStrAttr(out.Item, "time"),
		Building:   optStrAttr(out.Item, "building"),
		Location:   optStrAttr(out.Item, "location"),
	}, nil
}

// GetInstructor returns the instructor of the course, or nil.
func (r *ReferenceTables) GetInstructor(ctx context.Context, courseCode string) (*domain.Instructor, error) {
	if strings.TrimSpace(r.tables.Instructors) == "" {
		return nil, errors.New("repository: GetInstructor: instructors table not configured")
	}
	out, err := r.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tables.Instructors),
		Key: map[string]types.AttributeValue{
			"course_code": &types.AttributeValueMemberS{Value: courseCode},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("repository: GetInstructor: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}
	return &domain.Instructor{
		CourseCode:     courseCode,
		InstructorName: optStrAttr(out.Item, "instructor_name"),
		Email:          optStrAttr(out.Item, "email"),
		Office:         optStrAttr(out.Item, "office"),
	}, nil
}

func itemToBuilding(item map[string]types.AttributeValue) (domain.Building, error) {
	name, err := strAttr(item, "name")
	if err != nil {
		return domain.Building{}, err
	}
	lat, err := floatAttr(item, "lat")
	if err != nil {
		return domain.Building{}, err
	}
	lon, err := floatAttr(item, "lon")
	if err != nil {
		return domain.Building{}, err
	}
	return domain.Building{
		Name:    name,
		Hours:   optStrAttr(item, "hours"),
		Address: optStrAttr(item, "address"),
		Lat:     lat,
		Lon:     lon,
	}, nil
}
