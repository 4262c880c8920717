package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"campus-assistant/internal/domain"
)

var testTables = Tables{Buildings: "buildings", Schedules: "schedules", Instructors: "instructors"}

func TestReferenceTables_ListBuildingsPaginates(t *testing.T) {
	api := &fakeDynamo{scanOuts: []*dynamodb.ScanOutput{
		{
			Items: []map[string]types.AttributeValue{{
				"name":    sAttr("Shelby Center"),
				"hours":   sAttr("7am-11pm"),
				"address": sAttr("301 Sparkman Dr NW"),
				"lat":     &types.AttributeValueMemberN{Value: "34.7251"},
				"lon":     &types.AttributeValueMemberN{Value: "-86.6446"},
			}},
			LastEvaluatedKey: map[string]types.AttributeValue{"name": sAttr("Shelby Center")},
		},
		{
			Items: []map[string]types.AttributeValue{{
				"name": sAttr("Old Gym"),
				"lat":  sAttr("34.7"),
			}},
		},
	}}
	r, err := NewReferenceTables(api, testTables)
	require.NoError(t, err)

	got, err := r.ListBuildings(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "Shelby Center", got[0].Name)
	require.Equal(t, "7am-11pm", got[0].Hours)
	require.InDelta(t, 34.7251, *got[0].Lat, 1e-9)
	require.InDelta(t, -86.6446, *got[0].Lon, 1e-9)
	require.Equal(t, "Old Gym", got[1].Name)
	require.NotNil(t, got[1].Lat)
	require.Nil(t, got[1].Lon)

	require.Len(t, api.scanInputs, 2)
	require.Nil(t, api.scanInputs[0].ExclusiveStartKey)
	require.NotNil(t, api.scanInputs[1].ExclusiveStartKey)
	require.Equal(t, "buildings", aws.ToString(api.scanInputs[1].TableName))
}

func TestReferenceTables_ListBuildingsErrors(t *testing.T) {
	r, err := NewReferenceTables(&fakeDynamo{scanErr: errors.New("denied")}, testTables)
	require.NoError(t, err)
	_, err = r.ListBuildings(context.Background())
	require.ErrorContains(t, err, "denied")

	r, err = NewReferenceTables(&fakeDynamo{scanOuts: []*dynamodb.ScanOutput{{
		Items: []map[string]types.AttributeValue{{"name": sAttr("X"), "lat": sAttr("north")}},
	}}}, testTables)
	require.NoError(t, err)
	_, err = r.ListBuildings(context.Background())
	require.ErrorContains(t, err, `"lat"`)

	r, err = NewReferenceTables(&fakeDynamo{}, Tables{})
	require.NoError(t, err)
	_, err = r.ListBuildings(context.Background())
	require.ErrorContains(t, err, "not configured")

	_, err = NewReferenceTables(nil, testTables)
	require.Error(t, err)
}

func TestReferenceTables_GetSchedule(t *testing.T) {
	api := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"student_id":  sAttr("student123"),
		"course_code": sAttr("CS101"),
		"time":        sAttr("MWF 10:00"),
		"building":    sAttr("Shelby Center"),
		"location":    sAttr("Room 107"),
	}}}
	r, err := NewReferenceTables(api, testTables)
	require.NoError(t, err)

	got, err := r.GetSchedule(context.Background(), "student123", "CS101")
	require.NoError(t, err)
	require.Equal(t, &domain.ScheduleEntry{
		StudentID:  "student123",
		CourseCode: "CS101",
		Time:       "MWF 10:00",
		Building:   "Shelby Center",
		Location:   "Room 107",
	}, got)

	key := api.getInputs[0].Key
	require.Equal(t, "student123", key["student_id"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "CS101", key["course_code"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "schedules", aws.ToString(api.getInputs[0].TableName))
}

func TestReferenceTables_GetScheduleMissing(t *testing.T) {
	r, err := NewReferenceTables(&fakeDynamo{}, testTables)
	require.NoError(t, err)
	got, err := r.GetSchedule(context.Background(), "student123", "CS999")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestReferenceTables_GetInstructor(t *testing.T) {
	api := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"course_code":     sAttr("ECE301"),
		"instructor_name": sAttr("Dr. Rivera"),
		"email":           sAttr("rivera@example.edu"),
	}}}
	r, err := NewReferenceTables(api, testTables)
	require.NoError(t, err)

	got, err := r.GetInstructor(context.Background(), "ECE301")
	require.NoError(t, err)
	require.Equal(t, "Dr. Rivera", got.InstructorName)
	require.Equal(t, "rivera@example.edu", got.Email)
	require.Empty(t, got.Office)
	require.Equal(t, "instructors", aws.ToString(api.getInputs[0].TableName))

	r, err = NewReferenceTables(&fakeDynamo{getErr: errors.New("boom")}, testTables)
	require.NoError(t, err)
	_, err = r.GetInstructor(context.Background(), "ECE301")
	require.ErrorContains(t, err, "repository: GetInstructor")
}
