package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefDecodesEveryShape(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Ref
	}{
		{name: "bare string", in: `"c1"`, want: Ref{ID: "c1"}},
		{name: "number", in: `42`, want: Ref{ID: "42"}},
		{name: "mongo object", in: `{"_id":"c2","name":"Chess"}`, want: Ref{ID: "c2", Name: "Chess"}},
		{name: "hemis object", in: `{"id":7,"name":"Physics"}`, want: Ref{ID: "7", Name: "Physics"}},
		{name: "student object", in: `{"_id":"s1","full_name":"Ali Valiyev"}`, want: Ref{ID: "s1", Name: "Ali Valiyev"}},
		{name: "null", in: `null`, want: Ref{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Ref
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDateDecodesDateAndTimestamp(t *testing.T) {
	var s AttendanceSession
	require.NoError(t, json.Unmarshal([]byte(`{"_id":"a1","date":"2024-03-15T09:30:00.000Z"}`), &s))
	assert.Equal(t, time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC), s.Date.Time)

	require.NoError(t, json.Unmarshal([]byte(`{"_id":"a2","date":"2024-03-16"}`), &s))
	assert.Equal(t, "2024-03-16", s.Date.Format(DateLayout))

	assert.True(t, s.Date.Wall)

	out, err := json.Marshal(s.Date)
	require.NoError(t, err)
	assert.JSONEq(t, `"2024-03-16"`, string(out))

	stamp := Date{Time: time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)}
	out, err = json.Marshal(stamp)
	require.NoError(t, err)
	assert.JSONEq(t, `"2024-03-15T09:30:00Z"`, string(out))

	var bad AttendanceSession
	assert.Error(t, json.Unmarshal([]byte(`{"date":"15.03.2024"}`), &bad))
}

func TestDateAtKeepsWallDay(t *testing.T) {
	ny := time.FixedZone("EST", -5*60*60)

	var wall Date
	require.NoError(t, json.Unmarshal([]byte(`"2024-03-15"`), &wall))
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, ny), wall.At(ny))

	var stamp Date
	require.NoError(t, json.Unmarshal([]byte(`"2024-03-15T03:00:00Z"`), &stamp))
	assert.Equal(t, "2024-03-14", stamp.At(ny).Format(DateLayout))
}

func TestStudentNumericIDs(t *testing.T) {
	var st Student
	require.NoError(t, json.Unmarshal([]byte(`{"id":1001,"full_name":"A","department":{"id":3,"name":"Math"}}`), &st))
	assert.Equal(t, ID("1001"), st.ID)
	assert.Equal(t, "3", st.Department.ID)
}
