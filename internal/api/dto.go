package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"minimalapi/school/internal/bootstrap"
	"minimalapi/school/internal/student"
)

// dateLayouts are the accepted forms of a birth date, on the wire and in paths.
var dateLayouts = []string{
	time.DateOnly,
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// parseDate parses s with the first matching layout and returns the calendar
// day at UTC midnight.
func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
}

// Date is a calendar day serialized as "YYYY-MM-DD". The zero Date is null.
type Date struct {
	time.Time
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(time.DateOnly))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		d.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("birth date must be a string: %w", err)
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := parseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// studentFields are the editable fields shared by create and update bodies.
type studentFields struct {
	FirstName string `json:"firstName" binding:"required" example:"John"`
	LastName  string `json:"lastName" binding:"required" example:"Doe"`
	BirthDate Date   `json:"birthDate" swaggertype:"string" example:"2000-01-01"`
}

func (f studentFields) toStudent(id int) student.Student {
	return student.Student{
		ID:        id,
		FirstName: f.FirstName,
		LastName:  f.LastName,
		BirthDate: f.BirthDate.Time,
	}
}

// createStudentRequest is the body of POST /create.
type createStudentRequest struct {
	ID int `json:"id" binding:"required,gt=0" example:"1"`
	studentFields
}

// updateStudentRequest is the body of PUT /update/{id}. The path id wins
// over ID.
type updateStudentRequest struct {
	ID int `json:"id" example:"1"`
	studentFields
}

// studentResponse is the public view of a student, with its age computed at
// response time.
type studentResponse struct {
	ID        int    `json:"id" example:"1"`
	FirstName string `json:"firstName" example:"John"`
	LastName  string `json:"lastName" example:"Doe"`
	BirthDate Date   `json:"birthDate" swaggertype:"string" example:"2000-01-01"`
	Age       int    `json:"age" example:"24"`
}

func toResponse(s student.Student, now time.Time) studentResponse {
	return studentResponse{
		ID:        s.ID,
		FirstName: s.FirstName,
		LastName:  s.LastName,
		BirthDate: Date{s.BirthDate},
		Age:       s.Age(now),
	}
}

func toResponses(students []student.Student, now time.Time) []studentResponse {
	out := make([]studentResponse, 0, len(students))
	for _, s := range students {
		out = append(out, toResponse(s, now))
	}
	return out
}

// errorResponse is the body of every non-2xx student API reply.
type errorResponse struct {
	Status string `json:"status" example:"error"`
	Error  string `json:"error" example:"student not found"`
}

type healthResponse struct {
	Status  string `json:"status" example:"alive"`
	Service string `json:"service" example:"school"`
}

type deepHealthResponse struct {
	Status       string                           `json:"status" example:"degraded"`
	Failed       []string                         `json:"failed,omitempty"`
	Dependencies map[string]bootstrap.ProbeResult `json:"dependencies"`
}

// readinessResponse describes the last completed bootstrap. Status is
// "pending" until one has completed; Failed lists its failed phases.
type readinessResponse struct {
	Ready      bool     `json:"ready"`
	Status     string   `json:"status" example:"degraded"`
	Failed     []string `json:"failed,omitempty"`
	InProgress bool     `json:"inProgress"`
}
