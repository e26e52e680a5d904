package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/iliyamo/tutorconnect-api/internal/model"
	"github.com/iliyamo/tutorconnect-api/internal/repository"
)

type directoryStub struct {
	users map[string]model.User
	err   error
}

func (d directoryStub) ListTutors(context.Context) ([]model.User, error) {
	if d.err != nil {
		return nil, d.err
	}
	var out []model.User
	for _, u := range d.users {
		if u.IsTutor() && u.IsActive {
			out = append(out, u)
		}
	}
	return out, nil
}

func (d directoryStub) FindByID(_ context.Context, id string) (model.User, error) {
	if d.err != nil {
		return model.User{}, d.err
	}
	u, ok := d.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func tutorDirectory() directoryStub {
	return directoryStub{users: map[string]model.User{
		"tutor-1":   {ID: "tutor-1", Email: "tom@example.com", PasswordHash: "hash", FirstName: "Tom", LastName: "Reyes", Role: model.RoleTutor, IsActive: true},
		"tutor-3":   {ID: "tutor-3", FirstName: "Ivy", LastName: "Stone", Role: model.RoleTutor},
		"student-1": {ID: "student-1", FirstName: "Ana", LastName: "Silva", Role: model.RoleStudent, IsActive: true},
	}}
}

func TestTutorHandler_Get(t *testing.T) {
	t.Parallel()
	h := NewTutorHandler(tutorDirectory(), nil)

	rec, resp := serve(t, h.Get, http.MethodGet, "/api/tutors/tutor-1", "", "", "tutorId", "tutor-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var tutor PublicTutor
	if err := json.Unmarshal(resp.Data, &tutor); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tutor.Name != "Tom Reyes" {
		t.Fatalf("unexpected tutor %+v", tutor)
	}
	if strings.Contains(rec.Body.String(), "tom@example.com") || strings.Contains(rec.Body.String(), "hash") {
		t.Fatal("private fields must not be exposed")
	}

	for _, id := range []string{"student-1", "tutor-3", "missing"} {
		rec, _ := serve(t, h.Get, http.MethodGet, "/api/tutors/"+id, "", "", "tutorId", id)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", id, rec.Code)
		}
	}
}

func TestTutorHandler_List(t *testing.T) {
	t.Parallel()
	rec, resp := serve(t, NewTutorHandler(tutorDirectory(), nil).List, http.MethodGet, "/api/tutors", "", "")
	var tutors []PublicTutor
	if err := json.Unmarshal(resp.Data, &tutors); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Code != http.StatusOK || len(tutors) != 1 || tutors[0].ID != "tutor-1" {
		t.Fatalf("unexpected list: %d %+v", rec.Code, tutors)
	}

	rec, _ = serve(t, NewTutorHandler(directoryStub{err: errors.New("db down")}, nil).List, http.MethodGet, "/api/tutors", "", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
