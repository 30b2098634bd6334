package utils

import (
	"net/http/httptest"
	"strings"
	"testing"

	"covid_slayer/internal/domain/game"
	"covid_slayer/internal/domain/user"
	errs "covid_slayer/internal/errors"
)

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	v, ok := errs.AsValidation(err)
	if !ok {
		t.Fatalf("expected a validation error, got %v", err)
	}
	out := map[string]string{}
	for _, f := range v.Fields {
		out[f.Field] = f.Message
	}
	return out
}

func TestValidateActionRequest(t *testing.T) {
	remaining := 12
	if err := ValidateStruct(game.ActionRequest{Action: "Blast", TimeRemaining: &remaining}); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	fields := fieldsOf(t, ValidateStruct(game.ActionRequest{Action: "dance"}))
	if fields["action"] != "Invalid action" {
		t.Fatalf("action message %q", fields["action"])
	}
	if fields["timeRemaining"] != "timeRemaining is required" {
		t.Fatalf("timeRemaining message %q", fields["timeRemaining"])
	}

	negative := -1
	fields = fieldsOf(t, ValidateStruct(game.ActionRequest{Action: "heal", TimeRemaining: &negative}))
	if _, ok := fields["timeRemaining"]; !ok {
		t.Fatal("negative time accepted")
	}
}

func TestValidateRegisterRequest(t *testing.T) {
	fields := fieldsOf(t, ValidateStruct(user.RegisterRequest{
		FullName: "J",
		Email:    "not-an-email",
		Password: "123",
		Avatar:   "nope",
	}))
	for _, name := range []string{"fullName", "email", "password", "avatar"} {
		if _, ok := fields[name]; !ok {
			t.Errorf("%s not reported in %v", name, fields)
		}
	}
	if fields["password"] != "password must be at least 6 characters long" {
		t.Fatalf("password message %q", fields["password"])
	}
	fields = fieldsOf(t, ValidateStruct(user.RegisterRequest{
		FullName: "Jane Doe",
		Email:    "jane@example.com",
		Password: strings.Repeat("p", 80),
	}))
	if fields["password"] != "password must be at most 72 characters long" {
		t.Fatalf("long password message %q", fields["password"])
	}
}

func TestValidateCreateGameRequest(t *testing.T) {
	if err := ValidateStruct(game.CreateGameRequest{}); err != nil {
		t.Fatalf("omitted gameTime rejected: %v", err)
	}
	tooLong := 301
	if _, ok := fieldsOf(t, ValidateStruct(game.CreateGameRequest{GameTime: &tooLong}))["gameTime"]; !ok {
		t.Fatal("gameTime 301 accepted")
	}
}

func TestDecodeJSONRequest(t *testing.T) {
	var req game.ActionRequest
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"action":"attack","timeRemaining":40}`))
	if err := DecodeJSONRequest(r, &req); err != nil {
		t.Fatal(err)
	}
	if req.Action != "attack" || req.TimeRemaining == nil || *req.TimeRemaining != 40 {
		t.Fatalf("decoded %+v", req)
	}

	r = httptest.NewRequest("POST", "/", strings.NewReader(`{"action":"attack","cheat":true}`))
	if err := DecodeJSONRequest(r, &req); err == nil {
		t.Fatal("unknown field accepted")
	}

	var empty game.CreateGameRequest
	r = httptest.NewRequest("POST", "/", strings.NewReader(""))
	if err := DecodeJSONRequest(r, &empty); err != nil || empty.GameTime != nil {
		t.Fatalf("empty body: %v %+v", err, empty)
	}
}
