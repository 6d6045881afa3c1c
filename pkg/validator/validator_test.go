package validator

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
)

type testPayload struct {
	FirstName  string `json:"first_name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	GuestCount int    `json:"guest_count" validate:"gte=1"`
}

func TestValidateStructSuccess(t *testing.T) {
	payload := testPayload{
		FirstName:  "Ana",
		Email:      "ana@example.com",
		GuestCount: 120,
	}

	if err := ValidateStruct(payload); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateStructFailures(t *testing.T) {
	payload := testPayload{
		FirstName:  "",
		Email:      "invalid",
		GuestCount: 0,
	}

	err := ValidateStruct(payload)
	if err == nil {
		t.Fatal("expected validation error")
	}

	vErrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	if len(vErrs) != 3 {
		t.Fatalf("expected 3 validation errors, got %d", len(vErrs))
	}

	foundGuests := false
	for _, v := range vErrs {
		if v.Field == "guest_count" {
			foundGuests = true
		}
	}

	if !foundGuests {
		t.Fatal("expected json field names in validation errors")
	}
}

func TestISODateRule(t *testing.T) {
	type payload struct {
		WeddingDate string `json:"wedding_date" validate:"required,isodate"`
	}

	if err := ValidateStruct(payload{WeddingDate: "2026-06-15"}); err != nil {
		t.Fatalf("expected valid date, got %v", err)
	}

	for _, value := range []string{"15.06.2026", "2026-02-30", "tomorrow"} {
		err := ValidateStruct(payload{WeddingDate: value})
		vErrs, ok := err.(ValidationErrors)
		if !ok || len(vErrs) != 1 || vErrs[0].Tag != "isodate" {
			t.Fatalf("expected isodate failure for %q, got %v", value, err)
		}
	}
}

func TestParseDate(t *testing.T) {
	parsed, err := ParseDate(" 2026-06-15 ")
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	if !parsed.Equal(time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date: %v", parsed)
	}
}

func TestRegisterValidation(t *testing.T) {
	err := RegisterValidation("venue", func(fl validator.FieldLevel) bool {
		return fl.Field().String() != "TBD"
	})
	if err != nil {
		t.Fatalf("register validation: %v", err)
	}

	type custom struct {
		Value string `validate:"venue"`
	}

	if err := ValidateStruct(custom{Value: "Hotel Esplanade"}); err != nil {
		t.Fatalf("expected validation to pass, got %v", err)
	}
	if err := ValidateStruct(custom{Value: "TBD"}); err == nil {
		t.Fatal("expected validation to fail for placeholder venue")
	}
}

func TestValidationErrorMessage(t *testing.T) {
	cases := map[ValidationError]string{
		{Field: "email", Tag: "required"}:              "is required",
		{Field: "email", Tag: "email"}:                 "must be a valid email address",
		{Field: "wedding_date", Tag: "isodate"}:        "must be a YYYY-MM-DD date",
		{Field: "guest_count", Tag: "gte", Param: "1"}: "must be at least 1",
		{Field: "phone", Tag: "min", Param: "3"}:       "must be at least 3 characters",
		{Field: "x", Tag: "custom", Param: "y"}:        "failed validation: custom=y",
	}
	for failure, want := range cases {
		if got := failure.Message(); got != want {
			t.Fatalf("%s/%s: expected %q, got %q", failure.Field, failure.Tag, want, got)
		}
	}
}

func TestValidateVar(t *testing.T) {
	if err := ValidateVar("offers@catering.test", "email"); err != nil {
		t.Fatalf("expected valid email, got %v", err)
	}

	err := ValidateVar("not-an-address", "email")
	failures, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(failures) != 1 || failures[0].Tag != "email" || failures[0].Field != "value" {
		t.Fatalf("unexpected failures: %#v", failures)
	}
	if failures[0].Message() != "must be a valid email address" {
		t.Fatalf("unexpected message: %s", failures[0].Message())
	}

	if err := ValidateVar("2026-13-01", "isodate"); err == nil {
		t.Fatal("expected isodate rule to reject an invalid month")
	}
}
