package models

import (
	"testing"
	"time"

	"gorm.io/datatypes"
)

func TestBaseModelBeforeCreateGeneratesID(t *testing.T) {
	var base BaseModel
	if err := base.BeforeCreate(nil); err != nil {
		t.Fatalf("before create: %v", err)
	}
	if base.ID == "" {
		t.Fatal("expected base model ID to be generated")
	}

	existing := BaseModel{ID: "fixed"}
	if err := existing.BeforeCreate(nil); err != nil {
		t.Fatalf("before create: %v", err)
	}
	if existing.ID != "fixed" {
		t.Fatalf("expected existing ID to be preserved, got %s", existing.ID)
	}
}

func TestEmbeddedModelsUseBaseBeforeCreate(t *testing.T) {
	cases := []struct {
		name  string
		model func() *BaseModel
	}{
		{"event", func() *BaseModel {
			e := &Event{}
			return &e.BaseModel
		}},
		{"reminder_job", func() *BaseModel {
			j := &ReminderJob{}
			return &j.BaseModel
		}},
		{"email_log", func() *BaseModel {
			l := &EmailLog{}
			return &l.BaseModel
		}},
		{"status_change", func() *BaseModel {
			s := &StatusChange{}
			return &s.BaseModel
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			base := tc.model()
			if err := base.BeforeCreate(nil); err != nil {
				t.Fatalf("before create: %v", err)
			}
			if base.ID == "" {
				t.Fatalf("expected %s ID to be generated", tc.name)
			}
		})
	}
}

func TestEventWeddingDayIsCivilDate(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	event := Event{WeddingDate: datatypes.Date(time.Date(2026, time.June, 15, 23, 30, 0, 0, loc))}

	day := event.WeddingDay()
	if !day.Equal(time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected wedding day: %v", day)
	}
}

func TestEventHelpers(t *testing.T) {
	event := Event{FirstName: "Ana", LastName: "Horvat", Status: EventStatusPending}
	if event.FullName() != "Ana Horvat" {
		t.Fatalf("unexpected full name %q", event.FullName())
	}
	if !event.IsPending() {
		t.Fatal("expected new event to be pending")
	}

	event.Status = EventStatusAccepted
	event.Accepted = true
	if event.IsPending() {
		t.Fatal("expected accepted event not to be pending")
	}

	if (&Event{LastName: "Horvat"}).FullName() != "Horvat" {
		t.Fatal("expected last name only")
	}
}
