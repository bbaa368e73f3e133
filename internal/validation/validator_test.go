// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package validation

import (
	"strings"
	"testing"

	"github.com/tomtom215/chatpresence/internal/models"
)

// ===================================================================================================
// Singleton Validator Tests
// ===================================================================================================

func TestInstance_Shared(t *testing.T) {
	v1 := instance()
	v2 := instance()

	if v1 != v2 {
		t.Error("instance() should return the same validator")
	}
	if v1 == nil {
		t.Error("instance() should not return nil")
	}
}

// ===================================================================================================
// Custom Tag Tests
// ===================================================================================================

type statusRequest struct {
	Status models.PresenceStatus `json:"presenceStatus" validate:"required,presence_status"`
}

type idsRequest struct {
	UserIDs []models.UserID `json:"userIds" validate:"required,min=1,max=3,dive,user_id"`
}

func TestValidateStruct_PresenceStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  models.PresenceStatus
		wantErr bool
	}{
		{"online", models.StatusOnline, false},
		{"busy", models.StatusBusy, false},
		{"absent", models.StatusAbsent, false},
		{"offline", models.StatusOffline, false},
		{"lowercase", "online", true},
		{"unknown name", "Away", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := ValidateStruct(&statusRequest{Status: tt.status})
			if (verr != nil) != tt.wantErr {
				t.Errorf("ValidateStruct() error = %v, wantErr %v", verr, tt.wantErr)
			}
		})
	}
}

func TestValidateStruct_UserIDs(t *testing.T) {
	tests := []struct {
		name    string
		ids     []models.UserID
		wantErr bool
		wantTag string
	}{
		{"valid", []models.UserID{"alice", "bob"}, false, ""},
		{"empty list", []models.UserID{}, true, "min"},
		{"too many", []models.UserID{"a", "b", "c", "d"}, true, "max"},
		{"blank id", []models.UserID{"alice", "  "}, true, TagUserID},
		{"too long", []models.UserID{models.UserID(strings.Repeat("x", MaxUserIDLength+1))}, true, TagUserID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := ValidateStruct(&idsRequest{UserIDs: tt.ids})
			if (verr != nil) != tt.wantErr {
				t.Fatalf("ValidateStruct() error = %v, wantErr %v", verr, tt.wantErr)
			}
			if verr != nil && verr.Fields[0].Tag != tt.wantTag {
				t.Errorf("tag = %q, want %q", verr.Fields[0].Tag, tt.wantTag)
			}
		})
	}
}

func TestValidateStruct_StatusEntry(t *testing.T) {
	valid := models.StatusEntry{UserID: "alice", Status: models.StatusBusy}
	if verr := ValidateStruct(&valid); verr != nil {
		t.Errorf("valid entry rejected: %v", verr)
	}

	missingID := models.StatusEntry{Status: models.StatusBusy}
	verr := ValidateStruct(&missingID)
	if verr == nil {
		t.Fatal("entry without user id should fail")
	}
	if verr.Fields[0].Field != "userId" {
		t.Errorf("field = %q, want json name userId", verr.Fields[0].Field)
	}
}

// ===================================================================================================
// Error Message Tests
// ===================================================================================================

func TestRequestValidationError_Messages(t *testing.T) {
	verr := ValidateStruct(&statusRequest{Status: "Away"})
	if verr == nil {
		t.Fatal("expected validation error")
	}

	want := "presenceStatus must be one of: Online, Busy, Absent, Offline"
	if verr.Error() != want {
		t.Errorf("Error() = %q, want %q", verr.Error(), want)
	}

	details := verr.FieldDetails()
	if len(details) != 1 || details[0]["field"] != "presenceStatus" || details[0]["tag"] != TagPresenceStatus {
		t.Errorf("FieldDetails() = %v", details)
	}
	if _, ok := details[0]["param"]; ok {
		t.Errorf("param should be omitted for tags without one: %v", details)
	}
}

func TestRequestValidationError_Combined(t *testing.T) {
	type pair struct {
		Status models.PresenceStatus `json:"presenceStatus" validate:"required"`
		UserID models.UserID         `json:"userId" validate:"required"`
	}

	verr := ValidateStruct(&pair{})
	if verr == nil {
		t.Fatal("expected validation error")
	}
	if len(verr.Fields) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(verr.Fields))
	}
	if verr.Error() != "presenceStatus is required; userId is required" {
		t.Errorf("Error() = %q", verr.Error())
	}
}

func TestRequestValidationError_Empty(t *testing.T) {
	verr := &RequestValidationError{}
	if verr.Error() != "validation failed" {
		t.Errorf("Error() = %q", verr.Error())
	}
}

func TestTranslateMinMax_Units(t *testing.T) {
	type named struct {
		Name string `json:"name" validate:"min=2"`
	}

	verr := ValidateStruct(&named{Name: "a"})
	if verr == nil {
		t.Fatal("expected validation error")
	}
	if verr.Error() != "name must have at least 2 characters" {
		t.Errorf("Error() = %q", verr.Error())
	}
	if details := verr.FieldDetails(); details[0]["param"] != "2" {
		t.Errorf("FieldDetails() param = %q, want 2", details[0]["param"])
	}

	verr = ValidateStruct(&idsRequest{UserIDs: []models.UserID{}})
	if verr == nil || verr.Error() != "userIds must have at least 1 items" {
		t.Errorf("Error() = %v", verr)
	}
}
