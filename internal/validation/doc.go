// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

// Package validation provides struct validation using go-playground/validator v10.
//
// A single validator instance is shared by the REST status fetcher, which
// validates every decoded status entry, and by the inspector API, which
// validates request bodies. Two custom tags are registered:
//
//	presence_status  Online, Busy, Absent or Offline
//	user_id          non-blank, at most 256 bytes
//
// Example:
//
//	type setStatusRequest struct {
//	    Status models.PresenceStatus `json:"presenceStatus" validate:"required,presence_status"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    rw.ValidationError(verr.Error(), verr.FieldDetails())
//	}
package validation
