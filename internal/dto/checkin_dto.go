package dto

import "time"

// CheckInRequest is the payload for a device check-in.
type CheckInRequest struct {
	// AssetRef is either a tracker asset ID or a human-readable tag.
	AssetRef string `json:"asset_ref" validate:"required"`
	// Override acknowledges the re-check-in guard for a student already
	// marked checked in.
	Override bool `json:"override"`
}

// CheckInResult reports the single success/failure verdict of a check-in.
// StudentUpdated=false with a nil error is the explicit no-matching-student
// branch: the device was cleared in the tracker, no ledger row changed.
type CheckInResult struct {
	AssetID        string     `json:"asset_id"`
	Tag            string     `json:"tag"`
	StudentUpdated bool       `json:"student_updated"`
	StudentID      string     `json:"student_id,omitempty"`
	StudentName    string     `json:"student_name,omitempty"`
	CheckedInAt    *time.Time `json:"checked_in_at,omitempty"`
	Warning        string     `json:"warning,omitempty"`
}

// AssignTagRequest is the payload for issuing a tag to a new device.
type AssignTagRequest struct {
	Prefix     string `json:"prefix" validate:"required,max=16"`
	Serial     string `json:"serial" validate:"required"`
	DeviceType string `json:"device_type" validate:"required"`
}

// AssignTagResult returns the issued tag and the tracker's asset ID.
type AssignTagResult struct {
	Tag     string `json:"tag"`
	AssetID string `json:"asset_id"`
}
