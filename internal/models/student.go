package models

import "time"

// StudentRecord is the local ledger row for one student. Roster import owns
// identity fields; the check-in flow owns the device fields.
type StudentRecord struct {
	StudentID        string     `gorm:"primaryKey;size:64" json:"student_id"`
	Name             string     `gorm:"size:255;not null" json:"name"`
	Grade            string     `gorm:"size:16;index" json:"grade"`
	Advisor          string     `gorm:"size:255;index" json:"advisor"`
	TrackerUserRef   *string    `gorm:"size:128;index" json:"tracker_user_ref"`
	// No default tag: gorm omits zero-valued fields that carry one, so a
	// false here would never reach the database. Writers set it explicitly.
	IsActive         bool       `gorm:"not null;index" json:"is_active"`
	DeviceCheckedIn  bool       `gorm:"not null;default:false" json:"device_checked_in"`
	CheckInTimestamp *time.Time `json:"check_in_timestamp"`
	DeviceAssetID    *string    `gorm:"size:128" json:"device_asset_id"`
	DeviceTag        *string    `gorm:"size:32" json:"device_tag"`
	DeviceSerial     *string    `gorm:"size:128" json:"device_serial"`
	DeviceType       *string    `gorm:"size:64" json:"device_type"`
	// Version guards concurrent check-in mutations of the same row.
	Version   int64     `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasDeviceInfo reports whether the row carries a complete device snapshot.
func (s StudentRecord) HasDeviceInfo() bool {
	return s.DeviceAssetID != nil && s.DeviceTag != nil
}
