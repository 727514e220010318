package models

import (
	"time"

	"github.com/cppla/stillalive/timewindow"
)

// Attendance marks one civil day as present for a user. Absence is the lack of a row;
// untoggling hard-deletes it.
type Attendance struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    uint            `gorm:"not null;uniqueIndex:idx_attendance_user_date,priority:1" json:"user_id"`
	Date      timewindow.Date `gorm:"not null;uniqueIndex:idx_attendance_user_date,priority:2;index" json:"date"`
	Present   bool            `gorm:"not null;default:true" json:"present"`
	CreatedAt time.Time       `json:"created_at"`
}

// TableName pins the table to "attendance".
func (Attendance) TableName() string {
	return "attendance"
}
