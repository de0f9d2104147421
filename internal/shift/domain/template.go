package domain

import "time"

// DefaultAgency is the wildcard agency value used as fallback.
const DefaultAgency = "default"

// BookingTemplate is a message template for requesting a booking.
type BookingTemplate struct {
	ID              string         `json:"id" gorm:"primaryKey"`
	Agency          string         `json:"agency" gorm:"not null;uniqueIndex:idx_template_agency_channel"`
	Channel         BookingChannel `json:"channel" gorm:"type:varchar(16);not null;uniqueIndex:idx_template_agency_channel"`
	SubjectTemplate *string        `json:"subject_template" gorm:"type:text"`
	BodyTemplate    string         `json:"body_template" gorm:"type:text;not null"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (BookingTemplate) TableName() string {
	return "booking_templates"
}
