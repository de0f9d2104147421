package domain

import "time"

type RateUnit string

const (
	RatePerDay  RateUnit = "per_day"
	RatePerHour RateUnit = "per_hour"
)

type BookingChannel string

const (
	ChannelEmail    BookingChannel = "email"
	ChannelWhatsApp BookingChannel = "whatsapp"
	ChannelUnknown  BookingChannel = "unknown"
)

type OfferStatus string

const (
	StatusNew       OfferStatus = "new"
	StatusRequested OfferStatus = "requested"
	StatusBooked    OfferStatus = "booked"
	StatusIgnored   OfferStatus = "ignored"
)

func (s OfferStatus) Valid() bool {
	switch s {
	case StatusNew, StatusRequested, StatusBooked, StatusIgnored:
		return true
	}
	return false
}

// ShiftOffer is a deduplicated, actionable shift opportunity.
type ShiftOffer struct {
	ID             string         `json:"id" gorm:"primaryKey"`
	Date           string         `json:"date" gorm:"type:varchar(10);not null;index"` // YYYY-MM-DD
	StartTime      *string        `json:"start_time"`
	EndTime        *string        `json:"end_time"`
	RateValue      *float64       `json:"rate_value"`
	RateUnit       *RateUnit      `json:"rate_unit" gorm:"type:varchar(16)"`
	PracticeName   *string        `json:"practice_name"`
	Postcode       *string        `json:"postcode"`
	Town           *string        `json:"town"`
	Agency         *string        `json:"agency"`
	BookingChannel BookingChannel `json:"booking_channel" gorm:"type:varchar(16);default:unknown"`
	BookingTarget  *string        `json:"booking_target"`
	Notes          *string        `json:"notes" gorm:"type:text"`
	Confidence     float64        `json:"confidence"`
	Fingerprint    string         `json:"fingerprint" gorm:"uniqueIndex;not null"`
	SourceRawIDs   StringSet      `json:"source_raw_ids" gorm:"type:text"`
	Status         OfferStatus    `json:"status" gorm:"type:varchar(16);default:new;index"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (ShiftOffer) TableName() string {
	return "shift_offers"
}

// ExtractedOffer is one validated offer coming out of the extractor.
type ExtractedOffer struct {
	Date           string
	StartTime      *string
	EndTime        *string
	RateValue      *float64
	RateUnit       *RateUnit
	PracticeName   *string
	Postcode       *string
	Town           *string
	Agency         *string
	BookingChannel BookingChannel
	BookingTarget  *string
	Notes          *string
	Confidence     float64
}
