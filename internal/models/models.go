package models

import "time"

type BookingStatus string

const (
	BookingPending   BookingStatus = "Pending"
	BookingConfirmed BookingStatus = "Confirmed"
	BookingCompleted BookingStatus = "Completed"
	BookingCancelled BookingStatus = "Cancelled"
)

var BookingStatuses = []BookingStatus{BookingPending, BookingConfirmed, BookingCompleted, BookingCancelled}

func (s BookingStatus) Valid() bool {
	for _, v := range BookingStatuses {
		if s == v {
			return true
		}
	}
	return false
}

type MessageStatus string

const (
	MessageNew      MessageStatus = "New"
	MessageRead     MessageStatus = "Read"
	MessageArchived MessageStatus = "Archived"
)

func (s MessageStatus) Valid() bool {
	return s == MessageNew || s == MessageRead || s == MessageArchived
}

// ServiceOther is the booking form choice for work not in the services list.
const ServiceOther = "Other"

// TimeSlots are the bookable windows offered by the booking form.
var TimeSlots = []string{
	"9:00 AM - 11:00 AM",
	"11:00 AM - 1:00 PM",
	"1:00 PM - 3:00 PM",
	"3:00 PM - 5:00 PM",
}

const (
	DefaultLocation = "Makhwibidung Village Stand No 54, Tzaneen, Limpopo"
	DefaultEmail    = "junksmalati@gmail.com"
	DefaultPhone    = "081 075 5476 / 082 738 8845"
)

type Service struct {
	ID          string `bson:"_id,omitempty" json:"id"`
	Title       string `bson:"title" json:"title"`
	Description string `bson:"description" json:"description"`
	// Icon is filled in for display only and never stored.
	Icon string `bson:"-" json:"icon,omitempty"`
}

type Testimonial struct {
	ID        string `bson:"_id,omitempty" json:"id"`
	Name      string `bson:"name" json:"name"`
	Text      string `bson:"text" json:"text"`
	AvatarURL string `bson:"avatarUrl,omitempty" json:"avatarUrl,omitempty"`
}

type Booking struct {
	ID        string        `bson:"_id,omitempty" json:"id"`
	Name      string        `bson:"name" json:"name"`
	Email     string        `bson:"email" json:"email"`
	Phone     string        `bson:"phone" json:"phone"`
	Service   string        `bson:"service" json:"service"`
	Date      string        `bson:"date" json:"date"`
	Time      string        `bson:"time" json:"time"`
	Details   string        `bson:"details,omitempty" json:"details,omitempty"`
	Status    BookingStatus `bson:"status" json:"status"`
	CreatedAt time.Time     `bson:"createdAt" json:"createdAt"`
}

type Message struct {
	ID        string        `bson:"_id,omitempty" json:"id"`
	Name      string        `bson:"name" json:"name"`
	Email     string        `bson:"email" json:"email"`
	Phone     string        `bson:"phone,omitempty" json:"phone,omitempty"`
	Subject   string        `bson:"subject" json:"subject"`
	Message   string        `bson:"message" json:"message"`
	Status    MessageStatus `bson:"status" json:"status"`
	CreatedAt time.Time     `bson:"createdAt" json:"createdAt"`
}

type Socials struct {
	Facebook  string `bson:"facebook" json:"facebook"`
	Twitter   string `bson:"twitter" json:"twitter"`
	Instagram string `bson:"instagram" json:"instagram"`
	WhatsApp  string `bson:"whatsapp" json:"whatsapp"`
}

type Settings struct {
	Location     string  `bson:"location" json:"location"`
	Phone        string  `bson:"phone" json:"phone"`
	Email        string  `bson:"email" json:"email"`
	HeroImageURL string  `bson:"heroImageUrl" json:"heroImageUrl"`
	Socials      Socials `bson:"socials" json:"socials"`
}

func DefaultSettings() Settings {
	return Settings{
		Location: DefaultLocation,
		Phone:    DefaultPhone,
		Email:    DefaultEmail,
	}
}
