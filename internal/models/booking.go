package models

import "time"

type Booking struct {
	ID         string    `json:"id"`
	MechanicID string    `json:"mechanicId"`
	Service    string    `json:"service"`
	Date       string    `json:"date"`
	Time       string    `json:"time"`
	Vehicle    Vehicle   `json:"vehicle"`
	Status     string    `json:"status"` // confirmed, on_the_way, arrived, in_progress, completed
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt,omitempty"`
}

// Message is a single chat entry for a booking. Messages are append-only
// and ordered by Timestamp.
type Message struct {
	ID        string    `json:"id"`
	BookingID string    `json:"bookingId"`
	Sender    string    `json:"sender"` // user or mechanic
	Text      string    `json:"text"`
	Image     string    `json:"image,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Rating is a single 1-5 review for a completed booking. Create-only.
type Rating struct {
	ID         string    `json:"id"`
	MechanicID string    `json:"mechanicId"`
	BookingID  string    `json:"bookingId"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
