package model

import "time"

type LoginRequest struct {
	PatientID string `json:"patient_id" binding:"required"`
	PIN       string `json:"pin" binding:"required"`
}

type LinkRequest struct {
	Token string `json:"token" form:"token" binding:"required"`
}

type SessionResponse struct {
	Token     string    `json:"token"`
	Mode      string    `json:"mode"`
	PatientID string    `json:"patient_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Patient   *Patient  `json:"patient"`
}

type ShareLink struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

type ShareEmailRequest struct {
	To string `json:"to" binding:"required,email"`
}
