package dto

import (
	"github.com/google/uuid"
)

type CreateCaseRequest struct {
	Type     string   `json:"type" binding:"required,oneof=lost found missing_person pet"`
	Category string   `json:"category"`
	Title    string   `json:"title" binding:"required"`
	Lat      *float64 `json:"lat"`
	Lon      *float64 `json:"lon"`
}

type CaseResponse struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Category  string    `json:"category"`
	Title     string    `json:"title"`
	Lat       *float64  `json:"lat,omitempty"`
	Lon       *float64  `json:"lon,omitempty"`
	Status    string    `json:"status"`
	CreatedAt string    `json:"created_at"`
}

type PhotoResponse struct {
	ID        uuid.UUID `json:"id"`
	CaseID    uuid.UUID `json:"case_id"`
	Status    string    `json:"status"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt string    `json:"created_at"`
}
