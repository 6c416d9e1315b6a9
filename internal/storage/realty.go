package storage

import (
	"time"
)

type PropertyStatus string

const (
	StatusForSale PropertyStatus = "for_sale"
	StatusForRent PropertyStatus = "for_rent"
	StatusSold    PropertyStatus = "sold"
	StatusRented  PropertyStatus = "rented"
)

type Zone struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   string    `json:"ownerId" db:"owner_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Property is a listing inside a zone. Every access goes through the parent
// zone's ownership check, so OwnerID here always matches the zone's.
type Property struct {
	ID          string         `json:"id" db:"id"`
	ZoneID      string         `json:"zoneId" db:"zone_id"`
	OwnerID     string         `json:"ownerId" db:"owner_id"`
	Location    string         `json:"location" db:"location"`
	Description string         `json:"description" db:"description"`
	Status      PropertyStatus `json:"status" db:"status"`
	Type        string         `json:"type" db:"property_type"`
	Price       float64        `json:"price" db:"price"`
	Currency    string         `json:"currency" db:"currency"`
	OwnerName   string         `json:"ownerName" db:"owner_name"`
	AreaM2      float64        `json:"areaM2" db:"area_m2"`
	Furnished   bool           `json:"furnished" db:"furnished"`
	ImageURL    string         `json:"imageUrl" db:"image_url"`
	Archived    bool           `json:"archived" db:"archived"`
	CreatedAt   time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time      `json:"updatedAt" db:"updated_at"`
}
