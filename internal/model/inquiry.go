package model

import (
	"errors"
	"strings"
	"time"
)

// InquiryType categorizes what the customer is asking about.
type InquiryType string

const (
	InquiryPurchaseIntent InquiryType = "PURCHASE_INTENT"
	InquiryTestDrive      InquiryType = "TEST_DRIVE"
	InquiryFinancing      InquiryType = "FINANCING"
	InquiryTradeIn        InquiryType = "TRADE_IN"
	InquiryService        InquiryType = "SERVICE"
	InquiryGeneral        InquiryType = "GENERAL"
)

// InquiryTypeScores is the base 0-100 contribution of the inquiry-type
// factor. Unknown types fall back to the GENERAL score.
var InquiryTypeScores = map[InquiryType]float64{
	InquiryPurchaseIntent: 90,
	InquiryTestDrive:      80,
	InquiryFinancing:      70,
	InquiryTradeIn:        60,
	InquiryService:        40,
	InquiryGeneral:        30,
}

type Inquiry struct {
	ID          int64         `json:"id"`
	CustomerID  *int64        `json:"customer_id,omitempty"`
	FirstName   string        `json:"first_name"`
	LastName    string        `json:"last_name"`
	Email       string        `json:"email"`
	Phone       string        `json:"phone"`
	Type        InquiryType   `json:"type"`
	Message     string        `json:"message"`
	VehicleID   *int64        `json:"vehicle_id,omitempty"`
	Status      InquiryStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	RespondedAt *time.Time    `json:"responded_at,omitempty"`
}

func (i *Inquiry) FullName() string {
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}

type InquiryCreateRequest struct {
	CustomerID *int64      `json:"customer_id"`
	FirstName  string      `json:"first_name"`
	LastName   string      `json:"last_name"`
	Email      string      `json:"email"`
	Phone      string      `json:"phone"`
	Type       InquiryType `json:"type"`
	Message    string      `json:"message"`
	VehicleID  *int64      `json:"vehicle_id"`
}

func (p InquiryCreateRequest) Validate() error {
	if p.Email == "" && p.Phone == "" {
		return errors.New("email or phone is required")
	}
	if p.Type == "" {
		return errors.New("inquiry type is required")
	}
	if _, ok := InquiryTypeScores[p.Type]; !ok {
		return errors.New("unknown inquiry type")
	}
	return nil
}

// Vehicle is the optional linked stock reference an inquiry points at. Only
// the fields feeding the vehicle-appeal scoring factor live here.
type Vehicle struct {
	ID           int64   `json:"id"`
	Make         string  `json:"make"`
	Model        string  `json:"model"`
	Year         int     `json:"year"`
	FuelType     string  `json:"fuel_type"`
	Price        float64 `json:"price"`
	MarketPrice  float64 `json:"market_price"`
	ViewCount    int     `json:"view_count"`
	InquiryCount int     `json:"inquiry_count"`
}
