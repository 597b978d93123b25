package fixtures

import (
	"time"

	"github.com/dealerdesk/lead-engine/internal/model"
)

var (
	TestCustomerOptedIn = model.Customer{
		ID:             1,
		FirstName:      "Alice",
		LastName:       "Nguyen",
		Email:          "alice@example.com",
		Phone:          "+15550001111",
		EmailOptIn:     true,
		SMSOptIn:       true,
		MarketingOptIn: true,
		Active:         true,
	}

	TestCustomerEmailOnly = model.Customer{
		ID:             2,
		FirstName:      "Bob",
		LastName:       "Rivera",
		Email:          "bob@example.com",
		EmailOptIn:     true,
		MarketingOptIn: true,
		Active:         true,
	}

	TestCustomerOptedOut = model.Customer{
		ID:        3,
		FirstName: "Carol",
		LastName:  "Smith",
		Email:     "carol@example.com",
		Phone:     "+15550003333",
		Active:    true,
	}

	TestCustomerInactive = model.Customer{
		ID:             4,
		FirstName:      "Dan",
		LastName:       "Okafor",
		Email:          "dan@example.com",
		EmailOptIn:     true,
		MarketingOptIn: true,
		Active:         false,
	}
)

func NewInquiryCreateRequest(email, phone string, kind model.InquiryType) model.InquiryCreateRequest {
	return model.InquiryCreateRequest{
		FirstName: "Test",
		LastName:  "Lead",
		Email:     email,
		Phone:     phone,
		Type:      kind,
		Message:   "Interested in the 2024 Outback",
	}
}

func InquiryRequestPurchaseIntent() model.InquiryCreateRequest {
	return NewInquiryCreateRequest("buyer@example.com", "", model.InquiryPurchaseIntent)
}

func InquiryRequestTestDrive() model.InquiryCreateRequest {
	return NewInquiryCreateRequest("", "+15550009999", model.InquiryTestDrive)
}

func InquiryRequestNoContact() model.InquiryCreateRequest {
	return NewInquiryCreateRequest("", "", model.InquiryGeneral)
}

func InquiryRequestUnknownType() model.InquiryCreateRequest {
	req := NewInquiryCreateRequest("buyer@example.com", "", "COMPLAINT")
	return req
}

func NewCampaignCreateRequest(name string, channel model.Channel) model.CampaignCreateRequest {
	req := model.CampaignCreateRequest{
		Name:       name,
		Channel:    channel,
		Template:   "Hi {{first_name}}, the {{dealership_name}} summer event is on.",
		SenderName: "Hilltop Motors",
		TargetKind: model.TargetAllOptedIn,
	}
	if channel == model.ChannelEmail {
		req.Subject = "Summer Sales Event"
	}
	return req
}

func CampaignRequestScheduled(name string, channel model.Channel, at time.Time) model.CampaignCreateRequest {
	req := NewCampaignCreateRequest(name, channel)
	req.ScheduledAt = &at
	return req
}

func NewEngagementEventRequest(email string, kind model.EngagementType) model.EngagementEventCreateRequest {
	return model.EngagementEventCreateRequest{
		Email: email,
		Type:  kind,
	}
}

var (
	ValidPhoneNumbers = []string{
		"+15551234567",
		"+15559876543",
		"+447712345678",
	}

	ValidEmailAddresses = []string{
		"lead@example.com",
		"buyer@test.org",
		"shopper@cars.dev",
	}

	InvalidContacts = []string{
		"",
		"   ",
	}
)
