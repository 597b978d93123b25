package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dealerdesk/lead-engine/internal/jobs"
	"github.com/dealerdesk/lead-engine/internal/model"
	"github.com/dealerdesk/lead-engine/internal/repository"
	"github.com/dealerdesk/lead-engine/pkg/logger"
)

var ErrNotFound = errors.New("not found")

type InquiryRepository interface {
	Create(ctx context.Context, inq *model.Inquiry) (*model.Inquiry, error)
	Get(ctx context.Context, id int64) (*model.Inquiry, error)
	UpdateStatus(ctx context.Context, id int64, next model.InquiryStatus) error
	ListByStatus(ctx context.Context, status model.InquiryStatus, limit int) ([]*model.Inquiry, error)
}

type CustomerLookup interface {
	FindByContact(ctx context.Context, email, phone string) (*model.Customer, error)
}

// InquiryService owns the inquiry intake path: persist the inquiry, link it
// to a known customer when the contact details match, and kick off scoring.
type InquiryService struct {
	inquiries  InquiryRepository
	customers  CustomerLookup
	dispatcher jobs.Dispatcher
}

func NewInquiryService(inquiries InquiryRepository, customers CustomerLookup, dispatcher jobs.Dispatcher) *InquiryService {
	return &InquiryService{
		inquiries:  inquiries,
		customers:  customers,
		dispatcher: dispatcher,
	}
}

func (s *InquiryService) Create(ctx context.Context, req model.InquiryCreateRequest) (*model.Inquiry, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	inq := &model.Inquiry{
		CustomerID: req.CustomerID,
		FirstName:  strings.TrimSpace(req.FirstName),
		LastName:   strings.TrimSpace(req.LastName),
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:      strings.TrimSpace(req.Phone),
		Type:       req.Type,
		Message:    strings.TrimSpace(req.Message),
		VehicleID:  req.VehicleID,
		Status:     model.InquiryStatusNew,
	}

	if inq.CustomerID == nil {
		if customer, err := s.customers.FindByContact(ctx, inq.Email, inq.Phone); err == nil {
			inq.CustomerID = &customer.ID
		} else if !errors.Is(err, repository.ErrCustomerNotFound) {
			return nil, fmt.Errorf("match inquiry to customer: %w", err)
		}
	}

	created, err := s.inquiries.Create(ctx, inq)
	if err != nil {
		return nil, fmt.Errorf("create inquiry: %w", err)
	}

	// A linked customer is scored on full history; a walk-in inquiry gets
	// the inquiry-only variant.
	payload := jobs.CalculateLeadScore{Reason: "new_inquiry"}
	if created.CustomerID != nil {
		payload.CustomerID = created.CustomerID
	} else {
		payload.InquiryID = &created.ID
	}
	if err := s.dispatcher.Enqueue(ctx, jobs.TypeCalculateLeadScore, payload); err != nil {
		// The inquiry is durable; scoring can be re-driven by a batch
		// recalculation, so intake does not fail with the queue.
		logger.Error("failed to enqueue scoring for inquiry",
			"inquiry_id", created.ID, "error", err)
	}

	return created, nil
}

func (s *InquiryService) Get(ctx context.Context, id int64) (*model.Inquiry, error) {
	inq, err := s.inquiries.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrInquiryNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return inq, nil
}

func (s *InquiryService) UpdateStatus(ctx context.Context, id int64, next model.InquiryStatus) error {
	return s.inquiries.UpdateStatus(ctx, id, next)
}

func (s *InquiryService) ListByStatus(ctx context.Context, status model.InquiryStatus, limit int) ([]*model.Inquiry, error) {
	return s.inquiries.ListByStatus(ctx, status, limit)
}
