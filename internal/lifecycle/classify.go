package lifecycle

import (
	"context"
	"fmt"

	"github.com/kozaktomas/shop-kiosk/internal/database"
	"github.com/kozaktomas/shop-kiosk/internal/events"
	"github.com/kozaktomas/shop-kiosk/internal/recognition"
	"go.uber.org/zap"
)

// Outcome is what the operator is offered for a detected face.
type Outcome string

const (
	OutcomeOfferCheckIn      Outcome = "offer_check_in"
	OutcomeAlreadyCheckedIn  Outcome = "already_checked_in" // informational, not an error
	OutcomeOfferRegistration Outcome = "offer_registration"
)

// Candidate is one classified face.
type Candidate struct {
	Face     recognition.Face
	Outcome  Outcome
	Customer *database.Customer // nil for OutcomeOfferRegistration
	// StoreMatch is set when the customer was found by the store-side matcher
	// rather than by the recognition process.
	StoreMatch bool
	Distance   float64
}

// Classify decides the offer for every face in a detection result. Open-visit
// status always comes from the store, never from the recognition reply. Classify
// never changes visit state; it only refreshes the one-click hints.
func (m *Manager) Classify(ctx context.Context, result *recognition.DetectionResult) ([]Candidate, error) {
	if result == nil || len(result.Faces) == 0 {
		return nil, nil
	}

	candidates := make([]Candidate, 0, len(result.Faces))
	for _, face := range result.Faces {
		c, err := m.classifyFace(ctx, face)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}

	m.updateHints(candidates)
	m.publish(events.TypeDetection, summarize(result.RequestID, candidates))
	return candidates, nil
}

func (m *Manager) classifyFace(ctx context.Context, face recognition.Face) (Candidate, error) {
	if match, ok := face.(recognition.Match); ok {
		customer, err := m.customers.GetCustomer(ctx, match.CustomerID)
		switch {
		case err == nil:
			return offerFor(face, customer), nil
		case isNotFound(err):
			// Deleted since the recognition process last loaded its faces.
			m.logger.Debug("matched customer no longer exists", zap.Int64("customer_id", match.CustomerID))
		default:
			return Candidate{}, fmt.Errorf("loading matched customer %d: %w", match.CustomerID, err)
		}
	}

	if m.matcher != nil {
		found, err := m.matcher.FindByFace(ctx, face.FaceSignature(), m.matchDistance)
		if err != nil {
			m.logger.Warn("store-side face match failed", zap.Error(err))
		} else if found != nil {
			customer := found.Customer
			c := offerFor(face, &customer)
			c.StoreMatch = true
			c.Distance = found.Distance
			return c, nil
		}
	}

	return Candidate{Face: face, Outcome: OutcomeOfferRegistration}, nil
}

func offerFor(face recognition.Face, customer *database.Customer) Candidate {
	outcome := OutcomeOfferCheckIn
	if customer.HasOpenVisit() {
		outcome = OutcomeAlreadyCheckedIn
	}
	return Candidate{Face: face, Outcome: outcome, Customer: customer}
}

// updateHints remembers the first check-in offer and the first registration offer
// of the frame. Frames without such offers leave the previous hints in place.
func (m *Manager) updateHints(candidates []Candidate) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched, unmatched bool
	for _, c := range candidates {
		switch {
		case c.Outcome == OutcomeOfferCheckIn && !matched:
			m.hints.matchedID = c.Customer.ID
			matched = true
		case c.Outcome == OutcomeOfferRegistration && !unmatched:
			m.hints.unmatched = append([]float32(nil), c.Face.FaceSignature()...)
			unmatched = true
		}
	}
	if matched || unmatched {
		m.hints.detectedAt = m.now()
	}
}

type detectionSummary struct {
	RequestID        string  `json:"request_id"`
	Faces            int     `json:"faces"`
	OfferCheckIn     []int64 `json:"offer_check_in,omitempty"`
	AlreadyCheckedIn []int64 `json:"already_checked_in,omitempty"`
	OfferRegister    int     `json:"offer_registration"`
}

func summarize(requestID string, candidates []Candidate) detectionSummary {
	s := detectionSummary{RequestID: requestID, Faces: len(candidates)}
	for _, c := range candidates {
		switch c.Outcome {
		case OutcomeOfferCheckIn:
			s.OfferCheckIn = append(s.OfferCheckIn, c.Customer.ID)
		case OutcomeAlreadyCheckedIn:
			s.AlreadyCheckedIn = append(s.AlreadyCheckedIn, c.Customer.ID)
		case OutcomeOfferRegistration:
			s.OfferRegister++
		}
	}
	return s
}
