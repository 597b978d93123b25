package assignment

import (
	"fmt"
	"strings"

	"github.com/dealerdesk/lead-engine/internal/model"
)

// pickRepresentative scores every candidate with capacity against the lead
// criteria and returns the best with a 0-1 confidence. A nil return means
// no candidate can take the lead.
func pickRepresentative(candidates []*model.Representative, criteria model.AssignmentCriteria) (*model.Representative, float64) {
	var (
		best      *model.Representative
		bestScore float64
	)
	for _, rep := range candidates {
		if !rep.HasCapacity() {
			continue
		}
		score := matchScore(rep, criteria)
		if best == nil || score > bestScore {
			best = rep
			bestScore = score
		}
	}
	if best == nil {
		return nil, 0
	}
	return best, bestScore / 100
}

// matchScore weighs specialty, location, price band, and remaining capacity.
// Every rep with capacity gets a floor score so a lead is never dropped just
// because nobody specializes in it.
func matchScore(rep *model.Representative, criteria model.AssignmentCriteria) float64 {
	score := 20.0

	if criteria.VehicleType != "" && containsFold(rep.Specialties, criteria.VehicleType) {
		score += 30
	}
	if criteria.Location != "" && containsFold(rep.Locations, criteria.Location) {
		score += 20
	}
	if criteria.PriceRange != nil && priceBandMatches(rep, *criteria.PriceRange) {
		score += 15
	}

	// Remaining capacity contributes up to 15 so load balancing breaks ties.
	if rep.MaxLoad > 0 {
		free := float64(rep.MaxLoad-rep.CurrentLoad) / float64(rep.MaxLoad)
		score += free * 15
	} else {
		score += 15
	}
	return score
}

func priceBandMatches(rep *model.Representative, pr model.PriceRange) bool {
	if rep.MinPrice == 0 && rep.MaxPrice == 0 {
		return true
	}
	return pr.Max >= rep.MinPrice && (rep.MaxPrice == 0 || pr.Min <= rep.MaxPrice)
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}

func matchReason(rep *model.Representative, criteria model.AssignmentCriteria) string {
	var parts []string
	if criteria.VehicleType != "" && containsFold(rep.Specialties, criteria.VehicleType) {
		parts = append(parts, "specialty: "+criteria.VehicleType)
	}
	if criteria.Location != "" && containsFold(rep.Locations, criteria.Location) {
		parts = append(parts, "location: "+criteria.Location)
	}
	if len(parts) == 0 {
		return fmt.Sprintf("best available representative (load %d/%d)", rep.CurrentLoad, rep.MaxLoad)
	}
	return strings.Join(parts, ", ")
}
