package scoring

import (
	"strings"
	"time"

	"github.com/dealerdesk/lead-engine/internal/model"
)

// purchaseScore normalizes average purchase value times purchase frequency
// onto 0-100. A customer averaging 50k per 30-day window saturates the
// factor.
func purchaseScore(p *model.PurchaseSummary) float64 {
	if p == nil || p.Count == 0 {
		return 0
	}
	raw := p.AverageAmount() * p.FrequencyPer30Days()
	return clamp(raw/500, 0, 100)
}

// engagementScore sums per-touchpoint points, capped at 100.
func engagementScore(counts map[model.EngagementType]int64) float64 {
	var points float64
	for typ, count := range counts {
		points += float64(model.EngagementPoints[typ]) * float64(count)
	}
	return clamp(points, 0, 100)
}

func demographicsScore(c *model.Customer, now time.Time) float64 {
	score := 50.0

	switch age := c.Age(now); {
	case age >= 25 && age <= 55:
		score += 20
	case (age >= 18 && age <= 24) || (age >= 56 && age <= 65):
		score += 10
	}

	if c.Phone != "" {
		score += 5
	}
	if c.Address != "" {
		score += 5
	}
	if c.EmailVerified {
		score += 10
	}
	if c.MarketingOptIn {
		score += 10
	}
	return clamp(score, 0, 100)
}

// recencyScore rewards newer accounts; interest cools as the relationship
// ages without a purchase.
func recencyScore(accountAgeDays int) float64 {
	switch {
	case accountAgeDays <= 30:
		return 80
	case accountAgeDays <= 90:
		return 70
	case accountAgeDays <= 180:
		return 60
	case accountAgeDays <= 365:
		return 50
	default:
		return 40
	}
}

// marketTrendMultiplier scales lifetime-value scores with month-over-month
// revenue growth: strong growth +20%, modest +10%, and symmetrical cuts for
// decline.
func marketTrendMultiplier(trend float64) float64 {
	switch {
	case trend >= 0.10:
		return 1.20
	case trend >= 0.05:
		return 1.10
	case trend <= -0.10:
		return 0.80
	case trend <= -0.05:
		return 0.90
	default:
		return 1.0
	}
}

func inquiryTypeScore(typ model.InquiryType) float64 {
	if score, ok := model.InquiryTypeScores[typ]; ok {
		return score
	}
	return model.InquiryTypeScores[model.InquiryGeneral]
}

func contactScore(inq *model.Inquiry) float64 {
	var score float64
	if inq.Email != "" {
		score += 30
	}
	if inq.Phone != "" {
		score += 40
	}
	if len(inq.Message) > 20 {
		score += 20
	}
	if len(strings.Fields(inq.FullName())) >= 2 {
		score += 10
	}
	return clamp(score, 0, 100)
}

// responseTimeScore is 100 while the inquiry is under an hour old with no
// response, then decays linearly to 30 at 72 hours.
func responseTimeScore(inq *model.Inquiry, now time.Time) float64 {
	if inq.RespondedAt != nil {
		return 30
	}
	hours := now.Sub(inq.CreatedAt).Hours()
	if hours <= 1 {
		return 100
	}
	if hours >= 72 {
		return 30
	}
	return 100 - (hours-1)/71*70
}

// vehicleAppealScore starts at a neutral 50 and adjusts for fuel type,
// model age, pricing against market, and demand signals. Inquiries without
// a vehicle keep the neutral default.
func vehicleAppealScore(v *model.Vehicle, now time.Time) float64 {
	score := 50.0
	if v == nil {
		return score
	}

	switch strings.ToLower(v.FuelType) {
	case "electric", "hybrid":
		score += 15
	case "diesel":
		score -= 5
	}

	if v.Year > 0 {
		age := now.Year() - v.Year
		switch {
		case age <= 2:
			score += 10
		case age > 10:
			score -= 10
		}
	}

	if v.MarketPrice > 0 {
		ratio := v.Price / v.MarketPrice
		switch {
		case ratio <= 0.95:
			score += 15
		case ratio >= 1.05:
			score -= 10
		}
	}

	if v.ViewCount > 100 {
		score += 10
	}
	if v.InquiryCount > 10 {
		score += 10
	}
	return clamp(score, 0, 100)
}

// timingScore favors inquiries submitted during staffed hours, when a fast
// human response is possible, plus a small bonus while the inquiry is fresh
// enough for an immediate callback.
func timingScore(createdAt, now time.Time) float64 {
	score := 50.0

	weekday := createdAt.Weekday()
	hour := createdAt.Hour()
	businessDay := weekday >= time.Monday && weekday <= time.Friday

	if businessDay && hour >= 9 && hour < 18 {
		score += 25
	} else if businessDay {
		score += 10
	}

	if now.Sub(createdAt) <= time.Hour {
		score += 15
	}
	return clamp(score, 0, 100)
}

func recommendationsFor(level model.QualificationLevel, factors map[string]float64) []string {
	var recs []string
	switch level {
	case model.QualificationQualified:
		recs = append(recs, "Contact within the hour", "Prepare financing options")
	case model.QualificationHot:
		recs = append(recs, "Contact within 24 hours", "Offer a test drive")
	case model.QualificationWarm:
		recs = append(recs, "Add to nurture campaign", "Follow up within the week")
	default:
		recs = append(recs, "Add to long-term nurture list")
	}

	if factors["engagement"] < 20 {
		recs = append(recs, "Low engagement: trigger a re-engagement email")
	}
	if contact, ok := factors["contact"]; ok && contact < 40 {
		recs = append(recs, "Incomplete contact details: request a phone number")
	}
	return recs
}
