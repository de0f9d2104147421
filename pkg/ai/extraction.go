package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Temperature used for every extraction call.
const Temperature = 0.2

// SystemPrompt instructs the model; it is shared by all providers.
const SystemPrompt = `You extract locum shift offers from raw messages.
Return JSON only with schema: {"offers":[{...}]}.
Rules:
- date must be YYYY-MM-DD to create an offer.
- start_time/end_time must be HH:MM 24h or null.
- rate_value numeric or null.
- rate_unit must be per_day|per_hour|null.
- practice_name/postcode/town/agency/booking_target/notes may be null.
- booking_channel must be email|whatsapp|unknown.
- confidence 0..1.
- Do not hallucinate missing info. Use null + lower confidence.`

var clockRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// ParseExtraction decodes model output and validates it against the offer schema.
func ParseExtraction(raw string) (*ExtractionResult, error) {
	text := stripFences(raw)
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start != -1 && end > start {
		text = text[start : end+1]
	}

	var result ExtractionResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrSchemaViolation, err)
	}
	for i := range result.Offers {
		if err := validateOffer(&result.Offers[i]); err != nil {
			return nil, fmt.Errorf("%w: offer %d: %v", ErrSchemaViolation, i, err)
		}
	}
	return &result, nil
}

func validateOffer(o *Offer) error {
	switch o.BookingChannel {
	case "":
		o.BookingChannel = "unknown"
	case "email", "whatsapp", "unknown":
	default:
		return fmt.Errorf("booking_channel %q", o.BookingChannel)
	}
	if o.RateUnit != nil {
		switch *o.RateUnit {
		case "per_day", "per_hour":
		default:
			return fmt.Errorf("rate_unit %q", *o.RateUnit)
		}
	}
	if o.Confidence < 0 || o.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range", o.Confidence)
	}
	for name, v := range map[string]*string{"start_time": o.StartTime, "end_time": o.EndTime} {
		if v != nil && !clockRe.MatchString(*v) {
			return fmt.Errorf("%s %q", name, *v)
		}
	}
	return nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimSuffix(s, "```")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
