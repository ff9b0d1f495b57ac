package ai

import (
	"encoding/json"
	"regexp"

	"crisisgo/internal/models"
)

// objectPattern grabs from the first '{' to the last '}'.
var objectPattern = regexp.MustCompile(`(?s)\{.*\}`)

type rawClassification struct {
	IsEmergency      bool     `json:"isEmergency"`
	Severity         string   `json:"severity"`
	SuggestedActions []string `json:"suggestedActions"`
}

// parseClassification extracts the JSON object from model output. Anything
// unparseable yields the safe default.
func parseClassification(text string) (models.Classification, bool) {
	match := objectPattern.FindString(text)
	if match == "" {
		return models.SafeClassification(), false
	}
	var raw rawClassification
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		return models.SafeClassification(), false
	}

	out := models.Classification{
		IsEmergency:      raw.IsEmergency,
		Severity:         models.SeverityLow,
		SuggestedActions: raw.SuggestedActions,
	}
	switch sev := models.Severity(raw.Severity); sev {
	case models.SeverityLow, models.SeverityMedium, models.SeverityHigh:
		out.Severity = sev
	}
	if out.SuggestedActions == nil {
		out.SuggestedActions = []string{}
	}
	return out, true
}
