package services

import "github.com/ahmetcoskunkizilkaya/moderation-backend/internal/models"

// reasonBaseSeverity is the floor each complaint category carries on its
// own. Hate speech outranks harassment, which outranks spam and the
// housekeeping reasons.
var reasonBaseSeverity = map[models.ReasonCode]models.Severity{
	models.ReasonHateSpeech:     models.SeverityHigh,
	models.ReasonHarassment:     models.SeverityMedium,
	models.ReasonMisinformation: models.SeverityMedium,
	models.ReasonInappropriate:  models.SeverityMedium,
	models.ReasonSpam:           models.SeverityLow,
	models.ReasonDuplicate:      models.SeverityLow,
	models.ReasonOffTopic:       models.SeverityLow,
	models.ReasonLowQuality:     models.SeverityLow,
	models.ReasonOther:          models.SeverityLow,
}

// BaseSeverity returns the reason code's base weight.
func BaseSeverity(reason models.ReasonCode) models.Severity {
	if s, ok := reasonBaseSeverity[reason]; ok {
		return s
	}
	return models.SeverityLow
}

// CombineSeverity merges the reason base weight with the oracle estimate.
// The rule is max, not average: a single credible signal must not be
// diluted by a low score on the other side.
func CombineSeverity(base, oracle models.Severity) models.Severity {
	return models.MaxSeverity(base, oracle)
}
