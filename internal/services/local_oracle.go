package services

import "github.com/ahmetcoskunkizilkaya/moderation-backend/internal/models"

// LocalScoringOracle scores report text with the regex content filter. It
// stands in for the external oracle in deployments that have none; it can
// only ever raise a score to medium, so the conservative max-combination
// with the reason base weight still applies.
type LocalScoringOracle struct {
	filter *ContentFilter
}

func NewLocalScoringOracle(filter *ContentFilter) *LocalScoringOracle {
	return &LocalScoringOracle{filter: filter}
}

func (o *LocalScoringOracle) Score(text string, reason models.ReasonCode) (models.Severity, error) {
	clean, flag := o.filter.Check(text)
	if clean {
		return models.SeverityLow, nil
	}
	switch flag {
	case FlagProfanity, FlagSpam:
		return models.SeverityMedium, nil
	default:
		return models.SeverityLow, nil
	}
}
