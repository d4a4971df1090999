package services

import (
	"testing"

	"github.com/ahmetcoskunkizilkaya/moderation-backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestBaseSeverity(t *testing.T) {
	assert.Equal(t, models.SeverityHigh, BaseSeverity(models.ReasonHateSpeech))
	assert.Equal(t, models.SeverityMedium, BaseSeverity(models.ReasonHarassment))
	assert.Equal(t, models.SeverityMedium, BaseSeverity(models.ReasonMisinformation))
	assert.Equal(t, models.SeverityLow, BaseSeverity(models.ReasonSpam))
	assert.Equal(t, models.SeverityLow, BaseSeverity(models.ReasonCode("unknown")))
}

func TestCombineSeverityTakesMax(t *testing.T) {
	assert.Equal(t, models.SeverityHigh, CombineSeverity(models.SeverityHigh, models.SeverityLow))
	assert.Equal(t, models.SeverityHigh, CombineSeverity(models.SeverityLow, models.SeverityHigh))
	assert.Equal(t, models.SeverityCritical, CombineSeverity(models.SeverityMedium, models.SeverityCritical))
	assert.Equal(t, models.SeverityMedium, CombineSeverity(models.SeverityMedium, models.SeverityMedium))
}

func TestSeverityOrdering(t *testing.T) {
	assert.True(t, models.SeverityCritical.AtLeast(models.SeverityHigh))
	assert.True(t, models.SeverityHigh.AtLeast(models.SeverityHigh))
	assert.False(t, models.SeverityMedium.AtLeast(models.SeverityHigh))
	assert.False(t, models.Severity("").AtLeast(models.SeverityLow))
}
