package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/parastoo-62/petitions/internal/config"
	"github.com/parastoo-62/petitions/internal/emailclass"
	"github.com/parastoo-62/petitions/internal/models"
	"github.com/parastoo-62/petitions/internal/sixid"
)

func floatPtr(v float64) *float64 {
	return &v
}

func alertingConfig(bounds map[string]config.Bound) *config.Config {
	return &config.Config{
		AlertsEnabled:      true,
		AlertRecipients:    []string{"ops@example.com"},
		AlertThrottle:      time.Hour,
		AlertMinSignatures: 10,
		FraudBounds:        bounds,
	}
}

func testPetition(count int64) *models.Petition {
	return &models.Petition{
		Base:           models.Base{ID: sixid.New()},
		Title:          "Save the wetlands",
		Public:         true,
		SignatureCount: count,
	}
}

func TestRecordSignatureIncrementsMatchedCategories(t *testing.T) {
	petitions := new(MockPetitionService)
	svc := NewFraudService(alertingConfig(nil), petitions, new(MockAlertService), emailclass.NewStaticClassifier())
	id := sixid.New()

	petitions.On("IncrementFraudMetric", mock.Anything, id, models.MetricFreeEmail).Return(nil)
	petitions.On("IncrementFraudMetric", mock.Anything, id, models.MetricSubaddressedEmail).Return(nil)
	petitions.On("IncrementUniqueCounters", mock.Anything, id, true).Return(nil)

	err := svc.RecordSignature(context.Background(), id, "someone+tag@gmail.com", true)
	require.NoError(t, err)
	petitions.AssertExpectations(t)
}

func TestRecordSignaturePlainEmailOnlyBumpsUniqueCounters(t *testing.T) {
	petitions := new(MockPetitionService)
	svc := NewFraudService(alertingConfig(nil), petitions, new(MockAlertService), emailclass.NewStaticClassifier())
	id := sixid.New()

	petitions.On("IncrementUniqueCounters", mock.Anything, id, false).Return(nil)

	err := svc.RecordSignature(context.Background(), id, "jane@company-mail.example", false)
	require.NoError(t, err)
	petitions.AssertExpectations(t)
	petitions.AssertNotCalled(t, "IncrementFraudMetric", mock.Anything, mock.Anything, mock.Anything)
}

func TestEvaluateThresholdsSendsAndStamps(t *testing.T) {
	cfg := alertingConfig(map[string]config.Bound{
		"timebound_email": {Upper: floatPtr(0.2)},
	})
	petitions := new(MockPetitionService)
	alerts := new(MockAlertService)
	svc := NewFraudService(cfg, petitions, alerts, emailclass.NewStaticClassifier())

	petition := testPetition(101)
	petition.FraudMetrics.TimeBoundEmailCount = 80 // 80/100 = 0.8 > 0.2

	petitions.On("FindByID", mock.Anything, petition.ID).Return(petition, nil)
	alerts.On("SendThresholdAlert", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	petitions.On("StampFraudAlert", mock.Anything, petition.ID, mock.Anything).Return(nil)

	err := svc.EvaluateThresholds(context.Background(), petition.ID)
	require.NoError(t, err)
	petitions.AssertExpectations(t)
	alerts.AssertExpectations(t)
}

func TestEvaluateThresholdsDenominatorExcludesOwnSignature(t *testing.T) {
	cfg := alertingConfig(map[string]config.Bound{
		"free_email": {Upper: floatPtr(0.5)},
	})
	cfg.AlertMinSignatures = 1
	petitions := new(MockPetitionService)
	alerts := new(MockAlertService)
	svc := NewFraudService(cfg, petitions, alerts, emailclass.NewStaticClassifier())

	// 5 of 10 free-mail signatures is a ratio of 5/9, just over the bound.
	// Against a naive 5/10 denominator it would sit exactly on it.
	petition := testPetition(10)
	petition.FraudMetrics.FreeEmailCount = 5

	petitions.On("FindByID", mock.Anything, petition.ID).Return(petition, nil)
	alerts.On("SendThresholdAlert", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	petitions.On("StampFraudAlert", mock.Anything, petition.ID, mock.Anything).Return(nil)

	err := svc.EvaluateThresholds(context.Background(), petition.ID)
	require.NoError(t, err)
	alerts.AssertExpectations(t)
}

func TestEvaluateThresholdsSkipsSmallPetitions(t *testing.T) {
	cfg := alertingConfig(map[string]config.Bound{
		"free_email": {Upper: floatPtr(0.1)},
	})
	petitions := new(MockPetitionService)
	alerts := new(MockAlertService)
	svc := NewFraudService(cfg, petitions, alerts, emailclass.NewStaticClassifier())

	petition := testPetition(9) // below AlertMinSignatures of 10
	petition.FraudMetrics.FreeEmailCount = 9

	petitions.On("FindByID", mock.Anything, petition.ID).Return(petition, nil)

	err := svc.EvaluateThresholds(context.Background(), petition.ID)
	require.NoError(t, err)
	alerts.AssertNotCalled(t, "SendThresholdAlert", mock.Anything, mock.Anything, mock.Anything)
}

func TestEvaluateThresholdsSkipsNonPublicPetitions(t *testing.T) {
	cfg := alertingConfig(map[string]config.Bound{
		"free_email": {Upper: floatPtr(0.1)},
	})
	petitions := new(MockPetitionService)
	alerts := new(MockAlertService)
	svc := NewFraudService(cfg, petitions, alerts, emailclass.NewStaticClassifier())

	petition := testPetition(500)
	petition.Public = false
	petition.FraudMetrics.FreeEmailCount = 400

	petitions.On("FindByID", mock.Anything, petition.ID).Return(petition, nil)

	err := svc.EvaluateThresholds(context.Background(), petition.ID)
	require.NoError(t, err)
	alerts.AssertNotCalled(t, "SendThresholdAlert", mock.Anything, mock.Anything, mock.Anything)
}

func TestEvaluateThresholdsThrottled(t *testing.T) {
	cfg := alertingConfig(map[string]config.Bound{
		"free_email": {Upper: floatPtr(0.1)},
	})
	petitions := new(MockPetitionService)
	alerts := new(MockAlertService)
	svc := NewFraudService(cfg, petitions, alerts, emailclass.NewStaticClassifier())

	petition := testPetition(500)
	petition.FraudMetrics.FreeEmailCount = 400
	recent := time.Now().UTC().Add(-10 * time.Minute)
	petition.LastFraudAlertAt = &recent

	petitions.On("FindByID", mock.Anything, petition.ID).Return(petition, nil)

	err := svc.EvaluateThresholds(context.Background(), petition.ID)
	require.NoError(t, err)
	alerts.AssertNotCalled(t, "SendThresholdAlert", mock.Anything, mock.Anything, mock.Anything)
}

func TestEvaluateThresholdsFailedSendDoesNotStamp(t *testing.T) {
	cfg := alertingConfig(map[string]config.Bound{
		"free_email": {Upper: floatPtr(0.1)},
	})
	petitions := new(MockPetitionService)
	alerts := new(MockAlertService)
	svc := NewFraudService(cfg, petitions, alerts, emailclass.NewStaticClassifier())

	petition := testPetition(500)
	petition.FraudMetrics.FreeEmailCount = 400

	petitions.On("FindByID", mock.Anything, petition.ID).Return(petition, nil)
	alerts.On("SendThresholdAlert", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	err := svc.EvaluateThresholds(context.Background(), petition.ID)
	require.NoError(t, err)
	petitions.AssertNotCalled(t, "StampFraudAlert", mock.Anything, mock.Anything, mock.Anything)
}

func TestEvaluateThresholdsLowerBound(t *testing.T) {
	// An implausibly low free-mail share on a big petition is itself a
	// signal the signatures are synthetic.
	cfg := alertingConfig(map[string]config.Bound{
		"free_email": {Lower: floatPtr(0.05)},
	})
	petitions := new(MockPetitionService)
	alerts := new(MockAlertService)
	svc := NewFraudService(cfg, petitions, alerts, emailclass.NewStaticClassifier())

	petition := testPetition(1001)
	petition.FraudMetrics.FreeEmailCount = 10 // 10/1000 = 0.01 < 0.05

	petitions.On("FindByID", mock.Anything, petition.ID).Return(petition, nil)
	alerts.On("SendThresholdAlert", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	petitions.On("StampFraudAlert", mock.Anything, petition.ID, mock.Anything).Return(nil)

	err := svc.EvaluateThresholds(context.Background(), petition.ID)
	require.NoError(t, err)
	alerts.AssertExpectations(t)
}

func TestEvaluateThresholdsDisabled(t *testing.T) {
	cfg := alertingConfig(map[string]config.Bound{
		"free_email": {Upper: floatPtr(0.1)},
	})
	cfg.AlertsEnabled = false
	petitions := new(MockPetitionService)
	svc := NewFraudService(cfg, petitions, new(MockAlertService), emailclass.NewStaticClassifier())

	err := svc.EvaluateThresholds(context.Background(), sixid.New())
	require.NoError(t, err)
	petitions.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestCrossedBoundsWithinRange(t *testing.T) {
	petition := testPetition(101)
	petition.FraudMetrics.FreeEmailCount = 30 // 0.3
	bounds := map[string]config.Bound{
		"free_email": {Lower: floatPtr(0.1), Upper: floatPtr(0.5)},
	}
	assert.Empty(t, crossedBounds(petition, bounds, 100))
}

func TestCrossedBoundsOrderIsStable(t *testing.T) {
	petition := testPetition(101)
	petition.FraudMetrics.FreeEmailCount = 80
	petition.FraudMetrics.SubaddressedEmailCount = 70
	petition.FraudMetrics.TimeBoundEmailCount = 60
	bounds := map[string]config.Bound{
		"timebound_email":    {Upper: floatPtr(0.1)},
		"free_email":         {Upper: floatPtr(0.1)},
		"subaddressed_email": {Upper: floatPtr(0.1)},
	}

	want := []models.MetricCategory{"free_email", "subaddressed_email", "timebound_email"}
	for i := 0; i < 20; i++ {
		crossed := crossedBounds(petition, bounds, 100)
		require.Len(t, crossed, 3)
		for j, c := range crossed {
			assert.Equal(t, want[j], c.Category)
		}
	}
}
