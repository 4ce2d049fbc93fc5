package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/parastoo-62/petitions/internal/models"
	"github.com/parastoo-62/petitions/internal/sixid"
)

type MockPetitionService struct {
	mock.Mock
}

func (m *MockPetitionService) Resolve(ctx context.Context, ref models.PetitionRef) (*models.Petition, error) {
	args := m.Called(ctx, ref)
	if p := args.Get(0); p != nil {
		return p.(*models.Petition), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPetitionService) FindByID(ctx context.Context, id sixid.SixID) (*models.Petition, error) {
	args := m.Called(ctx, id)
	if p := args.Get(0); p != nil {
		return p.(*models.Petition), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPetitionService) IncrementSignatureCount(ctx context.Context, id sixid.SixID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockPetitionService) IncrementFraudMetric(ctx context.Context, id sixid.SixID, cat models.MetricCategory) error {
	return m.Called(ctx, id, cat).Error(0)
}

func (m *MockPetitionService) IncrementUniqueCounters(ctx context.Context, id sixid.SixID, newIP bool) error {
	return m.Called(ctx, id, newIP).Error(0)
}

func (m *MockPetitionService) StampFraudAlert(ctx context.Context, id sixid.SixID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockPetitionService) GetField(ctx context.Context, id sixid.SixID, field string) (interface{}, error) {
	args := m.Called(ctx, id, field)
	return args.Get(0), args.Error(1)
}

func (m *MockPetitionService) SetField(ctx context.Context, id sixid.SixID, field string, value interface{}) error {
	return m.Called(ctx, id, field, value).Error(0)
}

type MockAlertService struct {
	mock.Mock
}

func (m *MockAlertService) DispatchOperatorAlert(subject, body string) {
	m.Called(subject, body)
}

func (m *MockAlertService) SendThresholdAlert(ctx context.Context, subject, body string) error {
	return m.Called(ctx, subject, body).Error(0)
}
