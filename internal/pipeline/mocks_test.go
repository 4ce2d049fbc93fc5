package pipeline

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/parastoo-62/petitions/internal/models"
	"github.com/parastoo-62/petitions/internal/services"
	"github.com/parastoo-62/petitions/internal/sixid"
)

type MockStagingService struct {
	mock.Mock
}

func (m *MockStagingService) MatchBatch(ctx context.Context, limit int) ([]models.MatchedRecord, error) {
	args := m.Called(ctx, limit)
	if r := args.Get(0); r != nil {
		return r.([]models.MatchedRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStagingService) CountPending(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStagingService) DeletePending(ctx context.Context, secretKey string) error {
	return m.Called(ctx, secretKey).Error(0)
}

func (m *MockStagingService) DeleteValidation(ctx context.Context, secretKey string) error {
	return m.Called(ctx, secretKey).Error(0)
}

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

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserService) FindOrCreate(ctx context.Context, profile services.SignerProfile) (*models.User, bool, error) {
	args := m.Called(ctx, profile)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Bool(1), args.Error(2)
	}
	return nil, args.Bool(1), args.Error(2)
}

type MockSignatureService struct {
	mock.Mock
}

func (m *MockSignatureService) FindByPetitionAndUser(ctx context.Context, petitionID, userID sixid.SixID) (*models.Signature, error) {
	args := m.Called(ctx, petitionID, userID)
	if s := args.Get(0); s != nil {
		return s.(*models.Signature), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSignatureService) FindByID(ctx context.Context, id sixid.SixID) (*models.Signature, error) {
	args := m.Called(ctx, id)
	if s := args.Get(0); s != nil {
		return s.(*models.Signature), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSignatureService) Create(ctx context.Context, sig *models.Signature) (*models.Signature, bool, error) {
	args := m.Called(ctx, sig)
	if s := args.Get(0); s != nil {
		return s.(*models.Signature), args.Bool(1), args.Error(2)
	}
	return nil, args.Bool(1), args.Error(2)
}

func (m *MockSignatureService) HasSignatureFromIP(ctx context.Context, petitionID sixid.SixID, clientIP string) (bool, error) {
	args := m.Called(ctx, petitionID, clientIP)
	return args.Bool(0), args.Error(1)
}

type MockArchiveService struct {
	mock.Mock
}

func (m *MockArchiveService) Archive(ctx context.Context, rec *models.MatchedRecord, jobID string) error {
	return m.Called(ctx, rec, jobID).Error(0)
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

type MockFraudService struct {
	mock.Mock
}

func (m *MockFraudService) RecordSignature(ctx context.Context, petitionID sixid.SixID, signerEmail string, newIP bool) error {
	return m.Called(ctx, petitionID, signerEmail, newIP).Error(0)
}

func (m *MockFraudService) EvaluateThresholds(ctx context.Context, petitionID sixid.SixID) error {
	return m.Called(ctx, petitionID).Error(0)
}
