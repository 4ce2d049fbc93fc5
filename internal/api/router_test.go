package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parastoo-62/petitions/internal/config"
	"github.com/parastoo-62/petitions/internal/pipeline"
)

type fakeAsynqClient struct {
	enqueued []*asynq.Task
	err      error
}

func (f *fakeAsynqClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.enqueued = append(f.enqueued, task)
	if f.err != nil {
		return nil, f.err
	}
	return &asynq.TaskInfo{ID: "task-1", Queue: "default", Type: task.Type()}, nil
}

func testRouter(t *testing.T, cfg *config.Config, client *fakeAsynqClient) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	processor := pipeline.NewProcessor(cfg, nil, nil, nil, nil, nil, nil, nil)
	return SetupRouter(cfg, processor, client)
}

func TestHealthEndpoint(t *testing.T) {
	router := testRouter(t, &config.Config{ServiceApiToken: "secret"}, &fakeAsynqClient{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestMetricsEndpoint(t *testing.T) {
	router := testRouter(t, &config.Config{ServiceApiToken: "secret"}, &fakeAsynqClient{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProcessRequiresToken(t *testing.T) {
	router := testRouter(t, &config.Config{ServiceApiToken: "secret"}, &fakeAsynqClient{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/process", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/process", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProcessRejectedWhenNoTokenConfigured(t *testing.T) {
	router := testRouter(t, &config.Config{}, &fakeAsynqClient{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/process", nil)
	req.Header.Set("Authorization", "Bearer ")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProcessEnqueues(t *testing.T) {
	client := &fakeAsynqClient{}
	router := testRouter(t, &config.Config{ServiceApiToken: "secret", ProcessingEnabled: true, BatchSize: 10}, client)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/process", strings.NewReader(`{"batch_size": 5}`))
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, client.enqueued, 1)
	assert.Equal(t, "signatures:process", client.enqueued[0].Type())
}

func TestProcessInlineDisabled(t *testing.T) {
	router := testRouter(t, &config.Config{ServiceApiToken: "secret", ProcessingEnabled: false, BatchSize: 10}, &fakeAsynqClient{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/process", strings.NewReader(`{"inline": true}`))
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestProcessNegativeBatchSize(t *testing.T) {
	router := testRouter(t, &config.Config{ServiceApiToken: "secret", ProcessingEnabled: true}, &fakeAsynqClient{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/process", strings.NewReader(`{"batch_size": -2}`))
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
