package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"model-trainer-service/internal/adapters/primary/http/dto"
	"model-trainer-service/internal/adapters/primary/http/middleware"
	"model-trainer-service/internal/adapters/secondary/artifacts"
	"model-trainer-service/internal/core/domain"
	"model-trainer-service/internal/core/ml"
	"model-trainer-service/internal/core/ports/output"
	"model-trainer-service/internal/core/services"
	"model-trainer-service/internal/testutil"
)

// ============================================================================
// Helpers
// ============================================================================

var testSecret = []byte("handler-secret")

type fixture struct {
	router *gin.Engine
	repo   *testutil.MockModelRecordRepo
	fs     afero.Fs
	user   domain.Identity
	token  string
}

func newFixture(t *testing.T, maxBatch int) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := ml.NewRegistry()
	repo := new(testutil.MockModelRecordRepo)
	fs := afero.NewMemMapFs()
	store := artifacts.NewStore(fs, "saved_models", registry)
	sessions, err := services.NewSessionStore(8)
	require.NoError(t, err)

	h := New(
		registry,
		services.NewTrainingService(registry, repo, store, 1),
		services.NewPredictionService(registry, maxBatch),
		services.NewModelService(repo, store),
		sessions,
	)

	router := gin.New()
	api := router.Group("/api/v1")
	api.Use(middleware.Auth(testSecret, ""))
	h.RegisterRoutes(api)

	user := domain.Identity{ID: uuid.New(), Role: domain.RoleUser}
	token, err := middleware.IssueToken(testSecret, "", user, time.Hour)
	require.NoError(t, err)

	return &fixture{router: router, repo: repo, fs: fs, user: user, token: token}
}

func (f *fixture) do(method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, "/api/v1"+path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Authorization", "Bearer "+f.token)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) doJSON(method, path string, payload any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(payload)
	return f.do(method, path, bytes.NewBuffer(raw), "application/json")
}

func (f *fixture) fit(t *testing.T, fields map[string]string, csv string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, fields, csv)
	return f.do(http.MethodPost, "/fit", body, contentType)
}

func multipartBody(t *testing.T, fields map[string]string, csv string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if csv != "" {
		part, err := w.CreateFormFile("file", "data.csv")
		require.NoError(t, err)
		_, err = part.Write([]byte(csv))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func trainingCSV(n int) string {
	var b strings.Builder
	b.WriteString("a,b,label\n")
	for i := 0; i < n; i++ {
		off := float64(i%5) * 0.1
		if i%2 == 0 {
			fmt.Fprintf(&b, "%.2f,%.2f,no\n", off, 1-off)
		} else {
			fmt.Fprintf(&b, "%.2f,%.2f,yes\n", 5+off, 4-off)
		}
	}
	return b.String()
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (f *fixture) expectFreshName(name string) {
	f.repo.On("GetByName", mock.Anything, name).Return(nil, domain.ErrModelNotFound).Once()
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.ModelRecord")).Return(nil).Once()
}

func fitFields(modelType, name string) map[string]string {
	return map[string]string{
		"model_type": modelType,
		"target":     "label",
		"file_name":  name,
		"seed":       "3",
	}
}

// ============================================================================
// Model Types Tests
// ============================================================================

func TestListModelTypes(t *testing.T) {
	f := newFixture(t, 10)

	w := f.do(http.MethodGet, "/model-types", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[dto.ModelTypesResponse](t, w)
	assert.Equal(t, []string{"logisticregression", "randomforest", "neuralnet"}, resp.ModelTypes)
}

func TestRoutes_RequireToken(t *testing.T) {
	f := newFixture(t, 10)
	f.token = "nope"

	w := f.do(http.MethodGet, "/models", nil, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// ============================================================================
// Fit / Predict Tests
// ============================================================================

func TestFitThenPredict(t *testing.T) {
	f := newFixture(t, 10)
	f.expectFreshName("churn")

	w := f.fit(t, fitFields("RandomForest", "churn"), trainingCSV(40))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	fit := decode[dto.FitResponse](t, w)
	assert.Equal(t, "churn", fit.FileName)
	assert.Equal(t, "churn.gob", fit.SavedFileName)
	assert.Equal(t, "randomforest", fit.ModelType)
	assert.GreaterOrEqual(t, fit.Accuracy, 0.0)
	assert.LessOrEqual(t, fit.Accuracy, 1.0)
	assert.Nil(t, fit.CV)

	exists, err := afero.Exists(f.fs, "saved_models/churn.gob")
	require.NoError(t, err)
	assert.True(t, exists)

	w = f.doJSON(http.MethodPost, "/predict", dto.PredictRequest{InputData: [][]float64{{0, 1}, {5, 4}}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	pred := decode[dto.PredictResponse](t, w)
	assert.Equal(t, "churn", pred.FileName)
	assert.Len(t, pred.Predictions, 2)
	assert.Equal(t, 1, pred.Predictions[1].Index)

	w = f.doJSON(http.MethodPost, "/predict", dto.PredictRequest{InputData: [][]float64{{0, 1}}, ReturnProba: true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	pred = decode[dto.PredictResponse](t, w)
	require.Len(t, pred.Probabilities, 1)
	assert.Len(t, pred.Probabilities[0].Scores, 2)
	f.repo.AssertExpectations(t)
}

func TestFit_CrossValidation(t *testing.T) {
	f := newFixture(t, 10)
	f.expectFreshName("cv")
	fields := fitFields("logisticregression", "cv")
	fields["k_folds"] = "4"

	w := f.fit(t, fields, trainingCSV(40))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	fit := decode[dto.FitResponse](t, w)
	require.NotNil(t, fit.CV)
	assert.Equal(t, 4, fit.CV.Folds)
	assert.InDelta(t, fit.CV.Mean, fit.Accuracy, 1e-12)
}

func TestFit_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		csv    string
		status int
		msg    string
	}{
		{"missing file", fitFields("randomforest", "x"), "", http.StatusBadRequest, "CSV file is required"},
		{"missing target", map[string]string{"model_type": "randomforest", "target": "species"}, trainingCSV(10), http.StatusBadRequest, domain.ErrTargetColumnNotFound.Error()},
		{"unknown type", fitFields("svm", "x"), trainingCSV(10), http.StatusBadRequest, "unsupported model type"},
		{"bad params", func() map[string]string {
			m := fitFields("randomforest", "x")
			m["params"] = "{"
			return m
		}(), trainingCSV(10), http.StatusBadRequest, "invalid hyperparameters"},
		{"no model type", map[string]string{"target": "label"}, trainingCSV(10), http.StatusBadRequest, "ModelType"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 10)

			w := f.fit(t, tt.fields, tt.csv)

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.msg)
		})
	}
}

func TestFit_RejectsNonFiniteCells(t *testing.T) {
	f := newFixture(t, 10)
	csv := trainingCSV(10) + "NaN,1,yes\n"

	w := f.fit(t, fitFields("logisticregression", "nan"), csv)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "not a finite number")
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestFit_NameConflict(t *testing.T) {
	f := newFixture(t, 10)
	f.repo.On("GetByName", mock.Anything, "taken").Return(&domain.ModelRecord{Name: "taken"}, nil)

	w := f.fit(t, fitFields("randomforest", "taken"), trainingCSV(20))

	assert.Equal(t, http.StatusConflict, w.Code)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPredict_NoCurrentModel(t *testing.T) {
	f := newFixture(t, 10)

	w := f.doJSON(http.MethodPost, "/predict", dto.PredictRequest{InputData: [][]float64{{1, 2}}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), domain.ErrModelNotFitted.Error())
}

func TestPredict_BatchTooLarge(t *testing.T) {
	f := newFixture(t, 2)
	f.expectFreshName("small")
	require.Equal(t, http.StatusOK, f.fit(t, fitFields("logisticregression", "small"), trainingCSV(20)).Code)

	w := f.doJSON(http.MethodPost, "/predict", dto.PredictRequest{InputData: [][]float64{{1, 2}, {3, 4}, {5, 6}}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), domain.ErrBatchTooLarge.Error())
}

func TestPredict_FeatureMismatch(t *testing.T) {
	f := newFixture(t, 10)
	f.expectFreshName("narrow")
	require.Equal(t, http.StatusOK, f.fit(t, fitFields("logisticregression", "narrow"), trainingCSV(20)).Code)

	w := f.doJSON(http.MethodPost, "/predict", dto.PredictRequest{InputData: [][]float64{{1, 2, 3}}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPredictFile(t *testing.T) {
	f := newFixture(t, 10)
	f.expectFreshName("file")
	require.Equal(t, http.StatusOK, f.fit(t, fitFields("logisticregression", "file"), trainingCSV(20)).Code)

	body, contentType := multipartBody(t, nil, "a,b\n0,1\n5,4\n0.1,0.9\n")
	w := f.do(http.MethodPost, "/predict-file?return_proba=true", body, contentType)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[dto.PredictResponse](t, w)
	assert.Equal(t, 3, resp.RowsPredicted)
	assert.Len(t, resp.Probabilities, 3)
	assert.Equal(t, "file", resp.FileName)
}

func TestPredictFile_RejectsNonFiniteCells(t *testing.T) {
	f := newFixture(t, 10)
	f.expectFreshName("finite")
	require.Equal(t, http.StatusOK, f.fit(t, fitFields("logisticregression", "finite"), trainingCSV(20)).Code)

	body, contentType := multipartBody(t, nil, "a,b\n0,1\nInf,4\n")
	w := f.do(http.MethodPost, "/predict-file", body, contentType)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "not a finite number")
}

// ============================================================================
// Model Management Tests
// ============================================================================

func TestGetModel(t *testing.T) {
	f := newFixture(t, 10)
	mine := &domain.ModelRecord{ID: uuid.New(), OwnerID: f.user.ID, Name: "mine", ModelType: domain.ModelTypeRandomForest}
	theirs := &domain.ModelRecord{ID: uuid.New(), OwnerID: uuid.New(), Name: "theirs", ModelType: domain.ModelTypeRandomForest}
	f.repo.On("GetByName", mock.Anything, "mine").Return(mine, nil)
	f.repo.On("GetByName", mock.Anything, "theirs").Return(theirs, nil)
	f.repo.On("GetByName", mock.Anything, "ghost").Return(nil, domain.ErrModelNotFound)

	w := f.do(http.MethodGet, "/models/mine", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "mine", decode[dto.ModelRecordResponse](t, w).Name)

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/models/theirs", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/models/ghost", nil, "").Code)
}

func TestListModels_OwnerFiltered(t *testing.T) {
	f := newFixture(t, 10)
	records := []*domain.ModelRecord{{ID: uuid.New(), OwnerID: f.user.ID, Name: "a", ModelType: domain.ModelTypeNeuralNet}}
	f.repo.On("List", mock.Anything, ports.ListFilter{OwnerID: f.user.ID}).Return(records, nil)

	w := f.do(http.MethodGet, "/models", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[dto.ListModelsResponse](t, w)
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, "neuralnet", resp.Items[0].ModelType)
}

func TestLoadModel(t *testing.T) {
	f := newFixture(t, 10)
	f.expectFreshName("saved")
	require.Equal(t, http.StatusOK, f.fit(t, fitFields("neuralnet", "saved"), trainingCSV(20)).Code)

	record := &domain.ModelRecord{
		ID:        uuid.New(),
		OwnerID:   f.user.ID,
		Name:      "saved",
		ModelType: domain.ModelTypeNeuralNet,
		FilePath:  "saved_models/saved.nnet",
	}
	f.repo.On("GetByName", mock.Anything, "saved").Return(record, nil)

	w := f.do(http.MethodPost, "/models/saved/load", nil, "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[dto.LoadModelResponse](t, w)
	assert.Equal(t, "saved", resp.FileName)
	assert.Equal(t, "neuralnet", resp.ModelType)

	w = f.doJSON(http.MethodPost, "/predict", dto.PredictRequest{InputData: [][]float64{{5, 4}}})
	require.Equal(t, http.StatusOK, w.Code)
	pred := decode[dto.PredictResponse](t, w)
	require.Len(t, pred.Predictions, 1)
	// holdout fits on coded labels
	assert.Contains(t, []string{"0", "1"}, pred.Predictions[0].Value)
}

func TestLoadModel_ArtifactMissing(t *testing.T) {
	f := newFixture(t, 10)
	f.repo.On("GetByName", mock.Anything, "orphan").Return(&domain.ModelRecord{
		ID:        uuid.New(),
		OwnerID:   f.user.ID,
		Name:      "orphan",
		ModelType: domain.ModelTypeLogisticRegression,
		FilePath:  "saved_models/orphan.gob",
	}, nil)

	w := f.do(http.MethodPost, "/models/orphan/load", nil, "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "artifact is missing")
}

func TestRenameModel(t *testing.T) {
	f := newFixture(t, 10)
	f.expectFreshName("old")
	require.Equal(t, http.StatusOK, f.fit(t, fitFields("logisticregression", "old"), trainingCSV(20)).Code)

	f.repo.On("GetByName", mock.Anything, "old").Return(&domain.ModelRecord{
		ID:        uuid.New(),
		OwnerID:   f.user.ID,
		Name:      "old",
		ModelType: domain.ModelTypeLogisticRegression,
		FilePath:  "saved_models/old.gob",
	}, nil)
	f.repo.On("GetByName", mock.Anything, "new").Return(nil, domain.ErrModelNotFound)
	f.repo.On("Update", mock.Anything, mock.AnythingOfType("*domain.ModelRecord")).Return(nil)

	w := f.doJSON(http.MethodPatch, "/models/old", dto.RenameModelRequest{NewName: "new"})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[dto.ModelRecordResponse](t, w)
	assert.Equal(t, "new", resp.Name)
	assert.Equal(t, "saved_models/new.gob", resp.FilePath)

	// the current model follows the rename
	w = f.doJSON(http.MethodPost, "/predict", dto.PredictRequest{InputData: [][]float64{{0, 1}}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "new", decode[dto.PredictResponse](t, w).FileName)
}

func TestRenameModel_Conflict(t *testing.T) {
	f := newFixture(t, 10)
	f.repo.On("GetByName", mock.Anything, "a").Return(&domain.ModelRecord{OwnerID: f.user.ID, Name: "a"}, nil)
	f.repo.On("GetByName", mock.Anything, "b").Return(&domain.ModelRecord{OwnerID: f.user.ID, Name: "b"}, nil)

	w := f.doJSON(http.MethodPatch, "/models/a", dto.RenameModelRequest{NewName: "b"})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRenameModel_InvalidName(t *testing.T) {
	f := newFixture(t, 10)

	w := f.doJSON(http.MethodPatch, "/models/a", dto.RenameModelRequest{NewName: "../etc"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteModel(t *testing.T) {
	f := newFixture(t, 10)
	f.expectFreshName("gone")
	require.Equal(t, http.StatusOK, f.fit(t, fitFields("randomforest", "gone"), trainingCSV(20)).Code)

	id := uuid.New()
	f.repo.On("GetByName", mock.Anything, "gone").Return(&domain.ModelRecord{
		ID:        id,
		OwnerID:   f.user.ID,
		Name:      "gone",
		ModelType: domain.ModelTypeRandomForest,
		FilePath:  "saved_models/gone.gob",
	}, nil)
	f.repo.On("Delete", mock.Anything, id).Return(nil)

	w := f.do(http.MethodDelete, "/models/gone", nil, "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	exists, _ := afero.Exists(f.fs, "saved_models/gone.gob")
	assert.False(t, exists)

	// second delete finds no artifact
	w = f.do(http.MethodDelete, "/models/gone", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteAllModels_RequiresConfirm(t *testing.T) {
	f := newFixture(t, 10)

	w := f.do(http.MethodDelete, "/models", nil, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "confirm=true")
	f.repo.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestDeleteAllModels(t *testing.T) {
	f := newFixture(t, 10)
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	f.repo.On("List", mock.Anything, mock.Anything).Return([]*domain.ModelRecord{
		{ID: ids[0], OwnerID: f.user.ID, Name: "one", FilePath: "saved_models/one.gob"},
		{ID: ids[1], OwnerID: f.user.ID, Name: "two", FilePath: "saved_models/two.gob"},
	}, nil)
	f.repo.On("Delete", mock.Anything, ids[0]).Return(nil)
	f.repo.On("Delete", mock.Anything, ids[1]).Return(domain.ErrModelNotFound)

	w := f.do(http.MethodDelete, "/models?confirm=true", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[dto.DeleteAllResponse](t, w)
	assert.Equal(t, []string{"one"}, resp.Deleted)
	assert.Contains(t, resp.Failed, "two")
}

// ============================================================================
// Error Mapping Tests
// ============================================================================

func TestMapDomainError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		err    error
		status int
	}{
		{domain.ErrInvalidLabelCardinality, http.StatusBadRequest},
		{domain.ErrModelNotFitted, http.StatusBadRequest},
		{fmt.Errorf("%w: x", domain.ErrArtifactMissing), http.StatusNotFound},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrArtifactExists, http.StatusConflict},
		{domain.ErrCorruptArtifact, http.StatusUnprocessableEntity},
		{domain.ErrUnsupportedArtifactFormat, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			mapDomainError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.err.Error())
		})
	}
}

func TestMapDomainError_InternalErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	mapDomainError(c, fmt.Errorf("%w: matrix is singular", domain.ErrTrainingFailed))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "matrix is singular")

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	mapDomainError(c, fmt.Errorf("connection reset"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
	assert.NotContains(t, w.Body.String(), "connection reset")
}
