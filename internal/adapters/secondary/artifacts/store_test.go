package artifacts

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"model-trainer-service/internal/core/domain"
	"model-trainer-service/internal/core/ml"
)

func newTestStore() (*Store, afero.Fs) {
	fs := afero.NewMemMapFs()
	return NewStore(fs, "saved_models", ml.NewRegistry()), fs
}

func dataset() ([][]float64, []string) {
	X := make([][]float64, 30)
	y := make([]string, 30)
	for i := range X {
		off := float64(i%5) * 0.1
		if i%2 == 0 {
			X[i], y[i] = []float64{off, 1 + off}, "0"
		} else {
			X[i], y[i] = []float64{4 + off, 3 - off}, "1"
		}
	}
	return X, y
}

func trained(t *testing.T, tag string, params map[string]any) ml.Model {
	t.Helper()
	X, y := dataset()
	m, err := ml.NewRegistry().New(tag, params)
	require.NoError(t, err)
	_, err = m.Train(X, y)
	require.NoError(t, err)
	return m
}

func TestStore_FilenameByType(t *testing.T) {
	s, _ := newTestStore()

	tests := []struct {
		t    domain.ModelType
		want string
	}{
		{domain.ModelTypeLogisticRegression, "m.gob"},
		{domain.ModelTypeRandomForest, "m.gob"},
		{domain.ModelTypeNeuralNet, "m.nnet"},
	}
	for _, tt := range tests {
		got, err := s.Filename("m", tt.t)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := s.Filename("m", "svm")
	assert.ErrorIs(t, err, domain.ErrUnsupportedModelType)
}

func TestStore_RoundTrip(t *testing.T) {
	X, _ := dataset()
	tests := []struct {
		tag    string
		params map[string]any
	}{
		{"logisticregression", nil},
		{"randomforest", map[string]any{"n_estimators": 5.0, "random_state": 1.0}},
		{"neuralnet", map[string]any{"epochs": 50.0, "hidden_layer_sizes": []any{4.0}, "learning_rate": 0.01, "random_state": 2.0}},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			s, fs := newTestStore()
			m := trained(t, tt.tag, tt.params)

			filename, err := s.Save(m, "model_"+tt.tag)
			require.NoError(t, err)
			ok, err := afero.Exists(fs, "saved_models/"+filename)
			require.NoError(t, err)
			assert.True(t, ok)

			loaded, err := s.Load(tt.tag, filename)
			require.NoError(t, err)
			assert.True(t, loaded.IsFitted())

			want, err := m.Predict(X)
			require.NoError(t, err)
			got, err := loaded.Predict(X)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestStore_SaveTwiceOverwrites(t *testing.T) {
	s, fs := newTestStore()
	m := trained(t, "logisticregression", nil)

	first, err := s.Save(m, "same")
	require.NoError(t, err)
	second, err := s.Save(m, "same")
	require.NoError(t, err)
	other, err := s.Save(m, "different")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)
	entries, err := afero.ReadDir(fs, "saved_models")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestStore_SaveUnfitted(t *testing.T) {
	s, _ := newTestStore()
	m, err := ml.NewLinearClassifier(nil)
	require.NoError(t, err)

	_, err = s.Save(m, "x")
	assert.ErrorIs(t, err, domain.ErrModelNotFitted)
}

// opaqueModel hides the concrete type of a fitted model from the encoder.
type opaqueModel struct {
	ml.Model
}

func TestStore_SaveEncodeFailureRemovesFile(t *testing.T) {
	s, fs := newTestStore()
	m := opaqueModel{trained(t, "logisticregression", nil)}

	_, err := s.Save(m, "partial")
	assert.ErrorIs(t, err, domain.ErrUnsupportedModelType)

	ok, err := afero.Exists(fs, "saved_models/partial.gob")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_LoadErrors(t *testing.T) {
	s, fs := newTestStore()
	require.NoError(t, afero.WriteFile(fs, "saved_models/weird.pkl", []byte("x"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "saved_models/broken.gob", []byte("not gob"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "saved_models/broken.nnet", []byte("NNET"), 0o644))

	tests := []struct {
		name     string
		tag      string
		filename string
		want     error
	}{
		{"unknown type", "svm", "weird.pkl", domain.ErrUnsupportedModelType},
		{"missing file", "randomforest", "absent.gob", domain.ErrArtifactNotFound},
		{"unknown extension", "randomforest", "weird.pkl", domain.ErrUnsupportedArtifactFormat},
		{"extension of another type", "neuralnet", "broken.gob", domain.ErrUnsupportedArtifactFormat},
		{"corrupt gob", "logisticregression", "broken.gob", domain.ErrCorruptArtifact},
		{"corrupt network", "neuralnet", "broken.nnet", domain.ErrCorruptArtifact},
		{"path escape", "randomforest", "../x.gob", domain.ErrInvalidModelName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Load(tt.tag, tt.filename)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestStore_Rename(t *testing.T) {
	s, _ := newTestStore()
	m := trained(t, "logisticregression", nil)
	_, err := s.Save(m, "a")
	require.NoError(t, err)
	_, err = s.Save(m, "b")
	require.NoError(t, err)

	assert.ErrorIs(t, s.Rename("a.gob", "b.gob"), domain.ErrArtifactExists)
	assert.ErrorIs(t, s.Rename("zzz.gob", "c.gob"), domain.ErrArtifactNotFound)

	require.NoError(t, s.Rename("a.gob", "c.gob"))
	ok, err := s.Exists("a.gob")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = s.Exists("c.gob")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_Remove(t *testing.T) {
	s, _ := newTestStore()
	m := trained(t, "randomforest", map[string]any{"n_estimators": 3.0})
	filename, err := s.Save(m, "gone")
	require.NoError(t, err)

	require.NoError(t, s.Remove(filename))
	assert.ErrorIs(t, s.Remove(filename), domain.ErrArtifactNotFound)
}

func TestStore_Path(t *testing.T) {
	s, _ := newTestStore()
	assert.Equal(t, "saved_models/m.gob", s.Path("m.gob"))
}
