package hyperopt

import (
	"path/filepath"
	"testing"

	"github.com/pa-m/hyperopt/sampler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateStudyDefaultsDirectionAndSampler(t *testing.T) {
	sp, err := NewSearchSpace(Float{NameValue: "x", Low: -5, High: 5})
	require.NoError(t, err)

	st, err := CreateStudy("default-study", sp, nil, nil, nil, nil)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		tr, err := st.Ask()
		require.NoError(t, err)
		x := tr.Parameters()["x"].(float64)
		require.NoError(t, st.Tell(tr.Number(), x*x))
	}
	best, ok := st.BestTrial()
	require.True(t, ok)
	v, ok := best.Value()
	require.True(t, ok)
	assert.GreaterOrEqual(t, v, 0.0)
}

func TestCreateMultiObjectiveStudyWithNoDirectionsReturnsConstructionError(t *testing.T) {
	sp, err := NewSearchSpace(Float{NameValue: "x", Low: -5, High: 5})
	require.NoError(t, err)

	_, err = CreateMultiObjectiveStudy("bad-moo", sp, nil, nil, nil, nil)
	var ce *ConstructionError
	assert.ErrorAs(t, err, &ce)
}

func TestSaveAndLoadStudyRoundTrip(t *testing.T) {
	sp, err := NewSearchSpace(Float{NameValue: "x", Low: -5, High: 5})
	require.NoError(t, err)

	st, err := CreateStudy("persisted", sp, nil, nil, nil, nil)
	require.NoError(t, err)

	tr, err := st.Ask()
	require.NoError(t, err)
	require.NoError(t, st.Tell(tr.Number(), 1.0))

	path := filepath.Join(t.TempDir(), "study.yaml")
	require.NoError(t, st.Save(path))

	loaded, err := LoadStudy(path, sp, sampler.NewRandom(1))
	require.NoError(t, err)
	trials := loaded.Trials()
	require.Len(t, trials, 1)
	v, ok := trials[0].Value()
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
}
