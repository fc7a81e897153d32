package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagetrak/stagetrak-backend/pkg/config"
)

func loadTestCatalog(t *testing.T) *Stages {
	t.Helper()
	stages, err := LoadStages(config.CatalogConfig{Stages: "CUT:Cutting,SEW:Sewing,ASM:Assembly"})
	require.NoError(t, err)
	return stages
}

func TestLoadStagesAssignsSequence(t *testing.T) {
	stages := loadTestCatalog(t)

	require.Equal(t, 3, stages.Len())
	all := stages.All()
	assert.Equal(t, Stage{Code: "CUT", DisplayName: "Cutting", Sequence: 1}, all[0])
	assert.Equal(t, Stage{Code: "SEW", DisplayName: "Sewing", Sequence: 2}, all[1])
	assert.Equal(t, Stage{Code: "ASM", DisplayName: "Assembly", Sequence: 3}, all[2])
}

func TestLoadStagesDefaultsNameToCode(t *testing.T) {
	stages, err := LoadStages(config.CatalogConfig{Stages: "CUT,SEW:Sewing"})
	require.NoError(t, err)

	stage, ok := stages.ByCode("CUT")
	require.True(t, ok)
	assert.Equal(t, "CUT", stage.DisplayName)
}

func TestLoadStagesRejectsEmptyCatalog(t *testing.T) {
	_, err := LoadStages(config.CatalogConfig{Stages: "  "})
	require.Error(t, err)
}

func TestLoadStagesRejectsDuplicateCodes(t *testing.T) {
	_, err := LoadStages(config.CatalogConfig{Stages: "CUT:Cutting,CUT:Again"})
	require.Error(t, err)
}

func TestStagesNavigation(t *testing.T) {
	stages := loadTestCatalog(t)

	assert.True(t, stages.IsFirst("CUT"))
	assert.False(t, stages.IsFirst("SEW"))
	assert.True(t, stages.IsLast("ASM"))
	assert.Equal(t, "CUT", stages.First().Code)
	assert.Equal(t, "ASM", stages.Last().Code)

	prev, ok := stages.Prev("SEW")
	require.True(t, ok)
	assert.Equal(t, "CUT", prev.Code)

	_, ok = stages.Prev("CUT")
	assert.False(t, ok)

	next, ok := stages.Next("SEW")
	require.True(t, ok)
	assert.Equal(t, "ASM", next.Code)

	_, ok = stages.Next("ASM")
	assert.False(t, ok)

	_, ok = stages.ByCode("NOPE")
	assert.False(t, ok)
}
