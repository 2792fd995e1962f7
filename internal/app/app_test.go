package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/idverify/internal/common"
)

func testConfig() *common.Config {
	cfg := common.LoadConfig()
	cfg.OCR.Engines = []string{"tesseract"}
	cfg.LLM.Enabled = false
	cfg.Pipeline.PacksDir = ""
	return cfg
}

func TestBuild_InMemory(t *testing.T) {
	a, err := Build(context.Background(), testConfig(), Options{InMemory: true}, nil)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.NotNil(t, a.Pipeline)
	assert.NotNil(t, a.Store)
	assert.NotNil(t, a.Export)
	assert.NoError(t, a.Health(context.Background()))
}

func TestBuild_NoStore(t *testing.T) {
	a, err := Build(context.Background(), testConfig(), Options{NoStore: true}, nil)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.Nil(t, a.Store)
	assert.Nil(t, a.Export)
	assert.NoError(t, a.Health(context.Background()))
}

func TestBuild_UnknownEngine(t *testing.T) {
	cfg := testConfig()
	cfg.OCR.Engines = []string{"abbyy"}
	_, err := Build(context.Background(), cfg, Options{NoStore: true}, nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestBuild_BadPacksDir(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.PacksDir = t.TempDir()
	_, err := Build(context.Background(), cfg, Options{NoStore: true}, nil)
	assert.Error(t, err)
}
