package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"agridash/db"
	"agridash/ml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseInts(t *testing.T) {
	layers, err := parseInts("128, 256,128")
	require.NoError(t, err)
	assert.Equal(t, []int{128, 256, 128}, layers)
	assert.Equal(t, "128,256,128", joinInts(layers))

	for _, bad := range []string{"", "a,b", "64,-1", "0"} {
		_, err := parseInts(bad)
		assert.Error(t, err, bad)
	}
}

func writeDataset(t *testing.T, dir string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("N,P,K,Temperature(C),Humidity(%),Soil_pH,Moisture(%),Crop,Region,Month,Fertilizer\n")
	crops := []string{"Rice", "Wheat"}
	for i := 0; i < 30; i++ {
		n := 20 + i*5
		fert := "Urea"
		if n >= 90 {
			fert = "DAP"
		}
		fmt.Fprintf(&b, "%d,40,50,25,60,6.5,40,%s,Punjab,June,%s\n", n, crops[i%2], fert)
	}
	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestRunWritesBundleAndLog(t *testing.T) {
	dir := t.TempDir()
	data := writeDataset(t, dir)
	out := filepath.Join(dir, "artifacts")
	dbPath := filepath.Join(dir, "agridash.db")

	opts := ml.DefaultTrainOptions()
	opts.ModelType = ml.ModelTypeDecisionTree
	require.NoError(t, run(context.Background(), zap.NewNop(), data, out, dbPath, opts))

	bundle, err := ml.LoadBundle(out)
	require.NoError(t, err)
	assert.Equal(t, ml.ModelTypeDecisionTree, bundle.Manifest.ModelType)

	store, err := db.Open(dbPath)
	require.NoError(t, err)
	defer store.Close()
	logs, err := store.LoadTrainingLog(context.Background())
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, bundle.Manifest.BundleID, logs[0].BundleID)
	assert.Equal(t, 24, logs[0].TrainRows)
}

func TestRunRejectsMissingColumns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("N,P\n1,2\n"), 0o644))

	err := run(context.Background(), zap.NewNop(), path, filepath.Join(dir, "out"), "", ml.DefaultTrainOptions())
	require.Error(t, err)
	assert.Equal(t, ml.KindDatasetSchema, ml.Kind(err))
	_, statErr := os.Stat(filepath.Join(dir, "out"))
	assert.True(t, os.IsNotExist(statErr))
}
