package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plant-disease-service/service"
)

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")

	err := writeCSV(path, []service.BatchRow{
		{Filename: "a.png", PredictedClass: "Apple__healthy"},
		{Filename: "b.jpg", PredictedClass: "Pepper,_bell__Bacterial_spot"},
	})
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "filename,predicted_class\na.png,Apple__healthy\nb.jpg,\"Pepper,_bell__Bacterial_spot\"\n", string(got))
}
