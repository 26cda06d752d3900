package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd, a := newRootCommand()
	t.Cleanup(a.close)

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLabelsCommandBuiltin(t *testing.T) {
	cfg := writeConfig(t, "datastore:\n  type: none\n")

	out, err := execute(t, "--config", cfg, "labels")
	require.NoError(t, err)
	assert.Contains(t, out, " 0  butterfly")
	assert.Contains(t, out, " 9  squirrel")
	assert.Contains(t, out, "🐱 Cat")
}

func TestLabelsCommandFromFile(t *testing.T) {
	labels := filepath.Join(t.TempDir(), "labels.txt")
	require.NoError(t, os.WriteFile(labels, []byte("# classes\nzebra\ncat\n"), 0o644))
	cfg := writeConfig(t, "model:\n  labels:\n    source: file\n    path: "+labels+"\n")

	out, err := execute(t, "--config", cfg, "labels")
	require.NoError(t, err)
	assert.Contains(t, out, " 0  zebra")
	assert.Contains(t, out, " 1  cat")
}

func TestInvalidConfigFails(t *testing.T) {
	cfg := writeConfig(t, "model:\n  backend: pytorch\n")

	_, err := execute(t, "--config", cfg, "labels")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model.backend")
}

func TestBackendFlagOverridesConfig(t *testing.T) {
	cfg := writeConfig(t, "model:\n  backend: onnx\n")

	_, err := execute(t, "--config", cfg, "--backend", "caffe", "labels")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "caffe")
}

func TestPredictMissingModel(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, "model:\n  path: "+filepath.Join(dir, "missing.onnx")+"\n")

	_, err := execute(t, "--config", cfg, "predict", filepath.Join(dir, "cat.png"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.onnx")
}

func TestPredictRequiresArgument(t *testing.T) {
	cfg := writeConfig(t, "")

	_, err := execute(t, "--config", cfg, "predict")
	assert.Error(t, err)
}
