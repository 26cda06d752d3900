package model

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/Brownie44l1/anidex/internal/conf"
	"github.com/Brownie44l1/anidex/internal/errors"
)

// BuiltinLabels is the label order the bundled model was trained with.
var BuiltinLabels = []string{
	"butterfly", "cat", "chicken", "cow", "dog",
	"elephant", "horse", "sheep", "spider", "squirrel",
}

// LoadLabels returns the ordered label set without loading a model.
func LoadLabels(settings conf.LabelSettings) ([]string, error) {
	labels, _, err := loadLabels(settings)
	return labels, err
}

// loadLabels resolves the ordered label set. The metadata side-car is
// returned when the source is "metadata" so shapes and image size can be reused.
func loadLabels(settings conf.LabelSettings) ([]string, *Metadata, error) {
	switch settings.Source {
	case "", conf.LabelSourceBuiltin:
		return slices.Clone(BuiltinLabels), nil, nil

	case conf.LabelSourceMetadata:
		data, err := readLabelSource(settings.Path)
		if err != nil {
			return nil, nil, err
		}
		var meta Metadata
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil, nil, errors.Newf("failed to parse metadata %s: %w", settings.Path, err).
				Component("model").
				Category(errors.CategoryModelInit).
				Build()
		}
		if err := checkLabels(meta.Classes, settings.Path); err != nil {
			return nil, nil, err
		}
		return meta.Classes, &meta, nil

	case conf.LabelSourceFile:
		data, err := readLabelSource(settings.Path)
		if err != nil {
			return nil, nil, err
		}
		labels := parseLabelFile(data)
		if err := checkLabels(labels, settings.Path); err != nil {
			return nil, nil, err
		}
		return labels, nil, nil
	}

	return nil, nil, errors.Newf("unsupported label source %q", settings.Source).
		Component("model").
		Category(errors.CategoryConfiguration).
		Build()
}

func readLabelSource(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		category := errors.CategoryModelInit
		if os.IsNotExist(err) {
			category = errors.CategoryLabelSourceNotFound
		}
		return nil, errors.New(fmt.Errorf("failed to read label source: %w", err)).
			Component("model").
			Category(category).
			Context("path", path).
			Build()
	}
	return data, nil
}

// parseLabelFile reads one label per line, skipping blanks and # comments.
func parseLabelFile(data []byte) []string {
	var labels []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		labels = append(labels, line)
	}
	return labels
}

func checkLabels(labels []string, path string) error {
	if len(labels) == 0 {
		return errors.Newf("label source %s contains no labels", path).
			Component("model").
			Category(errors.CategoryModelInit).
			Build()
	}
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		if _, dup := seen[l]; dup {
			return errors.Newf("duplicate label %q in %s", l, path).
				Component("model").
				Category(errors.CategoryModelInit).
				Build()
		}
		seen[l] = struct{}{}
	}
	return nil
}
