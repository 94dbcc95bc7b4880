package subscriptions

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadAll reads every *.yml file in the directory. A missing directory is
// not an error; the service just starts with no seeded subscriptions.
func LoadAll(dir string) ([]*File, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YML files: %w", err)
	}

	files := make([]*File, 0, len(paths))
	for _, path := range paths {
		file, err := Load(path)
		if err != nil {
			return nil, fmt.Errorf("error loading %s: %w", path, err)
		}
		files = append(files, file)
	}

	return files, nil
}

// Load parses one subscription file. The user ID is the filename without
// its .yml extension.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	file.UserID = strings.TrimSuffix(filepath.Base(path), ".yml")

	if err := validate(&file); err != nil {
		return nil, err
	}

	return &file, nil
}

func validate(file *File) error {
	if file.UserID == "" {
		return fmt.Errorf("empty user id")
	}

	for i, src := range file.Sources {
		if src.Type == "" {
			return fmt.Errorf("source %d: missing type", i)
		}
		if src.ID == "" {
			return fmt.Errorf("source %d: missing id", i)
		}
	}

	for i, filter := range file.Filters {
		if filter.Keyword == "" && filter.MinMinutes == nil && filter.MaxMinutes == nil {
			return fmt.Errorf("filter %d: must set keyword or a duration bound", i)
		}
		if filter.Keyword != "" && (filter.MinMinutes != nil || filter.MaxMinutes != nil) {
			return fmt.Errorf("filter %d: keyword and duration bounds are mutually exclusive", i)
		}
	}

	if p := file.Preferences; p != nil {
		if p.BacklogRatio != nil && (*p.BacklogRatio < 0 || *p.BacklogRatio > 1) {
			return fmt.Errorf("preferences: backlog_ratio must be within 0-1")
		}
		if p.MaxConsecutive != nil && *p.MaxConsecutive < 1 {
			return fmt.Errorf("preferences: max_consecutive must be at least 1")
		}
	}

	return nil
}
