package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/imaddar/wolf-goat-pig/services/engine/internal/domain"
)

type coursesFile struct {
	Courses []domain.Course `yaml:"courses"`
}

// LoadCourses reads a YAML file holding a `courses:` list and validates
// every course in it.
func LoadCourses(path string) ([]domain.Course, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read courses %s: %w", path, err)
	}
	return ParseCourses(raw)
}

func ParseCourses(raw []byte) ([]domain.Course, error) {
	var file coursesFile
	if err := decodeStrict(raw, &file); err != nil {
		return nil, fmt.Errorf("%w: parse courses: %v", domain.ErrConfiguration, err)
	}
	if len(file.Courses) == 0 {
		return nil, fmt.Errorf("%w: no courses defined", domain.ErrConfiguration)
	}

	seen := make(map[string]struct{}, len(file.Courses))
	for _, course := range file.Courses {
		if course.Name == "" {
			return nil, fmt.Errorf("%w: course without a name", domain.ErrConfiguration)
		}
		if _, ok := seen[course.Name]; ok {
			return nil, fmt.Errorf("%w: duplicate course %q", domain.ErrConfiguration, course.Name)
		}
		seen[course.Name] = struct{}{}
		if err := course.Validate(); err != nil {
			return nil, fmt.Errorf("course %q: %w", course.Name, err)
		}
	}
	return file.Courses, nil
}

// LoadHouseRules reads round settings from YAML. Keys the file leaves out
// keep their defaults.
func LoadHouseRules(path string) (domain.RoundConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.RoundConfig{}, fmt.Errorf("read house rules %s: %w", path, err)
	}
	return ParseHouseRules(raw)
}

func ParseHouseRules(raw []byte) (domain.RoundConfig, error) {
	cfg := domain.DefaultRoundConfig()
	if err := decodeStrict(raw, &cfg); err != nil {
		return domain.RoundConfig{}, fmt.Errorf("%w: parse house rules: %v", domain.ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return domain.RoundConfig{}, err
	}
	return cfg, nil
}

func decodeStrict(raw []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
