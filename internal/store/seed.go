package store

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ashureev/whisperbridge/internal/domain"
)

// Seed is the catalog and reflection content of a seed file.
type Seed struct {
	Scrolls     []domain.Scroll     `yaml:"scrolls"`
	Reflections []domain.Reflection `yaml:"reflections"`
}

// SeedResult counts what ApplySeed wrote.
type SeedResult struct {
	Scrolls     int `json:"scrolls"`
	Reflections int `json:"reflections"`
	Skipped     int `json:"skipped"`
}

// LoadSeed reads a YAML seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes YAML seed content and checks every entry is keyed.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	for i, s := range seed.Scrolls {
		if s.Title == "" {
			return nil, fmt.Errorf("seed scroll %d: title is required", i)
		}
	}
	for i, r := range seed.Reflections {
		if r.ScrollName == "" || r.ModelName == "" {
			return nil, fmt.Errorf("seed reflection %d: scroll and model are required", i)
		}
	}
	return &seed, nil
}

// ApplySeed inserts scrolls whose title is not yet present and reflections
// not already stored with identical text. Running it twice is harmless.
func ApplySeed(ctx context.Context, client Client, seed *Seed) (SeedResult, error) {
	var res SeedResult

	for _, s := range seed.Scrolls {
		existing, err := client.Select(ctx, ScrollsTable, Eq("title", s.Title))
		if err != nil {
			return res, err
		}
		if hasCatalogRow(existing) {
			res.Skipped++
			continue
		}
		if _, err := client.Insert(ctx, ScrollsTable, Record{"title": s.Title, "text": s.Text}); err != nil {
			return res, err
		}
		res.Scrolls++
	}

	for _, r := range seed.Reflections {
		existing, err := client.Select(ctx, ReflectionsTable,
			Eq("scroll_name", r.ScrollName),
			Eq("model_name", r.ModelName),
		)
		if err != nil {
			return res, err
		}
		if hasReflectionText(existing, r.Text) {
			res.Skipped++
			continue
		}
		if _, err := client.Insert(ctx, ReflectionsTable, Record{
			"scroll_name":     r.ScrollName,
			"model_name":      r.ModelName,
			"reflection_text": r.Text,
		}); err != nil {
			return res, err
		}
		res.Reflections++
	}

	return res, nil
}

func hasCatalogRow(rows []Record) bool {
	for _, row := range rows {
		if row.String("user_id") == "" {
			return true
		}
	}
	return false
}

func hasReflectionText(rows []Record, text string) bool {
	for _, row := range rows {
		if row.String("reflection_text") == text {
			return true
		}
	}
	return false
}
