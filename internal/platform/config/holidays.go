package config

import (
	"fmt"
	"os"

	"cloud.google.com/go/civil"
	"gopkg.in/yaml.v3"
)

// HolidayFile is the YAML layout of a holiday calendar:
//
//	holidays:
//	  - date: 2025-01-01
//	    name: Año Nuevo
type HolidayFile struct {
	Holidays []HolidayEntry `yaml:"holidays"`
}

type HolidayEntry struct {
	Date string `yaml:"date"`
	Name string `yaml:"name"`
}

func LoadHolidayFile(path string) ([]civil.Date, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read holiday calendar: %w", err)
	}
	return ParseHolidayYAML(raw)
}

func ParseHolidayYAML(raw []byte) ([]civil.Date, error) {
	var file HolidayFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode holiday calendar: %w", err)
	}
	dates := make([]civil.Date, 0, len(file.Holidays))
	for _, entry := range file.Holidays {
		date, err := civil.ParseDate(entry.Date)
		if err != nil {
			return nil, fmt.Errorf("holiday %q (%s): %w", entry.Date, entry.Name, err)
		}
		dates = append(dates, date)
	}
	return dates, nil
}
