package main

import (
	"strings"

	"github.com/spf13/cobra"

	"pqrsd/contexts/citizen-services/request-lifecycle-service/domain/services"
	"pqrsd/internal/platform/config"
)

type holidayFlags struct {
	dates []string
	file  string
}

func (f *holidayFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.dates, "holiday", nil, "Holiday date YYYY-MM-DD (repeatable or comma separated)")
	cmd.Flags().StringVar(&f.file, "holidays-file", "", "YAML holiday calendar")
}

func (f *holidayFlags) calendar() (services.HolidayCalendar, error) {
	dates, err := config.ParseHolidayList(f.dates)
	if err != nil {
		return services.HolidayCalendar{}, err
	}
	if strings.TrimSpace(f.file) != "" {
		fromFile, err := config.LoadHolidayFile(f.file)
		if err != nil {
			return services.HolidayCalendar{}, err
		}
		dates = append(dates, fromFile...)
	}
	return services.NewHolidayCalendar(dates...), nil
}
