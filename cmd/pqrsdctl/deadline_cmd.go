package main

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"pqrsd/contexts/citizen-services/request-lifecycle-service/domain/services"
)

type dueDateOutput struct {
	Start        string `json:"start"`
	BusinessDays int    `json:"business_days"`
	DueAt        string `json:"due_at"`
	Holidays     int    `json:"holidays"`
}

type businessDaysOutput struct {
	From         string `json:"from"`
	To           string `json:"to"`
	BusinessDays int    `json:"business_days"`
}

type businessDayOutput struct {
	Date        string `json:"date"`
	BusinessDay bool   `json:"business_day"`
}

func newDueDateCmd() *cobra.Command {
	var (
		start    string
		days     int
		holidays holidayFlags
	)
	cmd := &cobra.Command{
		Use:   "due-date",
		Short: "Compute the due date N business days after a start date",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseDate("start", start)
			if err != nil {
				return err
			}
			calendar, err := holidays.calendar()
			if err != nil {
				return err
			}
			due, err := services.ComputeDueDate(from, days, calendar)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), dueDateOutput{
				Start:        from.String(),
				BusinessDays: days,
				DueAt:        due.String(),
				Holidays:     calendar.Len(),
			})
		},
	}
	cmd.Flags().StringVar(&start, "start", civil.DateOf(time.Now()).String(), "Start date (YYYY-MM-DD), excluded from the count")
	cmd.Flags().IntVar(&days, "days", 15, "Business days to add")
	holidays.bind(cmd)
	return cmd
}

func newBusinessDaysCmd() *cobra.Command {
	var (
		from     string
		to       string
		holidays holidayFlags
	)
	cmd := &cobra.Command{
		Use:   "business-days",
		Short: "Count business days after --from up to and including --to",
		RunE: func(cmd *cobra.Command, args []string) error {
			fromDate, err := parseDate("from", from)
			if err != nil {
				return err
			}
			toDate, err := parseDate("to", to)
			if err != nil {
				return err
			}
			calendar, err := holidays.calendar()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), businessDaysOutput{
				From:         fromDate.String(),
				To:           toDate.String(),
				BusinessDays: services.BusinessDaysBetween(fromDate, toDate, calendar),
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "First date (YYYY-MM-DD, exclusive)")
	cmd.Flags().StringVar(&to, "to", "", "Last date (YYYY-MM-DD, inclusive)")
	holidays.bind(cmd)
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newIsBusinessDayCmd() *cobra.Command {
	var (
		date     string
		holidays holidayFlags
	)
	cmd := &cobra.Command{
		Use:   "is-business-day",
		Short: "Report whether a date is a business day",
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseDate("date", date)
			if err != nil {
				return err
			}
			calendar, err := holidays.calendar()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), businessDayOutput{
				Date:        day.String(),
				BusinessDay: services.IsBusinessDay(day, calendar),
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Date (YYYY-MM-DD)")
	holidays.bind(cmd)
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func parseDate(flag string, raw string) (civil.Date, error) {
	d, err := civil.ParseDate(raw)
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid --%s: %w", flag, err)
	}
	return d, nil
}
