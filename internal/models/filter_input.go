package models

import (
	"strings"

	"github.com/chrisdamba/bhtraffic/internal/vehicleclass"
)

// FilterInput is a filter as typed by a user on the command line or in a
// query string. Empty fields take the defaults for the dataset bounds.
type FilterInput struct {
	From     string
	To       string
	FromHour string
	ToHour   string
	// Class labels; an entry may hold several comma-separated labels.
	Classes []string
}

// Filter parses the input. Label errors wrap vehicleclass.ErrUnknownClassLabel
// and all other problems wrap ErrInvalidFilter. The result is not validated.
func (in FilterInput) Filter(bounds DateRange) (Filter, error) {
	def := DefaultFilter(bounds)
	dates, hours, classes := def.Dates(), def.Hours(), def.Classes()

	var err error
	if strings.TrimSpace(in.From) != "" {
		if dates.From, err = ParseDate(in.From); err != nil {
			return Filter{}, err
		}
	}
	if strings.TrimSpace(in.To) != "" {
		if dates.To, err = ParseDate(in.To); err != nil {
			return Filter{}, err
		}
	}
	if strings.TrimSpace(in.FromHour) != "" {
		if hours.From, err = ParseHour(in.FromHour); err != nil {
			return Filter{}, err
		}
	}
	if strings.TrimSpace(in.ToHour) != "" {
		if hours.To, err = ParseHour(in.ToHour); err != nil {
			return Filter{}, err
		}
	}

	var labels []string
	for _, entry := range in.Classes {
		for _, l := range strings.Split(entry, ",") {
			if strings.TrimSpace(l) != "" {
				labels = append(labels, l)
			}
		}
	}
	if len(labels) > 0 {
		if classes, err = vehicleclass.ParseLabels(labels); err != nil {
			return Filter{}, err
		}
	}
	return NewFilter(dates, hours, classes), nil
}
