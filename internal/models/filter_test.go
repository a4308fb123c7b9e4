package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/chrisdamba/bhtraffic/internal/vehicleclass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var january = DateRange{From: NewDate(2022, time.January, 1), To: NewDate(2022, time.January, 31)}

var bounds = DateRange{From: NewDate(2022, time.January, 1), To: NewDate(2022, time.February, 28)}

func TestParseHour(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "0", want: 0},
		{in: "08", want: 8},
		{in: "23:59", want: 23},
		{in: "07:30", want: 7},
		{in: "24", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHour(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidFilter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilterValidate(t *testing.T) {
	cars := []vehicleclass.Class{vehicleclass.Car}

	tests := []struct {
		name    string
		filter  Filter
		bounds  DateRange
		wantErr bool
	}{
		{name: "valid", filter: NewFilter(january, FullDay, cars), bounds: bounds},
		{name: "single day single hour", filter: NewFilter(DateRange{From: january.From, To: january.From}, HourRange{From: 23, To: 23}, cars), bounds: bounds},
		{name: "no bounds configured", filter: NewFilter(DateRange{From: NewDate(2030, 1, 1), To: NewDate(2030, 1, 2)}, FullDay, cars)},
		{name: "reversed dates", filter: NewFilter(DateRange{From: january.To, To: january.From}, FullDay, cars), bounds: bounds, wantErr: true},
		{name: "reversed hours", filter: NewFilter(january, HourRange{From: 10, To: 9}, cars), bounds: bounds, wantErr: true},
		{name: "hour out of range", filter: NewFilter(january, HourRange{From: 0, To: 24}, cars), bounds: bounds, wantErr: true},
		{name: "no classes", filter: NewFilter(january, FullDay, nil), bounds: bounds, wantErr: true},
		{name: "outside bounds", filter: NewFilter(DateRange{From: NewDate(2021, 12, 31), To: january.To}, FullDay, cars), bounds: bounds, wantErr: true},
		{name: "missing end", filter: NewFilter(DateRange{From: january.From}, FullDay, cars), bounds: bounds, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filter.Validate(tt.bounds)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidFilter)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFilterValidateUnknownClass(t *testing.T) {
	f := NewFilter(january, FullDay, []vehicleclass.Class{vehicleclass.Class(42)})
	assert.ErrorIs(t, f.Validate(bounds), vehicleclass.ErrUnknownClassLabel)
}

func TestFilterIsImmutable(t *testing.T) {
	classes := []vehicleclass.Class{vehicleclass.Motorcycle, vehicleclass.Car, vehicleclass.Car}
	f := NewFilter(january, FullDay, classes)
	classes[0] = vehicleclass.Undefined

	assert.Equal(t, []vehicleclass.Class{vehicleclass.Car, vehicleclass.Motorcycle}, f.Classes())

	got := f.Classes()
	got[0] = vehicleclass.BusTruck
	assert.True(t, f.HasClass(vehicleclass.Car))
	assert.False(t, f.HasClass(vehicleclass.BusTruck))
}

func TestFilterKeyIsCanonical(t *testing.T) {
	a := NewFilter(january, FullDay, []vehicleclass.Class{vehicleclass.Motorcycle, vehicleclass.Car})
	b := NewFilter(january, FullDay, []vehicleclass.Class{vehicleclass.Car, vehicleclass.Motorcycle, vehicleclass.Car})
	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, "dates=2022-01-01..2022-01-31;hours=0..23;classes=CAR,MOTORCYCLE", a.Key())
}

func TestFilterJSON(t *testing.T) {
	f := NewFilter(january, HourRange{From: 6, To: 9}, []vehicleclass.Class{vehicleclass.BusTruck})
	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{"dates":{"from":"2022-01-01","to":"2022-01-31"},"hours":{"from":6,"to":9},"classes":["BUS/TRUCK"]}`, string(data))
}

func TestDateRangeContains(t *testing.T) {
	assert.True(t, january.Contains(NewDate(2022, 1, 1)))
	assert.True(t, january.Contains(NewDate(2022, 1, 31)))
	assert.False(t, january.Contains(NewDate(2022, 2, 1)))
	assert.False(t, january.Contains(NewDate(2021, 12, 31)))
}

func TestParseLocation(t *testing.T) {
	loc, err := ParseLocation("-43.9", " -19,9 ")
	require.NoError(t, err)
	assert.Equal(t, Location{Lon: -43.9, Lat: -19.9}, loc)

	_, err = ParseLocation("NaN", "-19.9")
	assert.Error(t, err)
	_, err = ParseLocation("-43.9", "+Inf")
	assert.Error(t, err)
	_, err = ParseLocation("", "-19.9")
	assert.Error(t, err)
}

func TestTopN(t *testing.T) {
	r := &AggregatedResult{Locations: []LocationCount{
		{Location: Location{Lon: 1}, Count: 9},
		{Location: Location{Lon: 2}, Count: 5},
		{Location: Location{Lon: 3}, Count: 1},
	}}
	assert.Len(t, r.TopN(2), 2)
	assert.Len(t, r.TopN(10), 3)
	assert.Nil(t, r.TopN(0))
	assert.Equal(t, int64(9), r.TopN(1)[0].Count)
}

func TestFilterInput(t *testing.T) {
	bounds := DateRange{From: NewDate(2022, 1, 1), To: NewDate(2022, 2, 28)}

	f, err := FilterInput{}.Filter(bounds)
	require.NoError(t, err)
	assert.Equal(t, DefaultFilter(bounds).Key(), f.Key())

	f, err = FilterInput{
		From:     "2022-01-10",
		To:       "2022-01-20",
		FromHour: "07:30",
		ToHour:   "9",
		Classes:  []string{"car, motorcycle", "CAR"},
	}.Filter(bounds)
	require.NoError(t, err)
	assert.Equal(t, "dates=2022-01-10..2022-01-20;hours=7..9;classes=CAR,MOTORCYCLE", f.Key())

	_, err = FilterInput{Classes: []string{"TRAIN"}}.Filter(bounds)
	assert.ErrorIs(t, err, vehicleclass.ErrUnknownClassLabel)

	_, err = FilterInput{From: "10/01/2022"}.Filter(bounds)
	assert.ErrorIs(t, err, ErrInvalidFilter)

	_, err = FilterInput{ToHour: "24"}.Filter(bounds)
	assert.ErrorIs(t, err, ErrInvalidFilter)
}
