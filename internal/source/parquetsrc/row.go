package parquetsrc

import (
	"time"

	"github.com/chrisdamba/bhtraffic/internal/models"
)

// Row is the on-disk layout of the vehicle count export. Coordinates are kept
// as text, the way the city publishes them.
type Row struct {
	MinTime   int64  `parquet:"name=MIN_TIME,type=INT64,convertedtype=TIMESTAMP_MILLIS"`
	Longitude string `parquet:"name=LONGITUDE,type=BYTE_ARRAY,convertedtype=UTF8"`
	Latitude  string `parquet:"name=LATITUDE,type=BYTE_ARRAY,convertedtype=UTF8"`
	Class     string `parquet:"name=CLASS,type=BYTE_ARRAY,convertedtype=UTF8"`
	Month     int32  `parquet:"name=MONTH,type=INT32"`
	Count     int64  `parquet:"name=COUNT,type=INT64"`
}

const (
	monthColumn = "MONTH"
	classColumn = "CLASS"
)

func (r *Row) Record() models.TrafficRecord {
	return models.TrafficRecord{
		Time:      time.UnixMilli(r.MinTime).UTC(),
		Longitude: r.Longitude,
		Latitude:  r.Latitude,
		Class:     r.Class,
		Month:     int(r.Month),
		Count:     r.Count,
	}
}

// RowFrom converts a record to its stored form. A zero month is derived from
// the timestamp.
func RowFrom(rec models.TrafficRecord) Row {
	month := rec.Month
	if month == 0 {
		month = int(rec.Time.Month())
	}
	return Row{
		MinTime:   rec.Time.UnixMilli(),
		Longitude: rec.Longitude,
		Latitude:  rec.Latitude,
		Class:     rec.Class,
		Month:     int32(month),
		Count:     rec.Count,
	}
}
