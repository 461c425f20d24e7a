package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimestampFormat is the wire representation of every date the backend
// exchanges: ISO-8601, UTC, millisecond precision, literal Z suffix.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t in the wire format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// Date is a date-valued field in an identity document:
// {"__type":"Date","iso":"2020-03-30T05:35:37.974Z"}.
type Date struct {
	Time time.Time
}

func NewDate(t time.Time) Date {
	return Date{Time: t.UTC()}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"__type"`
		ISO  string `json:"iso"`
	}{Type: "Date", ISO: FormatTimestamp(d.Time)})
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var wire struct {
		Type string `json:"__type"`
		ISO  string `json:"iso"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decode date: %w", err)
	}
	if wire.Type != "Date" {
		return fmt.Errorf("decode date: unexpected __type %q", wire.Type)
	}
	t, err := time.Parse(TimestampFormat, wire.ISO)
	if err != nil {
		return fmt.Errorf("decode date: %w", err)
	}
	d.Time = t
	return nil
}

// GeoPoint is a geographic field:
// {"__type":"GeoPoint","latitude":35.0,"longitude":139.0}.
type GeoPoint struct {
	Latitude  float64
	Longitude float64
}

func (g GeoPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      string  `json:"__type"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}{Type: "GeoPoint", Latitude: g.Latitude, Longitude: g.Longitude})
}

func (g *GeoPoint) UnmarshalJSON(data []byte) error {
	var wire struct {
		Type      string  `json:"__type"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decode geopoint: %w", err)
	}
	if wire.Type != "GeoPoint" {
		return fmt.Errorf("decode geopoint: unexpected __type %q", wire.Type)
	}
	g.Latitude = wire.Latitude
	g.Longitude = wire.Longitude
	return nil
}
