package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2020, 3, 30, 5, 35, 37, 974_000_000, time.UTC)
	assert.Equal(t, "2020-03-30T05:35:37.974Z", FormatTimestamp(ts))

	// Non-UTC input is converted, the suffix stays a literal Z.
	jst := time.FixedZone("JST", 9*3600)
	assert.Equal(t, "2020-03-30T05:35:37.974Z",
		FormatTimestamp(ts.In(jst)))
}

func TestDate_Marshal(t *testing.T) {
	d := NewDate(time.Date(2020, 3, 30, 5, 35, 37, 974_000_000, time.UTC))
	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"__type":"Date","iso":"2020-03-30T05:35:37.974Z"}`, string(data))
}

func TestDate_Unmarshal(t *testing.T) {
	var d Date
	err := json.Unmarshal([]byte(`{"__type":"Date","iso":"2020-03-30T05:35:37.974Z"}`), &d)
	require.NoError(t, err)
	assert.Equal(t, 2020, d.Time.Year())
	assert.Equal(t, 974_000_000, d.Time.Nanosecond())
}

func TestDate_UnmarshalRejectsWrongType(t *testing.T) {
	var d Date
	err := json.Unmarshal([]byte(`{"__type":"GeoPoint","iso":"x"}`), &d)
	assert.Error(t, err)
}

func TestGeoPoint_Marshal(t *testing.T) {
	g := GeoPoint{Latitude: 35.6895, Longitude: 139.6917}
	data, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, `{"__type":"GeoPoint","latitude":35.6895,"longitude":139.6917}`, string(data))
}

func TestGeoPoint_Unmarshal(t *testing.T) {
	var g GeoPoint
	err := json.Unmarshal([]byte(`{"__type":"GeoPoint","latitude":35.0,"longitude":139.0}`), &g)
	require.NoError(t, err)
	assert.Equal(t, 35.0, g.Latitude)
	assert.Equal(t, 139.0, g.Longitude)
}
