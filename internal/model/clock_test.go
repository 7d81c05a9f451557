package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClockTime(t *testing.T) {
	tests := []struct {
		in      string
		want    ClockTime
		wantErr bool
	}{
		{in: "09:30", want: 9*60 + 30},
		{in: " 23:59 ", want: 23*60 + 59},
		{in: "07:15:42", want: 7*60 + 15},
		{in: "00:00", want: 0},
		{in: "09:30junk", wantErr: true},
		{in: "09:30:00x", wantErr: true},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "0930", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClockTime(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClockTimeJSONRejectsTrailingText(t *testing.T) {
	var c ClockTime
	require.NoError(t, json.Unmarshal([]byte(`"14:05"`), &c))
	assert.Equal(t, "14:05", c.String())

	assert.Error(t, json.Unmarshal([]byte(`"14:05pm"`), &c))
}

func TestClockTimeScanPostgresTime(t *testing.T) {
	var c ClockTime
	require.NoError(t, c.Scan([]byte("08:45:00")))
	assert.Equal(t, ClockTime(8*60+45), c)

	require.NoError(t, c.Scan("08:45:00.250"))
	assert.Equal(t, ClockTime(8*60+45), c)
}

func TestWindowOverlapIsHalfOpen(t *testing.T) {
	a := Window{Start: 9 * 60, Duration: 60}
	assert.False(t, a.Overlaps(Window{Start: 10 * 60, Duration: 30}))
	assert.True(t, a.Overlaps(Window{Start: 9*60 + 59, Duration: 1}))
}
