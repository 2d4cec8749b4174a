package agg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseTimeMillis(t *testing.T) {
	tests := []struct {
		name    string
		start   string
		end     string
		want    float64
		wantErr bool
	}{
		{"sub second", "2018-08-23T17:05:52.912429", "2018-08-23T17:05:53.624783", 712.354, false},
		{"over a second", "2018-08-23T17:05:50.000000", "2018-08-23T17:05:53.500000", 3500, false},
		{"no fraction", "2018-08-23T17:05:50", "2018-08-23T17:05:51", 1000, false},
		{"missing start", "", "2018-08-23T17:05:53.624783", 0, true},
		{"bad end", "2018-08-23T17:05:52.912429", "yesterday", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResponseTimeMillis(tt.start, tt.end)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestFormatAverage(t *testing.T) {
	assert.Equal(t, "0 ms", FormatAverage(0, 0))
	assert.Equal(t, "0 ms", FormatAverage(123, 0))
	assert.Equal(t, "250 ms", FormatAverage(500, 2))
	assert.Equal(t, "712.354 ms", FormatAverage(712.354, 1))
}
