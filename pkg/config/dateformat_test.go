// pkg/config/dateformat_test.go
package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateDateFormat(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		want    string
		wantErr string
	}{
		{name: "iso date", format: "%Y-%m-%d", want: "2006-01-02"},
		{name: "day first with slashes", format: "%d/%m/%Y", want: "02/01/2006"},
		{name: "month name with comma", format: "%b %d, %Y", want: "Jan 02, 2006"},
		{name: "abbreviated month with dashes", format: "%d-%b-%Y", want: "02-Jan-2006"},
		{name: "full names", format: "%A, %B %d", want: "Monday, January 02"},
		{name: "time of day", format: "%H:%M:%S", want: "15:04:05"},
		{name: "two digit year", format: "%d.%m.%y", want: "02.01.06"},
		{name: "escaped percent", format: "100%%", want: "100%"},
		{name: "plain literal", format: "ymd", want: "ymd"},
		{name: "trailing bare percent", format: "%Y-%m-%", wantErr: "bare %"},
		{name: "unsupported token", format: "%Y-%m-%Q", wantErr: "unsupported token %Q"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TranslateDateFormat(tt.format)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTranslatedLayoutsParse(t *testing.T) {
	layout, err := TranslateDateFormat("%d/%m/%Y")
	require.NoError(t, err)

	parsed, err := time.Parse(layout, "05/01/2023")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, time.January, 5, 0, 0, 0, 0, time.UTC), parsed)
}
