// pkg/config/dateformat.go
package config

import (
	"fmt"
	"strings"
)

// strftime tokens accepted in cleaning configurations, mapped onto Go
// reference-time layouts. Configs keep the portable strftime spelling;
// translation happens once at load time.
var strftimeTokens = map[byte]string{
	'Y': "2006",
	'y': "06",
	'm': "01",
	'd': "02",
	'b': "Jan",
	'B': "January",
	'a': "Mon",
	'A': "Monday",
	'H': "15",
	'M': "04",
	'S': "05",
}

// TranslateDateFormat converts a strftime-style format string into a Go
// time layout. Unsupported tokens are an error so typos surface at
// config load rather than as silently unparseable dates.
func TranslateDateFormat(format string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		ch := format[i]
		if ch != '%' {
			b.WriteByte(ch)
			continue
		}
		i++
		if i >= len(format) {
			return "", fmt.Errorf("date format %q ends with a bare %%", format)
		}
		if format[i] == '%' {
			b.WriteByte('%')
			continue
		}
		layout, ok := strftimeTokens[format[i]]
		if !ok {
			return "", fmt.Errorf("date format %q uses unsupported token %%%c", format, format[i])
		}
		b.WriteString(layout)
	}
	return b.String(), nil
}
