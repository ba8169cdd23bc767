package admin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/matst80/delayline/internal/delay"
)

func TestParseValid(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Duration
	}{
		{"integer", "SETDELAY 400", 400 * time.Millisecond},
		{"zero", "SETDELAY 0", 0},
		{"fractional", "SETDELAY 0.5", 500 * time.Microsecond},
		{"trailing newline", "SETDELAY 250\n", 250 * time.Millisecond},
		{"surrounding whitespace", "  SETDELAY   100  \r\n", 100 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := Parse([]byte(tt.input))
			require.NoError(t, err)
			require.Equal(t, tt.want, cmd.Delay)
		})
	}
}

func TestParseRejected(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"empty", "", ErrEmpty},
		{"whitespace only", "  \r\n", ErrEmpty},
		{"unknown command", "FLUSHALL", ErrUnknownCommand},
		{"lowercase is not recognized", "setdelay 400", ErrUnknownCommand},
		{"missing argument", "SETDELAY", ErrMissingArg},
		{"negative", "SETDELAY -5", delay.ErrNegative},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseMalformedNumber(t *testing.T) {
	for _, input := range []string{"SETDELAY abc", "SETDELAY 12x", "SETDELAY NaN", "SETDELAY Inf", "SETDELAY -Inf"} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse([]byte(input))
			require.Error(t, err)
		})
	}
}
