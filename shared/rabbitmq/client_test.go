package rabbitmq

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPublishBackoff(t *testing.T) {
	tests := []struct {
		name    string
		base    time.Duration
		mult    float64
		attempt int
		want    time.Duration
	}{
		{
			name:    "first attempt uses the base delay",
			base:    100 * time.Millisecond,
			mult:    2,
			attempt: 0,
			want:    100 * time.Millisecond,
		},
		{
			name:    "doubling multiplier",
			base:    100 * time.Millisecond,
			mult:    2,
			attempt: 3,
			want:    800 * time.Millisecond,
		},
		{
			name:    "gentler multiplier from config",
			base:    100 * time.Millisecond,
			mult:    1.5,
			attempt: 2,
			want:    225 * time.Millisecond,
		},
		{
			name:    "aggressive multiplier from config",
			base:    50 * time.Millisecond,
			mult:    3,
			attempt: 2,
			want:    450 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, publishBackoff(tt.base, tt.mult, tt.attempt))
		})
	}
}
