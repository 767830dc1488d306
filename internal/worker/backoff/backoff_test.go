package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_Delay(t *testing.T) {
	p := Policy{Base: 30 * time.Second, Max: 5 * time.Minute}

	tests := []struct {
		name    string
		attempt int
		want    time.Duration
	}{
		{name: "no attempt", attempt: 0, want: 0},
		{name: "first", attempt: 1, want: 30 * time.Second},
		{name: "second", attempt: 2, want: time.Minute},
		{name: "third", attempt: 3, want: 2 * time.Minute},
		{name: "capped", attempt: 6, want: 5 * time.Minute},
		{name: "huge attempt stays capped", attempt: 200, want: 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Delay(tt.attempt))
		})
	}
}

func TestPolicy_Next(t *testing.T) {
	p := Policy{Base: time.Second}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(4*time.Second), p.Next(now, 3))
}
