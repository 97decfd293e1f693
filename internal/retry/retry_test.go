package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name      string
		policy    Policy
		succeedOn int
		failOn    int
		wantCalls int
		wantErr   error
	}{
		{
			name:      "succeeds first time",
			policy:    Policy{Attempts: 3, InitialDelay: time.Millisecond, Factor: 2},
			succeedOn: 1,
			wantCalls: 1,
		},
		{
			name:      "succeeds on last attempt",
			policy:    Policy{Attempts: 3, InitialDelay: time.Millisecond, Factor: 2},
			succeedOn: 3,
			wantCalls: 3,
		},
		{
			name:      "cap equal to initial delay keeps every attempt",
			policy:    Policy{Attempts: 5, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Factor: 2},
			succeedOn: 5,
			wantCalls: 5,
		},
		{
			name:      "attempts beyond the cap growth keep running",
			policy:    Policy{Attempts: 8, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Factor: 2},
			wantCalls: 8,
			wantErr:   ErrExhausted,
		},
		{
			name:      "condition error stops the loop",
			policy:    Policy{Attempts: 5, InitialDelay: time.Millisecond, Factor: 2},
			failOn:    2,
			wantCalls: 2,
			wantErr:   boom,
		},
		{
			name:      "zero attempts still runs once",
			policy:    Policy{},
			wantCalls: 1,
			wantErr:   ErrExhausted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Do(context.Background(), tt.policy, func(context.Context) (bool, error) {
				calls++
				if calls == tt.failOn {
					return false, boom
				}
				return calls == tt.succeedOn, nil
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestDo_DelayIsClamped(t *testing.T) {
	start := time.Now()
	err := Do(context.Background(), Policy{Attempts: 4, InitialDelay: 5 * time.Millisecond, MaxDelay: 5 * time.Millisecond, Factor: 10}, func(context.Context) (bool, error) {
		return false, nil
	})

	require.ErrorIs(t, err, ErrExhausted)
	// unclamped the waits would be 5ms + 50ms + 500ms
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestDo_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := Do(ctx, Policy{Attempts: 10, InitialDelay: time.Hour, Factor: 2}, func(context.Context) (bool, error) {
		calls++
		cancel()
		return false, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
