package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Factor:       2.0,
	}
}

func TestDo_Success(t *testing.T) {
	calls := 0
	result := Do(context.Background(), fastConfig(3), func(int) error {
		calls++
		return nil
	})

	if result.Err != nil {
		t.Errorf("expected no error, got %v", result.Err)
	}
	if result.Attempts != 1 || calls != 1 {
		t.Errorf("expected 1 attempt, got attempts=%d calls=%d", result.Attempts, calls)
	}
}

func TestDo_DefaultRunsOnce(t *testing.T) {
	calls := 0
	result := Do(context.Background(), DefaultConfig(), func(int) error {
		calls++
		return errors.New("transient")
	})

	if calls != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
	if result.Err == nil || result.Attempts != 1 {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestDo_RetryThenSuccess(t *testing.T) {
	var seen []int
	result := Do(context.Background(), fastConfig(5), func(attempt int) error {
		seen = append(seen, attempt)
		if attempt < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	if result.Err != nil {
		t.Errorf("expected no error, got %v", result.Err)
	}
	if result.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", result.Attempts)
	}
	if fmt.Sprint(seen) != "[1 2 3]" {
		t.Errorf("attempt numbers = %v", seen)
	}
}

func TestDo_MaxAttempts(t *testing.T) {
	calls := 0
	result := Do(context.Background(), fastConfig(3), func(int) error {
		calls++
		return fmt.Errorf("failure %d", calls)
	})

	if result.Err == nil || result.Err.Error() != "failure 3" {
		t.Errorf("expected last error, got %v", result.Err)
	}
	if result.Attempts != 3 || calls != 3 {
		t.Errorf("expected 3 attempts, got attempts=%d calls=%d", result.Attempts, calls)
	}
}

func TestDo_PermanentError(t *testing.T) {
	calls := 0
	sentinel := errors.New("bad request")
	result := Do(context.Background(), fastConfig(5), func(int) error {
		calls++
		return Permanent(sentinel)
	})

	if !errors.Is(result.Err, sentinel) {
		t.Errorf("expected wrapped sentinel, got %v", result.Err)
	}
	if result.Attempts != 1 || calls != 1 {
		t.Errorf("expected no retry for permanent error, got %d calls", calls)
	}
}

func TestDo_ContextCanceledDuringBackoff(t *testing.T) {
	config := Config{MaxAttempts: 5, InitialDelay: time.Second}
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	result := Do(ctx, config, func(int) error {
		return errors.New("retry")
	})

	if !errors.Is(result.Err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", result.Err)
	}
	if result.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", result.Attempts)
	}
}

func TestDo_ContextCanceledBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	result := Do(ctx, fastConfig(3), func(int) error {
		calls++
		return nil
	})

	if calls != 0 || result.Attempts != 0 {
		t.Errorf("expected no attempts, got calls=%d attempts=%d", calls, result.Attempts)
	}
	if !errors.Is(result.Err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", result.Err)
	}
}

func TestDoWithValue(t *testing.T) {
	value, result := DoWithValue(context.Background(), fastConfig(3), func(attempt int) (string, error) {
		if attempt < 2 {
			return "", errors.New("not yet")
		}
		return "ok", nil
	})

	if result.Err != nil || value != "ok" || result.Attempts != 2 {
		t.Errorf("DoWithValue() = %q, %+v", value, result)
	}
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		initial time.Duration
		max     time.Duration
		factor  float64
		want    time.Duration
	}{
		{1, 100 * time.Millisecond, time.Second, 2, 100 * time.Millisecond},
		{2, 100 * time.Millisecond, time.Second, 2, 200 * time.Millisecond},
		{3, 100 * time.Millisecond, time.Second, 2, 400 * time.Millisecond},
		{10, 100 * time.Millisecond, time.Second, 2, time.Second},
		{0, 0, 0, 0, 100 * time.Millisecond},
		{3, 50 * time.Millisecond, time.Second, 1, 50 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d_factor_%g", tt.attempt, tt.factor), func(t *testing.T) {
			if got := Backoff(tt.attempt, tt.initial, tt.max, tt.factor); got != tt.want {
				t.Errorf("Backoff() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"zero value", Config{}, false},
		{"exponential", Exponential(3, time.Millisecond, time.Second), false},
		{"negative attempts", Config{MaxAttempts: -1}, true},
		{"negative delay", Config{InitialDelay: -time.Second}, true},
		{"negative factor", Config{Factor: -2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPermanent(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}

	base := errors.New("denied")
	wrapped := fmt.Errorf("embed: %w", Permanent(base))
	if !IsPermanent(wrapped) {
		t.Error("expected nested permanent error to be detected")
	}
	if !errors.Is(wrapped, base) {
		t.Error("expected permanent error to unwrap to base")
	}
	if wrapped.Error() != "embed: denied" {
		t.Errorf("Error() = %q", wrapped.Error())
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(nil) {
		t.Error("nil should not be retryable")
	}
	if !IsRetryable(errors.New("timeout")) {
		t.Error("plain error should be retryable")
	}
	if IsRetryable(Permanent(errors.New("bad"))) {
		t.Error("permanent error should not be retryable")
	}
}
