package runtime

import (
	"testing"
	"time"
)

func TestRetryPolicyDelay(t *testing.T) {
	p := RetryPolicy{Base: time.Minute, Max: 30 * time.Minute}
	cases := map[int]time.Duration{
		0:  time.Minute,
		1:  time.Minute,
		2:  2 * time.Minute,
		3:  4 * time.Minute,
		5:  16 * time.Minute,
		6:  30 * time.Minute,
		40: 30 * time.Minute,
	}
	for attempt, want := range cases {
		if got := p.Delay(attempt); got != want {
			t.Errorf("Delay(%d) = %s, want %s", attempt, got, want)
		}
	}
	if got := (RetryPolicy{}).Delay(1); got != DefaultRetryBase {
		t.Fatalf("zero policy should use defaults, got %s", got)
	}
}
