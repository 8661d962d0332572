package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Delay returns how long to wait before retry number attempt (0-based).
// Policies: "fixed", "exponential", and the default "exp_full_jitter".
func Delay(policy string, base, max time.Duration, attempt int, rng *rand.Rand) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = base
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	switch policy {
	case "fixed":
		return base
	case "exponential":
		return capDelay(scale(base, attempt), max)
	default: // exp_full_jitter
		ceiling := capDelay(scale(base, attempt), max)
		if ceiling <= 0 {
			return 0
		}
		return time.Duration(rng.Int63n(int64(ceiling) + 1))
	}
}

func scale(base time.Duration, attempt int) time.Duration {
	f := float64(base) * math.Pow(2, float64(attempt))
	if f > float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(f)
}

func capDelay(d, max time.Duration) time.Duration {
	if d > max {
		return max
	}
	return d
}
