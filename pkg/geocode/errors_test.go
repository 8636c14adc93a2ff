package geocode

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"

	"github.com/sells-group/carpark-cli/internal/resilience"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindNone},
		{"typed", newError(KindInvalidQuery, errors.New("empty")), KindInvalidQuery},
		{"typed wrapped", fmt.Errorf("search: %w", newError(KindRateLimited, nil)), KindRateLimited},
		{"not found sentinel", eris.Wrap(ErrNotFound, "lookup"), KindNotFound},
		{"429 transient", resilience.NewTransientError(errors.New("status 429"), 429), KindRateLimited},
		{"deadline", fmt.Errorf("request: %w", context.DeadlineExceeded), KindTimeout},
		{"opaque rate limit", errors.New("Too Many Requests"), KindRateLimited},
		{"opaque timeout", errors.New("upstream timed out"), KindTimeout},
		{"opaque not found", errors.New("no results for query"), KindNotFound},
		{"opaque network", errors.New("dial tcp 10.0.0.1:443: connection refused"), KindNetwork},
		{"opaque host", errors.New("lookup onemap: no such host"), KindNetwork},
		{"503 transient", resilience.NewTransientError(errors.New("bad gateway"), 502), KindNetwork},
		{"unknown", errors.New("invalid character 'x'"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestUserMessage(t *testing.T) {
	assert.Empty(t, UserMessage(KindNone))
	seen := map[string]bool{}
	for _, k := range []ErrorKind{KindNetwork, KindTimeout, KindNotFound, KindRateLimited, KindInvalidQuery, KindUnknown} {
		msg := UserMessage(k)
		assert.NotEmpty(t, msg, k.String())
		assert.False(t, seen[msg], "duplicate message for %s", k)
		seen[msg] = true
	}
}

func TestError_Unwrap(t *testing.T) {
	err := newError(KindNotFound, ErrNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "geocode: not_found: geocode: no matching location", err.Error())
	assert.Equal(t, "geocode: timeout", newError(KindTimeout, nil).Error())
}
