package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfenderov/scriptforge/pkg/models"
)

type scriptedProvider struct {
	name    string
	results []error
	text    string
	calls   int
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Generate(_ context.Context, _ string, _ Options) (string, error) {
	i := p.calls
	p.calls++
	if i < len(p.results) && p.results[i] != nil {
		return "", p.results[i]
	}
	return p.text, nil
}

func rateLimited(detail string) error {
	return fmt.Errorf("%w: %s", models.ErrRateLimited, detail)
}

func newTestClient(primary, fallback Provider, attempts int) (*Client, *[]time.Duration) {
	var delays []time.Duration
	c := NewClient(primary, fallback, ClientConfig{
		MaxAttempts: attempts,
		BaseDelay:   time.Second,
		MaxDelay:    5 * time.Second,
	})
	c.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return c, &delays
}

func TestGenerate_Success(t *testing.T) {
	p := &scriptedProvider{name: "primary", text: "ok"}
	c, delays := newTestClient(p, nil, 3)

	resp, err := c.Generate(context.Background(), "prompt")

	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, "primary", resp.Provider)
	assert.Equal(t, 1, p.calls)
	assert.Empty(t, *delays)
}

func TestGenerate_RetriesRateLimitsWithBackoff(t *testing.T) {
	p := &scriptedProvider{
		name:    "primary",
		results: []error{rateLimited("a"), rateLimited("b"), rateLimited("c"), rateLimited("d")},
		text:    "finally",
	}
	c, delays := newTestClient(p, nil, 5)

	resp, err := c.Generate(context.Background(), "prompt")

	require.NoError(t, err)
	assert.Equal(t, "finally", resp.Text)
	assert.Equal(t, 5, p.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second}, *delays)
}

func TestGenerate_ExhaustedRateLimit(t *testing.T) {
	p := &scriptedProvider{
		name:    "primary",
		results: []error{rateLimited("a"), rateLimited("b"), rateLimited("c")},
	}
	c, delays := newTestClient(p, nil, 3)

	_, err := c.Generate(context.Background(), "prompt")

	require.ErrorIs(t, err, models.ErrRateLimited)
	assert.Equal(t, 3, p.calls)
	assert.Len(t, *delays, 2)
}

func TestGenerate_NonRateLimitErrorsAreNotRetried(t *testing.T) {
	for _, sentinel := range []error{models.ErrInvalidRequest, models.ErrUpstream} {
		t.Run(sentinel.Error(), func(t *testing.T) {
			p := &scriptedProvider{name: "primary", results: []error{fmt.Errorf("%w: boom", sentinel)}}
			fb := &scriptedProvider{name: "fallback", text: "unused"}
			c, delays := newTestClient(p, fb, 4)

			_, err := c.Generate(context.Background(), "prompt")

			require.ErrorIs(t, err, sentinel)
			assert.Equal(t, 1, p.calls)
			assert.Zero(t, fb.calls)
			assert.Empty(t, *delays)
		})
	}
}

func TestGenerate_FallbackAfterRateLimit(t *testing.T) {
	p := &scriptedProvider{name: "primary", results: []error{rateLimited("a"), rateLimited("b")}}
	fb := &scriptedProvider{name: "fallback", text: "from fallback"}
	c, _ := newTestClient(p, fb, 2)

	resp, err := c.Generate(context.Background(), "prompt")

	require.NoError(t, err)
	assert.Equal(t, "from fallback", resp.Text)
	assert.Equal(t, "fallback", resp.Provider)
	assert.Equal(t, 2, p.calls)
	assert.Equal(t, 1, fb.calls)
}

func TestGenerate_FailingFallbackKeepsPrimaryError(t *testing.T) {
	p := &scriptedProvider{name: "primary", results: []error{rateLimited("a")}}
	fb := &scriptedProvider{name: "fallback", results: []error{fmt.Errorf("%w: bad key", models.ErrInvalidRequest)}}
	c, _ := newTestClient(p, fb, 1)

	_, err := c.Generate(context.Background(), "prompt")

	require.ErrorIs(t, err, models.ErrRateLimited)
	assert.NotErrorIs(t, err, models.ErrInvalidRequest)
}

func TestGenerate_CancelledDuringBackoff(t *testing.T) {
	p := &scriptedProvider{name: "primary", results: []error{rateLimited("a"), rateLimited("b")}}
	c := NewClient(p, nil, ClientConfig{MaxAttempts: 3, BaseDelay: time.Hour, MaxDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Generate(ctx, "prompt")

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, p.calls)
}

func TestBackoff_HonorsServerHint(t *testing.T) {
	c := NewClient(&scriptedProvider{}, nil, ClientConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    time.Minute,
	})

	hinted := errors.New("Error 429, Message: quota exceeded. Please retry in 12.5s., Status: RESOURCE_EXHAUSTED")
	assert.Equal(t, 12500*time.Millisecond, c.backoff(1, hinted))
	assert.Equal(t, 2*time.Second, c.backoff(2, errors.New("429")))

	huge := errors.New("Please retry in 600s")
	assert.Equal(t, time.Minute, c.backoff(1, huge))
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{429, models.ErrRateLimited},
		{400, models.ErrInvalidRequest},
		{401, models.ErrInvalidRequest},
		{403, models.ErrInvalidRequest},
		{404, models.ErrInvalidRequest},
		{500, models.ErrUpstream},
		{529, models.ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			assert.ErrorIs(t, classifyStatus(tt.status), tt.want)
		})
	}
}

func TestClassifyGeminiError(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"Error 429, Status: RESOURCE_EXHAUSTED", models.ErrRateLimited},
		{"you exceeded your current quota", models.ErrRateLimited},
		{"Error 400, Message: API key not valid, Status: INVALID_ARGUMENT", models.ErrInvalidRequest},
		{"Error 403, Status: PERMISSION_DENIED", models.ErrInvalidRequest},
		{"Error 500, Status: INTERNAL", models.ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.ErrorIs(t, classifyGeminiError(errors.New(tt.msg)), tt.want)
		})
	}
}
