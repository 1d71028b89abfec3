package generator

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Turnstyle/ria-hunter-sub000/core/data"
)

type scriptedConnector struct {
	calls   int
	results []error
	text    string
}

func (s *scriptedConnector) Complete(ctx context.Context, system, prompt string) (string, error) {
	idx := s.calls
	s.calls++
	if idx < len(s.results) && s.results[idx] != nil {
		return "", s.results[idx]
	}
	return s.text, nil
}

func testProfile() data.Profile {
	return data.Profile{
		CRDNumber: 12345,
		LegalName: "Gateway Capital Advisors",
		City:      "Saint Louis",
		State:     "MO",
		AUM:       2_400_000_000,
	}
}

func newTestAdapter(primary, fallback Connector) *Adapter {
	return &Adapter{
		primary:        primary,
		fallback:       fallback,
		maxRetries:     3,
		retryDelay:     time.Millisecond,
		requestTimeout: time.Second,
		countTokens:    func(string) (int, error) { return 10, nil },
	}
}

func TestGenerateSuccess(t *testing.T) {
	primary := &scriptedConnector{text: "A narrative."}
	a := newTestAdapter(primary, nil)

	text, err := a.Generate(context.Background(), testProfile())
	require.NoError(t, err)
	assert.Equal(t, "A narrative.", text)
	assert.Equal(t, 1, primary.calls)
}

func TestGenerateRetriesTransient(t *testing.T) {
	primary := &scriptedConnector{
		results: []error{errors.New("connection reset"), nil},
		text:    "recovered",
	}
	a := newTestAdapter(primary, nil)

	text, err := a.Generate(context.Background(), testProfile())
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, 2, primary.calls)
}

func TestGenerateExhaustsRetryCeiling(t *testing.T) {
	boom := errors.New("upstream 503")
	primary := &scriptedConnector{results: []error{boom, boom, boom}}
	a := newTestAdapter(primary, nil)

	_, err := a.Generate(context.Background(), testProfile())
	require.Error(t, err)
	assert.Equal(t, 3, primary.calls)
}

func TestGenerateFallbackSharesCeiling(t *testing.T) {
	primary := &scriptedConnector{results: []error{errors.New("primary down")}}
	fallback := &scriptedConnector{text: "from fallback"}
	a := newTestAdapter(primary, fallback)

	text, err := a.Generate(context.Background(), testProfile())
	require.NoError(t, err)
	assert.Equal(t, "from fallback", text)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestGenerateRateLimitNotRetried(t *testing.T) {
	rl := &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "rate limit exceeded"}
	primary := &scriptedConnector{results: []error{rl, rl, rl}}
	a := newTestAdapter(primary, nil)

	_, err := a.Generate(context.Background(), testProfile())
	require.Error(t, err)
	assert.True(t, IsRateLimit(err))
	assert.Equal(t, 1, primary.calls)
}

func TestGenerateMissingNameIsDataInvalid(t *testing.T) {
	a := newTestAdapter(&scriptedConnector{text: "x"}, nil)
	_, err := a.Generate(context.Background(), data.Profile{CRDNumber: 7})
	require.Error(t, err)
	assert.True(t, IsDataInvalid(err))
}

func TestGenerateOverBudgetPromptIsDataInvalid(t *testing.T) {
	a := newTestAdapter(&scriptedConnector{text: "x"}, nil)
	a.maxPromptTokens = 5
	a.countTokens = func(string) (int, error) { return 6, nil }

	_, err := a.Generate(context.Background(), testProfile())
	require.Error(t, err)
	assert.True(t, IsDataInvalid(err))
}

func TestBuildPromptDeterministic(t *testing.T) {
	p := testProfile()
	first, err := BuildPrompt(p)
	require.NoError(t, err)
	second, err := BuildPrompt(p)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuildPromptNotDisclosedPlaceholders(t *testing.T) {
	prompt, err := BuildPrompt(data.Profile{CRDNumber: 9, LegalName: "Solo Advisers LLC"})
	require.NoError(t, err)
	assert.Contains(t, prompt, "Firm name: Solo Advisers LLC")
	assert.Contains(t, prompt, "City: not disclosed")
	assert.Contains(t, prompt, "SEC file number: not disclosed")
	assert.Contains(t, prompt, "Assets under management: not disclosed")
	assert.Contains(t, prompt, "Employees: not disclosed")
}

func TestBuildPromptFormatsAUM(t *testing.T) {
	prompt, err := BuildPrompt(data.Profile{CRDNumber: 9, LegalName: "Big Fund", AUM: 2_500_000_000})
	require.NoError(t, err)
	assert.Contains(t, prompt, "$2.5 billion")

	prompt, err = BuildPrompt(data.Profile{CRDNumber: 9, LegalName: "Mid Fund", AUM: 71_300_000})
	require.NoError(t, err)
	assert.Contains(t, prompt, "$71.3 million")

	prompt, err = BuildPrompt(data.Profile{CRDNumber: 9, LegalName: "Tiny Fund", AUM: 1234})
	require.NoError(t, err)
	assert.Contains(t, prompt, "$1234")
}

func TestIsRateLimitClassification(t *testing.T) {
	assert.True(t, IsRateLimit(&openai.APIError{HTTPStatusCode: 429}))
	assert.True(t, IsRateLimit(errors.New("too many requests")))
	assert.True(t, IsRateLimit(errors.New("Rate limit reached for model")))
	assert.False(t, IsRateLimit(errors.New("connection refused")))
	assert.False(t, IsRateLimit(nil))
}

func TestIsTransientClassification(t *testing.T) {
	assert.True(t, IsTransient(errors.New("upstream 503")))
	assert.False(t, IsTransient(&openai.APIError{HTTPStatusCode: 429}))
	assert.False(t, IsTransient(ErrDataInvalid))
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(nil))
}

func TestPromptFactOrder(t *testing.T) {
	prompt, err := BuildPrompt(testProfile())
	require.NoError(t, err)
	nameIdx := strings.Index(prompt, "Firm name:")
	cityIdx := strings.Index(prompt, "City:")
	crdIdx := strings.Index(prompt, "CRD number:")
	aumIdx := strings.Index(prompt, "Assets under management:")
	assert.True(t, nameIdx < cityIdx && cityIdx < crdIdx && crdIdx < aumIdx)
}
