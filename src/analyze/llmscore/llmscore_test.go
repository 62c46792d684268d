package llmscore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/openai/openai-go/responses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rapport-agent/src/contracts"
)

type fakeClient struct {
	calls   int
	inputs  []string
	errs    []error
	respond func(input string) string
}

func (f *fakeClient) Complete(_ context.Context, params responses.ResponseNewParams) (string, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return "", err
	}
	input := params.Input.OfInputItemList[0].OfMessage.Content.OfString.Value
	f.inputs = append(f.inputs, input)
	return f.respond(input), nil
}

// echoScores gives every line in the request the same polarity.
func echoScores(p float64) func(string) string {
	return func(input string) string {
		var parts []string
		for _, line := range strings.Split(strings.TrimSpace(input), "\n") {
			id := strings.SplitN(line, "\t", 2)[0]
			parts = append(parts, fmt.Sprintf(`{"sequence_id":%s,"polarity":%v}`, id, p))
		}
		return `{"scores":[` + strings.Join(parts, ",") + `]}`
	}
}

func messages(n int) []contracts.CanonicalMessage {
	msgs := make([]contracts.CanonicalMessage, n)
	for i := range msgs {
		msgs[i] = contracts.CanonicalMessage{SequenceID: i + 1, Content: fmt.Sprintf("message %d", i+1)}
	}
	return msgs
}

func TestAnnotateBatches(t *testing.T) {
	fake := &fakeClient{respond: echoScores(0.4)}
	a := NewWithClient(fake, "", 2, nil)

	scores, err := a.Annotate(context.Background(), messages(5))
	require.NoError(t, err)

	assert.Equal(t, 3, fake.calls)
	assert.Len(t, scores, 5)
	assert.Equal(t, 0.4, scores[5])
	assert.True(t, strings.HasPrefix(fake.inputs[1], "3\tmessage 3\n"))
}

func TestAnnotateClampsAndDropsUnknownIDs(t *testing.T) {
	fake := &fakeClient{respond: func(string) string {
		return `{"scores":[{"sequence_id":1,"polarity":3.5},{"sequence_id":2,"polarity":-2},{"sequence_id":99,"polarity":0.5}]}`
	}}
	a := NewWithClient(fake, "", 10, nil)

	scores, err := a.Annotate(context.Background(), messages(3))
	require.NoError(t, err)

	assert.Equal(t, map[int]float64{1: 1, 2: -1}, scores)
}

func TestAnnotateRetriesRateLimits(t *testing.T) {
	fake := &fakeClient{
		errs:    []error{errors.New("POST /responses: 429 Too Many Requests")},
		respond: echoScores(0),
	}
	a := NewWithClient(fake, "", 10, nil)
	a.backoff = []time.Duration{time.Millisecond}

	_, err := a.Annotate(context.Background(), messages(1))
	require.NoError(t, err)
	assert.Equal(t, 2, fake.calls)
}

func TestAnnotateGivesUpOnClientErrors(t *testing.T) {
	fake := &fakeClient{errs: []error{errors.New("400 Bad Request: invalid schema")}}
	a := NewWithClient(fake, "", 10, nil)
	a.backoff = []time.Duration{time.Millisecond}

	_, err := a.Annotate(context.Background(), messages(1))
	require.Error(t, err)
	assert.Equal(t, 1, fake.calls)
	assert.Contains(t, err.Error(), "score messages 1-1")
}

func TestAnnotateRejectsMalformedOutput(t *testing.T) {
	fake := &fakeClient{respond: func(string) string { return `{"scores": [` }}
	a := NewWithClient(fake, "", 10, nil)

	_, err := a.Annotate(context.Background(), messages(2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode model output")
}

func TestPolaritySchemaIsStrict(t *testing.T) {
	assert.Equal(t, false, polaritySchema["additionalProperties"])
	assert.ElementsMatch(t, []string{"scores"}, polaritySchema["required"])

	items := polaritySchema["properties"].(map[string]any)["scores"].(map[string]any)["items"].(map[string]any)
	assert.Equal(t, false, items["additionalProperties"])
	assert.ElementsMatch(t, []string{"sequence_id", "polarity"}, items["required"])
}
