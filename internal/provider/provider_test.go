package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{429, Transient},
		{408, Transient},
		{500, Transient},
		{502, Transient},
		{503, Transient},
		{529, Transient},
		{400, Permanent},
		{401, Permanent},
		{403, Permanent},
		{404, Permanent},
		{422, Permanent},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := ClassifyHTTPStatus(tt.status, "body")
			assert.Equal(t, tt.want, err.Kind)
			assert.Equal(t, tt.status, err.StatusCode)
			assert.Contains(t, err.Error(), "body")
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "dial tcp: i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify(nil))

	existing := &Error{Kind: Permanent, Message: "bad key"}
	assert.Same(t, existing, Classify(fmt.Errorf("wrapped: %w", existing)))

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"deadline", context.DeadlineExceeded, Transient},
		{"wrapped deadline", fmt.Errorf("post: %w", context.DeadlineExceeded), Transient},
		{"net error", timeoutErr{}, Transient},
		{"connection refused", errors.New("dial tcp 127.0.0.1:1: connection refused"), Transient},
		{"unexpected EOF", errors.New("unexpected EOF"), Transient},
		{"other", errors.New("invalid model"), Permanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pe := Classify(tt.err)
			require.NotNil(t, pe)
			assert.Equal(t, tt.want, pe.Kind)
			assert.ErrorIs(t, pe, tt.err)
		})
	}
}

func TestIsTransientPermanent(t *testing.T) {
	transient := fmt.Errorf("turn: %w", &Error{Kind: Transient})
	permanent := &Error{Kind: Permanent}

	assert.True(t, IsTransient(transient))
	assert.False(t, IsPermanent(transient))
	assert.True(t, IsPermanent(permanent))
	assert.False(t, IsTransient(errors.New("plain")))
	assert.False(t, IsPermanent(nil))
}

func TestError_Message(t *testing.T) {
	err := &Error{Kind: Transient, Provider: "anthropic", StatusCode: 529, Message: "overloaded"}
	assert.Equal(t, "anthropic transient error [529]: overloaded", err.Error())

	err = &Error{Kind: Permanent, Message: "nope"}
	assert.Equal(t, "provider permanent error: nope", err.Error())
}

func TestClassifyHTTPStatus_MultibyteBody(t *testing.T) {
	body := "x" + strings.Repeat("ошибка ", 60)
	err := ClassifyHTTPStatus(500, body)

	assert.True(t, utf8.ValidString(err.Message))
	assert.True(t, strings.HasSuffix(err.Message, "..."))
	assert.LessOrEqual(t, len(err.Message), len("HTTP 500: ")+200+len("..."))
}

func TestRequest_Messages(t *testing.T) {
	req := &Request{
		Transcript:  []Message{{Role: RoleAssistant, Content: "What are you building?"}},
		Document:    `{"domain":"climbing"}`,
		Instruction: "Extract updates.",
	}

	msgs := req.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleAssistant, msgs[0].Role)
	assert.Equal(t, RoleUser, msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "<design_document>")
	assert.Contains(t, msgs[1].Content, "Extract updates.")

	plain := (&Request{Instruction: "hi"}).Messages()
	assert.Equal(t, "hi", plain[0].Content)
}

func TestWithTimeout(t *testing.T) {
	slow := Func(func(ctx context.Context, _ *Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	_, err := WithTimeout(slow, 10*time.Millisecond).Complete(context.Background(), &Request{})
	require.Error(t, err)
	assert.True(t, IsTransient(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = WithTimeout(slow, time.Second).Complete(ctx, &Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsTransient(err))

	assert.Equal(t, Provider(slow).Name(), WithTimeout(slow, 0).Name())
}

func TestWithRateLimit(t *testing.T) {
	calls := 0
	p := WithRateLimit(Func(func(context.Context, *Request) (string, error) {
		calls++
		return "ok", nil
	}), 1000)

	for i := 0; i < 3; i++ {
		out, err := p.Complete(context.Background(), &Request{})
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
	}
	assert.Equal(t, 3, calls)

	limited := WithRateLimit(Func(func(context.Context, *Request) (string, error) { return "ok", nil }), 0.001)
	_, err := limited.Complete(context.Background(), &Request{})
	require.NoError(t, err, "first call uses the burst")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = limited.Complete(ctx, &Request{})
	assert.True(t, IsTransient(err))
}
