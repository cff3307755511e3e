package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type fakeModel struct {
	content string
	chunks  []string
	err     error
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return m.content, m.err
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}
	if opts.StreamingFunc != nil {
		for _, c := range m.chunks {
			if err := opts.StreamingFunc(ctx, []byte(c)); err != nil {
				return nil, err
			}
		}
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: m.content}},
	}, nil
}

func TestLangChainModel_Invoke(t *testing.T) {
	model := NewLangChainModel(&fakeModel{content: "hello"})

	out, err := model.Invoke(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestLangChainModel_InvokeError(t *testing.T) {
	boom := errors.New("boom")
	model := NewLangChainModel(&fakeModel{err: boom})

	_, err := model.Invoke(context.Background(), "hi")
	assert.ErrorIs(t, err, boom)
}

func TestLangChainModel_Stream(t *testing.T) {
	model := NewLangChainModel(&fakeModel{
		content: "one two",
		chunks:  []string{"one ", "two"},
	})

	var got []string
	out, err := model.Stream(context.Background(), "hi", func(chunk string) error {
		got = append(got, chunk)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "one two", out)
	assert.Equal(t, []string{"one ", "two"}, got)
}

func TestLangChainModel_StreamFallsBackToFullContent(t *testing.T) {
	// Provider ignored the streaming callback entirely.
	model := NewLangChainModel(&fakeModel{content: "all at once"})

	var got []string
	out, err := model.Stream(context.Background(), "hi", func(chunk string) error {
		got = append(got, chunk)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "all at once", out)
	assert.Equal(t, []string{"all at once"}, got)
}

func TestLangChainModel_StreamCallbackError(t *testing.T) {
	stop := errors.New("stop")
	model := NewLangChainModel(&fakeModel{content: "x", chunks: []string{"x"}})

	_, err := model.Stream(context.Background(), "hi", func(chunk string) error {
		return stop
	})
	assert.ErrorIs(t, err, stop)
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"padded", "  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractJSON(tc.in))
		})
	}
}
