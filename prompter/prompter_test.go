package prompter

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptText(t *testing.T) {
	var out bytes.Buffer
	p := New(strings.NewReader("  123456 \nsecond\n"), &out)

	line, err := p.PromptText(context.Background(), "Enter SMS code")
	require.NoError(t, err)
	assert.Equal(t, "123456", line)
	assert.Equal(t, "Enter SMS code: ", out.String())

	line, err = p.PromptText(context.Background(), "Again")
	require.NoError(t, err)
	assert.Equal(t, "second", line)
}

func TestPromptTextNoInput(t *testing.T) {
	p := New(strings.NewReader(""), bytes.NewBuffer(nil))
	_, err := p.PromptText(context.Background(), "Enter SMS code")
	assert.EqualError(t, err, "No more input")
}

func TestPromptTextCanceled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	// a reader that never produces a line
	blocked, _ := newBlockedReader()
	p := New(blocked, bytes.NewBuffer(nil))
	_, err := p.PromptText(ctx, "Enter SMS code")
	assert.Equal(t, context.DeadlineExceeded, err)
}

type blockedReader struct {
	unblock chan struct{}
}

func newBlockedReader() (*blockedReader, func()) {
	r := &blockedReader{unblock: make(chan struct{})}
	return r, func() { close(r.unblock) }
}

func (b *blockedReader) Read(p []byte) (int, error) {
	<-b.unblock
	return 0, nil
}
