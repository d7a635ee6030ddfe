package transport

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synod-dev/synod/internal/council"
	"github.com/synod-dev/synod/internal/logging"
)

func TestWriterFramesAndFlushes(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	require.NoError(t, err)

	require.NoError(t, w.WriteEvent(council.Event{
		Type:  council.EventModelPartialToken,
		Stage: council.StageResponses,
		Model: "a/one",
		Delta: "hel",
	}))
	require.NoError(t, w.WriteEvent(council.Event{
		Type: council.EventSessionComplete,
	}))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.True(t, rec.Flushed)

	body := rec.Body.String()
	records := strings.Split(strings.TrimSuffix(body, "\n\n"), "\n\n")
	require.Len(t, records, 2)
	assert.True(t, strings.HasPrefix(records[0], "data: {"))
	assert.Contains(t, records[0], `"model_partial_token"`)
	assert.Contains(t, records[1], `"session_complete"`)
}

func TestWriterConcurrentWrites(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.WriteEvent(council.Event{Type: council.EventStageProgress})
		}()
	}
	wg.Wait()

	// Every record must be intact: no interleaved frames.
	records := strings.Split(strings.TrimSuffix(rec.Body.String(), "\n\n"), "\n\n")
	require.Len(t, records, 20)
	for _, r := range records {
		assert.True(t, strings.HasPrefix(r, "data: {"), "record %q", r)
		assert.True(t, strings.HasSuffix(r, "}"), "record %q", r)
	}
}

// chunkReader returns the stream in caller-defined slices, simulating
// arbitrary network fragmentation.
type chunkReader struct {
	chunks []string
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, c.chunks[0])
	if n == len(c.chunks[0]) {
		c.chunks = c.chunks[1:]
	} else {
		c.chunks[0] = c.chunks[0][n:]
	}
	return n, nil
}

func TestReaderReassemblesSplitRecords(t *testing.T) {
	// Two records split mid-JSON and mid-delimiter.
	stream := &chunkReader{chunks: []string{
		`data: {"type":"stage_start","st`,
		`age":"responses","total":3}` + "\n",
		"\n" + `data: {"type":"model_complete","stage":"responses","model":"a/one"}` + "\n\n",
	}}

	r := NewReader(stream, logging.NopLogger())

	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, council.EventStageStart, first.Type)
	assert.Equal(t, council.StageResponses, first.Stage)
	assert.Equal(t, 3, first.Total)

	second, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, council.EventModelComplete, second.Type)
	assert.Equal(t, "a/one", second.Model)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderSkipsMalformedRecords(t *testing.T) {
	stream := strings.NewReader(
		"data: {not json}\n\n" +
			": heartbeat comment\n\n" +
			"data: {\"type\":\"session_complete\"}\n\n",
	)

	r := NewReader(stream, logging.NopLogger())

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, council.EventSessionComplete, ev.Type)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderCRLFFraming(t *testing.T) {
	stream := strings.NewReader("data: {\"type\":\"synthesis_start\",\"model\":\"chair\"}\r\n\r\n")
	r := NewReader(stream, logging.NopLogger())

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, council.EventSynthesisStart, ev.Type)
	assert.Equal(t, "chair", ev.Model)
}

func TestReaderMixedFraming(t *testing.T) {
	// An LF-terminated record followed by a CRLF-terminated one: each must
	// end at its own terminator, not at the first CRLF pair in the stream.
	stream := strings.NewReader(
		"data: {\"type\":\"stage_start\",\"stage\":\"responses\"}\n\n" +
			"data: {\"type\":\"session_complete\"}\r\n\r\n")
	r := NewReader(stream, logging.NopLogger())

	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, council.EventStageStart, first.Type)

	second, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, council.EventSessionComplete, second.Type)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestRoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	require.NoError(t, err)

	sent := []council.Event{
		{Type: council.EventStageStart, Stage: council.StageResponses, Total: 2},
		{Type: council.EventModelPartialToken, Stage: council.StageResponses, Model: "a/one", Delta: "multi\nline"},
		{Type: council.EventSessionComplete},
	}
	for _, ev := range sent {
		require.NoError(t, w.WriteEvent(ev))
	}

	r := NewReader(strings.NewReader(rec.Body.String()), logging.NopLogger())
	for _, want := range sent {
		got, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, want.Type, got.Type)
		assert.Equal(t, want.Model, got.Model)
		assert.Equal(t, want.Delta, got.Delta)
	}
}
