package transport

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/synod-dev/synod/internal/council"
	"github.com/synod-dev/synod/internal/logging"
)

// Reader reassembles events from an SSE stream. Network reads can split a
// record anywhere, so bytes are buffered until a complete blank-line
// terminated record is available. Records that fail to decode are logged
// and skipped; one malformed frame must not kill a live stream.
type Reader struct {
	scanner *bufio.Scanner
	logger  *logging.Logger
}

// NewReader wraps a stream body.
func NewReader(r io.Reader, logger *logging.Logger) *Reader {
	if logger == nil {
		logger = logging.NopLogger()
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	scanner.Split(splitRecords)
	return &Reader{scanner: scanner, logger: logger}
}

// Next returns the next decoded event. io.EOF marks a cleanly ended stream.
func (r *Reader) Next() (council.Event, error) {
	for r.scanner.Scan() {
		payload := extractData(r.scanner.Text())
		if payload == "" {
			continue
		}
		var ev council.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			r.logger.Warn("skipping malformed event record", "error", err)
			continue
		}
		return ev, nil
	}
	if err := r.scanner.Err(); err != nil {
		return council.Event{}, err
	}
	return council.Event{}, io.EOF
}

// splitRecords tokenizes on the blank-line record terminator, tolerating
// both \n\n and \r\n\r\n framing, mixed within one stream. Whichever
// terminator appears first ends the record.
func splitRecords(data []byte, atEOF bool) (advance int, token []byte, err error) {
	crlf := bytes.Index(data, []byte("\r\n\r\n"))
	lf := bytes.Index(data, []byte("\n\n"))
	switch {
	case crlf >= 0 && (lf < 0 || crlf < lf):
		return crlf + 4, data[:crlf], nil
	case lf >= 0:
		return lf + 2, data[:lf], nil
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// extractData joins the data lines of one record, ignoring comment and
// unknown field lines.
func extractData(record string) string {
	var parts []string
	for _, line := range strings.Split(record, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if rest, ok := strings.CutPrefix(line, "data:"); ok {
			parts = append(parts, strings.TrimPrefix(rest, " "))
		}
	}
	return strings.Join(parts, "\n")
}
