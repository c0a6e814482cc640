package gopher

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxSelectorLength bounds the request line when no limit is
// configured. RFC 1436 clients never send selectors anywhere near this.
const DefaultMaxSelectorLength = 4096

// ErrSelectorTooLong is returned when the request line exceeds the limit
// before a newline is seen.
var ErrSelectorTooLong = errors.New("selector too long")

// ReadSelector reads exactly one request line from r and returns it without
// its trailing "\n" or "\r\n".
//
// A line cut short by EOF is still accepted if it carries any bytes; an
// empty read at EOF returns io.EOF. maxLength <= 0 selects
// DefaultMaxSelectorLength.
func ReadSelector(r io.Reader, maxLength int) (string, error) {
	if maxLength <= 0 {
		maxLength = DefaultMaxSelectorLength
	}

	// +2 leaves room for the CRLF itself.
	limit := maxLength + 2
	br := bufio.NewReaderSize(io.LimitReader(r, int64(limit)), limit)

	line, err := br.ReadSlice('\n')
	switch {
	case err == nil:
	case errors.Is(err, bufio.ErrBufferFull):
		return "", ErrSelectorTooLong
	case errors.Is(err, io.EOF):
		if len(line) == 0 {
			return "", io.EOF
		}
	default:
		return "", fmt.Errorf("read selector: %w", err)
	}

	selector := trimLineEnd(line)
	if len(selector) > maxLength {
		return "", ErrSelectorTooLong
	}
	return selector, nil
}

func trimLineEnd(line []byte) string {
	n := len(line)
	if n > 0 && line[n-1] == '\n' {
		n--
	}
	if n > 0 && line[n-1] == '\r' {
		n--
	}
	return string(line[:n])
}
