package gopher

import (
	"bytes"
	"strconv"
	"strings"
)

// Terminator marks the end of every response body.
const Terminator = "\r\n.\r\n"

// lineEnd terminates a single menu line.
const lineEnd = "\r\n"

// ItemType classifies a menu entry.
type ItemType byte

const (
	// ItemFile is a leaf whose selector returns raw file contents.
	ItemFile ItemType = '0'

	// ItemDirectory is a container whose selector returns another menu.
	ItemDirectory ItemType = '1'
)

func (t ItemType) String() string {
	switch t {
	case ItemFile:
		return "File"
	case ItemDirectory:
		return "Directory"
	default:
		return "Unknown(" + strconv.Itoa(int(t)) + ")"
	}
}

// IsContainer reports whether items of this type are listed rather than read.
func (t ItemType) IsContainer() bool {
	return t == ItemDirectory
}

// Item is a single menu entry. It only lives for the duration of one
// response.
type Item struct {
	Type     ItemType
	Display  string
	Selector string
	Host     string
	Port     int
}

// Encodable reports whether the item can be written without corrupting the
// menu framing. Fields must not contain tabs or line breaks.
func (i Item) Encodable() bool {
	for _, field := range []string{i.Display, i.Selector, i.Host} {
		if strings.ContainsAny(field, "\t\r\n") {
			return false
		}
	}
	return true
}

// AppendLine appends the encoded menu line, including its CRLF, to dst.
func (i Item) AppendLine(dst []byte) []byte {
	dst = append(dst, byte(i.Type))
	dst = append(dst, i.Display...)
	dst = append(dst, '\t')
	dst = append(dst, i.Selector...)
	dst = append(dst, '\t')
	dst = append(dst, i.Host...)
	dst = append(dst, '\t')
	dst = strconv.AppendInt(dst, int64(i.Port), 10)
	return append(dst, lineEnd...)
}

// String returns the encoded line without its CRLF.
func (i Item) String() string {
	line := i.AppendLine(nil)
	return string(line[:len(line)-len(lineEnd)])
}

// EncodeMenu renders items in order as a menu body. The terminator is not
// included.
func EncodeMenu(items []Item) []byte {
	var buf bytes.Buffer
	buf.Grow(len(items) * 64)

	line := make([]byte, 0, 128)
	for _, item := range items {
		line = item.AppendLine(line[:0])
		buf.Write(line)
	}
	return buf.Bytes()
}
