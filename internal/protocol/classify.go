// Package protocol classifies the line-oriented text protocol spoken by the
// sensor firmware. Classification is stateless; deciding what to do with a
// line is left to the capture controller.
package protocol

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// Kind identifies the shape of a received line.
type Kind int

const (
	Ignorable Kind = iota
	Header
	DataRow
	ReadySignal
	Unknown
)

func (k Kind) String() string {
	switch k {
	case Ignorable:
		return "ignorable"
	case Header:
		return "header"
	case DataRow:
		return "data"
	case ReadySignal:
		return "ready"
	default:
		return "unknown"
	}
}

// Line prefixes and markers emitted by the firmware.
const (
	clearPrefix  = "CLEARDATA"
	headerPrefix = "LABEL,"
	dataPrefix   = "DATA,"
	readyMarker  = "Ready."
)

// StartCommand is written to the device once it reports ready.
var StartCommand = []byte("s\n")

// Event is the classification of a single line. Fields is only populated for
// Header (column names) and DataRow (values) events.
type Event struct {
	Kind   Kind
	Fields []string
}

// Classify maps a line to an Event. It never fails; anything it does not
// recognise comes back as Unknown.
//
// Fields are split naively on commas. Quoted values are not supported by the
// firmware and are not handled here.
func Classify(line string) Event {
	line = strings.TrimSpace(line)

	switch {
	case line == "":
		return Event{Kind: Ignorable}
	case strings.HasPrefix(line, clearPrefix):
		return Event{Kind: Ignorable}
	case strings.HasPrefix(line, headerPrefix):
		return Event{Kind: Header, Fields: splitFields(line)}
	case strings.HasPrefix(line, dataPrefix):
		return Event{Kind: DataRow, Fields: splitFields(line)}
	case strings.Contains(line, readyMarker):
		return Event{Kind: ReadySignal}
	default:
		return Event{Kind: Unknown}
	}
}

// splitFields drops the leading tag field.
func splitFields(line string) []string {
	return strings.Split(line, ",")[1:]
}

// Decode turns raw bytes from the wire into text, silently dropping anything
// that is not valid UTF-8 along with NUL padding. Serial noise must never
// abort a session, so there is no error return.
func Decode(raw []byte) string {
	if utf8.Valid(raw) && bytes.IndexByte(raw, 0) < 0 {
		return string(raw)
	}
	var sb strings.Builder
	sb.Grow(len(raw))
	for len(raw) > 0 {
		r, size := utf8.DecodeRune(raw)
		if r != utf8.RuneError || size > 1 {
			if r != 0 {
				sb.WriteRune(r)
			}
		}
		raw = raw[size:]
	}
	return sb.String()
}

