package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// TextTimeFormat is the timestamp layout of text entries
const TextTimeFormat = "2006-01-02 15:04:05"

// fileSink appends encoded lines to a file and syncs after each one
type fileSink struct {
	f      *os.File
	encode func(Entry) ([]byte, error)
}

func openFileSink(path string, encode func(Entry) ([]byte, error)) (*fileSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}
	return &fileSink{f: f, encode: encode}, nil
}

func (s *fileSink) Write(e Entry) error {
	data, err := s.encode(e)
	if err != nil {
		return err
	}
	if _, err := s.f.Write(data); err != nil {
		return err
	}
	return s.f.Sync()
}

func (s *fileSink) Close() error {
	return s.f.Close()
}

// NewTextSink writes human readable lines such as
// "2024-03-01 12:00:00 - Archived: /a/b.txt -> /archive/b.txt"
func NewTextSink(path string) (Sink, error) {
	return openFileSink(path, func(e Entry) ([]byte, error) {
		return []byte(TextLine(e) + "\n"), nil
	})
}

// NewJSONLSink writes one JSON object per line
func NewJSONLSink(path string) (Sink, error) {
	return openFileSink(path, func(e Entry) ([]byte, error) {
		data, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	})
}

// lineEscaper keeps one entry per line
var lineEscaper = strings.NewReplacer("\n", `\n`, "\r", `\r`)

// TextLine renders an entry as a single text line without the newline
func TextLine(e Entry) string {
	var msg string
	switch e.Verb {
	case VerbScanned:
		msg = "Scanned: " + e.Path
	case VerbArchived:
		msg = fmt.Sprintf("Archived: %s -> %s", e.Path, e.Dest)
	case VerbDeleted:
		msg = "Deleted: " + e.Path
	case VerbError:
		if e.Path == "" {
			msg = "Error: " + e.Error
		} else {
			msg = fmt.Sprintf("Error processing %s: %s", e.Path, e.Error)
		}
	case VerbRunStart:
		msg = "Run started " + e.RunID
	case VerbConfirmed:
		msg = "Confirmed"
	case VerbDeclined:
		msg = "Declined"
	case VerbRunEnd:
		msg = "Run finished"
	default:
		msg = string(e.Verb)
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}

	msg = lineEscaper.Replace(msg)

	return e.Time.Format(TextTimeFormat) + " - " + msg
}
