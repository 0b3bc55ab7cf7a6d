// Package record reads and writes planview's markdown records.
//
// A record is a markdown file with a ----delimited YAML frontmatter header
// followed by an opaque body. The engine only ever needs a handful of typed
// header fields; everything it does not understand, including the body, is
// preserved byte-for-byte on write-back.
package record

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	pverrors "github.com/randalmurphal/planview/internal/errors"
)

// delimiter is the frontmatter fence line.
const delimiter = "---"

// File is a parsed record: raw header lines plus the raw body.
// Header and delimiter lines keep their original line terminators so that
// untouched lines round-trip byte-for-byte, CRLF records included.
type File struct {
	// Path is the record location on disk.
	Path string

	openLine  string   // opening delimiter line including terminator
	closeLine string   // closing delimiter line including terminator
	header    []string // raw header lines including terminators
	body      []byte   // everything after the closing delimiter line
}

// Parse reads and parses the record at path.
func Parse(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read record %s: %w", path, err)
	}
	return ParseBytes(path, data)
}

// ParseBytes parses record content. The path is kept for write-back and
// error reporting only.
func ParseBytes(path string, data []byte) (*File, error) {
	lines := splitAfterNewlines(data)
	if len(lines) == 0 || strings.TrimRight(lines[0], "\r\n") != delimiter {
		return nil, pverrors.New(pverrors.CodeRecordParseFailed, "parse record "+path).
			WithWhy("missing opening frontmatter delimiter")
	}

	var header []string
	closing := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], "\r\n") == delimiter {
			closing = i
			break
		}
		header = append(header, lines[i])
	}
	if closing < 0 {
		return nil, pverrors.New(pverrors.CodeRecordParseFailed, "parse record "+path).
			WithWhy("missing closing frontmatter delimiter")
	}

	body := []byte(strings.Join(lines[closing+1:], ""))

	return &File{
		Path:      path,
		openLine:  lines[0],
		closeLine: lines[closing],
		header:    header,
		body:      body,
	}, nil
}

// splitAfterNewlines splits data into lines, each retaining its terminator.
func splitAfterNewlines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	var lines []string
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			lines = append(lines, string(data))
			break
		}
		lines = append(lines, string(data[:i+1]))
		data = data[i+1:]
	}
	return lines
}

// HeaderBytes returns the raw frontmatter header without delimiters.
func (f *File) HeaderBytes() []byte {
	return []byte(strings.Join(f.header, ""))
}

// Decode unmarshals the frontmatter header into out via YAML.
func (f *File) Decode(out any) error {
	if err := yaml.Unmarshal(f.HeaderBytes(), out); err != nil {
		return pverrors.Wrap(pverrors.CodeRecordParseFailed, "decode record "+f.Path, err)
	}
	return nil
}

// Get returns the raw scalar value of a top-level header key.
func (f *File) Get(key string) (string, bool) {
	for _, line := range f.header {
		if k, v, ok := scalarLine(line); ok && k == key {
			return v, true
		}
	}
	return "", false
}

// Set replaces the value of a top-level scalar header key, or appends the
// key at the end of the header if absent. Every other line is left untouched.
func (f *File) Set(key, value string) {
	for i, line := range f.header {
		if k, _, ok := scalarLine(line); ok && k == key {
			f.header[i] = key + ": " + value + lineEnding(line)
			return
		}
	}
	f.header = append(f.header, key+": "+value+f.terminator())
}

// terminator returns the record's prevailing line terminator, taken from the
// existing header (falling back to the opening delimiter line).
func (f *File) terminator() string {
	for i := len(f.header) - 1; i >= 0; i-- {
		if end := lineEnding(f.header[i]); end != "" {
			return end
		}
	}
	if end := lineEnding(f.openLine); end != "" {
		return end
	}
	return "\n"
}

// scalarLine parses a zero-indent "key: value" header line.
func scalarLine(line string) (key, value string, ok bool) {
	trimmed := strings.TrimRight(line, "\r\n")
	if trimmed == "" || trimmed[0] == ' ' || trimmed[0] == '\t' || trimmed[0] == '#' {
		return "", "", false
	}
	i := strings.Index(trimmed, ":")
	if i <= 0 {
		return "", "", false
	}
	key = trimmed[:i]
	value = strings.TrimSpace(trimmed[i+1:])
	value = strings.Trim(value, `"'`)
	return key, value, true
}

// lineEnding returns the terminator of a raw line ("\n", "\r\n", or "").
func lineEnding(line string) string {
	if strings.HasSuffix(line, "\r\n") {
		return "\r\n"
	}
	if strings.HasSuffix(line, "\n") {
		return "\n"
	}
	return ""
}

// Bytes reassembles the full record content. Delimiter lines are re-emitted
// exactly as parsed, terminators included.
func (f *File) Bytes() []byte {
	term := f.terminator()
	open, closing := f.openLine, f.closeLine
	if open == "" {
		open = delimiter + term
	}
	if closing == "" {
		closing = delimiter + term
	}

	var b bytes.Buffer
	b.WriteString(open)
	for _, line := range f.header {
		b.WriteString(line)
		if !strings.HasSuffix(line, "\n") {
			b.WriteString(term)
		}
	}
	b.WriteString(closing)
	b.Write(f.body)
	return b.Bytes()
}

// Save writes the record back to its path atomically.
func (f *File) Save() error {
	if err := atomic.WriteFile(f.Path, bytes.NewReader(f.Bytes())); err != nil {
		return pverrors.Wrap(pverrors.CodeRecordWriteFailed, "write record "+f.Path, err)
	}
	return nil
}
