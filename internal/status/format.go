package status

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var hexEscape = regexp.MustCompile(`\\x([0-9a-fA-F]{2})`)

// DecodeEscapes replaces \xHH sequences with the byte they name.
func DecodeEscapes(s string) string {
	return hexEscape.ReplaceAllStringFunc(s, func(m string) string {
		b, _ := strconv.ParseUint(m[2:], 16, 8)
		return string(rune(b))
	})
}

// Format is a parsed --format string. Fields are written as %(name)s and
// %% is a literal percent sign.
type Format struct {
	literals []string
	fields   []string
}

// fieldNames are the placeholders a Format may use.
var fieldNames = map[string]bool{
	"id":          true,
	"status":      true,
	"summary":     true,
	"description": true,
	"branch":      true,
	"bookmark":    true,
}

// ParseFormat decodes escapes in s and compiles its placeholders.
func ParseFormat(s string) (*Format, error) {
	s = DecodeEscapes(s)

	f := &Format{}
	var lit strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			lit.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) && s[i+1] == '%' {
			lit.WriteByte('%')
			i++
			continue
		}
		if i+1 >= len(s) || s[i+1] != '(' {
			return nil, fmt.Errorf("invalid format %q: %% must be followed by (field)s or %%", s)
		}
		end := strings.IndexByte(s[i+2:], ')')
		if end < 0 {
			return nil, fmt.Errorf("invalid format %q: unterminated field name", s)
		}
		name := s[i+2 : i+2+end]
		next := i + 2 + end + 1
		if next >= len(s) || s[next] != 's' {
			return nil, fmt.Errorf("invalid format %q: field %q must end with s", s, name)
		}
		if !fieldNames[name] {
			return nil, fmt.Errorf("invalid format %q: unknown field %q", s, name)
		}
		f.literals = append(f.literals, lit.String())
		f.fields = append(f.fields, name)
		lit.Reset()
		i = next
	}
	f.literals = append(f.literals, lit.String())
	return f, nil
}

// Render expands the format for one entry.
func (f *Format) Render(e Entry) string {
	var b strings.Builder
	for i, name := range f.fields {
		b.WriteString(f.literals[i])
		b.WriteString(e.field(name))
	}
	b.WriteString(f.literals[len(f.literals)-1])
	return b.String()
}

func (e Entry) field(name string) string {
	switch name {
	case "id":
		return strconv.Itoa(e.ID)
	case "status":
		return e.Status
	case "summary":
		return e.Summary
	case "description":
		return e.Description
	case "branch":
		return e.Branch
	case "bookmark":
		return e.Bookmark
	}
	return ""
}

// FormatResults writes each entry with format, terminated by a newline or,
// when nulTerminate is set, a NUL byte.
func FormatResults(w io.Writer, entries []Entry, format string, nulTerminate bool) error {
	f, err := ParseFormat(format)
	if err != nil {
		return err
	}
	end := "\n"
	if nulTerminate {
		end = "\x00"
	}
	for _, e := range entries {
		if _, err := io.WriteString(w, f.Render(e)+end); err != nil {
			return err
		}
	}
	return nil
}
