package model

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrParams is returned for params.py content outside the supported subset.
var ErrParams = errors.New("model: invalid params.py")

// Params are the recording parameters stored in params.py.
type Params struct {
	DatPath      []string
	NChannelsDat int
	DType        string
	Offset       int
	SampleRate   float64
	HPFiltered   bool

	// Raw holds every assignment, including keys not mapped above.
	Raw map[string]any
}

// LoadParams parses the params.py file at path.
func LoadParams(path string) (*Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p, err := ParseParams(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// ParseParams reads "name = literal" assignments. Literals may be ints,
// floats, quoted or raw strings, True, False, None, or lists of those.
func ParseParams(r io.Reader) (*Params, error) {
	p := &Params{Raw: make(map[string]any)}
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(stripComment(sc.Text()))
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		name, value, ok := strings.Cut(text, "=")
		if !ok {
			return nil, fmt.Errorf("%w: line %d: expected assignment", ErrParams, line)
		}
		name = strings.TrimSpace(name)
		if !isIdent(name) {
			return nil, fmt.Errorf("%w: line %d: invalid name %q", ErrParams, line, name)
		}
		v, err := parseLiteral(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrParams, line, err)
		}
		p.Raw[name] = v
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return p, p.bind()
}

func (p *Params) bind() error {
	for key, v := range p.Raw {
		var err error
		switch key {
		case "dat_path":
			switch t := v.(type) {
			case string:
				p.DatPath = []string{t}
			case []any:
				for _, e := range t {
					s, ok := e.(string)
					if !ok {
						return fmt.Errorf("%w: dat_path entries must be strings", ErrParams)
					}
					p.DatPath = append(p.DatPath, s)
				}
			default:
				err = errType(key, v)
			}
		case "n_channels_dat":
			p.NChannelsDat, err = asInt(key, v)
		case "offset":
			p.Offset, err = asInt(key, v)
		case "dtype":
			s, ok := v.(string)
			if !ok {
				err = errType(key, v)
			}
			p.DType = s
		case "sample_rate":
			switch t := v.(type) {
			case float64:
				p.SampleRate = t
			case int64:
				p.SampleRate = float64(t)
			default:
				err = errType(key, v)
			}
		case "hp_filtered":
			b, ok := v.(bool)
			if !ok {
				err = errType(key, v)
			}
			p.HPFiltered = b
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func asInt(key string, v any) (int, error) {
	i, ok := v.(int64)
	if !ok {
		return 0, errType(key, v)
	}
	return int(i), nil
}

func errType(key string, v any) error {
	return fmt.Errorf("%w: unexpected type %T for %s", ErrParams, v, key)
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

func parseLiteral(s string) (any, error) {
	switch s {
	case "True":
		return true, nil
	case "False":
		return false, nil
	case "None":
		return nil, nil
	case "":
		return nil, errors.New("missing value")
	}

	if s[0] == '[' || s[0] == '(' {
		closing := map[byte]byte{'[': ']', '(': ')'}[s[0]]
		if s[len(s)-1] != closing {
			return nil, fmt.Errorf("unterminated list %q", s)
		}
		var out []any
		for _, item := range splitList(s[1 : len(s)-1]) {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			v, err := parseLiteral(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}

	if str, ok, err := parseString(s); ok {
		return str, err
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}
	return nil, fmt.Errorf("unsupported literal %q", s)
}

// parseString handles '...', "..." and the raw forms r'...' and r"...".
func parseString(s string) (string, bool, error) {
	raw := false
	if s[0] == 'r' || s[0] == 'R' {
		raw = true
		s = s[1:]
	}
	if len(s) < 2 || (s[0] != '\'' && s[0] != '"') {
		return "", false, nil
	}
	q := s[0]
	if s[len(s)-1] != q {
		return "", true, fmt.Errorf("unterminated string %q", s)
	}
	body := s[1 : len(s)-1]
	if raw || !strings.Contains(body, `\`) {
		return body, true, nil
	}
	if q == '\'' {
		body = strings.ReplaceAll(body, `"`, `\"`)
		body = strings.ReplaceAll(body, `\'`, `'`)
	}
	out, err := strconv.Unquote(`"` + body + `"`)
	return out, true, err
}

// splitList splits on commas outside of quotes.
func splitList(s string) []string {
	var (
		parts []string
		quote byte
		start int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == ',':
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// stripComment drops a trailing "# ..." that is not inside a string.
func stripComment(s string) string {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '#':
			return s[:i]
		}
	}
	return s
}
