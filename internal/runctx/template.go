package runctx

import (
	"fmt"
	"strings"
	"unicode"
)

// Render substitutes every {name} placeholder in template with the string
// form of the matching context value. Doubled braces ("{{" and "}}") produce
// literal braces. Positional placeholders such as {} or {0} are rejected, as
// is any name that is not present in the context.
func (c *Context) Render(template string) (string, error) {
	var b strings.Builder
	b.Grow(len(template))

	for i := 0; i < len(template); i++ {
		ch := template[i]
		switch ch {
		case '{':
			if i+1 < len(template) && template[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(template[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("template %q: unclosed placeholder at offset %d", template, i)
			}
			name := template[i+1 : i+1+end]
			if err := checkPlaceholder(template, name); err != nil {
				return "", err
			}
			s, err := c.String(name)
			if err != nil {
				return "", fmt.Errorf("template %q: %w", template, err)
			}
			b.WriteString(s)
			i += end + 1
		case '}':
			if i+1 < len(template) && template[i+1] == '}' {
				b.WriteByte('}')
				i++
				continue
			}
			return "", fmt.Errorf("template %q: single '}' at offset %d", template, i)
		default:
			b.WriteByte(ch)
		}
	}
	return b.String(), nil
}

// Placeholders returns the distinct placeholder names used by template in
// order of first appearance. Malformed templates return an error.
func Placeholders(template string) ([]string, error) {
	var names []string
	seen := make(map[string]bool)
	for i := 0; i < len(template); i++ {
		switch template[i] {
		case '{':
			if i+1 < len(template) && template[i+1] == '{' {
				i++
				continue
			}
			end := strings.IndexByte(template[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("template %q: unclosed placeholder at offset %d", template, i)
			}
			name := template[i+1 : i+1+end]
			if err := checkPlaceholder(template, name); err != nil {
				return nil, err
			}
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
			i += end + 1
		case '}':
			if i+1 < len(template) && template[i+1] == '}' {
				i++
				continue
			}
			return nil, fmt.Errorf("template %q: single '}' at offset %d", template, i)
		}
	}
	return names, nil
}

func checkPlaceholder(template, name string) error {
	if name == "" {
		return fmt.Errorf("template %q: positional placeholders are not supported", template)
	}
	for i, r := range name {
		if i == 0 && unicode.IsDigit(r) {
			return fmt.Errorf("template %q: positional placeholder {%s} is not supported", template, name)
		}
		if !(r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return fmt.Errorf("template %q: invalid placeholder name %q", template, name)
		}
	}
	return nil
}
