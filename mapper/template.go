package mapper

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// The header/footer templates use a small, auditable mini-language
// rather than a general-purpose template runtime:
//
//	{{field}}                       interpolate a (dotted) field
//	{{.}}                           the current value inside a block
//	{{#join field "sep" "in" "out"}}...{{/join}}
//	                                render the block per element,
//	                                drop empty results, join
//	{{#replace "find" "repl" "flags"}}...{{/replace}}
//	                                render the block, then replace;
//	                                flag "i" matches case-insensitively
//	{{= ... =}}                     verbatim block, emitted untouched
//
// Unknown fields render as the empty string.

// RenderTemplate evaluates a template against a JSON-shaped data map.
func RenderTemplate(tpl string, data map[string]any) (string, error) {
	return render(tpl, data, nil)
}

// render walks tpl once; current carries the block-local value inside
// join blocks.
func render(tpl string, data map[string]any, current any) (string, error) {
	var sb strings.Builder
	for len(tpl) > 0 {
		open := strings.Index(tpl, "{{")
		if open < 0 {
			sb.WriteString(tpl)
			break
		}
		sb.WriteString(tpl[:open])
		tpl = tpl[open:]

		switch {
		case strings.HasPrefix(tpl, "{{="):
			end := strings.Index(tpl, "=}}")
			if end < 0 {
				return "", fmt.Errorf("template: unterminated verbatim block")
			}
			sb.WriteString(tpl[3:end])
			tpl = tpl[end+3:]

		case hasBlockTag(tpl, "join"), hasBlockTag(tpl, "replace"):
			name := "join"
			if hasBlockTag(tpl, "replace") {
				name = "replace"
			}
			args, body, rest, err := parseBlock(tpl, name)
			if err != nil {
				return "", err
			}
			var out string
			if name == "join" {
				out, err = renderJoin(args, body, data, current)
			} else {
				out, err = renderReplace(args, body, data, current)
			}
			if err != nil {
				return "", err
			}
			sb.WriteString(out)
			tpl = rest

		default:
			end := strings.Index(tpl, "}}")
			if end < 0 {
				return "", fmt.Errorf("template: unterminated expression")
			}
			expr := strings.TrimSpace(tpl[2:end])
			sb.WriteString(formatValue(lookup(expr, data, current)))
			tpl = tpl[end+2:]
		}
	}
	return sb.String(), nil
}

// parseBlock splits "{{#name args}}body{{/name}}" into its parts,
// honoring nested blocks of the same name.
func parseBlock(tpl, name string) (args []string, body, rest string, err error) {
	headEnd := strings.Index(tpl, "}}")
	if headEnd < 0 {
		return nil, "", "", fmt.Errorf("template: unterminated #%s head", name)
	}
	head := tpl[len("{{#"+name):headEnd]
	args, err = splitArgs(head)
	if err != nil {
		return nil, "", "", fmt.Errorf("template: #%s: %w", name, err)
	}
	inner := tpl[headEnd+2:]

	openTag := "{{#" + name
	closeTag := "{{/" + name + "}}"
	depth := 1
	pos := 0
	for depth > 0 {
		nextOpen := indexBlockTag(inner[pos:], name)
		nextClose := strings.Index(inner[pos:], closeTag)
		if nextClose < 0 {
			return nil, "", "", fmt.Errorf("template: missing {{/%s}}", name)
		}
		if nextOpen >= 0 && nextOpen < nextClose {
			depth++
			pos += nextOpen + len(openTag)
			continue
		}
		depth--
		if depth == 0 {
			body = inner[:pos+nextClose]
			rest = inner[pos+nextClose+len(closeTag):]
			return args, body, rest, nil
		}
		pos += nextClose + len(closeTag)
	}
	return args, body, rest, nil
}

// hasBlockTag reports whether s starts with the opening tag of the
// named block. The name must be followed by an argument separator or
// the head terminator, so "{{#joinx" is not a #join tag.
func hasBlockTag(s, name string) bool {
	tag := "{{#" + name
	if !strings.HasPrefix(s, tag) {
		return false
	}
	rest := s[len(tag):]
	if strings.HasPrefix(rest, "}}") {
		return true
	}
	return rest != "" && (rest[0] == ' ' || rest[0] == '\t')
}

// indexBlockTag returns the position of the next opening tag of the
// named block in s, or -1.
func indexBlockTag(s, name string) int {
	tag := "{{#" + name
	offset := 0
	for {
		idx := strings.Index(s[offset:], tag)
		if idx < 0 {
			return -1
		}
		if hasBlockTag(s[offset+idx:], name) {
			return offset + idx
		}
		offset += idx + len(tag)
	}
}

// splitArgs tokenizes a block head: bare words and double-quoted
// strings.
func splitArgs(head string) ([]string, error) {
	var args []string
	head = strings.TrimSpace(head)
	for head != "" {
		if head[0] == '"' {
			end := strings.Index(head[1:], `"`)
			if end < 0 {
				return nil, fmt.Errorf("unterminated quoted argument")
			}
			args = append(args, head[1:1+end])
			head = strings.TrimSpace(head[end+2:])
			continue
		}
		sep := strings.IndexAny(head, " \t")
		if sep < 0 {
			args = append(args, head)
			break
		}
		args = append(args, head[:sep])
		head = strings.TrimSpace(head[sep:])
	}
	return args, nil
}

// renderJoin renders the block once per element of the named list,
// drops empty or whitespace-only results, and joins the rest.
func renderJoin(args []string, body string, data map[string]any, current any) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("template: #join needs a field argument")
	}
	sep := ", "
	intro, outro := "", ""
	if len(args) > 1 {
		sep = args[1]
	}
	if len(args) > 2 {
		intro = args[2]
	}
	if len(args) > 3 {
		outro = args[3]
	}
	value := lookup(args[0], data, current)
	list, ok := value.([]any)
	if !ok {
		if value == nil {
			return "", nil
		}
		list = []any{value}
	}
	var items []string
	for _, elem := range list {
		inner, err := render(body, data, elem)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(inner) == "" {
			continue
		}
		items = append(items, inner)
	}
	if len(items) == 0 {
		return "", nil
	}
	return intro + strings.Join(items, sep) + outro, nil
}

// renderReplace renders the block and substitutes every occurrence of
// find with repl.
func renderReplace(args []string, body string, data map[string]any, current any) (string, error) {
	if len(args) < 2 {
		return "", fmt.Errorf("template: #replace needs find and replacement arguments")
	}
	find, repl := args[0], args[1]
	flags := ""
	if len(args) > 2 {
		flags = args[2]
	}
	inner, err := render(body, data, current)
	if err != nil {
		return "", err
	}
	if strings.Contains(flags, "i") {
		return replaceFold(inner, find, repl), nil
	}
	return strings.ReplaceAll(inner, find, repl), nil
}

// replaceFold is a case-insensitive ReplaceAll. Matching works on rune
// windows under Unicode simple folding, so characters whose lowercase
// form has a different byte length (e.g. İ) cannot desynchronize the
// scan.
func replaceFold(s, find, repl string) string {
	if find == "" {
		return s
	}
	runes := []rune(s)
	window := len([]rune(find))
	var sb strings.Builder
	for i := 0; i < len(runes); {
		if i+window <= len(runes) && strings.EqualFold(string(runes[i:i+window]), find) {
			sb.WriteString(repl)
			i += window
			continue
		}
		sb.WriteRune(runes[i])
		i++
	}
	return sb.String()
}

// lookup resolves a dotted path against the data map; "." yields the
// block-local value.
func lookup(path string, data map[string]any, current any) any {
	if path == "." {
		if current != nil {
			return current
		}
		return data
	}
	var value any
	if current != nil {
		if m, ok := current.(map[string]any); ok {
			value = m
		}
	}
	if value == nil {
		value = data
	}
	for _, part := range strings.Split(path, ".") {
		m, ok := value.(map[string]any)
		if !ok {
			return nil
		}
		value, ok = m[part]
		if !ok {
			return nil
		}
	}
	return value
}

// formatValue renders a looked-up value: scalars directly, composites
// as compact JSON.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}
