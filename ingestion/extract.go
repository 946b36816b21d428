package ingestion

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ExtractJSON renders a JSON knowledge file as text. For an object, every
// string field becomes a "key: value" line, nested objects are rendered in
// place, and string items of arrays get a line of their own; other values
// are ignored. Key order follows the file. Any other top-level value is
// returned as compact JSON.
func ExtractJSON(data []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedJSON, err)
	}

	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return "", fmt.Errorf("%w: %w", ErrMalformedJSON, err)
		}
		return buf.String(), nil
	}

	text, err := extractObject(dec)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedJSON, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("%w: trailing data after top-level object", ErrMalformedJSON)
	}
	return text, nil
}

// extractObject consumes an object whose opening brace was already read.
func extractObject(dec *json.Decoder) (string, error) {
	var parts []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		key, ok := tok.(string)
		if !ok {
			return "", fmt.Errorf("unexpected object key %v", tok)
		}

		tok, err = dec.Token()
		if err != nil {
			return "", err
		}
		switch v := tok.(type) {
		case string:
			parts = append(parts, key+": "+v)
		case json.Delim:
			switch v {
			case '{':
				nested, err := extractObject(dec)
				if err != nil {
					return "", err
				}
				parts = append(parts, nested)
			case '[':
				items, err := extractArray(dec)
				if err != nil {
					return "", err
				}
				parts = append(parts, items...)
			}
		}
	}

	// closing brace
	if _, err := dec.Token(); err != nil {
		return "", err
	}
	return strings.Join(parts, "\n"), nil
}

// extractArray consumes an array whose opening bracket was already read and
// returns the text of its string and object items. Nested arrays are skipped.
func extractArray(dec *json.Decoder) ([]string, error) {
	var items []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch v := tok.(type) {
		case string:
			items = append(items, v)
		case json.Delim:
			switch v {
			case '{':
				nested, err := extractObject(dec)
				if err != nil {
					return nil, err
				}
				items = append(items, nested)
			case '[':
				if err := skipContainer(dec); err != nil {
					return nil, err
				}
			}
		}
	}

	// closing bracket
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return items, nil
}

// skipContainer consumes the rest of a container whose opening delimiter
// was already read.
func skipContainer(dec *json.Decoder) error {
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if delim, ok := tok.(json.Delim); ok {
			switch delim {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}
