// Package prompt assembles the text sent to the model from the system prompt
// and the issue payload.
package prompt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Bundle is the request-scoped pair of system prompt and raw issue content.
type Bundle struct {
	SystemPrompt string
	Content      json.RawMessage
}

// Render produces the final prompt:
//
//	<system prompt>
//
//	<heading>
//	```json
//	<content, 2-space indented>
//	```
func (b Bundle) Render(heading string) (string, error) {
	content, err := IndentJSON(b.Content)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(b.SystemPrompt)
	sb.WriteString("\n\n")
	sb.WriteString(heading)
	sb.WriteString("\n```json\n")
	sb.WriteString(content)
	sb.WriteString("\n```\n")
	return sb.String(), nil
}

// Build is shorthand for Bundle{systemPrompt, content}.Render(heading).
func Build(systemPrompt string, content json.RawMessage, heading string) (string, error) {
	return Bundle{SystemPrompt: systemPrompt, Content: content}.Render(heading)
}

// IndentJSON re-encodes raw with a two-space indent. Object key order and
// number literals are kept as received, escaped non-ASCII characters are
// written literally, and HTML characters are not escaped.
func IndentJSON(raw json.RawMessage) (string, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "{}", nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var compact bytes.Buffer
	if err := copyValue(dec, &compact); err != nil {
		return "", fmt.Errorf("error re-encoding issue content: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("error re-encoding issue content: trailing data")
	}

	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", "  "); err != nil {
		return "", fmt.Errorf("error indenting issue content: %w", err)
	}
	return out.String(), nil
}

func copyValue(dec *json.Decoder, buf *bytes.Buffer) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			buf.WriteByte('{')
			for i := 0; dec.More(); i++ {
				if i > 0 {
					buf.WriteByte(',')
				}
				keyTok, err := dec.Token()
				if err != nil {
					return err
				}
				key, ok := keyTok.(string)
				if !ok {
					return fmt.Errorf("unexpected object key %v", keyTok)
				}
				if err := writeString(buf, key); err != nil {
					return err
				}
				buf.WriteByte(':')
				if err := copyValue(dec, buf); err != nil {
					return err
				}
			}
			if _, err := dec.Token(); err != nil {
				return err
			}
			buf.WriteByte('}')
		case '[':
			buf.WriteByte('[')
			for i := 0; dec.More(); i++ {
				if i > 0 {
					buf.WriteByte(',')
				}
				if err := copyValue(dec, buf); err != nil {
					return err
				}
			}
			if _, err := dec.Token(); err != nil {
				return err
			}
			buf.WriteByte(']')
		default:
			return fmt.Errorf("unexpected delimiter %v", v)
		}
	case string:
		return writeString(buf, v)
	case json.Number:
		buf.WriteString(v.String())
	case bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case nil:
		buf.WriteString("null")
	default:
		return fmt.Errorf("unexpected token %T", tok)
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	writeLineSeparators(buf, bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

// writeLineSeparators copies an encoded string, turning the \u2028 and \u2029
// escapes the encoder always emits back into literal runes.
func writeLineSeparators(buf *bytes.Buffer, encoded []byte) {
	for i := 0; i < len(encoded); i++ {
		if encoded[i] != '\\' || i+1 >= len(encoded) {
			buf.WriteByte(encoded[i])
			continue
		}
		if rest := encoded[i+1:]; bytes.HasPrefix(rest, []byte("u2028")) || bytes.HasPrefix(rest, []byte("u2029")) {
			if rest[4] == '8' {
				buf.WriteRune('\u2028')
			} else {
				buf.WriteRune('\u2029')
			}
			i += 5
			continue
		}
		buf.Write(encoded[i : i+2])
		i++
	}
}
