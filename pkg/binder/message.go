package binder

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const frontMatterFence = "---"

// Message is a message document: a subject, a template body and any
// extra front matter keys.
type Message struct {
	Metadata map[string]any
	Subject  string
	Body     string
}

// ParseMessage splits content into YAML front matter and body.
// Content without an opening fence is all body. The subject is read from
// the "subject" key, or "Subject" when the lowercase key is absent.
func ParseMessage(content []byte) (*Message, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))

	msg := &Message{Metadata: make(map[string]any)}

	head, rest, _ := nextLine(content)
	if strings.TrimSpace(string(head)) != frontMatterFence {
		msg.Body = string(content)
		return msg, nil
	}

	var front []byte
	for {
		if len(rest) == 0 {
			return nil, fmt.Errorf("%w: closing delimiter not found", ErrInvalidFrontMatter)
		}
		var line []byte
		line, rest, _ = nextLine(rest)
		if strings.TrimSpace(string(line)) == frontMatterFence {
			break
		}
		front = append(front, line...)
		front = append(front, '\n')
	}

	if len(bytes.TrimSpace(front)) > 0 {
		if err := yaml.Unmarshal(front, &msg.Metadata); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFrontMatter, err)
		}
		if msg.Metadata == nil {
			msg.Metadata = make(map[string]any)
		}
	}

	msg.Subject = metaString(msg.Metadata, "subject", "Subject")
	msg.Body = string(rest)
	return msg, nil
}

// nextLine returns the first line without its terminator and the remainder.
func nextLine(b []byte) (line, rest []byte, terminated bool) {
	i := bytes.IndexByte(b, '\n')
	if i < 0 {
		return b, nil, false
	}
	return bytes.TrimSuffix(b[:i], []byte("\r")), b[i+1:], true
}

func metaString(meta map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := meta[k]; ok && v != nil {
			if s, ok := v.(string); ok {
				return strings.TrimSpace(s)
			}
			return strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return ""
}
