package message

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultTopicVersion is assumed when a topic does not set one.
const DefaultTopicVersion = "1.0"

// Topic identifies a subject agents publish and subscribe on. The namespace
// is the routing key; attributes qualify the subject and carry transport
// hints (for example host and port for TCP delivery).
type Topic struct {
	Namespace  string
	Attributes map[string]string
	Version    string
}

// NewTopic creates a topic with the default version.
func NewTopic(namespace string, attributes map[string]string) Topic {
	return Topic{
		Namespace:  namespace,
		Attributes: attributes,
		Version:    DefaultTopicVersion,
	}
}

// Canonical renders the topic as "namespace[k1=v1,k2=v2]vVERSION" with
// attributes in sorted key order. Equal topics always render identically, so
// the canonical string is what crosses the wire and what subscriptions and
// discovery queries compare.
func (t Topic) Canonical() string {
	keys := make([]string, 0, len(t.Attributes))
	for k := range t.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(t.Namespace)
	b.WriteByte('[')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(t.Attributes[k])
	}
	b.WriteString("]v")
	version := t.Version
	if version == "" {
		version = DefaultTopicVersion
	}
	b.WriteString(version)
	return b.String()
}

// ParseTopic reconstructs a topic from its canonical string form.
func ParseTopic(s string) (Topic, error) {
	lb := strings.IndexByte(s, '[')
	rb := strings.LastIndexByte(s, ']')
	if lb < 0 || rb < lb {
		return Topic{}, fmt.Errorf("malformed topic %q: missing attribute brackets", s)
	}
	tail := s[rb+1:]
	if !strings.HasPrefix(tail, "v") || len(tail) < 2 {
		return Topic{}, fmt.Errorf("malformed topic %q: missing version", s)
	}

	topic := Topic{
		Namespace: s[:lb],
		Version:   tail[1:],
	}
	if attrs := s[lb+1 : rb]; attrs != "" {
		topic.Attributes = make(map[string]string)
		for _, pair := range strings.Split(attrs, ",") {
			k, v, ok := strings.Cut(pair, "=")
			if !ok {
				return Topic{}, fmt.Errorf("malformed topic %q: bad attribute %q", s, pair)
			}
			topic.Attributes[k] = v
		}
	}
	return topic, nil
}

// CanonicalStrings renders a topic list in order.
func CanonicalStrings(topics []Topic) []string {
	out := make([]string, len(topics))
	for i, t := range topics {
		out[i] = t.Canonical()
	}
	return out
}
