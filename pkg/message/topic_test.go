package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicCanonical(t *testing.T) {
	topic := NewTopic("tasks.review", map[string]string{
		"lang":   "go",
		"area":   "backend",
		"effort": "small",
	})
	assert.Equal(t, "tasks.review[area=backend,effort=small,lang=go]v1.0", topic.Canonical())
}

func TestTopicCanonicalNoAttributes(t *testing.T) {
	assert.Equal(t, "tasks[]v1.0", NewTopic("tasks", nil).Canonical())

	// Zero-value topics render with the default version.
	assert.Equal(t, "tasks[]v1.0", Topic{Namespace: "tasks"}.Canonical())
}

func TestTopicCanonicalExplicitVersion(t *testing.T) {
	topic := Topic{Namespace: "tasks", Version: "2.1"}
	assert.Equal(t, "tasks[]v2.1", topic.Canonical())
}

func TestParseTopicRoundTrip(t *testing.T) {
	original := NewTopic("transport.tcp", map[string]string{
		"host": "127.0.0.1",
		"port": "9000",
	})

	parsed, err := ParseTopic(original.Canonical())
	require.NoError(t, err)

	assert.Equal(t, "transport.tcp", parsed.Namespace)
	assert.Equal(t, "1.0", parsed.Version)
	assert.Equal(t, "127.0.0.1", parsed.Attributes["host"])
	assert.Equal(t, "9000", parsed.Attributes["port"])
	assert.Equal(t, original.Canonical(), parsed.Canonical())
}

func TestParseTopicNoAttributes(t *testing.T) {
	parsed, err := ParseTopic("events[]v1.0")
	require.NoError(t, err)
	assert.Equal(t, "events", parsed.Namespace)
	assert.Nil(t, parsed.Attributes)
	assert.Equal(t, "1.0", parsed.Version)
}

func TestParseTopicMalformed(t *testing.T) {
	for _, s := range []string{
		"plainstring",
		"ns[a=1",
		"ns[a=1]",
		"ns[a=1]x2.0",
		"ns[noequals]v1.0",
	} {
		_, err := ParseTopic(s)
		assert.Error(t, err, "input %q", s)
	}
}

func TestCanonicalStrings(t *testing.T) {
	topics := []Topic{
		NewTopic("a", nil),
		NewTopic("b", map[string]string{"k": "v"}),
	}
	assert.Equal(t, []string{"a[]v1.0", "b[k=v]v1.0"}, CanonicalStrings(topics))
}
