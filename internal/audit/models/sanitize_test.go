package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeNilPayload(t *testing.T) {
	out := Sanitize(nil)
	require.NotNil(t, out)
	assert.Empty(t, out)
}

func TestSanitizeStrings(t *testing.T) {
	out := Sanitize(map[string]any{
		"markup":  `<script>alert("x")</script>`,
		"invalid": "caf\xc3\x28",
		"clean":   "hello",
	})
	assert.Equal(t, "&lt;script&gt;alert(&#34;x&#34;)&lt;/script&gt;", out["markup"])
	assert.Equal(t, "hello", out["clean"])
	assert.NotContains(t, out["invalid"], "\xc3\x28", "invalid UTF-8 must be replaced")
}

func TestSanitizeTime(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC)
	out := Sanitize(map[string]any{"at": ts})
	assert.Equal(t, ts.Format(time.RFC3339Nano), out["at"])
}

func TestSanitizeNested(t *testing.T) {
	out := Sanitize(map[string]any{
		"user": map[string]any{
			"name": "<b>Bob</b>",
			"tags": []any{"<i>", 42, true},
		},
	})
	user, ok := out["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "&lt;b&gt;Bob&lt;/b&gt;", user["name"])
	tags, ok := user["tags"].([]any)
	require.True(t, ok)
	assert.Equal(t, []any{"&lt;i&gt;", 42, true}, tags)
}

func TestSanitizeDropsUnserializable(t *testing.T) {
	out := Sanitize(map[string]any{
		"fn":   func() {},
		"ch":   make(chan int),
		"kept": "value",
	})
	assert.NotContains(t, out, "fn")
	assert.NotContains(t, out, "ch")
	assert.Equal(t, "value", out["kept"])
}

func TestSanitizeStructsRoundTrip(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	out := Sanitize(map[string]any{"obj": payload{Name: "<x>"}})
	obj, ok := out["obj"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "&lt;x&gt;", obj["name"])
}
