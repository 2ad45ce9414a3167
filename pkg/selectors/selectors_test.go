package selectors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandleFromHref(t *testing.T) {
	tests := map[string]string{
		"/alice":                          "alice",
		"/alice/status/1":                 "alice",
		"https://x.com/bob?lang=en":       "bob",
		"https://twitter.com/carol/":      "carol",
		"https://mobile.twitter.com/dave": "dave",
		"":                                "",
	}
	for in, want := range tests {
		assert.Equal(t, want, HandleFromHref(in), in)
	}
}

func TestStatusID(t *testing.T) {
	assert.Equal(t, "123", StatusID("https://x.com/alice/status/123?s=20"))
	assert.Equal(t, "456", StatusID("/bob/status/456/photo/1"))
	assert.Equal(t, "", StatusID("https://x.com/alice"))
}
