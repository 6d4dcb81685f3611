package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolver_Resolve(t *testing.T) {
	r := NewResolver("en", []string{"en", "fr", "de"})

	tests := []struct {
		name     string
		explicit string
		accept   string
		user     string
		want     string
	}{
		{name: "nothing set", want: "en"},
		{name: "explicit wins", explicit: "de", accept: "fr", user: "fr", want: "de"},
		{name: "explicit region maps to base", explicit: "fr-CA", want: "fr"},
		{name: "accept language", accept: "fr-FR,fr;q=0.9,en;q=0.8", user: "de", want: "fr"},
		{name: "accept language quality order", accept: "ja;q=0.9,de;q=0.8", want: "de"},
		{name: "user preference", user: "de", want: "de"},
		{name: "unsupported explicit falls through", explicit: "ja", user: "fr", want: "fr"},
		{name: "malformed values", explicit: "!!", accept: ";;;", user: "??", want: "en"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(tt.explicit, tt.accept, tt.user))
		})
	}
}

func TestResolver_Supported(t *testing.T) {
	r := NewResolver("fr", []string{"en", "fr", "not a tag"})
	assert.Equal(t, "fr", r.Default())
	assert.Equal(t, []string{"fr", "en"}, r.Supported())
}

func TestResolve(t *testing.T) {
	assert.Equal(t, "de", Resolve("", "de-AT", "", "en", "en", "de"))
	assert.Equal(t, "en", Resolve("", "", "", "en"))
}
