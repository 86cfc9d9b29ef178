package language

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"en", "en"},
		{"en-US", "en"},
		{"EN", "en"},
		{"fre", "fr"},
		{"hi", "hi"},
		{"", ""},
		{"not-a-language", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.token), "token %q", tt.token)
	}
}

func TestResolve(t *testing.T) {
	supported := []string{"en", "fr", "hi"}

	tests := []struct {
		token string
		want  string
	}{
		{"fr", "fr"},
		{"en-GB", "en"},
		{"French", "fr"},
		{"english", "en"},
		{"Hindi", "hi"},
		{"de", ""},
		{"German", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Resolve(tt.token, supported), "token %q", tt.token)
	}
}

func TestDetect(t *testing.T) {
	assert.Equal(t, "en", Detect("The mitochondria is the powerhouse of the cell and produces energy."))
	assert.Equal(t, "", Detect("   "))
}

func TestMatches(t *testing.T) {
	english := "Photosynthesis converts sunlight into chemical energy that plants store as glucose."
	french := "La photosynthèse transforme la lumière du soleil en énergie chimique que les plantes conservent."

	assert.True(t, Matches(english, "en"))
	assert.True(t, Matches(french, "fr"))
	assert.False(t, Matches(french, "en"))

	// Short fragments give the detector too little signal.
	assert.True(t, Matches("Oui.", "en"))
	assert.True(t, Matches("", "hi"))
}
