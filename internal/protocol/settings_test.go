package protocol

import (
	"testing"

	"github.com/srg/textwatch/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeSettings_KnownValues(t *testing.T) {
	tests := []struct {
		align string
		code  int32
	}{
		{"center", 0},
		{"left", 1},
		{"right", 2},
	}
	for _, tt := range tests {
		t.Run("align "+tt.align, func(t *testing.T) {
			msg := EncodeSettings(Settings{TextAlign: tt.align})
			assert.Equal(t, tt.code, msg[KeyTextAlign])
		})
	}

	for i, lang := range LanguageNames() {
		t.Run("lang "+lang, func(t *testing.T) {
			msg := EncodeSettings(Settings{Lang: lang})
			assert.Equal(t, int32(i), msg[KeyLanguage], "lang %s MUST encode to its table code", lang)
		})
	}
}

func TestEncodeSettings_Defaults(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
	}{
		{name: "empty", settings: Settings{}},
		{name: "unknown values", settings: Settings{TextAlign: "justify", Lang: "pt_BR"}},
		{name: "wrong case", settings: Settings{TextAlign: "Center", Lang: "EN_US"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := EncodeSettings(tt.settings)
			assert.Equal(t, Message{KeyInvert: 0, KeyTextAlign: 0, KeyLanguage: 3}, msg)
		})
	}
}

func TestEncodeText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected Message
	}{
		{
			name:     "empty object",
			text:     "{}",
			expected: Message{0: 0, 1: 0, 2: 3},
		},
		{
			name:     "full settings",
			text:     `{"invert":true,"text_align":"right","lang":"fr"}`,
			expected: Message{0: 1, 1: 2, 2: 5},
		},
		{
			name:     "catalan keeps code zero",
			text:     `{"lang":"ca"}`,
			expected: Message{0: 0, 1: 0, 2: 0},
		},
		{
			name:     "non-string enum values fall back",
			text:     `{"text_align":2,"lang":null}`,
			expected: Message{0: 0, 1: 0, 2: 3},
		},
		{
			name:     "extra fields ignored",
			text:     `{"invert":false,"text_align":"left","theme":"dark"}`,
			expected: Message{0: 0, 1: 1, 2: 3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := EncodeText(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, msg)
		})
	}
}

func TestEncodeText_InvalidJSON(t *testing.T) {
	for _, text := range []string{"", "CANCELLED", "{", `[1,2]`, `"text"`} {
		_, err := EncodeText(text)
		assert.Error(t, err, "text %q MUST fail to parse", text)
	}
}

func TestParseSettings_InvertTruthiness(t *testing.T) {
	tests := []struct {
		raw      string
		expected bool
	}{
		{`true`, true},
		{`false`, false},
		{`null`, false},
		{`1`, true},
		{`0`, false},
		{`0.0`, false},
		{`-2`, true},
		{`""`, false},
		{`"false"`, true},
		{`{}`, true},
		{`[]`, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			s, err := ParseSettings(`{"invert":` + tt.raw + `}`)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, s.Invert)
			assert.False(t, s.Vacuous(), "present key MUST NOT be vacuous")
		})
	}
}

func TestParseSettings_Vacuous(t *testing.T) {
	tests := []struct {
		text    string
		vacuous bool
	}{
		{`{}`, true},
		{`{"theme":"dark"}`, true},
		{`null`, true},
		{`{"invert":null}`, false},
		{`{"text_align":"left"}`, false},
		{`{"lang":"de"}`, false},
		{`{"Lang":"fr"}`, true},
		{`{"INVERT":true,"Text_Align":"left"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			s, err := ParseSettings(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.vacuous, s.Vacuous())
		})
	}
}

func TestParseSettings_KeysAreCaseSensitive(t *testing.T) {
	s, err := ParseSettings(`{"lang":"fr","LANG":"xx","Invert":true}`)
	require.NoError(t, err)

	assert.Equal(t, "fr", s.Lang, "differently cased duplicate MUST NOT override lang")
	assert.False(t, s.Invert, "Invert MUST NOT be read as invert")
	assert.Equal(t, Message{KeyInvert: 0, KeyTextAlign: AlignCenter, KeyLanguage: LangFR}, EncodeSettings(s))
}

func TestDecodeSettings_RoundTrip(t *testing.T) {
	for _, align := range AlignmentNames() {
		for _, lang := range LanguageNames() {
			for _, invert := range []bool{false, true} {
				in := Settings{Invert: invert, TextAlign: align, Lang: lang}
				out := DecodeSettings(EncodeSettings(in))

				assert.Equal(t, invert, out.Invert)
				assert.Equal(t, align, out.TextAlign)
				assert.Equal(t, lang, out.Lang)
			}
		}
	}
}

func TestDecodeSettings_UnknownCodes(t *testing.T) {
	s := DecodeSettings(Message{KeyInvert: 7, KeyTextAlign: 9, KeyLanguage: 42})

	assert.True(t, s.Invert)
	assert.Equal(t, "center", s.TextAlign)
	assert.Equal(t, "en_US", s.Lang)
}

func TestSettings_MarshalJSON(t *testing.T) {
	s, err := ParseSettings(`{"invert":1,"lang":"sv"}`)
	require.NoError(t, err)

	data, err := s.MarshalJSON()
	require.NoError(t, err)
	testutils.NewJSONAsserter(t).Assert(string(data), `{"invert":true,"lang":"sv"}`)
}

func TestSettings_DecodedMessageJSON(t *testing.T) {
	// GOAL: Verify a decoded configuration message renders every field
	//
	// TEST SCENARIO: Decode {0:0, 1:2, 2:1} → JSON has all three keys with names from the tables

	testutils.NewJSONAsserter(t).AssertValue(
		DecodeSettings(Message{KeyInvert: 0, KeyTextAlign: AlignRight, KeyLanguage: LangDE}),
		`{"invert":false,"text_align":"right","lang":"de"}`,
	)
}
