package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Text alignment codes.
const (
	AlignCenter int32 = 0
	AlignLeft   int32 = 1
	AlignRight  int32 = 2

	DefaultAlign = AlignCenter
)

// Language codes.
const (
	LangCA   int32 = 0
	LangDE   int32 = 1
	LangENGB int32 = 2
	LangENUS int32 = 3
	LangES   int32 = 4
	LangFR   int32 = 5
	LangNO   int32 = 6
	LangSV   int32 = 7

	DefaultLang = LangENUS
)

var alignments = map[string]int32{
	"center": AlignCenter,
	"left":   AlignLeft,
	"right":  AlignRight,
}

var langs = map[string]int32{
	"ca":    LangCA,
	"de":    LangDE,
	"en_GB": LangENGB,
	"en_US": LangENUS,
	"es":    LangES,
	"fr":    LangFR,
	"no":    LangNO,
	"sv":    LangSV,
}

// DefaultSettingsText is the persisted settings value used when nothing was stored.
const DefaultSettingsText = "{}"

// Settings is the configuration edited on the configuration page.
//
// TextAlign and Lang hold whatever string the page sent; unknown values are kept
// as-is and only collapse to defaults when encoded.
type Settings struct {
	Invert    bool
	TextAlign string
	Lang      string

	hasInvert    bool
	hasTextAlign bool
	hasLang      bool
}

// Vacuous reports whether none of the known settings fields were present.
func (s Settings) Vacuous() bool {
	return !s.hasInvert && !s.hasTextAlign && !s.hasLang
}

// ParseSettings parses the JSON text produced by the configuration page.
// A field counts as present when its key exists, even with a null value.
// Keys match case-sensitively.
func ParseSettings(text string) (Settings, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Settings{}, fmt.Errorf("invalid settings: %w", err)
	}

	invert, hasInvert := raw["invert"]
	textAlign, hasTextAlign := raw["text_align"]
	lang, hasLang := raw["lang"]

	s := Settings{
		hasInvert:    hasInvert,
		hasTextAlign: hasTextAlign,
		hasLang:      hasLang,
	}
	s.Invert = truthy(invert)
	s.TextAlign = stringValue(textAlign)
	s.Lang = stringValue(lang)
	return s, nil
}

// MarshalJSON writes the present fields back in the configuration page format.
func (s Settings) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 3)
	if s.hasInvert {
		out["invert"] = s.Invert
	}
	if s.hasTextAlign {
		out["text_align"] = s.TextAlign
	}
	if s.hasLang {
		out["lang"] = s.Lang
	}
	return json.Marshal(out)
}

// EncodeSettings maps settings to their wire codes. Unknown or missing values
// fall back to center alignment and en_US.
func EncodeSettings(s Settings) Message {
	msg := Message{
		KeyInvert:    0,
		KeyTextAlign: DefaultAlign,
		KeyLanguage:  DefaultLang,
	}
	if s.Invert {
		msg[KeyInvert] = 1
	}
	if code, ok := alignments[s.TextAlign]; ok {
		msg[KeyTextAlign] = code
	}
	if code, ok := langs[s.Lang]; ok {
		msg[KeyLanguage] = code
	}
	return msg
}

// EncodeText parses serialized settings and encodes them.
func EncodeText(text string) (Message, error) {
	s, err := ParseSettings(text)
	if err != nil {
		return nil, err
	}
	return EncodeSettings(s), nil
}

// DecodeSettings maps a configuration message back to settings. Codes outside
// the tables decode to the defaults.
func DecodeSettings(m Message) Settings {
	s := Settings{
		TextAlign:    "center",
		Lang:         "en_US",
		hasInvert:    true,
		hasTextAlign: true,
		hasLang:      true,
	}
	s.Invert = m[KeyInvert] != 0
	if name, ok := lookupName(alignments, m[KeyTextAlign]); ok {
		s.TextAlign = name
	}
	if v, ok := m[KeyLanguage]; ok {
		if name, ok := lookupName(langs, v); ok {
			s.Lang = name
		}
	}
	return s
}

// AlignmentNames returns the accepted text_align values.
func AlignmentNames() []string {
	return []string{"center", "left", "right"}
}

// LanguageNames returns the accepted lang values in code order.
func LanguageNames() []string {
	return []string{"ca", "de", "en_GB", "en_US", "es", "fr", "no", "sv"}
}

func lookupName(table map[string]int32, code int32) (string, bool) {
	for name, c := range table {
		if c == code {
			return name, true
		}
	}
	return "", false
}

// truthy follows the configuration page's loose boolean rules: false, null,
// 0 and "" are false, everything else is true.
func truthy(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	if len(v) == 0 {
		return false
	}
	switch v[0] {
	case 'n', 'f':
		return false
	case 't', '{', '[':
		return true
	case '"':
		return len(v) > 2
	}
	f, err := strconv.ParseFloat(string(v), 64)
	return err == nil && f != 0
}

func stringValue(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}
