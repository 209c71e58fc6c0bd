// Package protocol defines the message schema shared between the phone companion and
// the TextWatch watchface: field codes, the settings codec and the AppMessage
// dictionary wire format.
package protocol

import "strconv"

// Key identifies one value within a Message.
//
// Codes 0-2 carry configuration, codes 10-13 carry glucose data and control
// requests. Codes must never be reused for another meaning; older watch builds
// still read them.
type Key uint32

const (
	KeyInvert    Key = 0
	KeyTextAlign Key = 1
	KeyLanguage  Key = 2

	KeyGlucoseValue Key = 10
	KeyTrendValue   Key = 11
	KeyRequestData  Key = 12
	KeyTimestamp    Key = 13
)

var keyNames = map[Key]string{
	KeyInvert:       "INVERT",
	KeyTextAlign:    "TEXT_ALIGN",
	KeyLanguage:     "LANGUAGE",
	KeyGlucoseValue: "GLUCOSE_VALUE",
	KeyTrendValue:   "TREND_VALUE",
	KeyRequestData:  "REQUEST_DATA",
	KeyTimestamp:    "TIMESTAMP",
}

// String returns the schema name of the key, or "KEY_<n>" for codes outside the schema.
func (k Key) String() string {
	if name, ok := keyNames[k]; ok {
		return name
	}
	return "KEY_" + strconv.FormatUint(uint64(k), 10)
}

// IsConfiguration reports whether the key belongs to the configuration range.
func (k Key) IsConfiguration() bool {
	return k <= KeyLanguage
}

// TrendUnknown is the trend value used when the source did not report one.
const TrendUnknown = -1
