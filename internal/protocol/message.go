package protocol

import (
	"encoding/json"
	"sort"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Message is the wire representation of a configuration or glucose update:
// a mapping from field code to integer value.
type Message map[Key]int32

// Keys returns the message keys in ascending order.
func (m Message) Keys() []Key {
	keys := make([]Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Ordered returns the message as an ordered map keyed by the decimal field code,
// in ascending key order.
func (m Message) Ordered() *orderedmap.OrderedMap[string, int32] {
	om := orderedmap.New[string, int32]()
	for _, k := range m.Keys() {
		om.Set(strconv.FormatUint(uint64(k), 10), m[k])
	}
	return om
}

// MarshalJSON renders the message as a JSON object with keys in ascending order,
// e.g. {"0":1,"1":2,"2":5}.
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Ordered())
}

// String implements fmt.Stringer using the JSON rendering.
func (m Message) String() string {
	data, err := m.MarshalJSON()
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Named returns the message rendered with schema key names, in key order.
func (m Message) Named() *orderedmap.OrderedMap[string, int32] {
	om := orderedmap.New[string, int32]()
	for _, k := range m.Keys() {
		om.Set(k.String(), m[k])
	}
	return om
}

// Get returns the value stored under key and whether it was present.
func (m Message) Get(key Key) (int32, bool) {
	v, ok := m[key]
	return v, ok
}

// GlucoseMessage builds the glucose update message.
func GlucoseMessage(value, trend int, timestamp int64) Message {
	return Message{
		KeyGlucoseValue: int32(value),
		KeyTrendValue:   int32(trend),
		KeyTimestamp:    int32(timestamp),
	}
}

// RequestsData reports whether the watch asked for the current glucose reading.
func RequestsData(m Message) bool {
	v, ok := m[KeyRequestData]
	return ok && v != 0
}
