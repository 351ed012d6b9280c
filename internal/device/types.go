package device

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Vendor record fields the registry interprets.
const (
	FieldDeviceID   = "deviceId"
	FieldID         = "id"
	FieldName       = "name"
	FieldOn         = "on"
	FieldBrightness = "brightnessLevel"
	FieldDeviceType = "deviceType"
)

// Device is the last known state of one light.
type Device struct {
	// ID is the vendor identifier, stable across polls.
	ID string `json:"id"`

	// Name is the display name; unique within the active set.
	Name string `json:"name"`

	On         bool    `json:"on"`
	Brightness float64 `json:"brightness"`

	// Attributes holds every vendor field not listed above.
	Attributes map[string]any `json:"attributes,omitempty"`

	// Raw is the record exactly as received. Numbers are json.Number.
	Raw map[string]any `json:"-"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Status is the payload published for a device.
type Status struct {
	Val           any            `json:"val"`
	LightifyState map[string]any `json:"lightify_state"`
}

// Value returns the published level: the brightness as received when the
// light is on, otherwise 0.
func (d *Device) Value() any {
	if !d.On {
		return 0
	}
	if n, ok := d.Raw[FieldBrightness].(json.Number); ok {
		return n
	}
	return d.Brightness
}

// Status returns the publishable view of d. The state map is a copy.
func (d *Device) Status() Status {
	return Status{
		Val:           d.Value(),
		LightifyState: deepCopyMap(d.Raw),
	}
}

// DeepCopy creates a complete independent copy of the Device.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d
	cpy.Attributes = deepCopyMap(d.Attributes)
	cpy.Raw = deepCopyMap(d.Raw)
	return &cpy
}

// FromRecord builds a Device from a raw vendor record.
//
// The identifier is taken from deviceId, falling back to id. A record
// without a name uses its identifier as name.
func FromRecord(record map[string]any) (*Device, error) {
	id := stringField(record[FieldDeviceID])
	if id == "" {
		id = stringField(record[FieldID])
	}
	if id == "" {
		return nil, fmt.Errorf("%w: no %s or %s", ErrInvalidRecord, FieldDeviceID, FieldID)
	}

	name := stringField(record[FieldName])
	if name == "" {
		name = id
	}

	brightness, _ := numberField(record[FieldBrightness])

	attrs := make(map[string]any, len(record))
	for k, v := range record {
		switch k {
		case FieldDeviceID, FieldID, FieldName, FieldOn, FieldBrightness:
			continue
		}
		attrs[k] = deepCopyValue(v)
	}

	return &Device{
		ID:         id,
		Name:       name,
		On:         boolField(record[FieldOn]),
		Brightness: brightness,
		Attributes: attrs,
		Raw:        deepCopyMap(record),
	}, nil
}

// stringField renders identifiers that may arrive as strings or numbers.
func stringField(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

// numberField reads a numeric field.
func numberField(v any) (float64, bool) {
	switch val := v.(type) {
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case float64:
		return val, true
	case int:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// boolField accepts true/false as well as numeric 1/0.
func boolField(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case nil:
		return false
	default:
		f, ok := numberField(val)
		return ok && f != 0
	}
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		return v
	}
}
