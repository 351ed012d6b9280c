package lightify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Endpoints used by the gateway.
const (
	endpointDevices   = "devices"
	endpointDeviceSet = "device/set"
	endpointAllSet    = "device/all/set"
)

// Record is one raw device record as returned by the service.
// Numbers are json.Number values.
type Record = map[string]any

// Gateway wraps the device endpoints of an authenticated session.
type Gateway struct {
	session *Session
}

// NewGateway creates a Gateway on top of session.
func NewGateway(session *Session) *Gateway {
	return &Gateway{session: session}
}

// Devices fetches every device record known to the gateway.
func (g *Gateway) Devices(ctx context.Context) ([]Record, error) {
	resp, err := g.session.Call(ctx, http.MethodGet, endpointDevices, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching devices: %w", err)
	}

	var records []Record
	if err := resp.Decode(&records); err != nil {
		return nil, fmt.Errorf("fetching devices: %w", err)
	}
	return records, nil
}

// SetDevice sends a set command to one device.
func (g *Gateway) SetDevice(ctx context.Context, id string, params url.Values) error {
	q := cloneValues(params)
	q.Set("idx", id)

	if _, err := g.session.Call(ctx, http.MethodGet, endpointDeviceSet, q); err != nil {
		return fmt.Errorf("setting device %s: %w", id, err)
	}
	return nil
}

// SetAll sends a set command to every device on the gateway.
func (g *Gateway) SetAll(ctx context.Context, params url.Values) error {
	if _, err := g.session.Call(ctx, http.MethodGet, endpointAllSet, cloneValues(params)); err != nil {
		return fmt.Errorf("setting all devices: %w", err)
	}
	return nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+1)
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
