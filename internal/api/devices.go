package api

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	bridge "github.com/nerrad567/lightify2mqtt/internal/bridges/lightify"
	"github.com/nerrad567/lightify2mqtt/internal/device"
)

// deviceView is the API shape of a light: the MQTT status payload plus
// identity.
type deviceView struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Val           any            `json:"val"`
	LightifyState map[string]any `json:"lightify_state"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func newDeviceView(dev *device.Device) deviceView {
	st := dev.Status()
	return deviceView{
		ID:            dev.ID,
		Name:          dev.Name,
		Val:           st.Val,
		LightifyState: st.LightifyState,
		UpdatedAt:     dev.UpdatedAt,
	}
}

// handleListDevices returns every known light, sorted by name.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.registry.List()
	views := make([]deviceView, 0, len(devices))
	for i := range devices {
		views = append(views, newDeviceView(&devices[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": views,
		"count":   len(views),
	})
}

// handleGetDevice returns one light by display name.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	name := nameParam(r)
	dev, err := s.registry.LookupByName(name)
	if err != nil {
		writeNotFound(w, "light not found: "+name)
		return
	}
	writeJSON(w, http.StatusOK, newDeviceView(dev))
}

// handleSetDeviceState sends a command. The body is a number (0 is off) or
// a JSON object of gateway parameters; {name} may be "all".
func (s *Server) handleSetDeviceState(w http.ResponseWriter, r *http.Request) {
	name := nameParam(r)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "body too large")
			return
		}
		writeBadRequest(w, "reading body: "+err.Error())
		return
	}

	err = s.bridge.Execute(r.Context(), name, body, bridge.SourceAPI)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "accepted",
			"target": name,
		})
	case errors.Is(err, bridge.ErrMalformedPayload):
		writeBadRequest(w, err.Error())
	case errors.Is(err, device.ErrDeviceNotFound):
		writeNotFound(w, "light not found: "+name)
	case errors.Is(err, bridge.ErrCommandFailed):
		writeError(w, http.StatusBadGateway, ErrCodeUpstream, err.Error())
	default:
		s.logger.Error("command failed", "target", name, "error", err)
		writeInternalError(w, "command failed")
	}
}

// nameParam returns the decoded {name} path parameter.
func nameParam(r *http.Request) string {
	raw := chi.URLParam(r, "name")
	if name, err := url.PathUnescape(raw); err == nil {
		return name
	}
	return raw
}
