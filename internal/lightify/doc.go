// Package lightify talks to the OSRAM Lightify cloud service.
//
// The package has three layers:
//
//   - Client builds and executes one HTTP request against the service base
//     and returns the raw status and body. It never retries and never
//     interprets status codes.
//   - Session owns the security token. Login exchanges the gateway
//     credentials for a token; Call attaches it and, when enabled, renews
//     the session once if the service answers 401 or 403.
//   - Gateway exposes the few endpoints the bridge needs (devices,
//     device/set, device/all/set) on top of a Session.
//
// Usage:
//
//	client := lightify.NewClient(cfg.Lightify.ServiceBaseURL(), cfg.Lightify.GetRequestTimeout())
//	session := lightify.NewSession(client, lightify.Credentials{...}, lightify.SessionOptions{})
//	if err := session.Login(ctx); err != nil {
//	    return err
//	}
//	records, err := lightify.NewGateway(session).Devices(ctx)
package lightify
