// Package server is the WebSocket and HTTP front end of the relay.
//
// The Hub upgrades connections, registers each socket with the
// registry.Registry under its identifier, relays inbound text frames to every
// connected client and announces the roster whenever someone joins or
// leaves. Two request/response endpoints expose unicast delivery and the
// roster; configuration is read from the environment.
package server
