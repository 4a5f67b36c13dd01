//go:generate go run go.uber.org/mock/mockgen -source=channel.go -destination=../../mocks/mock_channel.go -package=mocks
package registry

// Channel is an open, text-capable connection to a single client.
// The transport owns its I/O lifecycle; the Registry only sends through it.
type Channel interface {
	SendText(text string) error
}
