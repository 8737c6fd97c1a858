// Package natsx connects to NATS the way recall processes expect.
package natsx

import (
	"github.com/nats-io/nats.go"
)

// ClientName identifies recall connections on the NATS server.
const ClientName = "recall"

// NewClient connects to url. Without options the connection is named after
// ClientName, compressed and retries the initial connect.
func NewClient(url string, opts ...nats.Option) (*nats.Conn, error) {
	if len(opts) == 0 {
		opts = append(opts, nats.Name(ClientName), nats.Compression(true), nats.RetryOnFailedConnect(true))
	}
	return nats.Connect(url, opts...)
}
