package queue

import (
	"fmt"

	"madrasah/internal/common"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nkeys"
)

type NewNatsOpts struct {
	// Addr contains the hostname:port address of the NATS instance
	Addr string

	// Username defines the username to use when authenticating with NATS
	Username string

	// Password defines the password to use when authenticating with NATS
	Password string

	// NKey takes precedence over the `Username` and `Password`
	// fields; when this is specified, the standard credentials
	// are ignored
	NKey string

	ServiceLogs chan<- common.ServiceLog
}

// NewNats creates an unconnected NATS queue; call Connect before use
func NewNats(opts NewNatsOpts) (*Nats, error) {
	serviceLogs := opts.ServiceLogs
	if serviceLogs == nil {
		serviceLogs = common.GetNoopServiceLog()
	}
	natsOpts := []nats.Option{nats.Name("madrasah")}
	if opts.NKey != "" {
		keyPair, err := nkeys.FromSeed([]byte(opts.NKey))
		if err != nil {
			return nil, fmt.Errorf("failed to generate keypair from nkey: %w", err)
		}
		publicKey, err := keyPair.PublicKey()
		if err != nil {
			return nil, fmt.Errorf("failed to generate public key from nkey: %w", err)
		}
		natsOpts = append(natsOpts, nats.Nkey(publicKey, keyPair.Sign))
	} else if opts.Username != "" && opts.Password != "" {
		natsOpts = append(natsOpts, nats.UserInfo(opts.Username, opts.Password))
	} else {
		return nil, fmt.Errorf("failed to receive any authentication methods")
	}
	return &Nats{
		Addr:        opts.Addr,
		ServiceLogs: serviceLogs,
		options:     natsOpts,
	}, nil
}
