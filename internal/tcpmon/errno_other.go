//go:build !linux

package tcpmon

import (
	"github.com/pkg/errors"

	"github.com/dmdmdm-nz/tcpmond/internal/netev"
)

var (
	errConnReset = errors.New("connection reset by peer")
	errTimedOut  = errors.New("connection timed out")
	errNetDown   = errors.New("network is down")
)

// rudeError maps a rude disconnect to the error a subsequent socket
// operation reports. Platforms without unix errno values use sentinel
// errors.
func rudeError(flags netev.Event) error {
	switch {
	case flags.Has(netev.Abort):
		return errConnReset
	case flags.Has(netev.TimedOut):
		return errTimedOut
	case flags.Has(netev.NetdevDown):
		return errNetDown
	}
	return ErrNotConnected
}
