//go:build linux

package tcpmon

import (
	"golang.org/x/sys/unix"

	"github.com/dmdmdm-nz/tcpmond/internal/netev"
)

// rudeError maps a rude disconnect to the errno a subsequent socket
// operation reports.
func rudeError(flags netev.Event) error {
	switch {
	case flags.Has(netev.Abort):
		return unix.ECONNRESET
	case flags.Has(netev.TimedOut):
		return unix.ETIMEDOUT
	case flags.Has(netev.NetdevDown):
		return unix.ENETDOWN
	}
	return unix.ENOTCONN
}
