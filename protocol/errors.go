package protocol

import "errors"

var (
	ErrShortPacket = errors.New("packet shorter than 48 bytes")
	ErrBadMagic    = errors.New("packet magic mismatch")
	ErrBadChecksum = errors.New("packet checksum mismatch")

	ErrNotConnected = errors.New("peer not connected")
	ErrNotAllowed   = errors.New("peer does not allow remote control")
	ErrPeerBusy     = errors.New("peer is busy")
)
