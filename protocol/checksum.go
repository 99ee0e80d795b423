package protocol

// Checksum calculates the trailing checksum of a packet.
// It sums (b ^ 0x55) over the flags byte up to, but excluding, the
// checksum byte itself. The magic is not covered.
func Checksum(buf []byte) uint8 {
	var sum uint8
	end := PacketSize - 1
	if len(buf) < end {
		end = len(buf)
	}
	for i := offFlags; i < end; i++ {
		sum += buf[i] ^ 0x55
	}
	return sum
}

// validPacket checks length, magic and checksum
func validPacket(buf []byte) error {
	if len(buf) < PacketSize {
		return ErrShortPacket
	}
	if buf[0] != magic[0] || buf[1] != magic[1] || buf[2] != magic[2] || buf[3] != magic[3] {
		return ErrBadMagic
	}
	if buf[offChecksum] != Checksum(buf) {
		return ErrBadChecksum
	}
	return nil
}
