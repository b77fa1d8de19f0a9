package serialpads

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

const (
	SOF0 = 0xAA
	SOF1 = 0x55
	// CmdLevelMask frames carry the whole pad bank as a 16-bit level
	// mask, least significant byte first. Bit N is pad N's level.
	CmdLevelMask = 0x20

	maskPayloadLen = 2
	maskFrameLen   = byte(maskPayloadLen + 1) // CMD + payload, as carried in LEN
)

// ErrBadFrame reports a frame that failed structural validation. The
// reader resynchronizes on the next start-of-frame pair and carries on.
var ErrBadFrame = errors.New("serialpads: bad frame")

// EncodeLevelMask builds the on-wire representation of a level-mask
// frame:
//
//	[SOF0][SOF1][LEN][CMD][mask_lo][mask_hi][CKS]
//
// The sensor board firmware sends these; the encoder lives here for tests
// and bench rigs that replay pad activity.
func EncodeLevelMask(mask uint16) []byte {
	payload := []byte{byte(mask), byte(mask >> 8)}

	length := byte(len(payload) + 1) // +1 for CMD byte
	cks := length ^ CmdLevelMask
	for _, b := range payload {
		cks ^= b
	}

	out := []byte{SOF0, SOF1, length, CmdLevelMask}
	out = append(out, payload...)
	out = append(out, cks)
	return out
}

// readFrame consumes one level-mask frame from r and returns the mask.
// CKS is LEN^CMD^payload; anything before a valid SOF pair is discarded
// so the reader can attach to a stream mid-frame.
func readFrame(r *bufio.Reader) (uint16, error) {
	if err := syncSOF(r); err != nil {
		return 0, err
	}

	length, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	if length != maskFrameLen {
		return 0, fmt.Errorf("%w: length %d", ErrBadFrame, length)
	}

	cmd, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	if cmd != CmdLevelMask {
		return 0, fmt.Errorf("%w: command 0x%02x", ErrBadFrame, cmd)
	}

	var payload [maskPayloadLen]byte
	if _, err := io.ReadFull(r, payload[:]); err != nil {
		return 0, err
	}

	cks, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	want := length ^ cmd ^ payload[0] ^ payload[1]
	if cks != want {
		return 0, fmt.Errorf("%w: checksum 0x%02x, want 0x%02x", ErrBadFrame, cks, want)
	}

	return uint16(payload[0]) | uint16(payload[1])<<8, nil
}

// syncSOF discards bytes until a start-of-frame pair is seen.
func syncSOF(r *bufio.Reader) error {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		if b != SOF0 {
			continue
		}
		b, err = r.ReadByte()
		if err != nil {
			return err
		}
		if b == SOF1 {
			return nil
		}
		if b == SOF0 {
			// Might itself start the pair; re-examine it.
			if err := r.UnreadByte(); err != nil {
				return err
			}
		}
	}
}
