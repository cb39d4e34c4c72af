package pcsc

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ebfe/scard"

	"github.com/cardbridge/cardbridge/internal/core/domain"
	"github.com/cardbridge/cardbridge/internal/core/ports"
)

// Thai national ID applet and field addresses on the card's EF.
var (
	cmdSelect = []byte{0x00, 0xA4, 0x04, 0x00, 0x08, 0xA0, 0x00, 0x00, 0x00, 0x54, 0x48, 0x00, 0x01}

	cmdCID         = []byte{0x80, 0xB0, 0x00, 0x04, 0x02, 0x00, 0x0D}
	cmdThaiName    = []byte{0x80, 0xB0, 0x00, 0x11, 0x02, 0x00, 0x64}
	cmdEnglishName = []byte{0x80, 0xB0, 0x00, 0x75, 0x02, 0x00, 0x64}
	cmdDateOfBirth = []byte{0x80, 0xB0, 0x00, 0xD9, 0x02, 0x00, 0x08}
	cmdGender      = []byte{0x80, 0xB0, 0x00, 0xE1, 0x02, 0x00, 0x01}
	cmdIssuer      = []byte{0x80, 0xB0, 0x00, 0xF6, 0x02, 0x00, 0x64}
	cmdIssueDate   = []byte{0x80, 0xB0, 0x01, 0x67, 0x02, 0x00, 0x08}
	cmdExpireDate  = []byte{0x80, 0xB0, 0x01, 0x6F, 0x02, 0x00, 0x08}
	cmdAddress     = []byte{0x80, 0xB0, 0x15, 0x79, 0x02, 0x00, 0x64}
)

const (
	photoBaseOffset = 0x017B
	photoSegments   = 20
	photoSegmentLen = 0xFF
)

// Session is an open exclusive PC/SC connection with the Thai ID applet
// selected. Owned by the monitor; never used by two operations at once.
type Session struct {
	card *scard.Card
}

var _ ports.ReaderSession = (*Session)(nil)

// selectApplet activates the Thai ID applet. Failure here means no usable
// card is seated.
func (s *Session) selectApplet() error {
	if _, err := s.exchange(cmdSelect); err != nil {
		return err
	}
	return nil
}

// ReadCard performs the full field-by-field exchange. It blocks for hardware
// latency; including the photo adds 20 segmented reads and can take seconds.
func (s *Session) ReadCard(ctx context.Context, includePhoto bool) (*domain.CardRecord, error) {
	record := &domain.CardRecord{}

	fields := []struct {
		cmd  []byte
		dest *string
		conv func([]byte) string
	}{
		{cmdCID, &record.CID, decodeASCII},
		{cmdThaiName, &record.ThaiName, decodeName},
		{cmdEnglishName, &record.EnglishName, decodeName},
		{cmdDateOfBirth, &record.DateOfBirth, decodeDate},
		{cmdGender, &record.Gender, decodeGender},
		{cmdIssuer, &record.Issuer, decodeText},
		{cmdIssueDate, &record.IssueDate, decodeDate},
		{cmdExpireDate, &record.ExpireDate, decodeDate},
		{cmdAddress, &record.Address, decodeText},
	}

	for _, f := range fields {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrConnectionLost, err)
		}
		data, err := s.exchange(f.cmd)
		if err != nil {
			return nil, err
		}
		*f.dest = f.conv(data)
	}

	if includePhoto {
		photo, err := s.readPhoto(ctx)
		if err != nil {
			return nil, err
		}
		record.Photo = photo
	}

	return record, nil
}

// readPhoto reads the JPEG in fixed-size segments and strips the trailing
// padding the card pads the last segment with.
func (s *Session) readPhoto(ctx context.Context) ([]byte, error) {
	var buf bytes.Buffer
	for i := 0; i < photoSegments; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrConnectionLost, err)
		}
		offset := photoBaseOffset + i*photoSegmentLen
		cmd := []byte{0x80, 0xB0, byte(offset >> 8), byte(offset & 0xFF), 0x02, 0x00, photoSegmentLen}
		data, err := s.exchange(cmd)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	return bytes.TrimRight(buf.Bytes(), "\x00"), nil
}

// exchange transmits one APDU, following up with GET RESPONSE when the card
// signals pending data (SW1 0x61).
func (s *Session) exchange(cmd []byte) ([]byte, error) {
	resp, err := s.card.Transmit(cmd)
	if err != nil {
		return nil, mapError(err)
	}
	if len(resp) < 2 {
		return nil, fmt.Errorf("%w: short response (%d bytes)", domain.ErrDataRead, len(resp))
	}

	sw1, sw2 := resp[len(resp)-2], resp[len(resp)-1]
	if sw1 == 0x61 {
		resp, err = s.card.Transmit([]byte{0x00, 0xC0, 0x00, 0x00, sw2})
		if err != nil {
			return nil, mapError(err)
		}
		if len(resp) < 2 {
			return nil, fmt.Errorf("%w: short get-response (%d bytes)", domain.ErrDataRead, len(resp))
		}
		sw1, sw2 = resp[len(resp)-2], resp[len(resp)-1]
	}

	if sw1 != 0x90 || sw2 != 0x00 {
		return nil, fmt.Errorf("%w: status %02X%02X", domain.ErrCommand, sw1, sw2)
	}
	return resp[:len(resp)-2], nil
}

// Disconnect releases the session. Safe to call on a dead session.
func (s *Session) Disconnect() error {
	if err := s.card.Disconnect(scard.LeaveCard); err != nil {
		return mapError(err)
	}
	return nil
}
