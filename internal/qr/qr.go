// Package qr renders the admission QR artifact. Rendering is best-effort:
// a failure yields a nil image, never a request failure.
package qr

import (
	"strconv"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/rs/zerolog"
)

// Payload joins the participant id with the registration ids; the scanner at
// the gate splits on the same separator.
func Payload(participantID int64, regIDs []string) string {
	parts := append([]string{strconv.FormatInt(participantID, 10)}, regIDs...)
	return strings.Join(parts, "|")
}

// ParsePayload returns the participant id and registration ids, or ok=false
// for payloads this system did not produce.
func ParsePayload(payload string) (int64, []string, bool) {
	parts := strings.Split(payload, "|")
	if len(parts) < 2 {
		return 0, nil, false
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, nil, false
	}
	return id, parts[1:], true
}

type Renderer interface {
	Encode(payload string) []byte
}

type renderer struct {
	log *zerolog.Logger
}

func NewRenderer(log *zerolog.Logger) Renderer {
	return &renderer{log: log}
}

func (r *renderer) Encode(payload string) []byte {
	png, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		r.log.Warn().Err(err).Msg("qr render failed")
		return nil
	}
	return png
}
