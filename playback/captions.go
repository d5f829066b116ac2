package playback

import (
	"bytes"
	"strings"

	"github.com/rs/zerolog"
	"github.com/zsiec/ccx"

	"github.com/crucifix86/JellyTV/internal/ffmpeg"
)

// SubtitleDecoder converts subtitle packets into overlays. Text codecs carry
// their text in the packet payload; EIA-608 streams carry closed-caption
// byte pairs that accumulate into lines.
type SubtitleDecoder struct {
	codecID int32
	cea608  *ccx.CEA608Decoder
	log     zerolog.Logger
}

// NewSubtitleDecoder builds a decoder for the given subtitle stream, or nil
// when the codec is not supported.
func NewSubtitleDecoder(info StreamInfo, log zerolog.Logger) *SubtitleDecoder {
	d := &SubtitleDecoder{
		codecID: info.codecID,
		log:     log.With().Str("component", "subtitle-decoder").Str("codec", info.Codec).Logger(),
	}
	switch info.codecID {
	case ffmpeg.CodecIDEIA608:
		d.cea608 = ccx.NewCEA608Decoder()
	case ffmpeg.CodecIDText, ffmpeg.CodecIDSRT, ffmpeg.CodecIDMovText, ffmpeg.CodecIDSSA:
	default:
		return nil
	}
	return d
}

// Decode turns one subtitle packet into zero or more overlays. Overlay
// timestamps are seconds; a packet without duration produces an open-ended
// overlay.
func (d *SubtitleDecoder) Decode(p *Packet) []Overlay {
	start := float64(p.PTS) / 1000
	stop := 0.0
	if p.DurationMs > 0 {
		stop = start + float64(p.DurationMs)/1000
	}

	var text string
	switch d.codecID {
	case ffmpeg.CodecIDEIA608:
		text = d.decode608(p.Data())
	case ffmpeg.CodecIDMovText:
		text = movText(p.Data())
	case ffmpeg.CodecIDSSA:
		text = dialogueText(string(p.Data()))
	default:
		text = strings.TrimRight(string(p.Data()), "\x00\r\n")
	}
	if text == "" {
		return nil
	}
	return []Overlay{{
		Type:     OverlayText,
		Text:     text,
		PTSStart: start,
		PTSStop:  stop,
	}}
}

// decode608 feeds closed-caption byte pairs to the line decoder. MOV c608
// samples wrap the pairs in a cdat atom.
func (d *SubtitleDecoder) decode608(payload []byte) string {
	if len(payload) >= 8 && (bytes.Equal(payload[4:8], []byte("cdat")) || bytes.Equal(payload[4:8], []byte("cdt2"))) {
		payload = payload[8:]
	}
	var out strings.Builder
	for i := 0; i+1 < len(payload); i += 2 {
		line := d.cea608.Decode(payload[i], payload[i+1])
		if line != "" {
			if out.Len() > 0 {
				out.WriteByte('\n')
			}
			out.WriteString(line)
		}
	}
	return out.String()
}

// movText extracts the text from a tx3g sample: 16-bit big-endian length
// followed by UTF-8.
func movText(payload []byte) string {
	if len(payload) < 2 {
		return ""
	}
	n := int(payload[0])<<8 | int(payload[1])
	payload = payload[2:]
	if n > len(payload) {
		n = len(payload)
	}
	return strings.TrimRight(string(payload[:n]), "\x00")
}

// dialogueText strips the event prefix from an ASS dialogue packet,
// "ReadOrder,Layer,Style,Name,MarginL,MarginR,MarginV,Effect,Text", keeping
// only the text field, and converts soft line breaks.
func dialogueText(s string) string {
	fields := strings.SplitN(s, ",", 9)
	text := fields[len(fields)-1]
	text = strings.ReplaceAll(text, `\N`, "\n")
	text = strings.ReplaceAll(text, `\n`, "\n")
	// Drop inline style override blocks.
	for {
		open := strings.Index(text, "{")
		if open < 0 {
			break
		}
		end := strings.Index(text[open:], "}")
		if end < 0 {
			break
		}
		text = text[:open] + text[open+end+1:]
	}
	return strings.TrimSpace(text)
}
