package sms

import (
	"bytes"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// data_coding values handled by Encode and Decode.
const (
	CodingDefault uint8 = 0 // GSM 03.38 default alphabet, one septet per octet
	CodingLatin1  uint8 = 3 // ISO-8859-1 (decoded as windows-1252)
	CodingUCS2    uint8 = 8 // UCS-2 big endian
)

const gsmEscape = 0x1B

var (
	// GSM 03.38 positions that differ from ASCII
	gsmUtf8Chars = map[byte]rune{
		0x00: '@', 0x01: '£', 0x02: '$', 0x03: '¥', 0x04: 'è', 0x05: 'é', 0x06: 'ù', 0x07: 'ì',
		0x08: 'ò', 0x09: 'Ç', 0x0B: 'Ø', 0x0C: 'ø', 0x0E: 'Å', 0x0F: 'å',
		0x10: 'Δ', 0x11: '_', 0x12: 'Φ', 0x13: 'Γ', 0x14: 'Λ', 0x15: 'Ω', 0x16: 'Π', 0x17: 'Ψ',
		0x18: 'Σ', 0x19: 'Θ', 0x1A: 'Ξ', 0x1C: 'Æ', 0x1D: 'æ', 0x1E: 'ß', 0x1F: 'É',
		0x24: '¤', 0x40: '¡',
		0x5B: 'Ä', 0x5C: 'Ö', 0x5D: 'Ñ', 0x5E: 'Ü', 0x5F: '§', 0x60: '¿',
		0x7B: 'ä', 0x7C: 'ö', 0x7D: 'ñ', 0x7E: 'ü', 0x7F: 'à',
	}
	// extension table, reached through the escape character
	gsmExtChars = map[byte]rune{
		0x0A: '\f', 0x14: '^', 0x28: '{', 0x29: '}', 0x2F: '\\',
		0x3C: '[', 0x3D: '~', 0x3E: ']', 0x40: '|', 0x65: '€',
	}

	utf8GsmChars = reverse(gsmUtf8Chars)
	utf8ExtChars = reverse(gsmExtChars)
)

func reverse(m map[byte]rune) map[rune]byte {
	r := make(map[rune]byte, len(m))
	for b, c := range m {
		r[c] = b
	}
	return r
}

// Decode converts a short_message in the given data_coding to a string.
func Decode(code uint8, text []byte) string {
	switch code {
	case CodingUCS2:
		es, _, _ := transform.Bytes(
			unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder(), text)
		return string(es)
	case CodingLatin1: // latin1 (windows1252)
		es, _, _ := transform.Bytes(charmap.Windows1252.NewDecoder(), text)
		return string(es)
	case CodingDefault: // decode from GSM 03.38 format
		var result bytes.Buffer
		for i := 0; i < len(text); i++ {
			b := text[i]
			if b == gsmEscape && i+1 < len(text) {
				if r, ok := gsmExtChars[text[i+1]]; ok {
					result.WriteRune(r)
					i++
					continue
				}
			}
			if r, ok := gsmUtf8Chars[b]; ok { // make replacements for known symbols
				result.WriteRune(r)
				continue
			}
			result.WriteByte(b & 0x7F) // add as is
		}
		return result.String()
	default:
		return string(text)
	}
}

// Encode converts text to the given data_coding. Characters the GSM alphabet
// cannot carry become '?'.
func Encode(code uint8, text string) []byte {
	switch code { // depending on the suitable encoding, choose the corresponding encoding method
	case CodingUCS2:
		enc := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewEncoder()
		es, _, _ := transform.Bytes(enc, []byte(text))
		return es
	case CodingLatin1:
		es, _, _ := transform.Bytes(charmap.Windows1252.NewEncoder(), []byte(text))
		return es
	case CodingDefault: // encode to GSM 03.38
		var result bytes.Buffer
		for _, r := range text {
			if b, ok := utf8GsmChars[r]; ok { // make replacements for known symbols
				result.WriteByte(b)
				continue
			}
			if b, ok := utf8ExtChars[r]; ok {
				result.WriteByte(gsmEscape)
				result.WriteByte(b)
				continue
			}
			if r > '\u007F' || r == '`' { // remove everything that doesn't fit the format
				result.WriteByte('?')
				continue
			}
			result.WriteByte(byte(r)) // add as is
		}
		return result.Bytes()
	default:
		return []byte(text)
	}
}

// Coding picks the narrowest data_coding able to carry text.
func Coding(text string) uint8 {
	for _, r := range text {
		if r == '`' {
			return CodingUCS2
		}
		if r <= '\u007F' {
			continue
		}
		if _, ok := utf8GsmChars[r]; ok {
			continue
		}
		if _, ok := utf8ExtChars[r]; ok {
			continue
		}
		return CodingUCS2
	}
	return CodingDefault
}
