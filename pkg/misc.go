package pkg

import (
	"bytes"
	"unicode"
	"unicode/utf8"
)

// Must panics if err is not nil.
func Must(err error) {
	if err != nil {
		panic(err)
	}
}

// Printable drops every non-printable byte, so raw frames can be shown next to their hex dump.
func Printable(str []byte) []byte {
	return bytes.Map(func(r rune) rune {
		// invalid UTF-8 arrives as RuneError, which IsPrint accepts
		if r != utf8.RuneError && unicode.IsPrint(r) {
			return r
		}
		return -1
	}, str)
}

// BigEndianWords splits a register response into 16-bit words. A trailing odd byte is ignored.
func BigEndianWords(b []byte) []uint16 {
	words := make([]uint16, len(b)/2)
	for i := range words {
		words[i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
	}
	return words
}
