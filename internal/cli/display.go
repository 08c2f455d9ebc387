package cli

import (
	"encoding/hex"
	"unicode"
	"unicode/utf8"
)

// displayMessage renders a chain message for a terminal: printable UTF-8 is
// shown as is, anything else as 0x-prefixed hex.
func displayMessage(msg []byte) string {
	if !utf8.Valid(msg) {
		return "0x" + hex.EncodeToString(msg)
	}
	for _, r := range string(msg) {
		if !unicode.IsPrint(r) && r != '\n' && r != '\t' {
			return "0x" + hex.EncodeToString(msg)
		}
	}
	return string(msg)
}
