package gwshare

import (
	"fmt"
	"strings"
)

const hexDumpRowLen = 16

// HexDump formats data as a "Dump" header line followed by rows of 16 bytes. Each row
// holds the bytes in hex, split into two groups of 8, then the printable ASCII
// rendering of the same bytes with '.' for anything outside 0x20-0x7E. A nil or empty
// slice produces only the header.
func HexDump(data []byte) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Dump (%d bytes)", len(data))
	for off := 0; off < len(data); off += hexDumpRowLen {
		end := off + hexDumpRowLen
		if end > len(data) {
			end = len(data)
		}
		sb.WriteByte('\n')
		writeHexDumpRow(&sb, data[off:end])
	}
	return sb.String()
}

func writeHexDumpRow(sb *strings.Builder, row []byte) {
	var hex, text strings.Builder
	for i, c := range row {
		if i > 0 {
			hex.WriteByte(' ')
			if i == 8 {
				hex.WriteByte(' ')
				text.WriteByte(' ')
			}
		}
		fmt.Fprintf(&hex, "%02X", c)
		if c >= 0x20 && c <= 0x7e {
			text.WriteByte(c)
		} else {
			text.WriteByte('.')
		}
	}
	// 16 bytes: 32 hex digits, 15 separators, one extra gap
	fmt.Fprintf(sb, "%-48s    %s", hex.String(), text.String())
}
