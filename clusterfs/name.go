package clusterfs

import (
	"bytes"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"pageos/ustr"
)

// encode83 converts a long name into an 11-byte 8.3 short-name record
// (8 name bytes + 3 extension bytes, space-padded), transcoding through
// IBM code page 437 the way DOS-era FAT volumes store names, matching
// original_source's convert_standard_name_to_fat.
func encode83(name ustr.Ustr) [11]byte {
	var out [11]byte
	for i := range out {
		out[i] = ' '
	}
	base, ext, _ := strings.Cut(strings.ToUpper(string(name)), ".")
	enc := charmap.CodePage437.NewEncoder()
	b, _ := enc.Bytes([]byte(base))
	e, _ := enc.Bytes([]byte(ext))
	n := copy(out[0:8], b)
	if n == 0 {
		out[0] = '_'
	}
	copy(out[8:11], e)
	return out
}

// decode83 converts an 11-byte 8.3 record back into a display name,
// matching original_source's convert_fat_name.
func decode83(raw [11]byte) ustr.Ustr {
	dec := charmap.CodePage437.NewDecoder()
	base, _ := dec.Bytes(bytes.TrimRight(raw[0:8], " "))
	ext, _ := dec.Bytes(bytes.TrimRight(raw[8:11], " "))
	if len(ext) == 0 {
		return ustr.Ustr(string(base))
	}
	return ustr.Ustr(string(base) + "." + string(ext))
}
