package chess

import "bytes"

var (
	fillToken   = []byte("FILL")
	strokeToken = []byte("STROKE")
)

// tintSVG swaps the FILL/STROKE placeholders of a piece template for concrete colors.
func tintSVG(svg []byte, fill, stroke string) []byte {
	out := bytes.ReplaceAll(svg, strokeToken, []byte(stroke))
	return bytes.ReplaceAll(out, fillToken, []byte(fill))
}
