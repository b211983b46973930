package board

import "bytes"

// sanitizeSVG strips the spaces oksvg's style parser chokes on.
func sanitizeSVG(svg []byte) []byte {
	fixed := bytes.ReplaceAll(svg, []byte("fill: #"), []byte("fill:#"))
	fixed = bytes.ReplaceAll(fixed, []byte("stroke: #"), []byte("stroke:#"))
	fixed = bytes.ReplaceAll(fixed, []byte("stop-color: #"), []byte("stop-color:#"))
	return fixed
}
