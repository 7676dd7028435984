package reconstruct

import "fmt"

// Window is the half-open frame range [MinT, MaxT) reconstructed in one pass.
type Window struct {
	MinT int
	MaxT int
}

func (w Window) String() string {
	return fmt.Sprintf("[%d, %d)", w.MinT, w.MaxT)
}

// Windows splits [minT, maxT) into consecutive windows of size frames. The
// last window is cut at maxT.
func Windows(minT, maxT, size int) []Window {
	if size <= 0 {
		return nil
	}
	var out []Window
	for t := minT; t < maxT; t += size {
		out = append(out, Window{MinT: t, MaxT: min(t+size, maxT)})
	}
	return out
}
