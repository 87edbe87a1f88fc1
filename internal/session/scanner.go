package session

// StopScanner finds a stop sequence in a byte stream that arrives in
// arbitrary fragments. Bytes that may be the start of the stop sequence are
// withheld until the match either completes or is ruled out. One scanner
// belongs to one generation.
type StopScanner struct {
	stop    []byte
	border  []int
	matched int
}

// NewStopScanner returns a scanner for stop. An empty stop never matches.
func NewStopScanner(stop string) *StopScanner {
	sc := &StopScanner{stop: []byte(stop), border: make([]int, len(stop))}
	// border[i] is the length of the longest proper prefix of stop[:i+1]
	// that is also its suffix.
	for i, k := 1, 0; i < len(sc.stop); i++ {
		for k > 0 && sc.stop[i] != sc.stop[k] {
			k = sc.border[k-1]
		}
		if sc.stop[i] == sc.stop[k] {
			k++
		}
		sc.border[i] = k
	}
	return sc
}

// Scan consumes fragment. It returns the bytes that are now known not to be
// part of the stop sequence, and whether the stop sequence completed. After a
// match, bytes of fragment past the match are discarded.
func (sc *StopScanner) Scan(fragment string) (string, bool) {
	if len(sc.stop) == 0 {
		return fragment, false
	}
	out := make([]byte, 0, len(fragment)+sc.matched)
	for i := 0; i < len(fragment); i++ {
		c := fragment[i]
		for sc.matched > 0 && sc.stop[sc.matched] != c {
			// Fall back to the longest withheld suffix that can still match
			// and release everything before it.
			k := sc.border[sc.matched-1]
			out = append(out, sc.stop[:sc.matched-k]...)
			sc.matched = k
		}
		if sc.stop[sc.matched] == c {
			sc.matched++
			if sc.matched == len(sc.stop) {
				sc.matched = 0
				return string(out), true
			}
			continue
		}
		out = append(out, c)
	}
	return string(out), false
}

// Held reports how many bytes are withheld as a possible match.
func (sc *StopScanner) Held() int { return sc.matched }

// Flush releases withheld bytes. Use when the stream ends without a match.
func (sc *StopScanner) Flush() string {
	out := string(sc.stop[:sc.matched])
	sc.matched = 0
	return out
}

// Reset forgets any partial match.
func (sc *StopScanner) Reset() { sc.matched = 0 }
