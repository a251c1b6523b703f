package gate

// Flags holds one speech decision per classification frame.
type Flags []bool

// Count returns the number of speech frames.
func (f Flags) Count() int {
	n := 0
	for _, v := range f {
		if v {
			n++
		}
	}
	return n
}

// Mask expands the frame decisions to n samples of frameLen each. Samples
// past the last frame are non-speech.
func (f Flags) Mask(frameLen, n int) []bool {
	mask := make([]bool, n)
	for i, v := range f {
		if !v {
			continue
		}
		start := i * frameLen
		if start >= n {
			break
		}
		end := min(start+frameLen, n)
		for j := start; j < end; j++ {
			mask[j] = true
		}
	}
	return mask
}

// Dilate marks every frame within hang frames of a speech frame as speech.
// It is a binary dilation with a centred window of 2*hang+1 frames; hang <= 0
// returns a copy of flags.
func Dilate(flags Flags, hang int) Flags {
	out := make(Flags, len(flags))
	if hang <= 0 {
		copy(out, flags)
		return out
	}
	// Prefix sums give the speech count inside each window in O(n).
	prefix := make([]int, len(flags)+1)
	for i, v := range flags {
		prefix[i+1] = prefix[i]
		if v {
			prefix[i+1]++
		}
	}
	for i := range flags {
		lo := max(0, i-hang)
		hi := min(len(flags), i+hang+1)
		out[i] = prefix[hi]-prefix[lo] > 0
	}
	return out
}

// Segments returns each maximal run of speech frames as a time interval in
// seconds. Runs never overlap and are ordered by start.
func Segments(flags Flags, frameMs int) []Segment {
	frameSec := float64(frameMs) / 1000
	var segs []Segment
	start := -1
	for i, v := range flags {
		switch {
		case v && start < 0:
			start = i
		case !v && start >= 0:
			segs = append(segs, Segment{Start: float64(start) * frameSec, End: float64(i) * frameSec})
			start = -1
		}
	}
	if start >= 0 {
		segs = append(segs, Segment{Start: float64(start) * frameSec, End: float64(len(flags)) * frameSec})
	}
	return segs
}
