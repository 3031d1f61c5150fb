package csv

import (
	"bufio"
	"bytes"
	"strings"
)

// DefaultDelimiters are the candidates DeduceDelimiter tries, in order of
// preference on a tie.
var DefaultDelimiters = []rune{',', ';', '\t', '|'}

type delimiterStats struct {
	delimiter rune
	highest   int
	lowest    int
}

func (s *delimiterStats) observe(line string) {
	n := strings.Count(line, string(s.delimiter))
	if s.highest < 0 || n > s.highest {
		s.highest = n
	}
	if s.lowest < 0 || n < s.lowest {
		s.lowest = n
	}
}

func (s delimiterStats) consistent() bool { return s.highest == s.lowest }

// better reports whether s is a more likely delimiter than best: a delimiter
// that occurs the same number of times on every line beats one that varies,
// and among equals the higher count wins.
func (s delimiterStats) better(best delimiterStats) bool {
	switch {
	case s.highest <= 0:
		return false
	case best.highest <= 0:
		return true
	case s.consistent() && !best.consistent():
		return true
	case s.consistent() == best.consistent():
		if s.lowest == 0 && best.lowest != 0 {
			return false
		}
		return s.highest > best.highest
	default:
		return false
	}
}

// DeduceDelimiter guesses the field delimiter from the first maxLines
// non-empty lines of data. It returns the first candidate when none occurs.
func DeduceDelimiter(data []byte, maxLines int, candidates []rune) rune {
	if len(candidates) == 0 {
		candidates = DefaultDelimiters
	}

	stats := make([]delimiterStats, len(candidates))
	for i, c := range candidates {
		stats[i] = delimiterStats{delimiter: c, highest: -1, lowest: -1}
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for seen := 0; seen < maxLines && sc.Scan(); {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		seen++
		for i := range stats {
			stats[i].observe(line)
		}
	}

	best := delimiterStats{delimiter: candidates[0]}
	for _, s := range stats {
		if s.better(best) {
			best = s
		}
	}
	return best.delimiter
}
