package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"unicode"
)

// DiscoverFrames lists frame files directly inside dir in natural order,
// so frame_2.png sorts before frame_10.png.
func DiscoverFrames(dir string, include, exclude []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read frame directory %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if IsFrameFile(p) && shouldInclude(p, include, exclude) {
			files = append(files, p)
		}
	}
	sort.SliceStable(files, func(i, j int) bool {
		return naturalLess(filepath.Base(files[i]), filepath.Base(files[j]))
	})
	return files, nil
}

func shouldInclude(path string, include, exclude []string) bool {
	if matchesAny(path, exclude) {
		return false
	}
	if len(include) == 0 {
		return true
	}
	return matchesAny(path, include)
}

func matchesAny(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// naturalLess compares strings treating digit runs as numbers.
func naturalLess(a, b string) bool {
	ra, rb := []rune(a), []rune(b)
	i, j := 0, 0
	for i < len(ra) && j < len(rb) {
		if unicode.IsDigit(ra[i]) && unicode.IsDigit(rb[j]) {
			si := i
			for i < len(ra) && unicode.IsDigit(ra[i]) {
				i++
			}
			sj := j
			for j < len(rb) && unicode.IsDigit(rb[j]) {
				j++
			}
			na, nb := trimZeros(ra[si:i]), trimZeros(rb[sj:j])
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if s, t := string(na), string(nb); s != t {
				return s < t
			}
			continue
		}
		if ra[i] != rb[j] {
			return ra[i] < rb[j]
		}
		i++
		j++
	}
	return len(ra)-i < len(rb)-j
}

func trimZeros(r []rune) []rune {
	for len(r) > 1 && r[0] == '0' {
		r = r[1:]
	}
	return r
}
