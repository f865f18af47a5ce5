package export

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// UnknownDuration is shown when the recording length could not be probed.
const UnknownDuration = "Unknown"

// Extension of every exported transcript.
const Extension = ".docx"

// FormatTimestamp renders seconds as MM:SS, or HH:MM:SS from one hour on.
// Negative and non-finite inputs render as 00:00.
func FormatTimestamp(sec float64) string {
	if math.IsNaN(sec) || math.IsInf(sec, 0) || sec < 0 {
		sec = 0
	}
	total := int64(sec)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// FormatDuration renders a probed duration, or UnknownDuration when ok is
// false or the value is not a positive number.
func FormatDuration(sec float64, ok bool) string {
	if !ok || math.IsNaN(sec) || math.IsInf(sec, 0) || sec <= 0 {
		return UnknownDuration
	}
	return FormatTimestamp(sec)
}

// ResolveOutputPath returns <dir>/<stem>.docx, or the first free
// <dir>/<stem>_N.docx when that name is taken.
func ResolveOutputPath(dir, stem string) (string, error) {
	stem = cleanStem(stem)
	for n := 0; ; n++ {
		p := candidate(dir, stem, n)
		_, err := os.Lstat(p)
		if errors.Is(err, fs.ErrNotExist) {
			return p, nil
		}
		if err != nil {
			return "", fmt.Errorf("check output path %s: %w", p, err)
		}
	}
}

func candidate(dir, stem string, n int) string {
	if n == 0 {
		return filepath.Join(dir, stem+Extension)
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, n, Extension))
}

func cleanStem(stem string) string {
	stem = strings.TrimSpace(filepath.Base(stem))
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		return "transcript"
	}
	return stem
}
