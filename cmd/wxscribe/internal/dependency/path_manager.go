package dependency

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CompressedAudioName is the file name of the compressed copy of a large input.
const CompressedAudioName = "compressed_audio.wav"

// PathManager constructs and validates file paths inside one run workspace.
//
// Layout (flat):
//   - <stem>.wav: audio track extracted from a video input
//   - compressed_audio.wav: downsampled copy of an oversized input
type PathManager struct {
	baseDir string
}

// NewPathManager creates a new PathManager instance.
func NewPathManager(baseDir string) *PathManager {
	return &PathManager{baseDir: baseDir}
}

// BaseDir returns the workspace directory.
func (pm *PathManager) BaseDir() string {
	return pm.baseDir
}

// ConvertedAudioPath returns the path for the audio extracted from a video.
// Example: ConvertedAudioPath("talk") -> "<workspace>/talk.wav"
func (pm *PathManager) ConvertedAudioPath(stem string) string {
	name := filepath.Base(stem)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "audio"
	}
	return filepath.Join(pm.baseDir, name+".wav")
}

// CompressedAudioPath returns the path for the compressed copy of the input.
func (pm *PathManager) CompressedAudioPath() string {
	return filepath.Join(pm.baseDir, CompressedAudioName)
}

// ValidatePath checks that path is the workspace itself or lies inside it and
// is not a symbolic link.
func (pm *PathManager) ValidatePath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	absBaseDir, err := filepath.Abs(pm.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve workspace: %w", err)
	}

	rel, err := filepath.Rel(absBaseDir, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path %s is outside workspace (%s)", path, pm.baseDir)
	}

	info, err := os.Lstat(absPath)
	if err == nil && info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("symbolic links are not allowed: %s", path)
	}
	return nil
}
