// Package catalog holds the read-only tables wxscribe is configured with:
// supported media extensions, selectable languages and whisper model sizes.
package catalog

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

var (
	// ErrUnknownModel is returned for a model identifier outside Models.
	ErrUnknownModel = errors.New("unknown model")
	// ErrUnknownLanguage is returned for a language outside Languages.
	ErrUnknownLanguage = errors.New("unknown language")
)

var (
	audioExtensions = []string{".mp3", ".wav", ".m4a", ".ogg", ".flac", ".aac"}
	videoExtensions = []string{".mp4", ".mov", ".avi", ".mkv", ".webm", ".flv", ".wmv"}
)

// AudioExtensions returns the supported audio extensions, dot included.
func AudioExtensions() []string { return append([]string(nil), audioExtensions...) }

// VideoExtensions returns the supported video container extensions.
func VideoExtensions() []string { return append([]string(nil), videoExtensions...) }

// SupportedExtensions returns audio and video extensions in that order.
func SupportedExtensions() []string {
	return append(AudioExtensions(), videoExtensions...)
}

func hasExt(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}

// IsVideo reports whether path has a video container extension.
func IsVideo(path string) bool { return hasExt(path, videoExtensions) }

// IsSupported reports whether path has any supported extension.
func IsSupported(path string) bool {
	return hasExt(path, audioExtensions) || hasExt(path, videoExtensions)
}

// Language is one selectable transcription language.
type Language struct {
	Key  string // menu key, "1".."10"
	Code string // ISO 639-1
	Tag  language.Tag
}

// Name returns the language's name in the language itself ("Nederlands").
func (l Language) Name() string {
	return display.Self.Name(l.Tag)
}

// EnglishName returns the English name of the language ("Dutch").
func (l Language) EnglishName() string {
	return display.English.Languages().Name(l.Tag)
}

var languages = buildLanguages("nl", "en", "fr", "de", "es", "it", "pt", "ja", "zh", "ko")

func buildLanguages(codes ...string) []Language {
	out := make([]Language, 0, len(codes))
	for i, code := range codes {
		out = append(out, Language{
			Key:  fmt.Sprint(i + 1),
			Code: code,
			Tag:  language.MustParse(code),
		})
	}
	return out
}

// DefaultLanguage is the language used when none is chosen.
const DefaultLanguage = "nl"

// Languages returns the selectable languages in menu order.
func Languages() []Language { return append([]Language(nil), languages...) }

// LookupLanguage resolves a menu key or ISO code.
func LookupLanguage(keyOrCode string) (Language, error) {
	v := strings.ToLower(strings.TrimSpace(keyOrCode))
	for _, l := range languages {
		if l.Key == v || l.Code == v {
			return l, nil
		}
	}
	return Language{}, fmt.Errorf("%w: %q", ErrUnknownLanguage, keyOrCode)
}

// Model is one selectable whisper model size.
type Model struct {
	Key         string
	Name        string
	Description string
}

var models = []Model{
	{"1", "tiny", "39M params   - fastest, basic quality"},
	{"2", "base", "74M params   - fast, reasonable quality"},
	{"3", "small", "244M params  - good quality"},
	{"4", "medium", "769M params  - very good (recommended)"},
	{"5", "large", "1550M params - best quality, slow"},
	{"6", "large-v3", "1550M params - newest, best for Dutch"},
}

// DefaultModel is the model used when none is chosen.
const DefaultModel = "medium"

// Models returns the selectable models in menu order.
func Models() []Model { return append([]Model(nil), models...) }

// LookupModel resolves a menu key or model name.
func LookupModel(keyOrName string) (Model, error) {
	v := strings.ToLower(strings.TrimSpace(keyOrName))
	for _, m := range models {
		if m.Key == v || m.Name == v {
			return m, nil
		}
	}
	return Model{}, fmt.Errorf("%w: %q", ErrUnknownModel, keyOrName)
}
