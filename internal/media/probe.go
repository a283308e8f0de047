package media

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dhowden/tag"

	"vocal-splitter/internal/domain"
)

// SupportedExtensions lists the file types offered by the input dialog.
// Other files are still accepted; the separator decides what it can decode.
var SupportedExtensions = map[string]string{
	".mp3": "MP3",
	".wav": "WAV",
}

// DialogPattern is the semicolon separated filter used by native dialogs.
const DialogPattern = "*.mp3;*.wav"

// Inspect reads the file type and any embedded tags of an input file.
// Missing or unreadable tags are not an error.
func Inspect(path string) (domain.InputInfo, error) {
	info := domain.InputInfo{
		Path:     path,
		FileType: fileTypeFromExtension(path),
	}

	file, err := os.Open(path)
	if err != nil {
		return info, errors.Wrapf(err, "open %s", path)
	}
	defer file.Close()

	metadata, err := tag.ReadFrom(file)
	if err != nil || metadata == nil {
		return info, nil
	}

	info.Title = cleanString(metadata.Title())
	info.Artist = cleanString(metadata.Artist())
	info.Album = cleanString(metadata.Album())
	info.HasTags = info.Title != "" || info.Artist != "" || info.Album != ""
	if info.FileType == "" {
		info.FileType = string(metadata.FileType())
	}
	return info, nil
}

// Describe renders a one-line summary for the status log.
// It returns false when the file carries nothing worth reporting.
func Describe(info domain.InputInfo) (string, bool) {
	if !info.HasTags || (info.Title == "" && info.Artist == "") {
		return "", false
	}

	fileType := info.FileType
	if fileType == "" {
		fileType = "unknown"
	}
	artist := info.Artist
	if artist == "" {
		artist = "Unknown artist"
	}
	title := info.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(info.Path), filepath.Ext(info.Path))
	}
	return "Detected " + fileType + " audio: " + artist + " - " + title, true
}

func fileTypeFromExtension(path string) string {
	return SupportedExtensions[strings.ToLower(filepath.Ext(path))]
}

func cleanString(value string) string {
	return strings.TrimSpace(strings.Trim(value, "\x00"))
}
