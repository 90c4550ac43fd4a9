package media

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
)

// frameExtensions lists the archive entry extensions accepted as frames.
var frameExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// stageFrames extracts the image entries of the zip archive at archivePath
// in to a frames directory inside the workspace. Entries are ordered
// lexicographically by name and renumbered in to a sequential frame_%06d
// sequence so the toolkit can consume them as a single pattern input.
// Every extracted entry is decoded and re-encoded as JPEG, which both
// verifies the entry really is an image and normalises mixed-format
// archives in to a uniform sequence.
func stageFrames(workspace *Workspace, archivePath string) (string, int, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		if errors.Is(err, zip.ErrFormat) {
			return "", 0, ErrNotAnArchive
		}

		return "", 0, fmt.Errorf("failed to open frame archive: %w", err)
	}
	defer reader.Close()

	entries := make([]*zip.File, 0, len(reader.File))
	for _, entry := range reader.File {
		if !isFrameEntry(entry) {
			continue
		}

		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		return "", 0, ErrNoFrames
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	framesDir, err := workspace.Mkdir("frames")
	if err != nil {
		return "", 0, err
	}

	for i, entry := range entries {
		if err := extractFrame(entry, filepath.Join(framesDir, fmt.Sprintf("frame_%06d.jpg", i))); err != nil {
			return "", 0, err
		}
	}

	return filepath.Join(framesDir, "frame_%06d.jpg"), len(entries), nil
}

func isFrameEntry(entry *zip.File) bool {
	if entry.FileInfo().IsDir() {
		return false
	}

	name := entry.Name
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(name, "__MACOSX") {
		return false
	}

	return frameExtensions[strings.ToLower(filepath.Ext(name))]
}

func extractFrame(entry *zip.File, destination string) error {
	source, err := entry.Open()
	if err != nil {
		return fmt.Errorf("failed to read archive entry %s: %w", entry.Name, err)
	}
	defer source.Close()

	frame, err := imaging.Decode(source)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnreadableFrame, entry.Name)
	}

	if err := imaging.Save(frame, destination); err != nil {
		return fmt.Errorf("failed to extract frame %s: %w", entry.Name, err)
	}

	return nil
}

// packageDirectory packages every regular file in the given directory in
// to an in-memory zip archive.
func packageDirectory(dir string) ([]byte, error) {
	buffer := &bytes.Buffer{}
	writer := zip.NewWriter(buffer)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to package %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		if err := packageFile(writer, dir, entry.Name()); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalise archive: %w", err)
	}

	return buffer.Bytes(), nil
}

func packageFile(writer *zip.Writer, dir string, name string) error {
	source, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("failed to package %s: %w", name, err)
	}
	defer source.Close()

	destination, err := writer.Create(name)
	if err != nil {
		return fmt.Errorf("failed to package %s: %w", name, err)
	}

	if _, err := io.Copy(destination, source); err != nil {
		return fmt.Errorf("failed to package %s: %w", name, err)
	}

	return nil
}
