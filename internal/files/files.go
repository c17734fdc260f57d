// Package files loads outgoing attachments and stores received ones.
package files

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/nikelwish/p2p-service/internal/protocol"
	"github.com/nikelwish/p2p-service/internal/utils"
)

// ErrFileTooLarge is returned before anything touches the network.
var ErrFileTooLarge = protocol.ErrFileTooLarge

// Attachment is a file read into memory and ready to send.
type Attachment struct {
	Name     string
	MimeType string
	Data     []byte
}

func (a Attachment) Message() protocol.FileMessage {
	return protocol.File(a.Name, a.MimeType, a.Data)
}

// Load validates path and reads it.
func Load(path string) (Attachment, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Attachment{}, fmt.Errorf("%s: failed to get absolute path: %w", path, err)
	}

	stat, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Attachment{}, fmt.Errorf("%s: file does not exist", path)
		}
		return Attachment{}, fmt.Errorf("%s: failed to stat file: %w", path, err)
	}
	if stat.IsDir() {
		return Attachment{}, fmt.Errorf("%s: is a directory", path)
	}
	if stat.Size() > protocol.MaxFileSize {
		return Attachment{}, fmt.Errorf("%s (%s): %w", path, utils.FormatSize(stat.Size()), ErrFileTooLarge)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Attachment{}, fmt.Errorf("%s: cannot read file (check permissions): %w", path, err)
	}
	if len(data) > protocol.MaxFileSize {
		return Attachment{}, fmt.Errorf("%s: %w", path, ErrFileTooLarge)
	}

	return Attachment{
		Name:     filepath.Base(absPath),
		MimeType: DetectMime(absPath),
		Data:     data,
	}, nil
}

// DetectMime guesses a MIME type from the file extension.
func DetectMime(name string) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// Save writes a received file into dir without overwriting anything and
// returns where it landed.
func Save(dir string, msg protocol.FileMessage) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create download dir: %w", err)
	}

	name := filepath.Base(msg.Name)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "download"
	}
	path := utils.UniquePath(filepath.Join(dir, name))
	if err := os.WriteFile(path, msg.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", name, err)
	}
	return path, nil
}
