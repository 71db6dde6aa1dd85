package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// maxReadRunes caps how much of a file reaches the model.
const maxReadRunes = 4000

// confine resolves a raw user path against root and rejects anything that
// escapes it. Absolute inputs are reinterpreted relative to the root.
func confine(root, raw string) (string, error) {
	cleanedRoot := filepath.Clean(root)
	resolved := filepath.Join(cleanedRoot, filepath.Clean("/"+strings.TrimSpace(raw)))
	if resolved != cleanedRoot && !strings.HasPrefix(resolved, cleanedRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the allowed root", raw)
	}
	return resolved, nil
}

// FileRead reads a text file confined to a configured root directory.
type FileRead struct {
	root string
}

// NewFileRead creates the file read tool rooted at root.
func NewFileRead(root string) *FileRead {
	return &FileRead{root: root}
}

func (t *FileRead) Name() string { return "file_read" }

func (t *FileRead) Description() string {
	return "Read a text file from the workspace. Input: the file path relative to the workspace root."
}

// Invoke reads the file, capping output at 4000 runes.
func (t *FileRead) Invoke(ctx context.Context, input string) (*Result, error) {
	path, err := confine(t.root, pathFromInput(input))
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	text := string(raw)
	runes := []rune(text)
	truncated := false
	if len(runes) > maxReadRunes {
		text = string(runes[:maxReadRunes])
		truncated = true
	}

	var sb strings.Builder
	sb.WriteString(text)
	if truncated {
		fmt.Fprintf(&sb, "\n... [truncated, %d characters total]", len(runes))
	}
	return &Result{Text: sb.String()}, nil
}

// FileList lists directory entries confined to a configured root directory.
type FileList struct {
	root string
}

// NewFileList creates the directory listing tool rooted at root.
func NewFileList(root string) *FileList {
	return &FileList{root: root}
}

func (t *FileList) Name() string { return "file_list" }

func (t *FileList) Description() string {
	return "List files in a workspace directory. Input: the directory path relative to the workspace root (empty for the root itself)."
}

// Invoke lists the directory with per-entry name, size and kind.
func (t *FileList) Invoke(ctx context.Context, input string) (*Result, error) {
	path, err := confine(t.root, pathFromInput(input))
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("list directory: %w", err)
	}
	if len(entries) == 0 {
		return &Result{Text: "The directory is empty."}, nil
	}

	var sb strings.Builder
	data := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		kind := "file"
		if entry.IsDir() {
			kind = "dir"
		}
		fmt.Fprintf(&sb, "%s\t%s\t%d bytes\n", kind, entry.Name(), info.Size())
		data = append(data, map[string]interface{}{
			"name": entry.Name(),
			"size": info.Size(),
			"dir":  entry.IsDir(),
		})
	}
	return &Result{Text: sb.String(), Data: data}, nil
}
