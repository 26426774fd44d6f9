package dictionary

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/tidwall/gjson"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// FileFormat represents the supported table file encodings
type FileFormat int

const (
	FormatUnknown FileFormat = iota
	FormatTOML
	FormatYAML
	FormatJSON
	FormatMsgpack
)

// FormatInfo contains metadata about a table file format
type FormatInfo struct {
	Format      FileFormat
	Description string
	Extensions  []string
	MinSize     int64 // Minimum expected file size in bytes
}

var supportedFormats = map[FileFormat]FormatInfo{
	FormatTOML: {
		Format:      FormatTOML,
		Description: "TOML Institution Table",
		Extensions:  []string{".toml"},
		MinSize:     1,
	},
	FormatYAML: {
		Format:      FormatYAML,
		Description: "YAML Institution Table",
		Extensions:  []string{".yaml", ".yml"},
		MinSize:     1,
	},
	FormatJSON: {
		Format:      FormatJSON,
		Description: "JSON Institution Table",
		Extensions:  []string{".json"},
		MinSize:     2, // {}
	},
	FormatMsgpack: {
		Format:      FormatMsgpack,
		Description: "MessagePack Institution Table",
		Extensions:  []string{".msgpack"},
		MinSize:     1, // fixmap header
	},
}

func (f FileFormat) String() string {
	if info, ok := GetFormatInfo(f); ok {
		return info.Description
	}
	return "unknown"
}

// DetectFileFormat picks a format from the file extension
func DetectFileFormat(filename string) (FileFormat, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	for format, info := range supportedFormats {
		for _, e := range info.Extensions {
			if ext == e {
				return format, nil
			}
		}
	}
	return FormatUnknown, fmt.Errorf("unable to detect format for file %s", filename)
}

// ValidateFileFormat checks that a file is large enough to hold a table of the given format
func ValidateFileFormat(filename string, format FileFormat) error {
	fileInfo, err := os.Stat(filename)
	if err != nil {
		return fmt.Errorf("failed to stat file %s: %w", filename, err)
	}

	formatInfo, exists := GetFormatInfo(format)
	if !exists {
		return fmt.Errorf("unknown format: %v", format)
	}

	if fileInfo.Size() < formatInfo.MinSize {
		return fmt.Errorf("file %s is too small (%d bytes) for format %s (minimum: %d bytes)",
			filename, fileInfo.Size(), formatInfo.Description, formatInfo.MinSize)
	}
	return nil
}

// GetFormatInfo returns information about a specific format
func GetFormatInfo(format FileFormat) (FormatInfo, bool) {
	info, exists := supportedFormats[format]
	return info, exists
}

// decode turns raw file contents into generic maps and slices.
func decode(format FileFormat, data []byte) (map[string]any, error) {
	out := make(map[string]any)

	switch format {
	case FormatTOML:
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&out); err != nil {
			return nil, err
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &out); err != nil {
			return nil, err
		}
	case FormatJSON:
		if !gjson.ValidBytes(data) {
			return nil, fmt.Errorf("invalid JSON")
		}
		m, ok := gjson.ParseBytes(data).Value().(map[string]any)
		if !ok {
			return nil, fmt.Errorf("top level JSON value is not an object")
		}
		out = m
	case FormatMsgpack:
		if err := msgpack.Unmarshal(data, &out); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown format: %v", format)
	}

	log.Debugf("Decoded %s with %d top level keys", format, len(out))
	return out, nil
}
