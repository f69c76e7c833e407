package binary

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/S1riyS/os-course-lab-4/memfs/internal/models"
)

// ReadResponse splits a response body into its return code and payload.
func ReadResponse(body []byte) (int64, []byte, error) {
	if len(body) < ResponseHeaderSize {
		return 0, nil, fmt.Errorf("short response: %d bytes", len(body))
	}
	code := int64(binary.LittleEndian.Uint64(body[:ResponseHeaderSize]))
	return code, body[ResponseHeaderSize:], nil
}

func DecodeNodeMeta(data []byte) (*models.NodeMeta, error) {
	r := bytes.NewReader(data)

	var meta models.NodeMeta
	var typ int16
	for _, field := range []any{&meta.Ino, &meta.ParentIno, &typ, &meta.Mode, &meta.Size} {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return nil, fmt.Errorf("failed to decode node meta: %w", err)
		}
	}
	meta.Type = models.NodeType(typ)

	return &meta, nil
}

func DecodeDirent(data []byte) (*models.Dirent, error) {
	if len(data) < DirentNameSize {
		return nil, fmt.Errorf("short dirent: %d bytes", len(data))
	}

	name, _, _ := bytes.Cut(data[:DirentNameSize], []byte{0})
	r := bytes.NewReader(data[DirentNameSize:])

	dirent := models.Dirent{Name: string(name)}
	var typ int16
	if err := binary.Read(r, binary.LittleEndian, &dirent.Ino); err != nil {
		return nil, fmt.Errorf("failed to decode ino: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &typ); err != nil {
		return nil, fmt.Errorf("failed to decode type: %w", err)
	}
	dirent.Type = models.NodeType(typ)

	return &dirent, nil
}
