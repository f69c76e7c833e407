package binary

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net/http"

	"github.com/S1riyS/os-course-lab-4/memfs/internal/models"
)

// DirentNameSize is the fixed width of the name field, including the
// terminating zero byte.
const DirentNameSize = models.MaxNameLen + 1

// ResponseHeaderSize is the size of the return code that prefixes every response.
const ResponseHeaderSize = 8

func EncodeNodeMeta(meta *models.NodeMeta) ([]byte, error) {
	buf := new(bytes.Buffer)

	// ino (int64, 8 bytes)
	if err := binary.Write(buf, binary.LittleEndian, meta.Ino); err != nil {
		return nil, fmt.Errorf("failed to encode ino: %w", err)
	}

	// parent_ino (int64, 8 bytes)
	if err := binary.Write(buf, binary.LittleEndian, meta.ParentIno); err != nil {
		return nil, fmt.Errorf("failed to encode parent_ino: %w", err)
	}

	// type (int16, 2 bytes)
	if err := binary.Write(buf, binary.LittleEndian, int16(meta.Type)); err != nil {
		return nil, fmt.Errorf("failed to encode type: %w", err)
	}

	// mode (uint32, 4 bytes)
	if err := binary.Write(buf, binary.LittleEndian, meta.Mode); err != nil {
		return nil, fmt.Errorf("failed to encode mode: %w", err)
	}

	// size (int64, 8 bytes)
	if err := binary.Write(buf, binary.LittleEndian, meta.Size); err != nil {
		return nil, fmt.Errorf("failed to encode size: %w", err)
	}

	return buf.Bytes(), nil
}

func EncodeDirent(dirent *models.Dirent) ([]byte, error) {
	if len(dirent.Name) >= DirentNameSize {
		return nil, fmt.Errorf("name too long: %d bytes", len(dirent.Name))
	}

	buf := new(bytes.Buffer)

	// name (char[256], null-terminated, padded with zeros)
	nameBytes := make([]byte, DirentNameSize)
	copy(nameBytes, dirent.Name)
	if _, err := buf.Write(nameBytes); err != nil {
		return nil, fmt.Errorf("failed to encode name: %w", err)
	}

	// ino (int64, 8 bytes)
	if err := binary.Write(buf, binary.LittleEndian, dirent.Ino); err != nil {
		return nil, fmt.Errorf("failed to encode ino: %w", err)
	}

	// type (int16, 2 bytes)
	if err := binary.Write(buf, binary.LittleEndian, int16(dirent.Type)); err != nil {
		return nil, fmt.Errorf("failed to encode type: %w", err)
	}

	return buf.Bytes(), nil
}

// attrWire is the fixed layout of a getattr reply. Times are Unix nanoseconds.
type attrWire struct {
	Ino   int64
	Type  int16
	Mode  uint32
	Uid   uint32
	Gid   uint32
	Nlink uint32
	Size  int64
	Atime int64
	Mtime int64
	Ctime int64
}

func EncodeAttr(inode *models.Inode) ([]byte, error) {
	buf := new(bytes.Buffer)

	wire := attrWire{
		Ino:   inode.Ino,
		Type:  int16(inode.Type),
		Mode:  inode.FullMode(),
		Uid:   inode.Uid,
		Gid:   inode.Gid,
		Nlink: inode.Nlink,
		Size:  inode.Size,
		Atime: inode.Atime.UnixNano(),
		Mtime: inode.Mtime.UnixNano(),
		Ctime: inode.Ctime.UnixNano(),
	}
	if err := binary.Write(buf, binary.LittleEndian, &wire); err != nil {
		return nil, fmt.Errorf("failed to encode attr: %w", err)
	}

	return buf.Bytes(), nil
}

// EncodeOpen writes the handle id (uint64) followed by the node meta.
func EncodeOpen(handleID uint64, meta *models.NodeMeta) ([]byte, error) {
	buf := new(bytes.Buffer)

	if err := binary.Write(buf, binary.LittleEndian, handleID); err != nil {
		return nil, fmt.Errorf("failed to encode handle: %w", err)
	}

	metaBytes, err := EncodeNodeMeta(meta)
	if err != nil {
		return nil, err
	}
	buf.Write(metaBytes)

	return buf.Bytes(), nil
}

func EncodeStatFS(stats *models.StatFS) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, stats); err != nil {
		return nil, fmt.Errorf("failed to encode statfs: %w", err)
	}
	return buf.Bytes(), nil
}

func WriteResponse(w http.ResponseWriter, code int64, data []byte) error {
	response := new(bytes.Buffer)

	// Код возврата (int64, 8 bytes)
	if err := binary.Write(response, binary.LittleEndian, code); err != nil {
		return fmt.Errorf("failed to write response code: %w", err)
	}

	// Данные (если есть)
	if data != nil {
		if _, err := response.Write(data); err != nil {
			return fmt.Errorf("failed to write response data: %w", err)
		}
	}

	body := response.Bytes()

	// Set headers
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(body)))
	w.Header().Set("Connection", "close")
	w.WriteHeader(http.StatusOK)

	_, err := w.Write(body)
	return err
}

func WriteUint32Response(w http.ResponseWriter, code int64, value uint32) error {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, value); err != nil {
		return err
	}
	return WriteResponse(w, code, buf.Bytes())
}

func WriteInt64Response(w http.ResponseWriter, code int64, value int64) error {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, value); err != nil {
		return err
	}
	return WriteResponse(w, code, buf.Bytes())
}

func WriteUint64Response(w http.ResponseWriter, code int64, value uint64) error {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, value); err != nil {
		return err
	}
	return WriteResponse(w, code, buf.Bytes())
}
