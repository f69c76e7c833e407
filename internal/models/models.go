package models

import (
	"syscall"
	"time"
)

type NodeType int16

const (
	NodeTypeDir  NodeType = 0 // VTFS_NODE_DIR
	NodeTypeFile NodeType = 1 // VTFS_NODE_FILE
)

func (t NodeType) String() string {
	switch t {
	case NodeTypeDir:
		return "dir"
	case NodeTypeFile:
		return "file"
	default:
		return "unknown"
	}
}

// RootIno is the fixed id of the root directory.
const RootIno int64 = 1000

const (
	S_IFDIR = 0o040000 // Directory
	S_IFREG = 0o100000 // Regular file

	S_IRWXUGO = 0o0777 // Read, write, execute for owner, group, others
	S_IALLUGO = 0o7777 // Permission bits plus setuid, setgid, sticky
)

// MaxNameLen matches the fixed name field of the wire dirent.
const MaxNameLen = 255

// NodeMeta is the wire representation returned by lookup-style calls.
type NodeMeta struct {
	Ino       int64    `json:"ino"`
	ParentIno int64    `json:"parent_ino"`
	Type      NodeType `json:"type"`
	Mode      uint32   `json:"mode"` // umode_t
	Size      int64    `json:"size"`
}

type Dirent struct {
	Name string   `json:"name"`
	Ino  int64    `json:"ino"`
	Type NodeType `json:"type"`
}

// Inode is a point-in-time copy of an inode's attributes.
type Inode struct {
	Ino   int64
	Type  NodeType
	Mode  uint32 // permission bits only
	Uid   uint32
	Gid   uint32
	Size  int64
	Nlink uint32
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
}

func (i *Inode) IsDir() bool {
	return i.Type == NodeTypeDir
}

// FullMode returns the permission bits combined with the file type bits.
func (i *Inode) FullMode() uint32 {
	switch i.Type {
	case NodeTypeDir:
		return S_IFDIR | (i.Mode & S_IALLUGO)
	default:
		return S_IFREG | (i.Mode & S_IALLUGO)
	}
}

func (i *Inode) Meta(parentIno int64) *NodeMeta {
	return &NodeMeta{
		Ino:       i.Ino,
		ParentIno: parentIno,
		Type:      i.Type,
		Mode:      i.FullMode(),
		Size:      i.Size,
	}
}

// Caller identifies who issued an operation.
type Caller struct {
	Uid uint32
	Gid uint32
}

// Superuser is the uid 0 caller.
var Superuser = Caller{}

func (c Caller) IsSuperuser() bool {
	return c.Uid == 0
}

type OpenFlags uint32

const (
	FlagRead OpenFlags = 1 << iota
	FlagWrite
	FlagTruncate
	FlagAppend
)

func (f OpenFlags) CanRead() bool  { return f&FlagRead != 0 }
func (f OpenFlags) CanWrite() bool { return f&FlagWrite != 0 }
func (f OpenFlags) Truncate() bool { return f&FlagTruncate != 0 }
func (f OpenFlags) Append() bool   { return f&FlagAppend != 0 }

// OpenFlagsFromPOSIX converts open(2) flags into OpenFlags.
func OpenFlagsFromPOSIX(flags uint32) OpenFlags {
	var f OpenFlags
	switch int(flags) & syscall.O_ACCMODE {
	case syscall.O_RDONLY:
		f = FlagRead
	case syscall.O_WRONLY:
		f = FlagWrite
	case syscall.O_RDWR:
		f = FlagRead | FlagWrite
	}
	if int(flags)&syscall.O_TRUNC != 0 {
		f |= FlagTruncate
	}
	if int(flags)&syscall.O_APPEND != 0 {
		f |= FlagAppend
	}
	return f
}

// Handle is an open instance of a file.
type Handle struct {
	ID    uint64
	Ino   int64
	Flags OpenFlags
}

type StatFS struct {
	Inodes     int64
	MaxInodes  int64
	Bytes      int64
	MaxFile    int64
	OpenHandle int64
}
