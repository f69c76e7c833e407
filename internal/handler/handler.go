package handler

import (
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/S1riyS/os-course-lab-4/memfs/internal/models"
	"github.com/S1riyS/os-course-lab-4/memfs/internal/pkg/kerrors"
	"github.com/S1riyS/os-course-lab-4/memfs/internal/service"
	"github.com/S1riyS/os-course-lab-4/memfs/pkg/binary"
	"github.com/S1riyS/os-course-lab-4/memfs/pkg/logging"
	"github.com/S1riyS/os-course-lab-4/memfs/pkg/logging/slogext"
)

type Handler struct {
	service service.FileSystemService

	// defaultCaller is used for requests without uid/gid parameters.
	defaultCaller models.Caller
}

func NewHandler(service service.FileSystemService, defaultCaller models.Caller) *Handler {
	return &Handler{service: service, defaultCaller: defaultCaller}
}

func (h *Handler) HandleInit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	const op = "handler.HandleInit"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	if err := h.service.Mount(ctx); err != nil {
		respondError(w, logger, err)
		return
	}

	respond(w, logger, 0, nil)
}

func (h *Handler) HandleDestroy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	const op = "handler.HandleDestroy"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	if err := h.service.Unmount(ctx); err != nil {
		respondError(w, logger, err)
		return
	}

	respond(w, logger, 0, nil)
}

func (h *Handler) HandleGetRoot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	const op = "handler.HandleGetRoot"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	inode, err := h.service.GetRoot(ctx)
	if err != nil {
		respondError(w, logger, err)
		return
	}

	respondMeta(w, logger, inode.Meta(models.RootIno))
}

func (h *Handler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	const op = "handler.HandleLookup"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	p := newParams(r)
	caller := h.caller(p)
	parent := p.int64("parent")
	name := p.str("name")
	if p.err != nil {
		respondBadRequest(w, logger, p.err)
		return
	}

	inode, err := h.service.Lookup(ctx, caller, parent, name)
	if err != nil {
		respondError(w, logger, err)
		return
	}

	// "." and ".." resolve to a directory whose parent is not parent.
	if inode.IsDir() && (name == "." || name == "..") {
		parent, err = h.service.Parent(ctx, inode.Ino)
		if err != nil {
			respondError(w, logger, err)
			return
		}
	}

	respondMeta(w, logger, inode.Meta(parent))
}

func (h *Handler) HandleGetAttr(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	const op = "handler.HandleGetAttr"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	p := newParams(r)
	ino := p.int64("ino")
	if p.err != nil {
		respondBadRequest(w, logger, p.err)
		return
	}

	inode, err := h.service.GetAttr(ctx, ino)
	if err != nil {
		respondError(w, logger, err)
		return
	}

	data, err := binary.EncodeAttr(inode)
	if err != nil {
		logger.Error("Failed to encode attr", slogext.Err(err))
		respond(w, logger, kerrors.ENOMEM_NEG, nil)
		return
	}

	respond(w, logger, 0, data)
}

func (h *Handler) HandleIterateDir(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	const op = "handler.HandleIterateDir"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	p := newParams(r)
	caller := h.caller(p)
	dirIno := p.int64("dir_ino")
	offset := p.uint64("offset")
	if p.err != nil {
		respondBadRequest(w, logger, p.err)
		return
	}

	dirent, err := h.service.IterateDir(ctx, caller, dirIno, &offset)
	if err != nil {
		respondError(w, logger, err)
		return
	}

	data, err := binary.EncodeDirent(dirent)
	if err != nil {
		logger.Error("Failed to encode dirent", slogext.Err(err))
		respond(w, logger, kerrors.ENOMEM_NEG, nil)
		return
	}

	respond(w, logger, 0, data)
}

func (h *Handler) HandleCreateFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	const op = "handler.HandleCreateFile"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	p := newParams(r)
	caller := h.caller(p)
	parent := p.int64("parent")
	name := p.str("name")
	mode := p.uint32("mode")
	if p.err != nil {
		respondBadRequest(w, logger, p.err)
		return
	}

	inode, err := h.service.CreateFile(ctx, caller, parent, name, mode)
	if err != nil {
		respondError(w, logger, err)
		return
	}

	respondMeta(w, logger, inode.Meta(parent))
}

func (h *Handler) HandleMkdir(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	const op = "handler.HandleMkdir"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	p := newParams(r)
	caller := h.caller(p)
	parent := p.int64("parent")
	name := p.str("name")
	mode := p.uint32("mode")
	if p.err != nil {
		respondBadRequest(w, logger, p.err)
		return
	}

	inode, err := h.service.Mkdir(ctx, caller, parent, name, mode)
	if err != nil {
		respondError(w, logger, err)
		return
	}

	respondMeta(w, logger, inode.Meta(parent))
}

func (h *Handler) HandleUnlink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	const op = "handler.HandleUnlink"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	p := newParams(r)
	caller := h.caller(p)
	parent := p.int64("parent")
	name := p.str("name")
	if p.err != nil {
		respondBadRequest(w, logger, p.err)
		return
	}

	if err := h.service.Unlink(ctx, caller, parent, name); err != nil {
		respondError(w, logger, err)
		return
	}

	respond(w, logger, 0, nil)
}

func (h *Handler) HandleRmdir(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	const op = "handler.HandleRmdir"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	p := newParams(r)
	caller := h.caller(p)
	parent := p.int64("parent")
	name := p.str("name")
	if p.err != nil {
		respondBadRequest(w, logger, p.err)
		return
	}

	if err := h.service.Rmdir(ctx, caller, parent, name); err != nil {
		respondError(w, logger, err)
		return
	}

	respond(w, logger, 0, nil)
}

func (h *Handler) HandleRename(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	const op = "handler.HandleRename"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	p := newParams(r)
	caller := h.caller(p)
	oldParent := p.int64("old_parent")
	oldName := p.str("old_name")
	newParent := p.int64("new_parent")
	newName := p.str("new_name")
	if p.err != nil {
		respondBadRequest(w, logger, p.err)
		return
	}

	if err := h.service.Rename(ctx, caller, oldParent, oldName, newParent, newName); err != nil {
		respondError(w, logger, err)
		return
	}

	respond(w, logger, 0, nil)
}

// HandleOpen takes open(2) flags and returns the new handle id.
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	const op = "handler.HandleOpen"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	p := newParams(r)
	caller := h.caller(p)
	ino := p.int64("ino")
	flags := p.uint32("flags")
	if p.err != nil {
		respondBadRequest(w, logger, p.err)
		return
	}

	handle, err := h.service.Open(ctx, caller, ino, models.OpenFlagsFromPOSIX(flags))
	if err != nil {
		respondError(w, logger, err)
		return
	}

	if err := binary.WriteUint64Response(w, 0, handle.ID); err != nil {
		logger.Debug("Failed to write response", slogext.Err(err))
	}
}

func (h *Handler) HandleRelease(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	const op = "handler.HandleRelease"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	p := newParams(r)
	handle := p.uint64("handle")
	if p.err != nil {
		respondBadRequest(w, logger, p.err)
		return
	}

	if err := h.service.Release(ctx, handle); err != nil {
		respondError(w, logger, err)
		return
	}

	respond(w, logger, 0, nil)
}

func (h *Handler) HandleRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	const op = "handler.HandleRead"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	p := newParams(r)
	handle := p.uint64("handle")
	length := p.int64("len")
	offset := p.int64("offset")
	if p.err != nil {
		respondBadRequest(w, logger, p.err)
		return
	}

	data, err := h.service.Read(ctx, handle, offset, length)
	if err != nil {
		respondError(w, logger, err)
		return
	}

	// Возвращаем только прочитанные байты
	respond(w, logger, 0, data)
}

func (h *Handler) HandleWrite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	const op = "handler.HandleWrite"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	p := newParams(r)
	handle := p.uint64("handle")
	length := p.uint64("len")
	offset := p.int64("offset")
	dataBase64 := p.str("data")
	if p.err != nil {
		respondBadRequest(w, logger, p.err)
		return
	}

	data, err := base64.StdEncoding.DecodeString(dataBase64)
	if err != nil {
		respondBadRequest(w, logger, err)
		return
	}

	// Проверка, что длина буфера достаточна для запроса
	if uint64(len(data)) < length {
		logger.Warn("Buffer size is less than requested length",
			slog.Uint64("requested_length", length),
			slog.Int("buffer_size", len(data)))
		respond(w, logger, kerrors.EINVAL_NEG, nil)
		return
	}

	written, err := h.service.Write(ctx, handle, offset, data[:length])
	if err != nil {
		respondError(w, logger, err)
		return
	}

	// Возвращаем количество записанных байт
	if err := binary.WriteInt64Response(w, 0, written); err != nil {
		logger.Debug("Failed to write response", slogext.Err(err))
	}
}

func (h *Handler) HandleTruncate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	const op = "handler.HandleTruncate"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	p := newParams(r)
	caller := h.caller(p)
	ino := p.int64("ino")
	size := p.int64("size")
	if p.err != nil {
		respondBadRequest(w, logger, p.err)
		return
	}

	if err := h.service.Truncate(ctx, caller, ino, size); err != nil {
		respondError(w, logger, err)
		return
	}

	respond(w, logger, 0, nil)
}

func (h *Handler) HandleChmod(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	const op = "handler.HandleChmod"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	p := newParams(r)
	caller := h.caller(p)
	ino := p.int64("ino")
	mode := p.uint32("mode")
	if p.err != nil {
		respondBadRequest(w, logger, p.err)
		return
	}

	if err := h.service.Chmod(ctx, caller, ino, mode); err != nil {
		respondError(w, logger, err)
		return
	}

	respond(w, logger, 0, nil)
}

func (h *Handler) HandleStatFS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	const op = "handler.HandleStatFS"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	stats, err := h.service.StatFS(ctx)
	if err != nil {
		respondError(w, logger, err)
		return
	}

	data, err := binary.EncodeStatFS(stats)
	if err != nil {
		logger.Error("Failed to encode statfs", slogext.Err(err))
		respond(w, logger, kerrors.ENOMEM_NEG, nil)
		return
	}

	respond(w, logger, 0, data)
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	response := `{"status":"ok","service":"memfs"}`
	w.Write([]byte(response))
}

func (h *Handler) caller(p *params) models.Caller {
	return models.Caller{
		Uid: p.optUint32("uid", h.defaultCaller.Uid),
		Gid: p.optUint32("gid", h.defaultCaller.Gid),
	}
}

func respond(w http.ResponseWriter, logger *slog.Logger, code int64, data []byte) {
	if err := binary.WriteResponse(w, code, data); err != nil {
		logger.Debug("Failed to write response", slogext.Err(err))
	}
}

func respondMeta(w http.ResponseWriter, logger *slog.Logger, meta *models.NodeMeta) {
	data, err := binary.EncodeNodeMeta(meta)
	if err != nil {
		logger.Error("Failed to encode node meta", slogext.Err(err))
		respond(w, logger, kerrors.ENOMEM_NEG, nil)
		return
	}
	respond(w, logger, 0, data)
}

func respondBadRequest(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Debug("Bad request", slogext.Err(err))
	respond(w, logger, kerrors.EINVAL_NEG, nil)
}

func respondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	code := mapErrorToCode(err)
	logger.Debug("Returning error code", slog.Int64("error_code", code), slogext.Err(err))
	respond(w, logger, code, nil)
}

// mapErrorToCode returns the negative errno sent on the wire.
func mapErrorToCode(err error) int64 {
	return -kerrors.CodeOf(err)
}
