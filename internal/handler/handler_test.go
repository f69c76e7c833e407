package handler

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"syscall"
	"testing"

	"github.com/S1riyS/os-course-lab-4/memfs/internal/models"
	"github.com/S1riyS/os-course-lab-4/memfs/internal/pkg/kerrors"
	"github.com/S1riyS/os-course-lab-4/memfs/internal/repository"
	"github.com/S1riyS/os-course-lab-4/memfs/internal/service"
	wire "github.com/S1riyS/os-course-lab-4/memfs/pkg/binary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type client struct {
	t   *testing.T
	srv *httptest.Server
}

func newTestServer(t *testing.T) *client {
	t.Helper()

	store := repository.NewStore(repository.Limits{})
	svc := service.NewFileSystemService(
		repository.NewFilesystemRepository(store),
		repository.NewInodeRepository(store),
		repository.NewDirectoryRepository(store),
		repository.NewContentRepository(store),
		repository.NewHandleRepository(),
		service.RootOptions{Mode: 0o777},
	)
	require.NoError(t, svc.Mount(context.Background()))

	mux := http.NewServeMux()
	NewHandler(svc, models.Caller{Uid: 1000, Gid: 1000}).RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &client{t: t, srv: srv}
}

// call performs a request and returns the status code and payload.
func (c *client) call(path string, params url.Values) (int64, []byte) {
	c.t.Helper()

	resp, err := http.Get(c.srv.URL + path + "?" + params.Encode())
	require.NoError(c.t, err)
	defer resp.Body.Close()
	require.Equal(c.t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)

	code, data, err := wire.ReadResponse(body)
	require.NoError(c.t, err)
	return code, data
}

func (c *client) meta(path string, params url.Values) *models.NodeMeta {
	c.t.Helper()

	code, data := c.call(path, params)
	require.Zero(c.t, code)
	meta, err := wire.DecodeNodeMeta(data)
	require.NoError(c.t, err)
	return meta
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func TestHealthCheck(t *testing.T) {
	c := newTestServer(t)

	resp, err := http.Get(c.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestMethodNotAllowed(t *testing.T) {
	c := newTestServer(t)

	resp, err := http.Post(c.srv.URL+"/api/get_root", "text/plain", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestInitTwice(t *testing.T) {
	c := newTestServer(t)

	code, _ := c.call("/api/init", nil)
	assert.Equal(t, -kerrors.EEXIST, code)
}

func TestNamespaceRoundTrip(t *testing.T) {
	c := newTestServer(t)

	root := c.meta("/api/get_root", nil)
	assert.Equal(t, models.RootIno, root.Ino)
	assert.Equal(t, uint32(models.S_IFDIR|0o777), root.Mode)

	dir := c.meta("/api/mkdir", url.Values{
		"parent": {itoa(models.RootIno)}, "name": {"dir1"}, "mode": {strconv.Itoa(0o755)},
	})
	assert.Equal(t, models.NodeTypeDir, dir.Type)
	assert.Equal(t, models.RootIno, dir.ParentIno)

	found := c.meta("/api/lookup", url.Values{"parent": {itoa(models.RootIno)}, "name": {"dir1"}})
	assert.Equal(t, dir.Ino, found.Ino)

	code, data := c.call("/api/iterate_dir", url.Values{"dir_ino": {itoa(models.RootIno)}, "offset": {"0"}})
	require.Zero(t, code)
	dirent, err := wire.DecodeDirent(data)
	require.NoError(t, err)
	assert.Equal(t, models.Dirent{Name: "dir1", Ino: dir.Ino, Type: models.NodeTypeDir}, *dirent)

	code, _ = c.call("/api/iterate_dir", url.Values{"dir_ino": {itoa(models.RootIno)}, "offset": {"1"}})
	assert.Equal(t, -kerrors.ENOENT, code)

	code, _ = c.call("/api/rename", url.Values{
		"old_parent": {itoa(models.RootIno)}, "old_name": {"dir1"},
		"new_parent": {itoa(models.RootIno)}, "new_name": {"dir2"},
	})
	require.Zero(t, code)

	code, _ = c.call("/api/rmdir", url.Values{"parent": {itoa(models.RootIno)}, "name": {"dir2"}})
	require.Zero(t, code)

	code, _ = c.call("/api/lookup", url.Values{"parent": {itoa(models.RootIno)}, "name": {"dir2"}})
	assert.Equal(t, -kerrors.ENOENT, code)
}

func TestLookupDotsReportsOwnParent(t *testing.T) {
	c := newTestServer(t)

	a := c.meta("/api/mkdir", url.Values{"parent": {itoa(models.RootIno)}, "name": {"a"}, "mode": {"493"}})
	b := c.meta("/api/mkdir", url.Values{"parent": {itoa(a.Ino)}, "name": {"b"}, "mode": {"493"}})

	up := c.meta("/api/lookup", url.Values{"parent": {itoa(b.Ino)}, "name": {".."}})
	assert.Equal(t, a.Ino, up.Ino)
	assert.Equal(t, models.RootIno, up.ParentIno)

	self := c.meta("/api/lookup", url.Values{"parent": {itoa(b.Ino)}, "name": {"."}})
	assert.Equal(t, b.Ino, self.Ino)
	assert.Equal(t, a.Ino, self.ParentIno)

	root := c.meta("/api/lookup", url.Values{"parent": {itoa(models.RootIno)}, "name": {".."}})
	assert.Equal(t, models.RootIno, root.Ino)
	assert.Equal(t, models.RootIno, root.ParentIno)
}

func TestFileReadWrite(t *testing.T) {
	c := newTestServer(t)

	file := c.meta("/api/create_file", url.Values{
		"parent": {itoa(models.RootIno)}, "name": {"f.txt"}, "mode": {strconv.Itoa(0o644)},
	})
	assert.Equal(t, uint32(models.S_IFREG|0o644), file.Mode)

	code, data := c.call("/api/open", url.Values{"ino": {itoa(file.Ino)}, "flags": {strconv.Itoa(syscall.O_RDWR)}})
	require.Zero(t, code)
	require.Len(t, data, 8)
	handle := strconv.FormatUint(binary.LittleEndian.Uint64(data), 10)

	payload := []byte("Hello, World!")
	code, data = c.call("/api/write", url.Values{
		"handle": {handle},
		"offset": {"0"},
		"len":    {strconv.Itoa(len(payload))},
		"data":   {base64.StdEncoding.EncodeToString(payload)},
	})
	require.Zero(t, code)
	assert.Equal(t, uint64(len(payload)), binary.LittleEndian.Uint64(data))

	code, data = c.call("/api/read", url.Values{"handle": {handle}, "offset": {"7"}, "len": {"100"}})
	require.Zero(t, code)
	assert.Equal(t, "World!", string(data))

	code, data = c.call("/api/getattr", url.Values{"ino": {itoa(file.Ino)}})
	require.Zero(t, code)
	assert.Equal(t, uint64(len(payload)), binary.LittleEndian.Uint64(data[26:34]))

	code, _ = c.call("/api/truncate", url.Values{"ino": {itoa(file.Ino)}, "size": {"5"}})
	require.Zero(t, code)

	code, _ = c.call("/api/release", url.Values{"handle": {handle}})
	require.Zero(t, code)
	code, _ = c.call("/api/read", url.Values{"handle": {handle}, "offset": {"0"}, "len": {"1"}})
	assert.Equal(t, -kerrors.EBADF, code)

	code, _ = c.call("/api/unlink", url.Values{"parent": {itoa(models.RootIno)}, "name": {"f.txt"}})
	require.Zero(t, code)
}

func TestCallerFromQuery(t *testing.T) {
	c := newTestServer(t)

	dir := c.meta("/api/mkdir", url.Values{
		"parent": {itoa(models.RootIno)}, "name": {"private"}, "mode": {strconv.Itoa(0o700)},
	})

	code, _ := c.call("/api/create_file", url.Values{
		"parent": {itoa(dir.Ino)}, "name": {"x"}, "mode": {"420"}, "uid": {"2000"}, "gid": {"2000"},
	})
	assert.Equal(t, -kerrors.EACCES, code)

	code, _ = c.call("/api/chmod", url.Values{"ino": {itoa(dir.Ino)}, "mode": {"511"}, "uid": {"2000"}})
	assert.Equal(t, -kerrors.EACCES, code)

	code, _ = c.call("/api/chmod", url.Values{"ino": {itoa(dir.Ino)}, "mode": {"511"}, "uid": {"0"}})
	assert.Zero(t, code)
}

func TestBadParameters(t *testing.T) {
	c := newTestServer(t)

	tests := []struct {
		path   string
		params url.Values
	}{
		{"/api/lookup", url.Values{"parent": {itoa(models.RootIno)}}},
		{"/api/lookup", url.Values{"parent": {"root"}, "name": {"x"}}},
		{"/api/mkdir", url.Values{"parent": {itoa(models.RootIno)}, "name": {"x"}, "mode": {"-1"}}},
		{"/api/read", url.Values{"handle": {"1"}, "offset": {"0"}}},
		{"/api/write", url.Values{"handle": {"1"}, "offset": {"0"}, "len": {"1"}, "data": {"***"}}},
		{"/api/write", url.Values{"handle": {"1"}, "offset": {"0"}, "len": {"10"}, "data": {"YQ=="}}},
		{"/api/lookup", url.Values{"parent": {itoa(models.RootIno)}, "name": {"x"}, "uid": {"nobody"}}},
	}

	for _, tt := range tests {
		t.Run(tt.path+"?"+tt.params.Encode(), func(t *testing.T) {
			code, _ := c.call(tt.path, tt.params)
			assert.Equal(t, -kerrors.EINVAL, code)
		})
	}
}

func TestStatFSAndDestroy(t *testing.T) {
	c := newTestServer(t)

	c.meta("/api/create_file", url.Values{"parent": {itoa(models.RootIno)}, "name": {"a"}, "mode": {"420"}})

	code, data := c.call("/api/statfs", nil)
	require.Zero(t, code)
	require.Len(t, data, 40)
	assert.Equal(t, uint64(2), binary.LittleEndian.Uint64(data[0:8]))

	code, _ = c.call("/api/destroy", nil)
	require.Zero(t, code)

	code, _ = c.call("/api/get_root", nil)
	assert.Equal(t, -kerrors.ENOTCONN, code)

	code, _ = c.call("/api/init", nil)
	require.Zero(t, code)
	root := c.meta("/api/get_root", nil)
	assert.Equal(t, models.RootIno, root.Ino)
}

func TestMapErrorToCode(t *testing.T) {
	assert.Equal(t, -kerrors.ENOENT, mapErrorToCode(kerrors.ErrNotFound))
	assert.Equal(t, -kerrors.ENOTEMPTY, mapErrorToCode(kerrors.New(kerrors.ErrDirectoryNotEmpty, "busy")))
	assert.Equal(t, -kerrors.EINTR, mapErrorToCode(context.Canceled))
	assert.Equal(t, kerrors.ENOMEM_NEG, mapErrorToCode(io.ErrUnexpectedEOF))
}
