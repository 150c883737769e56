package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cppla/uploader/config"
	"github.com/cppla/uploader/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRecoveryWithZap(t *testing.T) {
	// given
	core, logs := observer.New(zap.ErrorLevel)
	r := gin.New()
	r.Use(RecoveryWithZap(zap.New(core), true))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	// when
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	// then
	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body models.ErrorResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "internal server error", body.ErrorMessage)
	require.Equal(t, 1, logs.FilterMessage("[Recovery from panic]").Len())
}

func TestGinzap(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(Ginzap(zap.New(core), time.RFC3339, true))
	r.GET("/ok", func(c *gin.Context) {
		c.Set(RequestIDKey, "req-1")
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok?x=1", nil))

	entries := logs.FilterMessage("/ok").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.EqualValues(t, http.StatusNoContent, fields["status"])
	require.Equal(t, "x=1", fields["query"])
	require.Equal(t, "req-1", fields[RequestIDKey])
}

func TestGinzap_HandlerErrorStaysInfo(t *testing.T) {
	// given
	core, logs := observer.New(zap.DebugLevel)
	r := gin.New()
	r.Use(Ginzap(zap.New(core), time.RFC3339, true))
	r.POST("/upload", func(c *gin.Context) {
		_ = c.Error(errors.New("disk full"))
		c.Status(http.StatusInternalServerError)
	})

	// when
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/upload", nil))

	// then
	require.Zero(t, logs.FilterLevelExact(zap.ErrorLevel).Len())
	entries := logs.FilterLevelExact(zap.InfoLevel).All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.EqualValues(t, http.StatusInternalServerError, fields["status"])
	require.Contains(t, fields["errors"], "disk full")
}

func TestNewRollingFileLogger(t *testing.T) {
	_, err := NewRollingFileLogger("", "info", 1, 1, 1, false)
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "logs", "gin.log")
	l, err := NewRollingFileLogger(path, "info", 1, 1, 1, false)
	require.NoError(t, err)
	l.Info("hello")
	require.NoError(t, l.Sync())
	require.FileExists(t, path)
}

func TestServer_StopIsGraceful(t *testing.T) {
	// given
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := NewServer(ln.Addr().String(), handler, zap.NewNop(), time.Second)
	require.Equal(t, time.Second, srv.ReadHeaderTimeout)
	require.Zero(t, srv.ReadTimeout)
	require.Zero(t, srv.WriteTimeout)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String())
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// when
	srv.Stop()
	srv.Stop()

	// then
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_SlowBodyOutlivesHeaderTimeout(t *testing.T) {
	// given
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, err := io.Copy(io.Discard, r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = fmt.Fprint(w, n)
	})
	srv := NewServer(ln.Addr().String(), handler, zap.NewNop(), 100*time.Millisecond)
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(srv.Stop)

	pr, pw := io.Pipe()
	go func() {
		for i := 0; i < 5; i++ {
			time.Sleep(100 * time.Millisecond)
			if _, err := pw.Write([]byte("chunk")); err != nil {
				return
			}
		}
		_ = pw.Close()
	}()

	// when
	resp, err := http.Post("http://"+ln.Addr().String(), "application/octet-stream", pr)

	// then
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "25", string(body))
}

func TestInitLogger_WritesFile(t *testing.T) {
	cfg := config.Defaults()
	cfg.LogPath = filepath.Join(t.TempDir(), "app", "app.log")
	cfg.LogLevel = "warn"

	l, err := InitLogger(cfg)
	require.NoError(t, err)
	require.False(t, l.Core().Enabled(zap.InfoLevel))
	require.True(t, l.Core().Enabled(zap.WarnLevel))

	l.Warn("disk almost full")
	_ = l.Sync()
	require.FileExists(t, cfg.LogPath)
}
