package cli

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/stepwise/internal/config"
	"github.com/aretw0/stepwise/internal/logging"
	"github.com/aretw0/stepwise/pkg/adapters/memory"
	"github.com/aretw0/stepwise/pkg/adapters/redis"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/runner"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{config.EnvAPIKey, config.EnvFallbackAPIKey, config.EnvRedisAddr, config.EnvLogLevel} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stepwise.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCreateEngine_RequiresAPIKey(t *testing.T) {
	clearEnv(t)
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)

	_, err = createEngine(cfg, logging.NewNop(), false)
	assert.ErrorIs(t, err, domain.ErrMissingAPIKey)

	cfg.Provider.APIKey = "key"
	engine, err := createEngine(cfg, logging.NewNop(), true)
	require.NoError(t, err)
	assert.NotNil(t, engine)
}

func TestCreateLogger(t *testing.T) {
	cfg := config.Default()

	logger, err := createLogger(cfg, false, false)
	require.NoError(t, err)
	assert.False(t, logger.Enabled(context.Background(), -8))

	logger, err = createLogger(cfg, true, false)
	require.NoError(t, err)
	assert.True(t, logger.Enabled(context.Background(), -4))

	cfg.Log.Level = "warn"
	logger, err = createLogger(cfg, false, true)
	require.NoError(t, err)
	assert.False(t, logger.Enabled(context.Background(), 0))
	assert.True(t, logger.Enabled(context.Background(), 4))

	cfg.Log.Level = "chatty"
	_, err = createLogger(cfg, false, true)
	assert.Error(t, err)
}

func TestCreateBroadcaster(t *testing.T) {
	cfg := config.Default()
	logger, _ := createLogger(cfg, false, false)

	b, closeFn := createBroadcaster(cfg, logger)
	assert.IsType(t, &memory.Broadcaster{}, b)
	assert.NoError(t, closeFn())

	mr := miniredis.RunT(t)
	cfg.Redis.Addr = mr.Addr()
	b, closeFn = createBroadcaster(cfg, logger)
	assert.IsType(t, &redis.Broadcaster{}, b)

	ch, cancel, err := b.Subscribe(context.Background(), "c1")
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), "c1", []byte("hi")))
	select {
	case msg := <-ch:
		assert.Equal(t, "hi", string(msg))
	case <-time.After(time.Second):
		t.Fatal("no message")
	}
	cancel()
	assert.NoError(t, closeFn())
}

func TestCreateHandler(t *testing.T) {
	logger, _ := createLogger(config.Default(), false, false)
	in := strings.NewReader("")

	h := createHandler(AskOptions{JSON: true}, false, in, io.Discard, logger)
	assert.IsType(t, &runner.JSONHandler{}, h)

	h = createHandler(AskOptions{}, false, in, io.Discard, logger)
	assert.IsType(t, &runner.TextHandler{}, h)
}

func TestHandleExecutionError(t *testing.T) {
	assert.NoError(t, handleExecutionError(nil))
	assert.NoError(t, handleExecutionError(runner.ErrInterrupted))
	assert.NoError(t, handleExecutionError(fmt.Errorf("wrapped: %w", context.Canceled)))
	assert.NoError(t, handleExecutionError(io.EOF))

	boom := fmt.Errorf("boom")
	assert.Equal(t, boom, handleExecutionError(boom))
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestServe_StartsAndStops(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "provider:\n  api_key: test-key\nlog:\n  level: error\n")
	port := freePort(t)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- Serve(ctx, ServeOptions{Options: Options{ConfigPath: path}, Port: port})
	}()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	resp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "stepwise_chains_active")

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServeMCP_UnknownTransport(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "provider:\n  api_key: test-key\n")

	err := ServeMCP(context.Background(), MCPOptions{Options: Options{ConfigPath: path}, Transport: "carrier-pigeon"})
	assert.ErrorContains(t, err, "unknown transport")
}
