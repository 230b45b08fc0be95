package logbus

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	server := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: server.Addr()})
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	client := newTestClient(t)
	bus := New(client, discardLogger())
	ctx := context.Background()

	out, cancel := bus.Subscribe(ctx, "dep-1")
	defer cancel()

	// Give the subscriber goroutine time to register with the broker
	// before the first publish, matching the inherent race of pub/sub.
	time.Sleep(50 * time.Millisecond)
	bus.Publish(ctx, "dep-1", "line one")

	select {
	case text := <-out:
		if text != "line one" {
			t.Fatalf("got %q, want %q", text, "line one")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published chunk")
	}
}

func TestPublishToDifferentTopicDoesNotLeak(t *testing.T) {
	client := newTestClient(t)
	bus := New(client, discardLogger())
	ctx := context.Background()

	out, cancel := bus.Subscribe(ctx, "dep-a")
	defer cancel()

	time.Sleep(50 * time.Millisecond)
	bus.Publish(ctx, "dep-b", "not for dep-a")

	select {
	case text := <-out:
		t.Fatalf("received unexpected chunk %q on dep-a's channel", text)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestNormalizeStripsControlBytesAndTruncates(t *testing.T) {
	blob := "hello\x00world\x07!!!"
	got := Normalize(blob, 100)
	want := "helloworld!!!"
	if got != want {
		t.Fatalf("Normalize() = %q, want %q", got, want)
	}

	got = Normalize("abcdefgh", 3)
	if got != "abc" {
		t.Fatalf("Normalize() truncated = %q, want %q", got, "abc")
	}
}

func TestNormalizeZeroMaxCharsMeansUnbounded(t *testing.T) {
	got := Normalize("abcdefgh", 0)
	if got != "abcdefgh" {
		t.Fatalf("Normalize() = %q, want unbounded passthrough", got)
	}
}

func TestFailureHeaderIncludesErrorAndBuildLog(t *testing.T) {
	err := errDeployFailed
	got := FailureHeader(err, "step 1 ok\nstep 2 failed\n")

	if got == "" {
		t.Fatal("FailureHeader() returned empty string")
	}
	if want := "=== DEPLOYMENT FAILURE ===\n"; got[:len(want)] != want {
		t.Fatalf("FailureHeader() missing header, got %q", got)
	}
	if !strings.Contains(got, "error: build step 2 exited 1\n") {
		t.Fatalf("FailureHeader() missing error message, got %q", got)
	}
	if !strings.HasSuffix(got, "step 1 ok\nstep 2 failed\n") {
		t.Fatalf("FailureHeader() missing build log, got %q", got)
	}
}

var errDeployFailed = simpleError("build step 2 exited 1")

type simpleError string

func (e simpleError) Error() string { return string(e) }
