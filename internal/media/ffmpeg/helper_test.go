package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// stubFFmpeg routes commandContext to TestHelperProcess in the given mode and
// records every argument list it was invoked with.
func stubFFmpeg(t *testing.T, mode string, env ...string) *[][]string {
	t.Helper()
	var (
		mu    sync.Mutex
		calls [][]string
	)
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		mu.Lock()
		calls = append(calls, append([]string(nil), args...))
		mu.Unlock()
		cmd := exec.CommandContext(ctx, os.Args[0], append([]string{"-test.run=TestHelperProcess", "--"}, args...)...)
		cmd.Env = append(append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "FFMPEG_HELPER_MODE="+mode), env...)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
	return &calls
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for i, arg := range args {
		if arg == "--" {
			args = args[i+1:]
			break
		}
	}
	switch os.Getenv("FFMPEG_HELPER_MODE") {
	case "success":
		os.Exit(0)
	case "fail":
		fmt.Fprintln(os.Stderr, "[mov,mp4] moov atom not found")
		fmt.Fprintln(os.Stderr, "clip.mp4: Invalid data found when processing input")
		os.Exit(1)
	case "frames":
		// Emit N solid frames of W x H rgb24, frame i filled with byte i.
		n, _ := strconv.Atoi(os.Getenv("HELPER_FRAMES"))
		size, _ := strconv.Atoi(os.Getenv("HELPER_FRAME_BYTES"))
		for i := 1; i <= n; i++ {
			frame := []byte(strings.Repeat(string([]byte{byte(i * 10)}), size))
			if _, err := os.Stdout.Write(frame); err != nil {
				os.Exit(0)
			}
		}
		os.Exit(0)
	case "sink":
		out := args[len(args)-1]
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			os.Exit(2)
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			os.Exit(3)
		}
		os.Exit(0)
	}
	os.Exit(0)
}
