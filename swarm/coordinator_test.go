package swarm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/pithecene-io/subswarm/channel"
	"github.com/pithecene-io/subswarm/task"
	"github.com/pithecene-io/subswarm/writer"
)

// zipScript reads one line from the side channel fd advertised in
// $line_numbers and one line from stdin, emitting "<n>\t<fib>\n" to
// stdout — the shell re-expression of
// original_source/tests/print_fibonaccis.py, which zipped a Python
// file object opened on the side-channel fd with sys.stdin.
const zipScript = `
eval "exec 3<&${line_numbers}"
while IFS= read -r n <&3 && IFS= read -r fib <&0; do
  printf '%s\t%s\n' "$n" "$fib"
done
`

func fibs(n int) []int {
	out := make([]int, n)
	a, b := 0, 1
	for i := 0; i < n; i++ {
		out[i] = a
		a, b = b, a+b
	}
	return out
}

func TestCoordinator_FibonacciFanOut(t *testing.T) {
	dir := t.TempDir()

	tmpl := task.NewTemplate(task.Args{Shell: zipScript})
	tmpl.Stdout = channel.Path(filepath.Join(dir, "{bind_id}.out"))
	tmpl.Side = map[string]channel.Channel{"line_numbers": channel.AnonPipe()}

	specs := map[string]WriterSpec{
		"stdin":        {Transform: writer.Field("fib"), Exhaust: true},
		"line_numbers": {Transform: writer.Field("n"), Exhaust: true},
	}

	c, err := New(tmpl, 2, specs, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	values := fibs(100)
	expected := map[int]int{}
	for i, v := range values {
		n := i + 1
		expected[n] = v
		c.Feed(map[string]any{"n": n, "fib": v})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	recovered := map[int]int{}
	for id := 0; id < 2; id++ {
		f, err := os.Open(filepath.Join(dir, strconv.Itoa(id)+".out"))
		if err != nil {
			t.Fatalf("open output %d: %v", id, err)
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			parts := strings.Split(line, "\t")
			if len(parts) != 2 {
				t.Fatalf("malformed output line %q", line)
			}
			n, err := strconv.Atoi(parts[0])
			if err != nil {
				t.Fatalf("parse n: %v", err)
			}
			v, err := strconv.Atoi(parts[1])
			if err != nil {
				t.Fatalf("parse fib: %v", err)
			}
			recovered[n] = v
		}
		f.Close()
	}

	if len(recovered) != len(expected) {
		t.Fatalf("recovered %d pairs, want %d", len(recovered), len(expected))
	}
	for n, v := range expected {
		if recovered[n] != v {
			t.Fatalf("n=%d: got fib %d, want %d", n, recovered[n], v)
		}
	}
}

func TestCoordinator_BestEffortChannel(t *testing.T) {
	tmpl := task.NewTemplate(task.Args{Shell: `read -r x <&3; exec 3<&-; exit 0`})
	tmpl.Stdin = nil
	tmpl.Side = map[string]channel.Channel{"extra": channel.AnonPipe()}

	specs := map[string]WriterSpec{
		"extra": {Transform: writer.Identity, Exhaust: false},
	}

	c, err := New(tmpl, 1, specs, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for i := 0; i < 5; i++ {
		c.Feed([]byte(fmt.Sprintf("%d\n", i)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Close(ctx); err != nil {
		t.Fatalf("Close must succeed even though the best-effort channel closed early: %v", err)
	}
}

func TestCoordinator_OneChildFailsToSpawn(t *testing.T) {
	dir := t.TempDir()
	// Only bind_id "0" resolves to a real executable; bind_id "1"
	// resolves to a path that does not exist, so exactly that Task's
	// os/exec.Start fails while its sibling still services the workload.
	script := filepath.Join(dir, "0")
	if err := os.WriteFile(script, []byte("#!/bin/sh\ncat\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	tmpl := task.NewTemplate(task.Args{Argv: []string{filepath.Join(dir, "{bind_id}")}})
	specs := map[string]WriterSpec{
		"stdin": {Transform: writer.Identity, Exhaust: true},
	}

	c, err := New(tmpl, 2, specs, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start must still succeed via the surviving child: %v", err)
	}

	for i := 0; i < 10; i++ {
		c.Feed([]byte("x\n"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestCoordinator_AllChildrenFailToSpawn(t *testing.T) {
	tmpl := task.NewTemplate(task.Args{Argv: []string{"/nonexistent/subswarm-test-binary"}})
	c, err := New(tmpl, 3, map[string]WriterSpec{}, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- c.Start() }()

	select {
	case err := <-done:
		if !errors.Is(err, ErrAllWorkersFailed) {
			t.Fatalf("got %v, want ErrAllWorkersFailed", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Start did not return within a bounded time")
	}
}

func TestCoordinator_Backpressure(t *testing.T) {
	tmpl := task.NewTemplate(task.Args{Shell: `while IFS= read -r line; do sleep 0.01; done`})
	specs := map[string]WriterSpec{
		"stdin": {Transform: writer.Identity, Exhaust: true},
	}

	c, err := New(tmpl, 1, specs, Options{CommonQueueMultiplier: 1, WriterQueueSize: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	start := time.Now()
	for i := 0; i < 200; i++ {
		c.Feed([]byte("x\n"))
	}
	elapsed := time.Since(start)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if elapsed < 500*time.Millisecond {
		t.Fatalf("feed returned in %s; expected it to block under backpressure against a slow child", elapsed)
	}
}

func TestCoordinator_ScopedAcquisition(t *testing.T) {
	tmpl := task.NewTemplate(task.Args{Argv: []string{"cat"}})
	specs := map[string]WriterSpec{
		"stdin": {Transform: writer.Identity, Exhaust: true},
	}
	c, err := New(tmpl, 1, specs, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	boom := errors.New("boom")
	err = c.Run(context.Background(), func(c *Coordinator) error {
		c.Feed([]byte("hi\n"))
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Run must surface the callback's error, got %v", err)
	}
}
