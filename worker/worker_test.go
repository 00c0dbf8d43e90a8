package worker

import (
	"os"
	"testing"
	"time"

	"github.com/pithecene-io/subswarm/channel"
	"github.com/pithecene-io/subswarm/syncq"
	"github.com/pithecene-io/subswarm/task"
	"github.com/pithecene-io/subswarm/writer"
)

func pipeTask(t *testing.T) (*task.Task, *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	t.Cleanup(func() { r.Close() })

	tmpl := task.NewTemplate(task.Args{Argv: []string{"cat"}})
	tmpl.Stdin = channel.Handle(w)
	tsk, err := task.FromTemplate(tmpl, nil)
	if err != nil {
		t.Fatalf("FromTemplate: %v", err)
	}
	if err := tsk.Stdin.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := tsk.Stdin.OpenParent("w"); err != nil {
		t.Fatalf("OpenParent: %v", err)
	}
	return tsk, r
}

func TestFromTask_ChannelCollisionRejected(t *testing.T) {
	tmpl := task.NewTemplate(task.Args{Argv: []string{"true"}})
	tmpl.Side = map[string]channel.Channel{"stdin": channel.AnonPipe()}
	tsk, err := task.FromTemplate(tmpl, nil)
	if err != nil {
		t.Fatalf("FromTemplate: %v", err)
	}

	ctx := syncq.NewContext[any](4)
	_, err = FromTask(ctx, tsk, map[string]Spec{"stdin": {Transform: writer.Identity}}, 2)
	if err != ErrChannelCollision {
		t.Fatalf("got %v, want ErrChannelCollision", err)
	}
}

func TestFromTask_UnknownChannelRejected(t *testing.T) {
	tsk, r := pipeTask(t)
	defer r.Close()

	ctx := syncq.NewContext[any](4)
	_, err := FromTask(ctx, tsk, map[string]Spec{"sideband": {Transform: writer.Identity}}, 2)
	if err == nil {
		t.Fatal("expected an error for an unconfigured channel name")
	}
}

func TestFromTask_NoWriteChannelsIsNoOpUntilEOF(t *testing.T) {
	tmpl := task.NewTemplate(task.Args{Argv: []string{"true"}})
	tmpl.Stdin = nil
	tsk, err := task.FromTemplate(tmpl, nil)
	if err != nil {
		t.Fatalf("FromTemplate: %v", err)
	}

	ctx := syncq.NewContext[any](4)
	w, err := FromTask(ctx, tsk, nil, 0)
	if err != nil {
		t.Fatalf("FromTask: %v", err)
	}
	if len(w.Writers()) != 0 {
		t.Fatalf("expected zero writers, got %d", len(w.Writers()))
	}

	go w.Run()
	select {
	case <-w.Done():
		t.Fatal("worker terminated before eof")
	case <-time.After(50 * time.Millisecond):
	}
	ctx.SetEOF()
	select {
	case <-w.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not terminate after eof")
	}
}

func TestWorker_FansOutToAllWriters(t *testing.T) {
	tsk, r := pipeTask(t)
	defer r.Close()

	ctx := syncq.NewContext[any](4)
	w, err := FromTask(ctx, tsk, map[string]Spec{"stdin": {Transform: writer.Identity, Exhaust: true}}, 2)
	if err != nil {
		t.Fatalf("FromTask: %v", err)
	}

	go w.Run()
	for _, wr := range w.Writers() {
		go wr.Run()
	}

	ctx.Common.Put([]byte("hi"))
	ctx.SetEOF()

	buf := make([]byte, 2)
	if _, err := r.Read(buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf) != "hi" {
		t.Fatalf("got %q, want %q", buf, "hi")
	}

	select {
	case <-w.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not terminate")
	}
}
