package task

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/pithecene-io/subswarm/channel"
)

func TestFromTemplate_SubstitutesArgv(t *testing.T) {
	tmpl := NewTemplate(Args{Argv: []string{"echo", "{greeting}"}})
	tk, err := FromTemplate(tmpl, map[string]string{"greeting": "hi"})
	if err != nil {
		t.Fatalf("FromTemplate: %v", err)
	}
	if tk.Args.Argv[1] != "hi" {
		t.Fatalf("got %q, want %q", tk.Args.Argv[1], "hi")
	}
}

func TestFromTemplate_MissingBind(t *testing.T) {
	tmpl := NewTemplate(Args{Argv: []string{"echo", "{missing}"}})
	if _, err := FromTemplate(tmpl, map[string]string{}); err == nil {
		t.Fatal("expected error for missing bind variable")
	}
}

func TestFromTemplate_SubstitutesPathChannel(t *testing.T) {
	dir := t.TempDir()
	tmpl := NewTemplate(Args{Argv: []string{"true"}})
	tmpl.Side = map[string]channel.Channel{
		"data": channel.Path(filepath.Join(dir, "{id}.txt")),
	}
	tk, err := FromTemplate(tmpl, map[string]string{"id": "42"})
	if err != nil {
		t.Fatalf("FromTemplate: %v", err)
	}
	p, ok := channel.AsPath(tk.Side["data"])
	if !ok {
		t.Fatal("expected Side[\"data\"] to remain a Path channel")
	}
	want := filepath.Join(dir, "42.txt")
	if p.Path() != want {
		t.Fatalf("got path %q, want %q", p.Path(), want)
	}
}

func TestFromTemplate_ClonesDoNotShareState(t *testing.T) {
	dir := t.TempDir()
	tmpl := NewTemplate(Args{Argv: []string{"true"}})
	tmpl.Side = map[string]channel.Channel{
		"data": channel.Path(filepath.Join(dir, "{id}.txt")),
	}
	a, err := FromTemplate(tmpl, map[string]string{"id": "a"})
	if err != nil {
		t.Fatalf("FromTemplate a: %v", err)
	}
	b, err := FromTemplate(tmpl, map[string]string{"id": "b"})
	if err != nil {
		t.Fatalf("FromTemplate b: %v", err)
	}
	pa, _ := channel.AsPath(a.Side["data"])
	pb, _ := channel.AsPath(b.Side["data"])
	if pa.Path() == pb.Path() {
		t.Fatalf("expected distinct paths, both got %q", pa.Path())
	}
	// The template's own channel must be untouched by either substitution.
	tmplPath, _ := channel.AsPath(tmpl.Side["data"])
	if tmplPath.Path() != filepath.Join(dir, "{id}.txt") {
		t.Fatalf("template channel was mutated: %q", tmplPath.Path())
	}
}

func TestTask_StartWithStdioPipes(t *testing.T) {
	tmpl := NewTemplate(Args{Argv: []string{"cat"}})
	tk, err := FromTemplate(tmpl, nil)
	if err != nil {
		t.Fatalf("FromTemplate: %v", err)
	}
	if err := tk.CreateChannels(); err != nil {
		t.Fatalf("CreateChannels: %v", err)
	}
	if err := tk.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}

	stdin, ok := tk.Stdin.WriteCloser()
	if !ok {
		t.Fatal("expected stdin WriteCloser")
	}
	stdout, ok := tk.Stdout.ReadCloser()
	if !ok {
		t.Fatal("expected stdout ReadCloser")
	}

	if _, err := io.WriteString(stdin, "ping"); err != nil {
		t.Fatalf("write stdin: %v", err)
	}
	if err := stdin.Close(); err != nil {
		t.Fatalf("close stdin: %v", err)
	}

	out, err := io.ReadAll(stdout)
	if err != nil {
		t.Fatalf("read stdout: %v", err)
	}
	if string(out) != "ping" {
		t.Fatalf("got %q, want %q", out, "ping")
	}
	if err := tk.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestTask_StartWithSideChannel(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.txt")

	// Mirrors the fd-handoff contract a real child uses: the env var named
	// after the side channel holds the fd number (Go numbers ExtraFiles
	// starting at 3), and the child reads /dev/fd/<n> to get the data.
	tmpl := NewTemplate(Args{Shell: `cat "/dev/fd/$line_numbers" > "` + outPath + `"`})
	tmpl.Side = map[string]channel.Channel{
		"line_numbers": channel.AnonPipe(),
	}
	tk, err := FromTemplate(tmpl, nil)
	if err != nil {
		t.Fatalf("FromTemplate: %v", err)
	}
	if err := tk.CreateChannels(); err != nil {
		t.Fatalf("CreateChannels: %v", err)
	}
	if err := tk.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}

	sideChan := tk.Side["line_numbers"]
	wc, ok := sideChan.WriteCloser()
	if !ok {
		t.Fatal("expected side channel parent handle to be opened after Start")
	}
	if _, err := io.WriteString(wc, "7"); err != nil {
		t.Fatalf("write side channel: %v", err)
	}
	if err := wc.Close(); err != nil {
		t.Fatalf("close side channel: %v", err)
	}

	if err := tk.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(got) != "7" {
		t.Fatalf("got %q, want %q", got, "7")
	}
}

func TestArgs_ValidateRejectsBoth(t *testing.T) {
	a := Args{Shell: "echo hi", Argv: []string{"echo", "hi"}}
	if err := a.validate(); err == nil {
		t.Fatal("expected error when both Shell and Argv are set")
	}
}

func TestArgs_ValidateRejectsNeither(t *testing.T) {
	a := Args{}
	if err := a.validate(); err == nil {
		t.Fatal("expected error when neither Shell nor Argv is set")
	}
}

func TestExpand_UnusedBindIgnored(t *testing.T) {
	got, err := expand("hello {name}", map[string]string{"name": "world", "extra": "unused"})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if got != "hello world" {
		t.Fatalf("got %q", got)
	}
}

func TestTask_PidBeforeStart(t *testing.T) {
	tmpl := NewTemplate(Args{Argv: []string{"true"}})
	tk, _ := FromTemplate(tmpl, nil)
	if pid := tk.Pid(); pid != 0 {
		t.Fatalf("expected Pid 0 before Start, got %d", pid)
	}
}
