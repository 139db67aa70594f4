package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCommandListsSubcommands(t *testing.T) {
	root := newRootCmd()
	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"setup", "add", "search", "list", "delete", "load", "export"} {
		if !names[want] {
			t.Errorf("missing subcommand %q", want)
		}
	}
}

func TestCommandsRequireDSN(t *testing.T) {
	for _, args := range [][]string{
		{"setup"},
		{"list"},
		{"delete", "1"},
		{"export"},
	} {
		root := newRootCmd()
		root.SetArgs(append(args, "--dsn", ""))
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetErr(&out)
		if err := root.Execute(); err == nil {
			t.Errorf("%v: expected error without DSN", args)
		} else if !strings.Contains(err.Error(), "DSN") {
			t.Errorf("%v: expected DSN error, got %v", args, err)
		}
	}
}

func TestDeleteRejectsNonNumericID(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"delete", "abc", "--dsn", "postgres://localhost/knowledge"})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "invalid snippet ID") {
		t.Errorf("expected invalid ID error, got %v", err)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("unexpected: %q", got)
	}
	if got := truncate("line1\nline2", 100); got != "line1 line2" {
		t.Errorf("newlines should flatten: %q", got)
	}
	long := strings.Repeat("x", 120)
	if got := truncate(long, 100); len(got) != 103 || !strings.HasSuffix(got, "...") {
		t.Errorf("unexpected truncation: %q", got)
	}
}
