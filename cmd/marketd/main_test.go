package main

import "testing"

func TestResolveListenPrecedence(t *testing.T) {
	env := map[string]string{}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	if got := resolveListen("", ":8545", lookup); got != ":8545" {
		t.Fatalf("expected config value, got %q", got)
	}
	env[listenEnvVar] = " 127.0.0.1:9000 "
	if got := resolveListen("", ":8545", lookup); got != "127.0.0.1:9000" {
		t.Fatalf("expected env override, got %q", got)
	}
	if got := resolveListen(":7000", ":8545", lookup); got != ":7000" {
		t.Fatalf("expected flag override, got %q", got)
	}
}
