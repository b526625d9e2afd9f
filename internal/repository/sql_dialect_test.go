package repository

import (
	"strings"
	"testing"
)

func TestLikeOperatorByDialect(t *testing.T) {
	cases := []struct {
		dialect string
		want    string
	}{
		{"sqlite", "LIKE"},
		{"mysql", "LIKE"},
		{"postgres", "ILIKE"},
		{"PostgreSQL", "ILIKE"},
		{"  postgres  ", "ILIKE"},
		{"", "LIKE"},
	}
	for _, c := range cases {
		if got := likeOperatorByDialect(c.dialect); got != c.want {
			t.Fatalf("dialect %q want %s got %s", c.dialect, c.want, got)
		}
	}
}

func TestBuildSearchConditionByDialect(t *testing.T) {
	condition, argCount := buildSearchConditionByDialect("sqlite", []string{"name", "email"})
	if argCount != 2 {
		t.Fatalf("arg count want 2 got %d", argCount)
	}
	if condition != "name LIKE ? OR email LIKE ?" {
		t.Fatalf("unexpected condition %s", condition)
	}

	condition, argCount = buildSearchConditionByDialect("postgres", []string{"name", "", "email"})
	if argCount != 2 {
		t.Fatalf("arg count want 2 got %d", argCount)
	}
	if !strings.Contains(condition, "name ILIKE ?") || !strings.Contains(condition, "email ILIKE ?") {
		t.Fatalf("condition should use ILIKE, got %s", condition)
	}
}

func TestBuildSearchConditionEmptyColumns(t *testing.T) {
	condition, argCount := buildSearchConditionByDialect("sqlite", []string{"", "  "})
	if condition != "" || argCount != 0 {
		t.Fatalf("empty columns should yield empty condition, got %q argCount %d", condition, argCount)
	}
}

func TestRepeatLikeArgs(t *testing.T) {
	args := repeatLikeArgs("%test%", 3)
	if len(args) != 3 {
		t.Fatalf("args len want 3 got %d", len(args))
	}
	for idx, arg := range args {
		if arg != "%test%" {
			t.Fatalf("args[%d] want %%test%% got %v", idx, arg)
		}
	}
}
