package pyast

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func parse(t *testing.T, src string) *File {
	t.Helper()
	f, err := Parse(context.Background(), []byte(src))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	t.Cleanup(f.Close)
	return f
}

func TestFunctions(t *testing.T) {
	f := parse(t, `
def foo():
    bar()
    helper.run()

class Service:
    def handle(self):
        foo()
        def inner():
            baz(1)

async def fetch():
    pass
`)

	funcs := f.Functions()
	names := make([]string, 0, len(funcs))
	for _, fn := range funcs {
		names = append(names, fn.Name)
	}
	if diff := cmp.Diff([]string{"foo", "handle", "inner"}, names); diff != "" {
		t.Errorf("function names mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"bar"}, funcs[0].Calls); diff != "" {
		t.Errorf("foo calls mismatch (-want +got):\n%s", diff)
	}
	// Calls made by nested defs are attributed to the enclosing def too.
	if diff := cmp.Diff([]string{"foo", "baz"}, funcs[1].Calls); diff != "" {
		t.Errorf("handle calls mismatch (-want +got):\n%s", diff)
	}
	if funcs[0].Line != 2 {
		t.Errorf("foo line = %d, want 2", funcs[0].Line)
	}
}

func TestAsyncFunctionsSkipped(t *testing.T) {
	f := parse(t, `
async def f():
    await g()

def outer():
    async def worker():
        h()
    return worker
`)

	funcs := f.Functions()
	if len(funcs) != 1 || funcs[0].Name != "outer" {
		t.Fatalf("Functions() = %+v, want only outer", funcs)
	}
	if diff := cmp.Diff([]string{"h"}, funcs[0].Calls); diff != "" {
		t.Errorf("outer calls mismatch (-want +got):\n%s", diff)
	}
}

func TestSingleFunction(t *testing.T) {
	f := parse(t, "def foo(): pass\n")
	if got := len(f.Functions()); got != 1 {
		t.Errorf("len(Functions()) = %d, want 1", got)
	}
	if f.HasError() {
		t.Error("HasError() = true for valid source")
	}
}

func TestHasError(t *testing.T) {
	f := parse(t, "def broken(:\n    pass\n")
	if !f.HasError() {
		t.Error("HasError() = false for invalid source")
	}
}

func TestNestedLoops(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want int
	}{
		{"none", "for i in range(3):\n    print(i)\n", 0},
		{"one", "for i in a:\n    for j in b:\n        pass\n", 1},
		{"triple", "for i in a:\n    for j in b:\n        for k in c:\n            pass\n", 2},
		{"inside if", "for i in a:\n    if i:\n        for j in b:\n            pass\n", 0},
		{"else clause", "for i in a:\n    pass\nelse:\n    for j in b:\n        pass\n", 1},
		{"siblings", "for i in a:\n    pass\nfor j in b:\n    pass\n", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parse(t, tt.src).NestedLoops(); got != tt.want {
				t.Errorf("NestedLoops() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestImports(t *testing.T) {
	f := parse(t, `
import os
import sys
from pathlib import Path
import requests
from flask import Flask
import numpy as np
from pandas import DataFrame
import tensorflow
import xml.etree.ElementTree as ET
from . import sibling
from .pkg import thing
import os.path
`)
	want := []string{"flask", "numpy", "os", "pandas", "pathlib", "requests", "sys", "tensorflow", "xml"}
	if diff := cmp.Diff(want, f.Imports()); diff != "" {
		t.Errorf("Imports() mismatch (-want +got):\n%s", diff)
	}
}

func TestImportsEmpty(t *testing.T) {
	if got := parse(t, "x = 1\n").Imports(); len(got) != 0 {
		t.Errorf("Imports() = %v, want none", got)
	}
}
