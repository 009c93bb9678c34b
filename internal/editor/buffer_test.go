package editor

import "testing"

func TestInsertAndString(t *testing.T) {
	b := NewBuffer("")
	b.Insert("hello")
	if b.String() != "hello" {
		t.Fatalf("got %q", b.String())
	}
	if b.Cursor() != 5 {
		t.Fatalf("cursor = %d, want 5", b.Cursor())
	}
}

func TestDeleteBackward(t *testing.T) {
	b := NewBuffer("hello")
	b.DeleteBackward()
	if b.String() != "hell" || b.Cursor() != 4 {
		t.Fatalf("got %q cursor %d", b.String(), b.Cursor())
	}
}

func TestDeleteForwardAtStart(t *testing.T) {
	b := NewBuffer("hello")
	b.cursor = 0
	b.DeleteForward()
	if b.String() != "ello" {
		t.Fatalf("got %q", b.String())
	}
}

func TestMoveLeftRightClamp(t *testing.T) {
	b := NewBuffer("hi")
	b.cursor = 0
	b.MoveLeft()
	if b.Cursor() != 0 {
		t.Fatalf("cursor should clamp at 0, got %d", b.Cursor())
	}
	b.cursor = 2
	b.MoveRight()
	if b.Cursor() != 2 {
		t.Fatalf("cursor should clamp at len, got %d", b.Cursor())
	}
}

func TestHomeAndEndOnMultilineBuffer(t *testing.T) {
	b := NewBuffer("abc\ndef")
	b.cursor = 5 // inside "def"
	b.Home()
	if b.Cursor() != 4 {
		t.Fatalf("home cursor = %d, want 4", b.Cursor())
	}
	b.End()
	if b.Cursor() != 7 {
		t.Fatalf("end cursor = %d, want 7", b.Cursor())
	}
}

func TestKillToEndAndStart(t *testing.T) {
	b := NewBuffer("hello world")
	b.cursor = 5
	killed := b.KillToEnd()
	if killed != " world" || b.String() != "hello" {
		t.Fatalf("killed=%q buf=%q", killed, b.String())
	}

	b2 := NewBuffer("hello world")
	b2.cursor = 6
	killed2 := b2.KillToStart()
	if killed2 != "hello " || b2.String() != "world" {
		t.Fatalf("killed=%q buf=%q", killed2, b2.String())
	}
}

func TestMoveWordLeftRight(t *testing.T) {
	b := NewBuffer("foo bar-baz qux")
	b.cursor = len([]rune(b.String()))
	b.MoveWordLeft()
	if b.String()[b.Cursor():] != "qux" {
		t.Fatalf("expected cursor at qux, got suffix %q", b.String()[b.Cursor():])
	}
	b.MoveWordLeft()
	if b.String()[b.Cursor():] != "bar-baz qux" {
		t.Fatalf("expected cursor at bar-baz, got suffix %q", b.String()[b.Cursor():])
	}
	b.MoveWordRight()
	if b.String()[b.Cursor():] != "qux" {
		t.Fatalf("expected cursor at qux, got suffix %q", b.String()[b.Cursor():])
	}
}

func TestDeleteWordLeft(t *testing.T) {
	b := NewBuffer("foo bar")
	b.cursor = 7
	killed := b.DeleteWordLeft()
	if killed != "bar" || b.String() != "foo " {
		t.Fatalf("killed=%q buf=%q", killed, b.String())
	}
}

func TestMoveUpDownPreservesColumn(t *testing.T) {
	b := NewBuffer("abcdef\nxy\nuvwxyz")
	// place cursor at col 4 of line 0 ("abcd|ef")
	b.cursor = 4
	if ok := b.MoveDown(); !ok {
		t.Fatal("expected MoveDown to succeed")
	}
	line, col := b.LineColumn()
	if line != 1 || col != 2 {
		t.Fatalf("line=%d col=%d, want 1,2 (clamped to short line)", line, col)
	}
	if ok := b.MoveDown(); !ok {
		t.Fatal("expected second MoveDown to succeed")
	}
	line, col = b.LineColumn()
	if line != 2 || col != 2 {
		t.Fatalf("line=%d col=%d, want 2,2 (column stays clamped)", line, col)
	}
	if ok := b.MoveDown(); ok {
		t.Fatal("expected MoveDown on last line to fail")
	}
}

func TestMoveUpFromFirstLineFails(t *testing.T) {
	b := NewBuffer("abc")
	if b.MoveUp() {
		t.Fatal("expected MoveUp to fail on first line")
	}
}

func TestSetText(t *testing.T) {
	b := NewBuffer("old")
	b.SetText("new value")
	if b.String() != "new value" || b.Cursor() != len([]rune("new value")) {
		t.Fatalf("buf=%q cursor=%d", b.String(), b.Cursor())
	}
}
