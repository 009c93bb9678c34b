package editor

import "testing"

func TestPasteDetectorPassthroughWithoutPaste(t *testing.T) {
	var p PasteDetector
	pass, content, complete := p.Feed([]byte("hello"))
	if string(pass) != "hello" || content != "" || complete {
		t.Fatalf("pass=%q content=%q complete=%v", pass, content, complete)
	}
	if p.Pasting() {
		t.Fatal("should not be pasting")
	}
}

func TestPasteDetectorSingleChunkCompletePaste(t *testing.T) {
	var p PasteDetector
	data := append([]byte("pre"), append(pasteStartSeq, append([]byte("pasted text"), pasteEndSeq...)...)...)
	data = append(data, []byte("post")...)
	pass, content, complete := p.Feed(data)
	if !complete || content != "pasted text" {
		t.Fatalf("content=%q complete=%v", content, complete)
	}
	if string(pass) != "prepost" {
		t.Fatalf("pass=%q", pass)
	}
	if p.Pasting() {
		t.Fatal("should have closed the paste region")
	}
}

func TestPasteDetectorSplitAcrossFeeds(t *testing.T) {
	var p PasteDetector
	pass1, content1, complete1 := p.Feed(pasteStartSeq)
	if complete1 || content1 != "" || len(pass1) != 0 {
		t.Fatalf("unexpected first feed result: pass=%q content=%q complete=%v", pass1, content1, complete1)
	}
	if !p.Pasting() {
		t.Fatal("expected pasting to be true after start sequence")
	}

	pass2, content2, complete2 := p.Feed([]byte("partial "))
	if complete2 || content2 != "" || len(pass2) != 0 {
		t.Fatalf("unexpected mid-paste feed: pass=%q content=%q complete=%v", pass2, content2, complete2)
	}

	data3 := append([]byte("rest"), pasteEndSeq...)
	pass3, content3, complete3 := p.Feed(data3)
	if !complete3 || content3 != "partial rest" {
		t.Fatalf("content=%q complete=%v", content3, complete3)
	}
	if len(pass3) != 0 {
		t.Fatalf("pass=%q", pass3)
	}
	if p.Pasting() {
		t.Fatal("should have closed the paste region")
	}
}

func TestPasteDetectorTwoPastesInOneChunkOnlyCompletesFirst(t *testing.T) {
	var p PasteDetector
	first := append(append([]byte{}, pasteStartSeq...), append([]byte("one"), pasteEndSeq...)...)
	second := append(append([]byte{}, pasteStartSeq...), append([]byte("two"), pasteEndSeq...)...)
	data := append(first, second...)

	pass, content, complete := p.Feed(data)
	if !complete || content != "one" {
		t.Fatalf("content=%q complete=%v", content, complete)
	}
	// The second paste's bytes are left in passthrough for the next Feed
	// call rather than silently dropped or merged into this result.
	pass2, content2, complete2 := p.Feed(pass)
	if !complete2 || content2 != "two" {
		t.Fatalf("second feed: content=%q complete=%v", content2, complete2)
	}
	_ = pass2
}
