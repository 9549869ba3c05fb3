package wal

import "testing"

func TestEncodeDecodeCommitLineRoundTrip(t *testing.T) {
	rec := CommitRecord{
		ID: 7,
		TS: 1234,
		Ops: []Op{
			{Kind: OpSet, Context: "acme.widget", Key: "color", Value: "blue"},
			{Kind: OpDelete, Context: "acme.widget", Key: "size"},
			{Kind: OpClearAll, Context: "acme.other"},
		},
	}

	line, err := EncodeCommitLine(rec)
	if err != nil {
		t.Fatalf("EncodeCommitLine: %v", err)
	}

	got, ok := DecodeCommitLine(line[:len(line)-1]) // strip trailing newline
	if !ok {
		t.Fatal("DecodeCommitLine reported failure on well-formed line")
	}
	if got.ID != rec.ID || got.TS != rec.TS || len(got.Ops) != len(rec.Ops) {
		t.Fatalf("DecodeCommitLine = %+v; want %+v", got, rec)
	}
	if got.Ops[0].Kind != OpSet || got.Ops[0].Value != "blue" {
		t.Fatalf("first op = %+v", got.Ops[0])
	}
	if got.Ops[1].Kind != OpDelete {
		t.Fatalf("second op = %+v", got.Ops[1])
	}
	if got.Ops[2].Kind != OpClearAll {
		t.Fatalf("third op = %+v", got.Ops[2])
	}
}

func TestDecodeCommitLineRejectsUnknownOpKind(t *testing.T) {
	_, ok := DecodeCommitLine([]byte(`{"id":1,"commit":{"ts":1,"ops":[{"op":"frobnicate","context":"x"}]}}`))
	if ok {
		t.Fatal("expected decode failure for unknown op kind")
	}
}

func TestDecodeCommitLineRejectsMalformedJSON(t *testing.T) {
	_, ok := DecodeCommitLine([]byte(`not json`))
	if ok {
		t.Fatal("expected decode failure for malformed JSON")
	}
}
