package paragraph

import "testing"

func TestSegmentReturnsOrderedParagraphs(t *testing.T) {
	body := []byte(`<html><body>
		<p>First paragraph with enough content.</p>
		<p>x</p>
		<p>Second paragraph with enough content too.</p>
	</body></html>`)

	segs := Segment(body, 10)
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments (short one filtered), got %d", len(segs))
	}
	if segs[0].Ordinal != 0 || segs[1].Ordinal != 1 {
		t.Fatalf("expected stable ordinals 0,1, got %d,%d", segs[0].Ordinal, segs[1].Ordinal)
	}
}

func TestSegmentEmptyBodyReturnsNil(t *testing.T) {
	if segs := Segment(nil, 1); segs != nil {
		t.Fatalf("expected nil for empty body, got %+v", segs)
	}
}
