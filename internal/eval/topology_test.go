package eval

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/shaiso/Flowgraph/internal/domain"
	"github.com/shaiso/Flowgraph/internal/graph"
)

// --- GetConnectionInfo Tests ---

func TestGetConnectionInfo_Direct(t *testing.T) {
	doc := graph.NewDocument(uuid.Nil)
	a, _ := doc.AddBlock("a", domain.BlockDesc{Path: "/a"})
	b, _ := doc.AddBlock("b", domain.BlockDesc{Path: "/b"})
	if _, err := doc.Connect(a, "0", b, "1"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	got := GetConnectionInfo(doc.Objects())
	want := domain.ConnectionInfos{
		{SrcBlockUID: a.UID(), SrcPort: "0", DstBlockUID: b.UID(), DstPort: "1"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestGetConnectionInfo_Breakers(t *testing.T) {
	doc := graph.NewDocument(uuid.Nil)
	a, _ := doc.AddBlock("a", domain.BlockDesc{Path: "/a"})
	b, _ := doc.AddBlock("b", domain.BlockDesc{Path: "/b"})
	c, _ := doc.AddBlock("c", domain.BlockDesc{Path: "/c"})

	in, _ := doc.AddBreaker("x_in", "x", true)
	out, _ := doc.AddBreaker("x_out", "x", false)
	mustConnect(t, doc, a, "0", in, "")
	mustConnect(t, doc, out, "", b, "0")
	mustConnect(t, doc, out, "", c, "0")

	// выходной разрыв без входного
	dangling, _ := doc.AddBreaker("z_out", "z", false)
	mustConnect(t, doc, dangling, "", b, "1")

	// разрыв, замкнутый сам на себя
	loopIn, _ := doc.AddBreaker("y_in", "y", true)
	loopOut, _ := doc.AddBreaker("y_out", "y", false)
	mustConnect(t, doc, loopOut, "", loopIn, "")
	mustConnect(t, doc, loopOut, "", c, "1")

	got := GetConnectionInfo(doc.Objects())
	want := domain.ConnectionInfos{
		{SrcBlockUID: a.UID(), SrcPort: "0", DstBlockUID: b.UID(), DstPort: "0"},
		{SrcBlockUID: a.UID(), SrcPort: "0", DstBlockUID: c.UID(), DstPort: "0"},
	}
	if diff := cmp.Diff(want.Sorted(), got.Sorted()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func mustConnect(t *testing.T, doc *graph.Document, src graph.Object, srcPort string, dst graph.Object, dstPort string) {
	t.Helper()
	if _, err := doc.Connect(src, srcPort, dst, dstPort); err != nil {
		t.Fatalf("Connect %s -> %s: %v", src.ID(), dst.ID(), err)
	}
}

// --- ConnectionInfos Tests ---

func TestDiffConnectionInfos(t *testing.T) {
	x := domain.ConnectionInfo{SrcBlockUID: 1, SrcPort: "0", DstBlockUID: 2, DstPort: "0"}
	y := domain.ConnectionInfo{SrcBlockUID: 2, SrcPort: "0", DstBlockUID: 3, DstPort: "0"}
	z := domain.ConnectionInfo{SrcBlockUID: 3, SrcPort: "0", DstBlockUID: 4, DstPort: "0"}

	in0 := domain.ConnectionInfos{x, y}
	in1 := domain.ConnectionInfos{y, z}

	if diff := cmp.Diff(domain.ConnectionInfos{x}, domain.DiffConnectionInfos(in0, in1)); diff != "" {
		t.Errorf("in0 - in1 mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(domain.ConnectionInfos{z}, domain.DiffConnectionInfos(in1, in0)); diff != "" {
		t.Errorf("in1 - in0 mismatch (-want +got):\n%s", diff)
	}
	if got := domain.DiffConnectionInfos(in0, in0); len(got) != 0 {
		t.Errorf("expected empty diff, got %v", got)
	}
}
