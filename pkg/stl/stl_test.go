package stl

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"niftitostl/internal/models"
)

func testTriangles() []Triangle {
	return []Triangle{
		{
			Normal:  [3]float32{0, 0, 1},
			Vertex1: [3]float32{0, 0, 0},
			Vertex2: [3]float32{1, 0, 0},
			Vertex3: [3]float32{0, 1, 0},
		},
		{
			Normal:  [3]float32{0, 0, -1},
			Vertex1: [3]float32{-1.25, 2.5, 1e-3},
			Vertex2: [3]float32{0, 1, 0},
			Vertex3: [3]float32{1, 0, 0},
		},
	}
}

func almostEqual(a, b [3]float32) bool {
	for i := range a {
		if math.Abs(float64(a[i]-b[i])) > 1e-5*math.Max(1, math.Abs(float64(a[i]))) {
			return false
		}
	}
	return true
}

// TestFromMesh verifies that facet normals follow the winding
func TestFromMesh(t *testing.T) {
	m := &models.Mesh{
		Vertices: []r3.Vec{{X: 0, Y: 0, Z: 0}, {X: 2, Y: 0, Z: 0}, {X: 0, Y: 2, Z: 0}},
		Faces:    [][3]int{{0, 1, 2}, {0, 2, 1}},
	}
	tris := FromMesh(m)
	if len(tris) != 2 {
		t.Fatalf("Expected 2 triangles, got %d", len(tris))
	}
	if tris[0].Normal != [3]float32{0, 0, 1} {
		t.Errorf("Expected +z normal, got %v", tris[0].Normal)
	}
	if tris[1].Normal != [3]float32{0, 0, -1} {
		t.Errorf("Expected -z normal, got %v", tris[1].Normal)
	}
	if tris[0].Vertex2 != [3]float32{2, 0, 0} {
		t.Errorf("Unexpected vertex %v", tris[0].Vertex2)
	}
}

// TestWriteASCII checks the textual layout
func TestWriteASCII(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteASCII(&buf, "5", testTriangles()[:1]); err != nil {
		t.Fatalf("Failed to write ASCII STL: %v", err)
	}

	want := `solid 5
 facet normal 0.000000e+00 0.000000e+00 1.000000e+00
  outer loop
   vertex 0.000000e+00 0.000000e+00 0.000000e+00
   vertex 1.000000e+00 0.000000e+00 0.000000e+00
   vertex 0.000000e+00 1.000000e+00 0.000000e+00
  endloop
 endfacet
endsolid 5
`
	if buf.String() != want {
		t.Errorf("Unexpected ASCII output:\n%s", buf.String())
	}
}

// TestSaveToSTL verifies that both encodings round-trip through the parser
func TestSaveToSTL(t *testing.T) {
	for _, format := range []Format{ASCII, Binary} {
		t.Run(format.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "femur.stl")
			if err := SaveToSTL(path, testTriangles(), format); err != nil {
				t.Fatalf("Failed to save STL: %v", err)
			}

			solid, err := ParseFile(path)
			if err != nil {
				t.Fatalf("Failed to parse STL: %v", err)
			}
			if solid.Format != format {
				t.Errorf("Expected format %v, got %v", format, solid.Format)
			}
			if solid.Name != "femur" {
				t.Errorf("Expected solid name femur, got %q", solid.Name)
			}
			if len(solid.Triangles) != 2 {
				t.Fatalf("Expected 2 triangles, got %d", len(solid.Triangles))
			}
			for i, want := range testTriangles() {
				got := solid.Triangles[i]
				if !almostEqual(want.Normal, got.Normal) ||
					!almostEqual(want.Vertex1, got.Vertex1) ||
					!almostEqual(want.Vertex2, got.Vertex2) ||
					!almostEqual(want.Vertex3, got.Vertex3) {
					t.Errorf("Triangle %d mismatch: want %v, got %v", i, want, got)
				}
			}
		})
	}
}

// TestBinarySize checks the fixed binary layout
func TestBinarySize(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteBinary(&buf, "solid header that looks ascii", testTriangles()); err != nil {
		t.Fatalf("Failed to write binary STL: %v", err)
	}
	// 80-byte header, 4-byte count, 50 bytes per triangle
	if want := 80 + 4 + 2*50; buf.Len() != want {
		t.Errorf("Expected %d bytes, got %d", want, buf.Len())
	}

	solid, err := Parse(buf.Bytes())
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	if solid.Format != Binary {
		t.Errorf("Binary file with a solid header was parsed as ASCII")
	}
}

// TestSaveOverwrites checks that existing output is replaced
func TestSaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "1.stl")
	if err := os.WriteFile(path, []byte(strings.Repeat("x", 4096)), 0644); err != nil {
		t.Fatal(err)
	}
	if err := SaveToSTL(path, testTriangles()[:1], ASCII); err != nil {
		t.Fatalf("Failed to save STL: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(data), "solid 1\n") || strings.Contains(string(data), "xxx") {
		t.Errorf("Existing file was not replaced")
	}
}

func TestSaveToMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "1.stl")
	if err := SaveToSTL(path, testTriangles(), ASCII); err == nil {
		t.Error("Expected an error writing into a missing directory")
	}
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"garbage":        "hello world",
		"bad number":     "solid x\n facet normal 0 0 q\n",
		"short vertex":   "solid x\n facet normal 0 0 1\n outer loop\n vertex 1 2\n",
		"two vertices":   "solid x\n facet normal 0 0 1\n vertex 0 0 0\n vertex 1 0 0\n endfacet\n",
		"extra vertices": "solid x\n facet normal 0 0 1\n vertex 0 0 0\n vertex 0 0 0\n vertex 0 0 0\n vertex 0 0 0\n",
	}
	for name, input := range cases {
		if _, err := Parse([]byte(input)); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("BINARY"); err != nil || f != Binary {
		t.Errorf("ParseFormat(BINARY) = %v, %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != ASCII {
		t.Errorf("ParseFormat(\"\") = %v, %v", f, err)
	}
	if _, err := ParseFormat("obj"); err == nil {
		t.Error("Expected an error for obj")
	}
}

func TestSolidBounds(t *testing.T) {
	s := &Solid{Triangles: testTriangles()}
	box := s.Bounds()
	if box.Min.X != -1.25 || box.Max.Y != 2.5 || box.Min.Z != 0 {
		t.Errorf("Unexpected bounds %+v", box)
	}
	if (&Solid{}).Bounds() != (r3.Box{}) {
		t.Error("Expected a zero box for an empty solid")
	}
}

// BenchmarkWriteASCII benchmarks ASCII encoding
func BenchmarkWriteASCII(b *testing.B) {
	tris := make([]Triangle, 10000)
	for i := range tris {
		tris[i] = testTriangles()[i%2]
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var buf bytes.Buffer
		WriteASCII(&buf, "bench", tris)
	}
}
