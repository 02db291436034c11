// Package stl writes and reads stereolithography triangle files in both the
// ASCII and the binary encoding.
package stl

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"niftitostl/internal/models"
)

// Triangle is one STL facet
type Triangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
}

// Format selects the STL encoding
type Format int

const (
	ASCII Format = iota
	Binary
)

// ParseFormat parses "ascii" or "binary".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "ascii", "":
		return ASCII, nil
	case "binary":
		return Binary, nil
	}
	return ASCII, fmt.Errorf("unknown STL format %q (want ascii or binary)", s)
}

func (f Format) String() string {
	if f == Binary {
		return "binary"
	}
	return "ascii"
}

// FromMesh flattens an indexed mesh into facets with unit normals.
func FromMesh(m *models.Mesh) []Triangle {
	tris := make([]Triangle, len(m.Faces))
	for i, f := range m.Faces {
		n := m.FaceNormal(i)
		tris[i] = Triangle{
			Normal:  [3]float32{float32(n.X), float32(n.Y), float32(n.Z)},
			Vertex1: toFloat32(m, f[0]),
			Vertex2: toFloat32(m, f[1]),
			Vertex3: toFloat32(m, f[2]),
		}
	}
	return tris
}

func toFloat32(m *models.Mesh, i int) [3]float32 {
	v := m.Vertices[i]
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}

// SaveToSTL writes triangles to path, replacing any existing file. The
// file name without extension becomes the solid name of ASCII output.
func SaveToSTL(path string, triangles []Triangle, format Format) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create STL file: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(path), ".stl")
	if format == Binary {
		err = WriteBinary(file, name, triangles)
	} else {
		err = WriteASCII(file, name, triangles)
	}
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to write STL file: %w", err)
	}
	return file.Close()
}

// WriteASCII writes the ASCII encoding.
func WriteASCII(w io.Writer, name string, triangles []Triangle) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "solid %s\n", name)
	for _, t := range triangles {
		fmt.Fprintf(bw, " facet normal %s\n", formatVec(t.Normal))
		bw.WriteString("  outer loop\n")
		for _, v := range [3][3]float32{t.Vertex1, t.Vertex2, t.Vertex3} {
			fmt.Fprintf(bw, "   vertex %s\n", formatVec(v))
		}
		bw.WriteString("  endloop\n")
		bw.WriteString(" endfacet\n")
	}
	fmt.Fprintf(bw, "endsolid %s\n", name)
	return bw.Flush()
}

func formatVec(v [3]float32) string {
	return fmt.Sprintf("%.6e %.6e %.6e", v[0], v[1], v[2])
}

// WriteBinary writes the binary encoding: an 80-byte header, the triangle
// count and 50 bytes per triangle.
func WriteBinary(w io.Writer, header string, triangles []Triangle) error {
	bw := bufio.NewWriter(w)

	var head [80]byte
	copy(head[:], header)
	if _, err := bw.Write(head[:]); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(triangles))); err != nil {
		return err
	}

	var rec [50]byte
	for _, t := range triangles {
		off := 0
		for _, v := range [4][3]float32{t.Normal, t.Vertex1, t.Vertex2, t.Vertex3} {
			for _, c := range v {
				binary.LittleEndian.PutUint32(rec[off:], math.Float32bits(c))
				off += 4
			}
		}
		// attribute byte count stays zero
		if _, err := bw.Write(rec[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}
