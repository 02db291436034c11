package stl

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// Solid is a parsed STL file
type Solid struct {
	Name      string
	Format    Format
	Triangles []Triangle
}

// ParseFile reads an STL file in either encoding.
func ParseFile(filename string) (*Solid, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("cannot open file: %w", err)
	}
	solid, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if solid.Name == "" {
		solid.Name = filepath.Base(filename)
	}
	return solid, nil
}

// Parse decodes STL data. Binary is detected by its exact size, since
// binary headers may also start with "solid".
func Parse(data []byte) (*Solid, error) {
	if len(data) >= 84 {
		count := binary.LittleEndian.Uint32(data[80:84])
		if uint64(len(data)) == 84+50*uint64(count) {
			return parseBinary(data, int(count)), nil
		}
	}
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("solid")) {
		return parseASCII(bytes.NewReader(data))
	}
	return nil, fmt.Errorf("not an STL file")
}

func parseBinary(data []byte, count int) *Solid {
	solid := &Solid{
		Name:      strings.TrimRight(string(data[:80]), "\x00 "),
		Format:    Binary,
		Triangles: make([]Triangle, count),
	}
	for i := range solid.Triangles {
		rec := data[84+50*i:]
		var vecs [4][3]float32
		for v := 0; v < 4; v++ {
			for c := 0; c < 3; c++ {
				vecs[v][c] = math.Float32frombits(binary.LittleEndian.Uint32(rec[12*v+4*c:]))
			}
		}
		solid.Triangles[i] = Triangle{Normal: vecs[0], Vertex1: vecs[1], Vertex2: vecs[2], Vertex3: vecs[3]}
	}
	return solid
}

func parseASCII(reader io.Reader) (*Solid, error) {
	scanner := bufio.NewScanner(reader)
	solid := &Solid{Format: ASCII}

	var current Triangle
	var vertexCount int
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "solid":
			solid.Name = strings.Join(fields[1:], " ")
		case "facet":
			if len(fields) != 5 || fields[1] != "normal" {
				return nil, fmt.Errorf("line %d: malformed facet", line)
			}
			n, err := parseVec(fields[2:])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			current = Triangle{Normal: n}
			vertexCount = 0
		case "vertex":
			if len(fields) != 4 {
				return nil, fmt.Errorf("line %d: malformed vertex", line)
			}
			v, err := parseVec(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			switch vertexCount {
			case 0:
				current.Vertex1 = v
			case 1:
				current.Vertex2 = v
			case 2:
				current.Vertex3 = v
			default:
				return nil, fmt.Errorf("line %d: more than three vertices in facet", line)
			}
			vertexCount++
		case "endfacet":
			if vertexCount != 3 {
				return nil, fmt.Errorf("line %d: facet has %d vertices", line, vertexCount)
			}
			solid.Triangles = append(solid.Triangles, current)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	return solid, nil
}

func parseVec(fields []string) ([3]float32, error) {
	var v [3]float32
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return v, err
		}
		v[i] = float32(x)
	}
	return v, nil
}

// Bounds returns the bounding box of all triangle vertices.
func (s *Solid) Bounds() r3.Box {
	if len(s.Triangles) == 0 {
		return r3.Box{}
	}
	inf := math.Inf(1)
	box := r3.Box{Min: r3.Vec{X: inf, Y: inf, Z: inf}, Max: r3.Vec{X: -inf, Y: -inf, Z: -inf}}
	for _, t := range s.Triangles {
		for _, v := range [3][3]float32{t.Vertex1, t.Vertex2, t.Vertex3} {
			p := r3.Vec{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}
			box.Min = r3.Vec{X: math.Min(box.Min.X, p.X), Y: math.Min(box.Min.Y, p.Y), Z: math.Min(box.Min.Z, p.Z)}
			box.Max = r3.Vec{X: math.Max(box.Max.X, p.X), Y: math.Max(box.Max.Y, p.Y), Z: math.Max(box.Max.Z, p.Z)}
		}
	}
	return box
}
