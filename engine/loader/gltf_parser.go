package loader

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
)

var (
	errInvalidGLTFVersion   = errors.New("invalid glTF version: must be 2.x")
	errInvalidGLBMagic      = errors.New("invalid GLB magic number")
	errInvalidGLBVersion    = errors.New("invalid GLB version: must be 2")
	errMissingJSONChunk     = errors.New("GLB file missing JSON chunk")
	errBufferSizeMismatch   = errors.New("buffer shorter than declared")
	errUnsupportedExtension = errors.New("required glTF extension not supported")
)

// gltfParserImpl is the implementation of the gltfParser interface.
type gltfParserImpl struct {
	baseDir  string
	document *gltfDocument
}

// gltfParser decodes a glTF or GLB container, resolves its buffers and reads accessors as
// float32 vectors or uint32 indices.
type gltfParser interface {
	// Parse loads a .gltf or .glb file. GLB is detected by extension or magic number.
	//
	// Parameters:
	//   - path: path to the file; relative URIs resolve against its directory
	//
	// Returns:
	//   - error: error if reading, decoding or buffer resolution fails
	Parse(path string) error

	// ParseReader decodes a document from a stream. Relative URIs resolve against the working
	// directory.
	//
	// Parameters:
	//   - r: the glTF JSON or GLB data
	//   - isGLB: true if the data is a GLB container
	//
	// Returns:
	//   - error: error if decoding or buffer resolution fails
	ParseReader(r io.Reader, isGLB bool) error

	// Document returns the parsed document, or nil before a successful parse.
	Document() *gltfDocument

	// BaseDir returns the directory relative URIs resolve against.
	BaseDir() string

	// BufferView returns the bytes of a buffer view without accessor interpretation.
	BufferView(index int) ([]byte, error)

	// ReadVec2Accessor reads a VEC2 accessor. Normalized integer components are mapped to [0, 1]
	// or [-1, 1].
	ReadVec2Accessor(index int) ([][2]float32, error)

	// ReadVec3Accessor reads a VEC3 accessor.
	ReadVec3Accessor(index int) ([][3]float32, error)

	// ReadVec4Accessor reads a VEC4 accessor.
	ReadVec4Accessor(index int) ([][4]float32, error)

	// ReadIndicesAccessor reads a SCALAR accessor of unsigned byte, short or int components.
	ReadIndicesAccessor(index int) ([]uint32, error)
}

var _ gltfParser = &gltfParserImpl{}

// newGLTFParser creates a new glTF parser.
//
// Returns:
//   - gltfParser: a parser with no document loaded
func newGLTFParser() gltfParser {
	return &gltfParserImpl{}
}

func (p *gltfParserImpl) Document() *gltfDocument {
	return p.document
}

func (p *gltfParserImpl) BaseDir() string {
	return p.baseDir
}

func (p *gltfParserImpl) Parse(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	p.baseDir = filepath.Dir(path)

	isGLB := strings.EqualFold(filepath.Ext(path), ".glb") ||
		(len(data) >= 4 && binary.LittleEndian.Uint32(data) == gltfGLBMagic)
	return p.decode(data, isGLB)
}

func (p *gltfParserImpl) ParseReader(r io.Reader, isGLB bool) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read data: %w", err)
	}
	return p.decode(data, isGLB)
}

// decode unmarshals the JSON document, validates it and resolves every buffer.
func (p *gltfParserImpl) decode(data []byte, isGLB bool) error {
	jsonData, bin := data, []byte(nil)
	if isGLB {
		var err error
		if jsonData, bin, err = splitGLB(data); err != nil {
			return err
		}
	}

	var doc gltfDocument
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return fmt.Errorf("failed to parse glTF JSON: %w", err)
	}
	if !strings.HasPrefix(doc.Asset.Version, "2.") {
		return errInvalidGLTFVersion
	}
	if len(doc.ExtensionsRequired) > 0 {
		return fmt.Errorf("%w: %s", errUnsupportedExtension, strings.Join(doc.ExtensionsRequired, ", "))
	}

	for i := range doc.Buffers {
		buf := &doc.Buffers[i]
		switch {
		case buf.URI == "" && i == 0 && bin != nil:
			buf.Data = bin
		case buf.URI == "":
			return fmt.Errorf("buffer %d has no URI and no GLB binary chunk", i)
		case strings.HasPrefix(buf.URI, "data:"):
			decoded, _, err := gltfDecodeDataURI(buf.URI)
			if err != nil {
				return fmt.Errorf("buffer %d: %w", i, err)
			}
			buf.Data = decoded
		default:
			file, err := os.ReadFile(filepath.Join(p.baseDir, buf.URI))
			if err != nil {
				return fmt.Errorf("buffer %d: %w", i, err)
			}
			buf.Data = file
		}
		if len(buf.Data) < buf.ByteLength {
			return fmt.Errorf("buffer %d: %w", i, errBufferSizeMismatch)
		}
	}

	p.document = &doc
	return nil
}

// splitGLB returns the JSON chunk and the optional BIN chunk of a GLB container.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#glb-file-format-specification
func splitGLB(data []byte) (jsonData, bin []byte, err error) {
	r := bytes.NewReader(data)
	var header gltfGLBHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, nil, fmt.Errorf("failed to read GLB header: %w", err)
	}
	switch {
	case header.Magic != gltfGLBMagic:
		return nil, nil, errInvalidGLBMagic
	case header.Version != gltfGLBVersion:
		return nil, nil, errInvalidGLBVersion
	case header.Length < 12 || int(header.Length) > len(data):
		return nil, nil, fmt.Errorf("GLB header declares %d bytes, file has %d", header.Length, len(data))
	}

	rest := data[12:header.Length]
	for len(rest) >= 8 {
		length := binary.LittleEndian.Uint32(rest)
		kind := binary.LittleEndian.Uint32(rest[4:])
		rest = rest[8:]
		if int(length) > len(rest) {
			return nil, nil, fmt.Errorf("GLB chunk of %d bytes exceeds the file", length)
		}
		chunk := rest[:length]
		rest = rest[length:]

		switch {
		case kind == gltfGLBChunkJSON && jsonData == nil:
			jsonData = chunk
		case kind == gltfGLBChunkBIN && bin == nil:
			bin = chunk
		}
	}
	if jsonData == nil {
		return nil, nil, errMissingJSONChunk
	}
	return jsonData, bin, nil
}

func (p *gltfParserImpl) BufferView(index int) ([]byte, error) {
	if p.document == nil {
		return nil, errors.New("no document loaded")
	}
	if index < 0 || index >= len(p.document.BufferViews) {
		return nil, fmt.Errorf("bufferView index %d out of range", index)
	}
	bv := &p.document.BufferViews[index]
	if bv.Buffer < 0 || bv.Buffer >= len(p.document.Buffers) {
		return nil, fmt.Errorf("buffer index %d out of range", bv.Buffer)
	}
	data := p.document.Buffers[bv.Buffer].Data
	if bv.ByteOffset < 0 || bv.ByteLength < 0 || bv.ByteOffset+bv.ByteLength > len(data) {
		return nil, fmt.Errorf("bufferView %d: %w", index, errBufferSizeMismatch)
	}
	return data[bv.ByteOffset : bv.ByteOffset+bv.ByteLength], nil
}

// accessorView is a strided window over the bytes backing an accessor.
type accessorView struct {
	data          []byte
	stride        int
	componentType int
	componentSize int
	components    int
	normalized    bool
}

// element returns the bytes of component c of element i.
func (v accessorView) element(i, c int) []byte {
	off := i*v.stride + c*v.componentSize
	return v.data[off : off+v.componentSize]
}

// float decodes component c of element i.
func (v accessorView) float(i, c int) float32 {
	return gltfDecodeComponent(v.element(i, c), v.componentType, v.normalized)
}

// view resolves accessor index and checks that count elements of the given type fit. The view has
// no data when the accessor has no buffer view.
func (p *gltfParserImpl) view(index int, accessorType string) (*gltfAccessor, accessorView, error) {
	if p.document == nil {
		return nil, accessorView{}, errors.New("no document loaded")
	}
	if index < 0 || index >= len(p.document.Accessors) {
		return nil, accessorView{}, fmt.Errorf("accessor index %d out of range", index)
	}
	acc := &p.document.Accessors[index]
	if acc.Type != accessorType {
		return nil, accessorView{}, fmt.Errorf("accessor %d is %s, want %s", index, acc.Type, accessorType)
	}
	size, ok := gltfComponentSizes[acc.ComponentType]
	if !ok {
		return nil, accessorView{}, fmt.Errorf("accessor %d: unknown component type %d", index, acc.ComponentType)
	}

	v := accessorView{
		componentType: acc.ComponentType,
		componentSize: size,
		components:    gltfComponentCounts[accessorType],
		normalized:    acc.Normalized,
	}
	v.stride = v.componentSize * v.components
	if acc.BufferView == nil || acc.Count == 0 {
		return acc, v, nil
	}

	data, err := p.BufferView(*acc.BufferView)
	if err != nil {
		return nil, accessorView{}, err
	}
	if stride := p.document.BufferViews[*acc.BufferView].ByteStride; stride != nil && *stride > 0 {
		v.stride = *stride
	}
	if acc.ByteOffset < 0 || acc.ByteOffset+(acc.Count-1)*v.stride+v.componentSize*v.components > len(data) {
		return nil, accessorView{}, fmt.Errorf("accessor %d: %w", index, errBufferSizeMismatch)
	}
	v.data = data[acc.ByteOffset:]
	return acc, v, nil
}

// readFloats reads an accessor as count*components floats, with sparse substitutions applied.
func (p *gltfParserImpl) readFloats(index int, accessorType string) ([]float32, error) {
	acc, v, err := p.view(index, accessorType)
	if err != nil {
		return nil, err
	}
	if acc.ComponentType == gltfComponentTypeUnsignedInt {
		return nil, fmt.Errorf("accessor %d: unsigned int components are not valid vertex data", index)
	}

	out := make([]float32, acc.Count*v.components)
	if v.data != nil {
		for i := range acc.Count {
			for c := range v.components {
				out[i*v.components+c] = v.float(i, c)
			}
		}
	}
	if acc.Sparse != nil {
		if err := p.applySparse(acc, v, out); err != nil {
			return nil, fmt.Errorf("accessor %d: %w", index, err)
		}
	}
	return out, nil
}

// applySparse overwrites the elements listed in the accessor's sparse block.
func (p *gltfParserImpl) applySparse(acc *gltfAccessor, v accessorView, out []float32) error {
	sp := acc.Sparse
	indexSize, ok := gltfComponentSizes[sp.Indices.ComponentType]
	if !ok || sp.Indices.ComponentType == gltfComponentTypeFloat {
		return fmt.Errorf("sparse index component type %d", sp.Indices.ComponentType)
	}
	indexData, err := p.BufferView(sp.Indices.BufferView)
	if err != nil {
		return err
	}
	valueData, err := p.BufferView(sp.Values.BufferView)
	if err != nil {
		return err
	}
	elemSize := v.componentSize * v.components
	if sp.Count < 0 ||
		sp.Indices.ByteOffset+sp.Count*indexSize > len(indexData) ||
		sp.Values.ByteOffset+sp.Count*elemSize > len(valueData) {
		return fmt.Errorf("sparse block: %w", errBufferSizeMismatch)
	}

	values := accessorView{
		data:          valueData[sp.Values.ByteOffset:],
		stride:        elemSize,
		componentType: v.componentType,
		componentSize: v.componentSize,
		components:    v.components,
		normalized:    v.normalized,
	}
	for s := range sp.Count {
		off := sp.Indices.ByteOffset + s*indexSize
		target := int(gltfDecodeIndex(indexData[off:off+indexSize], sp.Indices.ComponentType))
		if target >= acc.Count {
			return fmt.Errorf("sparse index %d out of range", target)
		}
		for c := range v.components {
			out[target*v.components+c] = values.float(s, c)
		}
	}
	return nil
}

func (p *gltfParserImpl) ReadVec2Accessor(index int) ([][2]float32, error) {
	return readVectors[[2]float32](p, index, gltfAccessorTypeVec2)
}

func (p *gltfParserImpl) ReadVec3Accessor(index int) ([][3]float32, error) {
	return readVectors[[3]float32](p, index, gltfAccessorTypeVec3)
}

func (p *gltfParserImpl) ReadVec4Accessor(index int) ([][4]float32, error) {
	return readVectors[[4]float32](p, index, gltfAccessorTypeVec4)
}

// readVectors regroups the flat floats of an accessor into fixed-size vectors.
func readVectors[T [2]float32 | [3]float32 | [4]float32](p *gltfParserImpl, index int, accessorType string) ([]T, error) {
	flat, err := p.readFloats(index, accessorType)
	if err != nil {
		return nil, err
	}
	var zero T
	n := len(zero)
	out := make([]T, len(flat)/n)
	for i := range out {
		for c := 0; c < n; c++ {
			out[i][c] = flat[i*n+c]
		}
	}
	return out, nil
}

func (p *gltfParserImpl) ReadIndicesAccessor(index int) ([]uint32, error) {
	acc, v, err := p.view(index, gltfAccessorTypeScalar)
	if err != nil {
		return nil, err
	}
	switch acc.ComponentType {
	case gltfComponentTypeUnsignedByte, gltfComponentTypeUnsignedShort, gltfComponentTypeUnsignedInt:
	default:
		return nil, fmt.Errorf("unsupported index component type: %d", acc.ComponentType)
	}
	if v.data == nil || acc.Sparse != nil {
		return nil, fmt.Errorf("index accessor %d must be dense", index)
	}

	out := make([]uint32, acc.Count)
	for i := range out {
		out[i] = gltfDecodeIndex(v.element(i, 0), acc.ComponentType)
	}
	return out, nil
}

// gltfDecodeIndex decodes one little-endian unsigned integer component.
func gltfDecodeIndex(b []byte, componentType int) uint32 {
	switch componentType {
	case gltfComponentTypeUnsignedByte:
		return uint32(b[0])
	case gltfComponentTypeUnsignedShort:
		return uint32(binary.LittleEndian.Uint16(b))
	default:
		return binary.LittleEndian.Uint32(b)
	}
}

// gltfDecodeComponent decodes one little-endian component as float32. Normalized integers map to
// [0, 1] when unsigned and to [-1, 1] when signed.
func gltfDecodeComponent(b []byte, componentType int, normalized bool) float32 {
	var v, scale float32
	switch componentType {
	case gltfComponentTypeFloat:
		return math.Float32frombits(binary.LittleEndian.Uint32(b))
	case gltfComponentTypeByte:
		v, scale = float32(int8(b[0])), 127
	case gltfComponentTypeUnsignedByte:
		v, scale = float32(b[0]), 255
	case gltfComponentTypeShort:
		v, scale = float32(int16(binary.LittleEndian.Uint16(b))), 32767
	case gltfComponentTypeUnsignedShort:
		v, scale = float32(binary.LittleEndian.Uint16(b)), 65535
	default:
		v, scale = float32(binary.LittleEndian.Uint32(b)), 1
	}
	if !normalized {
		return v
	}
	return max(v/scale, -1)
}
