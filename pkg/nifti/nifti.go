package nifti

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"
	"strings"

	niftilib "github.com/henghuang/nifti"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"

	"niftitostl/internal/models"
)

// maxDeflateRatio is the largest expansion a deflate stream can achieve.
const maxDeflateRatio = 1032

// ReadFile loads a .nii or .nii.gz file. Files ending in .gz are read as
// gzip streams. Only the first volume of a 4D series is kept.
func ReadFile(path string, frame Frame) (*models.Volume, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	lh, err := safelyLoadHeader(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read header of %s", path)
	}
	h := headerFromLibrary(&lh)
	if err := h.validate(); err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	nx, ny, nz, err := h.dims()
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	size, err := bytesPerVoxel(h.Datatype)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	if err := checkPayload(h, size, info.Size(), strings.HasSuffix(path, ".gz")); err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	geometry, err := geometryFromHeader(h)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	img, err := safelyLoadImage(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read voxels of %s", path)
	}

	vol := models.NewVolume(nx, ny, nz, toFrame(geometry, frame))
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				vol.Set(x, y, z, float64(img.GetAt(x, y, z, 0)))
			}
		}
	}
	return vol, nil
}

// checkPayload fails when the header claims more voxel data than a file of
// fileSize bytes can hold, before anything is allocated for it. The data of
// every time point is counted since the whole series is decoded.
func checkPayload(h *header, bytesPerVoxel int, fileSize int64, compressed bool) error {
	need := int64(bytesPerVoxel)
	ndim := int(h.Dim[0])
	for i := 1; i <= ndim; i++ {
		if h.Dim[i] > 0 {
			need *= int64(h.Dim[i])
		}
	}
	offset := int64(h.VoxOffset)
	if offset < dataOffset {
		offset = dataOffset
	}

	limit := fileSize - offset
	if compressed {
		limit = fileSize * maxDeflateRatio
	}
	if need > limit {
		return errors.Errorf("header claims %d bytes of voxel data, file can hold at most %d", need, max(limit, 0))
	}
	return nil
}

// safelyLoadHeader turns panics raised by the nifti library on malformed
// input into errors.
func safelyLoadHeader(path string) (hdr niftilib.Nifti1Header, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("%v", r)
		}
	}()

	hdr.LoadHeader(path)

	return
}

// safelyLoadImage is safelyLoadHeader for the header and voxel data.
func safelyLoadImage(path string) (img niftilib.Nifti1Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("%v", r)
		}
	}()

	img.LoadImage(path, true)

	return
}

// headerFromLibrary copies the fields geometry and validation need out of
// the library's header.
func headerFromLibrary(lh *niftilib.Nifti1Header) *header {
	h := &header{
		SizeofHdr: int32(lh.SizeofHdr),
		Datatype:  int16(lh.Datatype),
		Bitpix:    int16(lh.Bitpix),
		VoxOffset: float32(lh.VoxOffset),
		SclSlope:  float32(lh.SclSlope),
		SclInter:  float32(lh.SclInter),
		QformCode: int16(lh.QformCode),
		SformCode: int16(lh.SformCode),
		QuaternB:  float32(lh.QuaternB),
		QuaternC:  float32(lh.QuaternC),
		QuaternD:  float32(lh.QuaternD),
		QOffsetX:  float32(lh.QoffsetX),
		QOffsetY:  float32(lh.QoffsetY),
		QOffsetZ:  float32(lh.QoffsetZ),
	}
	for i := range h.Dim {
		h.Dim[i] = int16(lh.Dim[i])
		h.Pixdim[i] = float32(lh.Pixdim[i])
	}
	for i := range h.SrowX {
		h.SrowX[i] = float32(lh.SrowX[i])
		h.SrowY[i] = float32(lh.SrowY[i])
		h.SrowZ[i] = float32(lh.SrowZ[i])
	}
	for i := range h.Magic {
		h.Magic[i] = byte(lh.Magic[i])
	}
	return h
}

// WriteFile stores a volume as little-endian NIfTI-1. The nifti library only
// reads, so the header is encoded here. Paths ending in .gz
// are gzip-compressed. The geometry is interpreted in the given frame and
// written as an sform.
func WriteFile(path string, vol *models.Volume, frame Frame) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	var w io.Writer = f
	var zw *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		zw = gzip.NewWriter(f)
		w = zw
	}

	if err := Write(w, vol, frame); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			f.Close()
			return errors.Wrapf(err, "compress %s", path)
		}
	}
	return f.Close()
}

// Write encodes an uncompressed NIfTI-1 stream. The narrowest data type
// that represents every voxel exactly is chosen.
func Write(w io.Writer, vol *models.Volume, frame Frame) error {
	if err := vol.Validate(); err != nil {
		return err
	}
	datatype, size := chooseDatatype(vol.Data)

	h := header{
		SizeofHdr: headerSize,
		Regular:   'r',
		Dim:       [8]int16{3, int16(vol.Width), int16(vol.Height), int16(vol.Depth), 1, 1, 1, 1},
		Datatype:  datatype,
		Bitpix:    int16(size * 8),
		Pixdim: [8]float32{1,
			float32(vol.Geometry.Spacing[0]),
			float32(vol.Geometry.Spacing[1]),
			float32(vol.Geometry.Spacing[2]),
			1, 1, 1, 1},
		VoxOffset: dataOffset,
		SclSlope:  1,
		XYZTUnits: xyztUnitsMMSec,
		SformCode: 1,
		Magic:     magicSingle,
	}
	copy(h.Descrip[:], "niftitostl")
	rows := sformRows(vol.Geometry, frame)
	h.SrowX, h.SrowY, h.SrowZ = rows[0], rows[1], rows[2]

	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, &h); err != nil {
		return errors.Wrap(err, "write header")
	}
	if _, err := bw.Write(make([]byte, dataOffset-headerSize)); err != nil {
		return errors.Wrap(err, "write extension flag")
	}
	if _, err := bw.Write(encodeVoxels(vol.Data, datatype, size)); err != nil {
		return errors.Wrap(err, "write voxels")
	}
	return bw.Flush()
}

func chooseDatatype(data []float64) (int16, int) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range data {
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return dtFloat64, 8
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	switch {
	case lo >= 0 && hi <= math.MaxUint8:
		return dtUint8, 1
	case lo >= math.MinInt16 && hi <= math.MaxInt16:
		return dtInt16, 2
	case lo >= math.MinInt32 && hi <= math.MaxInt32:
		return dtInt32, 4
	}
	return dtFloat64, 8
}

func encodeVoxels(data []float64, datatype int16, size int) []byte {
	var buf bytes.Buffer
	buf.Grow(len(data) * size)
	var scratch [8]byte
	for _, v := range data {
		switch datatype {
		case dtUint8:
			buf.WriteByte(uint8(v))
		case dtInt16:
			binary.LittleEndian.PutUint16(scratch[:], uint16(int16(v)))
			buf.Write(scratch[:2])
		case dtInt32:
			binary.LittleEndian.PutUint32(scratch[:], uint32(int32(v)))
			buf.Write(scratch[:4])
		default:
			binary.LittleEndian.PutUint64(scratch[:], math.Float64bits(v))
			buf.Write(scratch[:8])
		}
	}
	return buf.Bytes()
}
