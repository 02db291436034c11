// Package nifti loads single-file NIfTI-1 volumes (.nii and .nii.gz) as
// label volumes with their physical geometry, and writes label masks back
// out.
package nifti

import "github.com/pkg/errors"

const (
	headerSize = 348
	dataOffset = 352 // header plus the 4-byte extension flag
)

// NIfTI-1 data type codes.
const (
	dtUint8   = 2
	dtInt16   = 4
	dtInt32   = 8
	dtFloat32 = 16
	dtFloat64 = 64
	dtInt8    = 256
	dtUint16  = 512
	dtUint32  = 768
	dtInt64   = 1024
	dtUint64  = 1280
)

// Units: millimetres and seconds.
const xyztUnitsMMSec = 2 | 8

var (
	magicSingle = [4]byte{'n', '+', '1', 0}
	magicPair   = [4]byte{'n', 'i', '1', 0}
)

// header is the on-disk NIfTI-1 header. Field order and sizes match the
// 348-byte layout exactly, so Write can encode it with encoding/binary.
type header struct {
	SizeofHdr     int32
	DataType      [10]byte
	DBName        [18]byte
	Extents       int32
	SessionError  int16
	Regular       byte
	DimInfo       byte
	Dim           [8]int16
	IntentP1      float32
	IntentP2      float32
	IntentP3      float32
	IntentCode    int16
	Datatype      int16
	Bitpix        int16
	SliceStart    int16
	Pixdim        [8]float32
	VoxOffset     float32
	SclSlope      float32
	SclInter      float32
	SliceEnd      int16
	SliceCode     byte
	XYZTUnits     byte
	CalMax        float32
	CalMin        float32
	SliceDuration float32
	TOffset       float32
	GLMax         int32
	GLMin         int32
	Descrip       [80]byte
	AuxFile       [24]byte
	QformCode     int16
	SformCode     int16
	QuaternB      float32
	QuaternC      float32
	QuaternD      float32
	QOffsetX      float32
	QOffsetY      float32
	QOffsetZ      float32
	SrowX         [4]float32
	SrowY         [4]float32
	SrowZ         [4]float32
	IntentName    [16]byte
	Magic         [4]byte
}

// validate rejects headers that are not single-file NIfTI-1.
func (h *header) validate() error {
	if h.SizeofHdr != headerSize {
		return errors.Errorf("not a NIfTI-1 file: bad sizeof_hdr %d", h.SizeofHdr)
	}
	switch h.Magic {
	case magicSingle:
	case magicPair:
		return errors.New("detached header/image pairs are not supported")
	default:
		return errors.Errorf("bad magic %q", h.Magic[:])
	}
	return nil
}

// dims returns the spatial dimensions. Missing trailing dimensions read as 1.
func (h *header) dims() (nx, ny, nz int, err error) {
	ndim := int(h.Dim[0])
	if ndim < 1 || ndim > 7 {
		return 0, 0, 0, errors.Errorf("invalid dimension count %d", ndim)
	}
	d := [3]int{1, 1, 1}
	for i := 0; i < 3 && i < ndim; i++ {
		d[i] = int(h.Dim[i+1])
		if d[i] <= 0 {
			return 0, 0, 0, errors.Errorf("invalid size %d along axis %d", d[i], i)
		}
	}
	return d[0], d[1], d[2], nil
}

// bytesPerVoxel returns the storage size of the header's data type.
func bytesPerVoxel(datatype int16) (int, error) {
	switch datatype {
	case dtUint8, dtInt8:
		return 1, nil
	case dtInt16, dtUint16:
		return 2, nil
	case dtInt32, dtUint32, dtFloat32:
		return 4, nil
	case dtInt64, dtUint64, dtFloat64:
		return 8, nil
	}
	return 0, errors.Errorf("unsupported data type %d", datatype)
}
