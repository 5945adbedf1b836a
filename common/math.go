package common

import (
	"unsafe"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// Perspective creates a right-handed perspective projection matrix mapping view depth
// [near, far] onto the WebGPU clip-space depth range [0, 1].
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
//
// Returns:
//   - mgl32.Mat4: the column-major projection matrix
func Perspective(fovY, aspect, near, far float32) mgl32.Mat4 {
	f := 1.0 / math32.Tan(fovY/2.0)
	var out mgl32.Mat4
	out[0] = f / aspect
	out[5] = f
	out[10] = far / (near - far)
	out[11] = -1.0
	out[14] = (near * far) / (near - far)
	return out
}

// Ortho builds an orthographic projection matrix compatible with WebGPU's
// clip-space convention: X/Y in [-1, 1], Z in [0, 1]. Output is column-major.
//
// Parameters:
//   - left, right, bottom, top: view-space extents of the box
//   - near, far: distances along -Z of the depth range
//
// Returns:
//   - mgl32.Mat4: the column-major projection matrix
func Ortho(left, right, bottom, top, near, far float32) mgl32.Mat4 {
	out := mgl32.Ident4()
	rl := right - left
	tb := top - bottom
	fn := far - near

	out[0] = 2.0 / rl
	out[5] = 2.0 / tb
	out[10] = -1.0 / fn
	out[12] = -(right + left) / rl
	out[13] = -(top + bottom) / tb
	out[14] = -near / fn
	return out
}

// BuildModelMatrix constructs a 4x4 model matrix from position, Euler rotation, and scale.
// The rotation order is Y * X * Z (yaw-pitch-roll).
//
// Parameters:
//   - pos: translation in world space
//   - rot: rotation angles in radians around each axis
//   - scale: scale factors along each axis
//
// Returns:
//   - mgl32.Mat4: the composed model matrix
func BuildModelMatrix(pos, rot, scale mgl32.Vec3) mgl32.Mat4 {
	r := mgl32.HomogRotate3DY(rot[1]).
		Mul4(mgl32.HomogRotate3DX(rot[0])).
		Mul4(mgl32.HomogRotate3DZ(rot[2]))
	return mgl32.Translate3D(pos[0], pos[1], pos[2]).
		Mul4(r).
		Mul4(mgl32.Scale3D(scale[0], scale[1], scale[2]))
}

// Project transforms a point by a 4x4 matrix and applies the perspective divide.
//
// Parameters:
//   - m: the transform (e.g. a view-projection matrix)
//   - p: the point to transform
//
// Returns:
//   - mgl32.Vec3: the transformed point after division by w
func Project(m mgl32.Mat4, p mgl32.Vec3) mgl32.Vec3 {
	v := m.Mul4x1(p.Vec4(1))
	return v.Vec3().Mul(1 / v[3])
}

// NormalMatrix returns the inverse-transpose of the upper 3x3 of a model matrix, which keeps
// normals perpendicular to surfaces under non-uniform scale. When the upper 3x3 is singular the
// upper 3x3 itself is returned and ok is false.
//
// Parameters:
//   - model: the model matrix
//
// Returns:
//   - mgl32.Mat3: the normal matrix
//   - bool: false when the fallback was used
func NormalMatrix(model mgl32.Mat4) (mgl32.Mat3, bool) {
	upper := model.Mat3()
	det := upper.Det()
	if math32.Abs(det) < 1e-12 || !finite(det) {
		return upper, false
	}
	return upper.Inv().Transpose(), true
}

// IsFinite reports whether every element of m is a finite number.
//
// Parameters:
//   - m: the matrix to check
//
// Returns:
//   - bool: false if any element is NaN or infinite
func IsFinite(m mgl32.Mat4) bool {
	for _, v := range m {
		if !finite(v) {
			return false
		}
	}
	return true
}

// IsFiniteVec3 reports whether every component of v is a finite number.
func IsFiniteVec3(v mgl32.Vec3) bool {
	return finite(v[0]) && finite(v[1]) && finite(v[2])
}

func finite(v float32) bool {
	return !math32.IsNaN(v) && !math32.IsInf(v, 0)
}

// SnapToTexel shifts the translation of an orthographic view-projection matrix so the
// world origin lands on a texel center of a resolution x resolution target. Keeping the
// projection aligned to the texel grid stops shadow edges from shimmering as the camera moves.
//
// Parameters:
//   - vp: the view-projection matrix to snap
//   - resolution: target size in texels
//
// Returns:
//   - mgl32.Mat4: the snapped matrix
func SnapToTexel(vp mgl32.Mat4, resolution int) mgl32.Mat4 {
	origin := vp.Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	half := float32(resolution) / 2
	sx := math32.Round(origin[0]*half) / half
	sy := math32.Round(origin[1]*half) / half
	vp[12] += sx - origin[0]
	vp[13] += sy - origin[1]
	return vp
}
