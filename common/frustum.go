package common

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// FrustumCorners holds the eight corners of a frustum or frustum slice. Indices 0-3 lie on the
// near plane and 4-7 on the far plane, in the order (-x,-y), (+x,-y), (+x,+y), (-x,+y).
type FrustumCorners [8]mgl32.Vec3

// ViewSpaceCorners unprojects the NDC cube through an inverse projection matrix. NDC depth 0 is
// the near plane and 1 the far plane (WebGPU convention).
//
// Parameters:
//   - invProj: inverse of the camera projection matrix
//
// Returns:
//   - FrustumCorners: the camera frustum corners in view space
func ViewSpaceCorners(invProj mgl32.Mat4) FrustumCorners {
	ndc := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	var c FrustumCorners
	for i, xy := range ndc {
		c[i] = Project(invProj, mgl32.Vec3{xy[0], xy[1], 0})
		c[i+4] = Project(invProj, mgl32.Vec3{xy[0], xy[1], 1})
	}
	return c
}

// Slice returns the sub-frustum between view depths d0 and d1. The receiver must be in view
// space with its near and far planes at view depths near and far. Frustum edges are straight
// lines along which view depth varies linearly, so each slice corner is a lerp of the edge's
// endpoints.
//
// Parameters:
//   - near, far: view depths of the receiver's near and far planes
//   - d0, d1: view depths bounding the slice
//
// Returns:
//   - FrustumCorners: the slice corners in view space
func (c FrustumCorners) Slice(near, far, d0, d1 float32) FrustumCorners {
	span := far - near
	t0 := (d0 - near) / span
	t1 := (d1 - near) / span
	var out FrustumCorners
	for i := range 4 {
		edge := c[i+4].Sub(c[i])
		out[i] = c[i].Add(edge.Mul(t0))
		out[i+4] = c[i].Add(edge.Mul(t1))
	}
	return out
}

// Transform applies m to every corner.
func (c FrustumCorners) Transform(m mgl32.Mat4) FrustumCorners {
	var out FrustumCorners
	for i, p := range c {
		out[i] = Project(m, p)
	}
	return out
}

// BoundingSphere returns the centroid of the corners and the distance to the farthest corner.
// The radius is not rounded.
//
// Returns:
//   - mgl32.Vec3: sphere center
//   - float32: sphere radius
func (c FrustumCorners) BoundingSphere() (mgl32.Vec3, float32) {
	var center mgl32.Vec3
	for _, p := range c {
		center = center.Add(p)
	}
	center = center.Mul(1.0 / 8.0)

	var radius float32
	for _, p := range c {
		radius = math32.Max(radius, p.Sub(center).Len())
	}
	return center, radius
}

// Bounds returns the axis-aligned bounding box of the corners.
//
// Returns:
//   - mgl32.Vec3: minimum corner
//   - mgl32.Vec3: maximum corner
func (c FrustumCorners) Bounds() (mgl32.Vec3, mgl32.Vec3) {
	lo := c[0]
	hi := c[0]
	for _, p := range c[1:] {
		for k := range 3 {
			lo[k] = math32.Min(lo[k], p[k])
			hi[k] = math32.Max(hi[k], p[k])
		}
	}
	return lo, hi
}
