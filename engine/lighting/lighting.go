// Package lighting is the host-side reference of the lighting resolve pass. Every function mirrors
// a step of the resolve shader so its results can be checked without a GPU.
package lighting

import (
	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/shadow"
	"github.com/go-gl/mathgl/mgl32"
)

// FarSentinel is the cleared G-buffer depth. Pixels at or beyond it hold no geometry.
const FarSentinel float32 = 1.0

// ReconstructWorldPosition recovers the world position of a G-buffer sample from its screen UV
// (origin top-left) and its clip-space depth.
//
// Parameters:
//   - invView: inverse camera view matrix
//   - invProj: inverse camera projection matrix
//   - uv: screen coordinate in [0, 1]
//   - depth: the stored G-buffer depth in [0, 1]
//
// Returns:
//   - mgl32.Vec3: the world-space position
func ReconstructWorldPosition(invView, invProj mgl32.Mat4, uv mgl32.Vec2, depth float32) mgl32.Vec3 {
	ndc := mgl32.Vec4{uv.X()*2 - 1, 1 - uv.Y()*2, depth, 1}
	view := invProj.Mul4x1(ndc)
	p := view.Vec3().Mul(1 / view.W())
	return invView.Mul4x1(p.Vec4(1)).Vec3()
}

// ViewDepth returns the camera view depth of a world position, positive in front of the camera.
func ViewDepth(view mgl32.Mat4, world mgl32.Vec3) float32 {
	return -view.Mul4x1(world.Vec4(1)).Z()
}

// ProjectToShadow offsets a world position along its normal by the cascade's normal bias and
// projects it into the cascade's shadow map.
//
// Parameters:
//   - c: the cascade
//   - world: the surface position
//   - normal: the unit surface normal
//
// Returns:
//   - mgl32.Vec2: shadow-map UV, origin top-left
//   - float32: light clip-space depth
func ProjectToShadow(c shadow.Cascade, world, normal mgl32.Vec3) (mgl32.Vec2, float32) {
	ndc := common.Project(c.ViewProj, world.Add(normal.Mul(c.NormalBias)))
	u, v := shadow.NDCToUV(ndc.X(), ndc.Y())
	return mgl32.Vec2{u, v}, ndc.Z()
}

// ShadowFactor returns how much of the light a surface point receives from a cascade, 0 fully lit
// and 1 fully shadowed. Points projecting outside the cascade are lit.
//
// Parameters:
//   - c: the cascade selected for the point
//   - m: the cascade's depth map, c.Resolution texels square
//   - world: the surface position
//   - normal: the unit surface normal
//
// Returns:
//   - float32: the shadow factor in [0, 1]
func ShadowFactor(c shadow.Cascade, m shadow.DepthMap, world, normal mgl32.Vec3) float32 {
	uv, depth := ProjectToShadow(c, world, normal)
	return shadow.ShadowFactor(m, uv, depth, c.DepthBias, min(c.PCFRadius, config.MaxPCFRadius))
}

// GrazingFade scales the shadow factor down as N.L approaches zero, hiding acne on surfaces nearly
// parallel to the light.
func GrazingFade(nDotL, start, end float32) float32 {
	return common.Smoothstep(start, end, nDotL)
}

// Shade combines Lambert diffuse attenuated by the shadow factor with the unshadowed ambient term.
//
// Parameters:
//   - albedo: linear surface color
//   - normal: unit surface normal
//   - shadowFactor: 0 lit, 1 shadowed
//   - p: the light snapshot
//
// Returns:
//   - mgl32.Vec3: the shaded linear color
func Shade(albedo, normal mgl32.Vec3, shadowFactor float32, p light.Params) mgl32.Vec3 {
	l := p.Direction.Normalize().Mul(-1)
	diffuse := p.Color.Mul(p.Intensity * max(normal.Dot(l), 0))
	ambient := p.AmbientColor.Mul(p.AmbientIntensity)
	lightSum := diffuse.Mul(1 - shadowFactor).Add(ambient)
	return mgl32.Vec3{albedo[0] * lightSum[0], albedo[1] * lightSum[1], albedo[2] * lightSum[2]}
}
