// Package pass records the three passes of a deferred frame (G-buffer, shadow cascades and
// lighting resolve) into renderer encoders, and owns the per-frame-slot GPU resources they read
// and write.
package pass

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-deferred/engine/shadow"
	"github.com/go-gl/mathgl/mgl32"
)

// Frame is the camera and light state of one frame. It is produced once per frame and read by
// every pass without modification.
type Frame struct {
	View          mgl32.Mat4
	Projection    mgl32.Mat4
	InvView       mgl32.Mat4
	InvProjection mgl32.Mat4
	Position      mgl32.Vec3
	Near          float32
	Far           float32
	// Viewport is the render target size in pixels.
	Viewport [2]float32
	Light    light.Params
}

// NewFrame snapshots a camera and a light.
//
// Parameters:
//   - c: the camera, already updated for this frame
//   - l: the directional light
//   - width, height: the render target size in pixels
//
// Returns:
//   - Frame: the snapshot
func NewFrame(c camera.Camera, l light.DirectionalLight, width, height int) Frame {
	return Frame{
		View:          c.ViewMatrix(),
		Projection:    c.ProjectionMatrix(),
		InvView:       c.InverseViewMatrix(),
		InvProjection: c.InverseProjectionMatrix(),
		Position:      c.Position(),
		Near:          c.Near(),
		Far:           c.Far(),
		Viewport:      [2]float32{float32(width), float32(height)},
		Light:         l.Params(),
	}
}

// CameraView returns the camera state the cascade calculator fits to.
func (f Frame) CameraView() shadow.CameraView {
	return shadow.CameraView{View: f.View, Projection: f.Projection, Near: f.Near, Far: f.Far}
}

// CameraUniform packs the camera part of the frame for upload.
func (f Frame) CameraUniform() camera.GPUCameraUniform {
	return camera.GPUCameraUniform{
		View:     f.View,
		Proj:     f.Projection,
		ViewProj: f.Projection.Mul4(f.View),
		InvView:  f.InvView,
		InvProj:  f.InvProjection,
		Position: f.Position,
		Near:     f.Near,
		Viewport: f.Viewport,
		Far:      f.Far,
	}
}

// DrawItem is one mesh drawn with one material at one instance of the frame's instance store.
type DrawItem struct {
	Mesh     gpu.Mesh
	Material material.Material
	// Instance is the compact index returned by the instance store's Append.
	Instance uint32
}
