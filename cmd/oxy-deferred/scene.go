package main

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/orchestrator"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/chewxy/math32"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	cubeSpacing = 3
	orbitSpeed  = 0.005
	sunSpeed    = 0.1
	spinSpeed   = 0.6
	modelSize   = 3
)

// demoScene is a ground plane under a grid of cubes lit by a slowly circling sun.
type demoScene struct {
	mu *sync.Mutex

	camera  camera.Camera
	orbiter camera.OrbitController
	sun     light.DirectionalLight

	ground     orchestrator.Draw
	cubes      []orchestrator.Draw
	cubeOrigin []mgl32.Vec3
	imported   []orchestrator.Draw

	sunAngle  float32
	spin      float32
	sunPaused bool
}

func newDemoScene(o orchestrator.Orchestrator, grid, width, height int, models []model.Model) (*demoScene, error) {
	if grid < 1 {
		return nil, fmt.Errorf("grid must be positive, got %d", grid)
	}
	plane := model.NewPlane(float32(grid*cubeSpacing + 20))
	cube := model.NewCube(1)
	planeMesh, err := o.RegisterMesh(plane)
	if err != nil {
		return nil, err
	}
	cubeMesh, err := o.RegisterMesh(cube)
	if err != nil {
		return nil, err
	}

	groundMat := material.NewMaterial(
		material.WithName("ground"),
		material.WithTexture(material.ChannelBaseColor, checkerTexture(64, 8)),
	)
	palette := []material.Material{
		material.NewMaterial(material.WithName("red"), material.WithBaseColor([4]float32{0.8, 0.2, 0.2, 1})),
		material.NewMaterial(material.WithName("green"), material.WithBaseColor([4]float32{0.2, 0.7, 0.3, 1})),
		material.NewMaterial(material.WithName("blue"), material.WithBaseColor([4]float32{0.2, 0.35, 0.8, 1})),
		material.NewMaterial(material.WithName("white"), material.WithTexture(material.ChannelBaseColor, common.SolidTexture(1, 1, [4]byte{230, 230, 220, 255}))),
	}
	for _, m := range append([]material.Material{groundMat}, palette...) {
		if err := o.RegisterMaterial(m); err != nil {
			return nil, err
		}
	}

	orbiter := camera.NewOrbitController(
		camera.WithRadius(float32(grid*cubeSpacing)*1.5),
		camera.WithAngles(0.6, 0.5),
		camera.WithRadiusBounds(3, 150),
	)
	s := &demoScene{
		mu:      &sync.Mutex{},
		orbiter: orbiter,
		camera: camera.NewCamera(
			camera.WithAspect(float32(width)/float32(max(height, 1))),
			camera.WithFar(200),
			camera.WithController(orbiter),
		),
		sun: light.NewDirectionalLight(
			light.WithDirection(-0.4, -1, -0.3),
			light.WithColor(1, 0.96, 0.88),
			light.WithIntensity(1.2),
			light.WithAmbient(0.55, 0.65, 0.85, 0.15),
		),
		ground: orchestrator.Draw{Mesh: planeMesh, Material: groundMat, Transform: mgl32.Ident4()},
	}

	half := float32(grid-1) * cubeSpacing / 2
	for i := range grid * grid {
		x, z := i%grid, i/grid
		origin := mgl32.Vec3{float32(x)*cubeSpacing - half, 1.5, float32(z)*cubeSpacing - half}
		s.cubeOrigin = append(s.cubeOrigin, origin)
		s.cubes = append(s.cubes, orchestrator.Draw{Mesh: cubeMesh, Material: palette[i%len(palette)]})
	}

	if err := s.addModels(o, models, half+cubeSpacing+modelSize); err != nil {
		return nil, err
	}
	return s, nil
}

// addModels registers loaded models and places them, scaled to a common size, beside the grid.
func (s *demoScene) addModels(o orchestrator.Orchestrator, models []model.Model, offset float32) error {
	var radius float32
	for _, m := range models {
		radius = max(radius, m.BoundingRadius())
	}
	if radius == 0 {
		return nil
	}
	scale := modelSize / radius
	transform := mgl32.Translate3D(offset, modelSize, 0).Mul4(mgl32.Scale3D(scale, scale, scale))

	for _, m := range models {
		if err := o.RegisterMaterial(m.Material()); err != nil {
			return err
		}
		mesh, err := o.RegisterMesh(m)
		if err != nil {
			return err
		}
		s.imported = append(s.imported, orchestrator.Draw{Mesh: mesh, Material: m.Material(), Transform: transform})
	}
	return nil
}

// checkerTexture builds a two-tone checkerboard of size x size texels with cells texels per square.
func checkerTexture(size, cells uint32) common.TextureStagingData {
	pixels := make([]byte, 0, size*size*4)
	for y := range size {
		for x := range size {
			shade := byte(90)
			if (x/cells+y/cells)%2 == 0 {
				shade = 170
			}
			pixels = append(pixels, shade, shade, shade, 255)
		}
	}
	return common.TextureStagingData{Pixels: pixels, Width: size, Height: size}
}

// tick advances the animation. It runs on the engine's tick goroutine.
func (s *demoScene) tick(dt float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spin += dt * spinSpeed
	if s.sunPaused {
		return
	}
	s.sunAngle += dt * sunSpeed
	s.sun.SetDirection(math32.Cos(s.sunAngle)*0.5, -1, math32.Sin(s.sunAngle)*0.5)
}

// frame builds the frame input on the render goroutine.
func (s *demoScene) frame(float32) orchestrator.FrameInput {
	s.camera.Update()

	s.mu.Lock()
	spin := s.spin
	s.mu.Unlock()

	draws := make([]orchestrator.Draw, 0, len(s.cubes)+len(s.imported)+1)
	draws = append(draws, s.ground)
	draws = append(draws, s.imported...)
	for i, d := range s.cubes {
		phase := spin + float32(i)*0.37
		d.Transform = mgl32.Translate3D(s.cubeOrigin[i].Elem()).
			Mul4(mgl32.HomogRotate3DY(phase)).
			Mul4(mgl32.HomogRotate3DX(phase * 0.5)).
			Mul4(mgl32.Scale3D(1.5, 1.5, 1.5))
		draws = append(draws, d)
	}
	return orchestrator.FrameInput{Camera: s.camera, Light: s.sun, Draws: draws}
}

func (s *demoScene) resize(width, height int) {
	s.camera.SetAspect(float32(width) / float32(height))
}

func (s *demoScene) zoom(delta float32) {
	s.orbiter.Zoom(delta)
}

func (s *demoScene) orbit(dx, dy float32) {
	s.orbiter.Orbit(-dx*orbitSpeed, dy*orbitSpeed)
}

func (s *demoScene) key(code uint32) {
	if glfw.Key(code) != glfw.KeySpace {
		return
	}
	s.mu.Lock()
	s.sunPaused = !s.sunPaused
	s.mu.Unlock()
}
