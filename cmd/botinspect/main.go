// Command botinspect preps a test solid and fires a single ray through it,
// printing the resulting segments. It exists to exercise pkg/bot's public
// API end to end from outside its test suite.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/chazu/librt/pkg/bot"
	"github.com/chazu/librt/pkg/bot/sdfbridge"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

func main() {
	var (
		size  = flag.Float64("size", 2, "edge length of the test cube solid")
		cells = flag.Int("cells", sdfbridge.DefaultCells, "marching-cubes resolution")
		tol   = flag.Float64("tol", 1e-6, "geometric tolerance")
		ox    = flag.Float64("ox", -10, "ray origin X")
		oy    = flag.Float64("oy", 0, "ray origin Y")
		oz    = flag.Float64("oz", 0, "ray origin Z")
		dx    = flag.Float64("dx", 1, "ray direction X")
		dy    = flag.Float64("dy", 0, "ray direction Y")
		dz    = flag.Float64("dz", 0, "ray direction Z")
	)
	flag.Parse()

	box, err := sdf.Box3D(v3.Vec{X: *size, Y: *size, Z: *size}, 0)
	if err != nil {
		log.Fatalf("sdf.Box3D: %v", err)
	}

	mesh, err := sdfbridge.FromSDF3(box, *cells, *tol)
	if err != nil {
		log.Fatalf("sdfbridge.FromSDF3: %v", err)
	}
	log.Printf("tessellated solid into %d faces, %d vertices", len(mesh.Faces), len(mesh.Vertices))

	prepped, err := bot.Prep(mesh, *tol)
	if err != nil {
		log.Fatalf("bot.Prep: %v", err)
	}

	ray := bot.Ray{
		Origin: bot.Vec3{X: *ox, Y: *oy, Z: *oz},
		Dir:    bot.Vec3{X: *dx, Y: *dy, Z: *dz},
	}

	var segs bot.SegList
	n, err := bot.Shot(prepped, ray, &segs, bot.Application{})
	if err != nil {
		log.Fatalf("bot.Shot: %v", err)
	}

	if n == 0 {
		fmt.Fprintln(os.Stdout, "no hit")
		return
	}
	for i, s := range segs.Segments {
		fmt.Printf("segment %d: in=%.6f out=%.6f\n", i, s.In.T, s.Out.T)
	}
}
