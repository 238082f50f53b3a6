package arbor_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/canvas"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/pointer"
)

// ExampleDesigner_drag drags one box below its sibling with the mouse.
func ExampleDesigner_drag() {
	rects := canvas.NewRectTable(map[string]domain.Rect{
		"root": {Width: 100, Height: 100},
		"A":    {Width: 80, Height: 40},
		"B":    {Y: 50, Width: 80, Height: 40},
	})
	d, err := arbor.New(arbor.WithRectSource(rects))
	if err != nil {
		log.Fatal(err)
	}
	defer d.Close()

	if _, err := d.Populate([]byte(`{"id":"root","component":"Body","children":[
		{"id":"A","component":"Box"},
		{"id":"B","component":"Box"}
	]}`)); err != nil {
		log.Fatal(err)
	}

	d.HandleInput(pointer.MouseEvent{Phase: pointer.PhaseDown, Target: "A", Page: domain.Point{X: 40, Y: 20}})
	d.HandleInput(pointer.MouseEvent{Phase: pointer.PhaseMove, Page: domain.Point{X: 90, Y: 20}})
	d.HandleInput(pointer.MouseEvent{Phase: pointer.PhaseMove, Page: domain.Point{X: 90, Y: 75}})
	d.HandleInput(pointer.MouseEvent{Phase: pointer.PhaseUp, Page: domain.Point{X: 90, Y: 75}})
	if err := d.Flush(context.Background()); err != nil {
		log.Fatal(err)
	}

	root, _ := d.Store().FindInstance("root")
	for _, c := range root.Children {
		fmt.Println(c.Instance.ID)
	}
	// Output:
	// B
	// A
}
