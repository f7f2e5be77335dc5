package pool

// Parameter is a named trainable tensor owned by a pooler. The Data slice is
// the pooler's live storage: writing into it (a checkpoint load, an external
// optimizer step) changes what the next Forward call computes. Forward itself
// never mutates parameters.
type Parameter struct {
	Name      string
	Data      []float32
	Shape     []int
	Trainable bool
}

// numel returns the element count implied by the parameter's shape.
func (p Parameter) numel() int {
	n := 1
	for _, d := range p.Shape {
		n *= d
	}
	return n
}
