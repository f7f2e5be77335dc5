package pool

import (
	"fmt"

	"github.com/crimson-sun/timbre/internal/tensor"
)

const (
	// aspBottleneck is ASP's fixed scorer width.
	aspBottleneck = 128
	// aspFloor is ASP's variance clamp, looser than ASTP's.
	aspFloor = 1e-5
)

func init() {
	Register("ASP", func(cfg Config) (Pooler, error) { return NewASP(cfg) })
}

// ASP is attentive statistics pooling with a ReLU+batchnorm scorer,
// traditionally paired with ResNet trunks whose (channel, frequency) planes
// are flattened into the channel axis.
type ASP struct {
	inDim int
	lin1  *pointwise
	bn    *batchNorm
	lin2  *pointwise
}

// NewASP creates an ASP pooler over cfg.InDim flattened channels.
func NewASP(cfg Config) (*ASP, error) {
	if cfg.InDim <= 0 {
		return nil, fmt.Errorf("asp: in_dim must be positive, got %d", cfg.InDim)
	}
	return &ASP{
		inDim: cfg.InDim,
		lin1:  newPointwise("attention.0", cfg.InDim, aspBottleneck),
		bn:    newBatchNorm("attention.2", aspBottleneck),
		lin2:  newPointwise("attention.3", aspBottleneck, cfg.InDim),
	}, nil
}

func (p *ASP) OutDim() int { return 2 * p.inDim }

func (p *ASP) Parameters() []Parameter {
	params := p.lin1.parameters()
	params = append(params, p.bn.parameters()...)
	return append(params, p.lin2.parameters()...)
}

func (p *ASP) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	x, err := checkInput(x, p.inDim)
	if err != nil {
		return nil, fmt.Errorf("asp: %w", err)
	}
	b, c, t := x.Dim(0), x.Dim(1), x.Dim(2)

	w := p.lin1.apply(x.Data, b, t)
	reluInPlace(w)
	p.bn.apply(w, b, t)
	w = p.lin2.apply(w, b, t)
	softmaxTime(w, b*c, t)

	mean, std := weightedMoments(x.Data, w, b, c, c, t, aspFloor)
	out := make([]float32, b*2*c)
	for i := 0; i < b; i++ {
		copy(out[i*2*c:], mean[i*c:(i+1)*c])
		copy(out[i*2*c+c:], std[i*c:(i+1)*c])
	}
	return &tensor.Tensor{Data: out, Shape: []int{b, 2 * c}}, nil
}
