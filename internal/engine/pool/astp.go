package pool

import (
	"fmt"

	"github.com/crimson-sun/timbre/internal/tensor"
)

// astpFloor clamps the attention-weighted variance before the square root.
const astpFloor = 1e-7

func init() {
	Register("ASTP", func(cfg Config) (Pooler, error) { return NewASTP(cfg) })
}

// ASTP is channel- and context-dependent attentive statistics pooling, as
// introduced in ECAPA-TDNN: a two-layer scorer produces a per-channel
// attention distribution over time, and the pooled output is the weighted
// mean and standard deviation.
type ASTP struct {
	inDim         int
	globalContext bool
	lin1          *pointwise
	lin2          *pointwise
}

// NewASTP creates an ASTP pooler. cfg.BottleneckDim defaults to 128. With
// cfg.GlobalContextAtt the scorer also sees the sequence-wide mean and
// standard deviation, tripling its input width.
func NewASTP(cfg Config) (*ASTP, error) {
	if cfg.InDim <= 0 {
		return nil, fmt.Errorf("astp: in_dim must be positive, got %d", cfg.InDim)
	}
	bottleneck := orDefault(cfg.BottleneckDim, 128)

	scorerIn := cfg.InDim
	if cfg.GlobalContextAtt {
		scorerIn = 3 * cfg.InDim
	}
	return &ASTP{
		inDim:         cfg.InDim,
		globalContext: cfg.GlobalContextAtt,
		lin1:          newPointwise("att.linear1", scorerIn, bottleneck),
		lin2:          newPointwise("att.linear2", bottleneck, cfg.InDim),
	}, nil
}

func (p *ASTP) OutDim() int { return 2 * p.inDim }

func (p *ASTP) Parameters() []Parameter {
	return append(p.lin1.parameters(), p.lin2.parameters()...)
}

func (p *ASTP) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	x, err := checkInput(x, p.inDim)
	if err != nil {
		return nil, fmt.Errorf("astp: %w", err)
	}
	b, c, t := x.Dim(0), x.Dim(1), x.Dim(2)

	scorerIn := x.Data
	if p.globalContext {
		// Concatenate [x, mean, std] along the channel axis, the statistics
		// broadcast back over time so the scorer sees them at every frame.
		mean, std := timeStats(x.Data, b, c, t, astpFloor)
		scorerIn = make([]float32, b*3*c*t)
		for i := 0; i < b; i++ {
			off := i * 3 * c * t
			copy(scorerIn[off:], x.Data[i*c*t:(i+1)*c*t])
			for j := 0; j < c; j++ {
				meanRow := scorerIn[off+(c+j)*t : off+(c+j+1)*t]
				stdRow := scorerIn[off+(2*c+j)*t : off+(2*c+j+1)*t]
				for k := 0; k < t; k++ {
					meanRow[k] = mean[i*c+j]
					stdRow[k] = std[i*c+j]
				}
			}
		}
	}

	// Tanh, not ReLU: a rectifier in the scorer is known to stall
	// convergence for this layer.
	alpha := p.lin1.apply(scorerIn, b, t)
	tanhInPlace(alpha)
	alpha = p.lin2.apply(alpha, b, t)
	softmaxTime(alpha, b*c, t)

	mean, std := weightedMoments(x.Data, alpha, b, c, c, t, astpFloor)
	out := make([]float32, b*2*c)
	for i := 0; i < b; i++ {
		copy(out[i*2*c:], mean[i*c:(i+1)*c])
		copy(out[i*2*c+c:], std[i*c:(i+1)*c])
	}
	return &tensor.Tensor{Data: out, Shape: []int{b, 2 * c}}, nil
}
