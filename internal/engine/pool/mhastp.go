package pool

import (
	"fmt"

	"github.com/crimson-sun/timbre/internal/tensor"
)

func init() {
	Register("MHASTP", func(cfg Config) (Pooler, error) { return NewMHASTP(cfg) })
}

// MHASTP is multi-head attentive statistics pooling: the channel axis is
// split into head_num contiguous partitions, each pooled by an independently
// parameterized scorer, and the per-head (mean, std) pairs are concatenated
// in partition order.
type MHASTP struct {
	inDim   int
	headNum int
	dModel  int // channels per head
	dS      int // scorer output channels per head: 1 or dModel
	heads   [][]*pointwise
}

// NewMHASTP creates an MHASTP pooler. Defaults: head_num 2, layer_num 2,
// bottleneck_dim 64, d_s 1. cfg.InDim must be divisible by head_num.
func NewMHASTP(cfg Config) (*MHASTP, error) {
	return newMHASTP(cfg, "")
}

// newMHASTP is the shared constructor; prefix namespaces parameter names
// when the pooler is owned by a multi-query parent.
func newMHASTP(cfg Config, prefix string) (*MHASTP, error) {
	if cfg.InDim <= 0 {
		return nil, fmt.Errorf("mhastp: in_dim must be positive, got %d", cfg.InDim)
	}
	headNum := orDefault(cfg.HeadNum, 2)
	layerNum := orDefault(cfg.LayerNum, 2)
	bottleneck := orDefault(cfg.BottleneckDim, 64)
	if cfg.InDim%headNum != 0 {
		return nil, fmt.Errorf("mhastp: head_num %d does not evenly divide in_dim %d", headNum, cfg.InDim)
	}
	if layerNum < 1 {
		return nil, fmt.Errorf("mhastp: layer_num must be at least 1, got %d", layerNum)
	}

	dModel := cfg.InDim / headNum
	dS := 1
	if cfg.DS > 1 {
		dS = dModel
	}

	// Scorer channel widths: dModel in, bottleneck between, dS out.
	dims := make([]int, layerNum+1)
	for i := range dims {
		dims[i] = bottleneck
	}
	dims[0], dims[layerNum] = dModel, dS

	heads := make([][]*pointwise, headNum)
	for h := range heads {
		layers := make([]*pointwise, layerNum)
		for i := range layers {
			name := fmt.Sprintf("%sheads_att_trans.%d.att_%d", prefix, h, i)
			layers[i] = newPointwise(name, dims[i], dims[i+1])
		}
		heads[h] = layers
	}

	return &MHASTP{
		inDim:   cfg.InDim,
		headNum: headNum,
		dModel:  dModel,
		dS:      dS,
		heads:   heads,
	}, nil
}

func (p *MHASTP) OutDim() int { return 2 * p.inDim }

func (p *MHASTP) Parameters() []Parameter {
	var params []Parameter
	for _, layers := range p.heads {
		for _, l := range layers {
			params = append(params, l.parameters()...)
		}
	}
	return params
}

func (p *MHASTP) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	x, err := checkInput(x, p.inDim)
	if err != nil {
		return nil, fmt.Errorf("mhastp: %w", err)
	}
	b, c, t := x.Dim(0), x.Dim(1), x.Dim(2)

	out := make([]float32, b*2*c)
	chunk := make([]float32, b*p.dModel*t)
	for h, layers := range p.heads {
		// Gather this head's contiguous channel partition across the batch.
		for i := 0; i < b; i++ {
			src := (i*c + h*p.dModel) * t
			copy(chunk[i*p.dModel*t:(i+1)*p.dModel*t], x.Data[src:src+p.dModel*t])
		}

		score := chunk
		for i, l := range layers {
			score = l.apply(score, b, t)
			if i < len(layers)-1 {
				tanhInPlace(score)
			}
		}
		softmaxTime(score, b*p.dS, t)

		// With d_s == 1 the single distribution is shared across the head's
		// channels; with d_s == dModel each channel has its own.
		mean, std := weightedMoments(chunk, score, b, p.dModel, p.dS, t, astpFloor)
		for i := 0; i < b; i++ {
			off := i*2*c + h*2*p.dModel
			copy(out[off:], mean[i*p.dModel:(i+1)*p.dModel])
			copy(out[off+p.dModel:], std[i*p.dModel:(i+1)*p.dModel])
		}
	}
	return &tensor.Tensor{Data: out, Shape: []int{b, 2 * c}}, nil
}
