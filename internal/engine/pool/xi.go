package pool

import (
	"fmt"
	"math"

	"github.com/crimson-sun/timbre/internal/tensor"
)

// xiFloor clamps the posterior variance before the square root.
const xiFloor = 1e-12

func init() {
	Register("XI", func(cfg Config) (Pooler, error) { return NewXI(cfg) })
}

// XI is precision-weighted posterior pooling: a projection network estimates
// a log-precision for every (channel, frame), a trainable global prior is
// appended as one extra virtual frame, and softmax over the augmented time
// axis turns the precisions into fusion weights for a closed-form Gaussian
// posterior mean (and, optionally, standard deviation).
//
// Unlike the other poolers XI accepts rank-3 input only; it performs no
// channel/frequency merge.
type XI struct {
	inDim     int
	stddev    bool
	trainMean bool
	trainPrec bool

	lin1 *pointwise
	bn   *batchNorm
	lin2 *pointwise

	priorMean    []float32
	priorLogprec []float32
}

// NewXI creates an XI pooler. cfg.HiddenSize defaults to 256; the prior mean
// and log-precision start at zero. train_mean/train_prec (default true) only
// mark the priors trainable for the external optimizer — the forward pass
// never consults them.
func NewXI(cfg Config) (*XI, error) {
	if cfg.InDim <= 0 {
		return nil, fmt.Errorf("xi: in_dim must be positive, got %d", cfg.InDim)
	}
	hidden := orDefault(cfg.HiddenSize, 256)
	return &XI{
		inDim:        cfg.InDim,
		stddev:       cfg.Stddev,
		trainMean:    boolOr(cfg.TrainMean, true),
		trainPrec:    boolOr(cfg.TrainPrec, true),
		lin1:         newPointwise("lin1_relu_bn.0", cfg.InDim, hidden),
		bn:           newBatchNorm("lin1_relu_bn.2", hidden),
		lin2:         newPointwise("lin2", hidden, cfg.InDim),
		priorMean:    make([]float32, cfg.InDim),
		priorLogprec: make([]float32, cfg.InDim),
	}, nil
}

func (p *XI) OutDim() int {
	if p.stddev {
		return 2 * p.inDim
	}
	return p.inDim
}

func (p *XI) Parameters() []Parameter {
	params := p.lin1.parameters()
	params = append(params, p.bn.parameters()...)
	params = append(params, p.lin2.parameters()...)
	return append(params,
		Parameter{Name: "prior_mean", Data: p.priorMean, Shape: []int{p.inDim}, Trainable: p.trainMean},
		Parameter{Name: "prior_logprec", Data: p.priorLogprec, Shape: []int{p.inDim}, Trainable: p.trainPrec},
	)
}

func (p *XI) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if x.Rank() != 3 {
		return nil, fmt.Errorf("xi: expected rank 3 input, got rank %d", x.Rank())
	}
	b, c, t := x.Dim(0), x.Dim(1), x.Dim(2)
	if c != p.inDim {
		return nil, fmt.Errorf("xi: input has %d channels, pooler configured for %d", c, p.inDim)
	}

	// Per-frame log-precision estimate.
	h := p.lin1.apply(x.Data, b, t)
	reluInPlace(h)
	p.bn.apply(h, b, t)
	logprec := p.lin2.apply(h, b, t)
	for i, v := range logprec {
		logprec[i] = 2 * float32(math.Log(float64(softplus(v))))
	}

	// Append the prior as one virtual frame: it competes for attention
	// weight with the real frames.
	aug := t + 1
	augLP := make([]float32, b*c*aug)
	augX := make([]float32, b*c*aug)
	for i := 0; i < b; i++ {
		for j := 0; j < c; j++ {
			row := (i*c + j)
			copy(augLP[row*aug:], logprec[row*t:(row+1)*t])
			augLP[row*aug+t] = p.priorLogprec[j]
			copy(augX[row*aug:], x.Data[row*t:(row+1)*t])
			augX[row*aug+t] = p.priorMean[j]
		}
	}

	weights := make([]float32, len(augLP))
	copy(weights, augLP)
	softmaxTime(weights, b*c, aug)

	// Posterior mean.
	phi := make([]float32, b*c)
	for r := 0; r < b*c; r++ {
		var sum float32
		for k := 0; k < aug; k++ {
			sum += weights[r*aug+k] * augX[r*aug+k]
		}
		phi[r] = sum
	}

	if !p.stddev {
		return &tensor.Tensor{Data: phi, Shape: []int{b, c}}, nil
	}

	// Posterior standard deviation, clamped against cancellation.
	out := make([]float32, b*2*c)
	for i := 0; i < b; i++ {
		for j := 0; j < c; j++ {
			r := i*c + j
			var m2 float32
			for k := 0; k < aug; k++ {
				v := augX[r*aug+k]
				m2 += weights[r*aug+k] * v * v
			}
			v := m2 - phi[r]*phi[r]
			if v < xiFloor {
				v = xiFloor
			}
			out[i*2*c+j] = phi[r]
			out[i*2*c+c+j] = float32(math.Sqrt(float64(v)))
		}
	}
	// Trailing singleton time axis kept for downstream consumers that
	// expect a sequence.
	return &tensor.Tensor{Data: out, Shape: []int{b, 2 * c, 1}}, nil
}

// totalPrecision sums the per-frame and prior precisions over the augmented
// time axis, one value per (batch, channel) row. The pooled output does not
// carry it; it is the posterior precision a calibration consumer would read.
func totalPrecision(augLogprec []float32, rows, aug int) []float32 {
	out := make([]float32, rows)
	for r := 0; r < rows; r++ {
		var sum float32
		for k := 0; k < aug; k++ {
			sum += float32(math.Exp(float64(augLogprec[r*aug+k])))
		}
		out[r] = sum
	}
	return out
}
