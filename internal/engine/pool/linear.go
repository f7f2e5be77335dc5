package pool

import (
	"math"
	"math/rand"
)

// transform is a trainable map from channels to channels applied
// independently at every time step. Poolers compose these without knowing
// the concrete parameterization.
type transform interface {
	// apply maps a flat (batch, inC, T) slice to a flat (batch, outC, T) slice.
	apply(x []float32, batch, t int) []float32
	parameters() []Parameter
}

// pointwise is a linear map applied at each time step — the equivalent of a
// 1×1 convolution over the time axis. Weights are row-major [outC, inC].
type pointwise struct {
	name   string
	weight []float32
	bias   []float32
	inC    int
	outC   int
}

// newPointwise creates a pointwise layer with He-initialized weights and
// zero bias.
func newPointwise(name string, inC, outC int) *pointwise {
	stddev := float32(math.Sqrt(2.0 / float64(inC)))
	weight := make([]float32, outC*inC)
	for i := range weight {
		weight[i] = float32(rand.NormFloat64()) * stddev
	}
	return &pointwise{
		name:   name,
		weight: weight,
		bias:   make([]float32, outC),
		inC:    inC,
		outC:   outC,
	}
}

func (p *pointwise) apply(x []float32, batch, t int) []float32 {
	out := make([]float32, batch*p.outC*t)
	for b := 0; b < batch; b++ {
		inOff := b * p.inC * t
		outOff := b * p.outC * t
		for o := 0; o < p.outC; o++ {
			row := p.weight[o*p.inC : (o+1)*p.inC]
			dst := out[outOff+o*t : outOff+(o+1)*t]
			for k := range dst {
				dst[k] = p.bias[o]
			}
			for i, w := range row {
				src := x[inOff+i*t : inOff+(i+1)*t]
				for k, v := range src {
					dst[k] += w * v
				}
			}
		}
	}
	return out
}

func (p *pointwise) parameters() []Parameter {
	return []Parameter{
		{Name: p.name + ".weight", Data: p.weight, Shape: []int{p.outC, p.inC}, Trainable: true},
		{Name: p.name + ".bias", Data: p.bias, Shape: []int{p.outC}, Trainable: true},
	}
}

// batchNorm applies inference-mode per-channel normalization using running
// statistics: y = gamma * (x - mean) / sqrt(var + eps) + beta. Fresh layers
// start as the identity (gamma=1, mean=0, var=1); trained statistics arrive
// via a checkpoint load.
type batchNorm struct {
	name    string
	gamma   []float32
	beta    []float32
	runMean []float32
	runVar  []float32
	c       int
	eps     float32
}

func newBatchNorm(name string, c int) *batchNorm {
	bn := &batchNorm{
		name:    name,
		gamma:   make([]float32, c),
		beta:    make([]float32, c),
		runMean: make([]float32, c),
		runVar:  make([]float32, c),
		c:       c,
		eps:     1e-5,
	}
	for i := range bn.gamma {
		bn.gamma[i] = 1
		bn.runVar[i] = 1
	}
	return bn
}

func (bn *batchNorm) apply(x []float32, batch, t int) []float32 {
	for b := 0; b < batch; b++ {
		for c := 0; c < bn.c; c++ {
			scale := bn.gamma[c] / float32(math.Sqrt(float64(bn.runVar[c]+bn.eps)))
			shift := bn.beta[c] - bn.runMean[c]*scale
			row := x[(b*bn.c+c)*t : (b*bn.c+c+1)*t]
			for k, v := range row {
				row[k] = v*scale + shift
			}
		}
	}
	return x
}

func (bn *batchNorm) parameters() []Parameter {
	return []Parameter{
		{Name: bn.name + ".weight", Data: bn.gamma, Shape: []int{bn.c}, Trainable: true},
		{Name: bn.name + ".bias", Data: bn.beta, Shape: []int{bn.c}, Trainable: true},
		{Name: bn.name + ".running_mean", Data: bn.runMean, Shape: []int{bn.c}},
		{Name: bn.name + ".running_var", Data: bn.runVar, Shape: []int{bn.c}},
	}
}

func tanhInPlace(x []float32) {
	for i, v := range x {
		x[i] = float32(math.Tanh(float64(v)))
	}
}

func reluInPlace(x []float32) {
	for i, v := range x {
		if v < 0 {
			x[i] = 0
		}
	}
}

// softplusThreshold is the point past which softplus returns its argument
// unchanged to avoid exp overflow.
const softplusThreshold = 20

// softplus computes log(1 + exp(v)) with the standard large-input cutoff.
func softplus(v float32) float32 {
	if v > softplusThreshold {
		return v
	}
	return float32(math.Log1p(math.Exp(float64(v))))
}

// softmaxTime normalizes each length-t row of x into a probability
// distribution, in place. Rows correspond to (batch, channel) pairs; the
// max is subtracted before exponentiation for stability, so a length-1 row
// always normalizes to exactly 1.
func softmaxTime(x []float32, rows, t int) {
	for r := 0; r < rows; r++ {
		row := x[r*t : (r+1)*t]
		max := row[0]
		for _, v := range row[1:] {
			if v > max {
				max = v
			}
		}
		var sum float32
		for k, v := range row {
			e := float32(math.Exp(float64(v - max)))
			row[k] = e
			sum += e
		}
		inv := 1 / sum
		for k := range row {
			row[k] *= inv
		}
	}
}
