package pool

import (
	"fmt"

	"github.com/crimson-sun/timbre/internal/tensor"
)

// statsEps guards the plain (unweighted) standard deviation against zero
// variance.
const statsEps = 1e-7

func init() {
	Register("TAP", func(cfg Config) (Pooler, error) { return NewTAP(cfg) })
	Register("TSDP", func(cfg Config) (Pooler, error) { return NewTSDP(cfg) })
	Register("TSTP", func(cfg Config) (Pooler, error) { return NewTSTP(cfg) })
}

// TAP is temporal average pooling: the per-channel mean over time.
type TAP struct {
	inDim int
}

// NewTAP creates a TAP pooler for inputs with cfg.InDim channels.
func NewTAP(cfg Config) (*TAP, error) {
	if cfg.InDim <= 0 {
		return nil, fmt.Errorf("tap: in_dim must be positive, got %d", cfg.InDim)
	}
	return &TAP{inDim: cfg.InDim}, nil
}

func (p *TAP) OutDim() int { return p.inDim }

func (p *TAP) Parameters() []Parameter { return nil }

func (p *TAP) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	x, err := checkInput(x, p.inDim)
	if err != nil {
		return nil, fmt.Errorf("tap: %w", err)
	}
	b, c, t := x.Dim(0), x.Dim(1), x.Dim(2)
	mean, _ := timeStats(x.Data, b, c, t, statsEps)
	return &tensor.Tensor{Data: mean, Shape: []int{b, c}}, nil
}

// TSDP is temporal standard deviation pooling: only the second-order
// statistic is kept.
type TSDP struct {
	inDim int
}

// NewTSDP creates a TSDP pooler for inputs with cfg.InDim channels.
func NewTSDP(cfg Config) (*TSDP, error) {
	if cfg.InDim <= 0 {
		return nil, fmt.Errorf("tsdp: in_dim must be positive, got %d", cfg.InDim)
	}
	return &TSDP{inDim: cfg.InDim}, nil
}

func (p *TSDP) OutDim() int { return p.inDim }

func (p *TSDP) Parameters() []Parameter { return nil }

func (p *TSDP) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	x, err := checkInput(x, p.inDim)
	if err != nil {
		return nil, fmt.Errorf("tsdp: %w", err)
	}
	b, c, t := x.Dim(0), x.Dim(1), x.Dim(2)
	_, std := timeStats(x.Data, b, c, t, statsEps)
	return &tensor.Tensor{Data: std, Shape: []int{b, c}}, nil
}

// TSTP is temporal statistics pooling: mean and standard deviation
// concatenated, as used in x-vector systems.
type TSTP struct {
	inDim int
}

// NewTSTP creates a TSTP pooler for inputs with cfg.InDim channels.
func NewTSTP(cfg Config) (*TSTP, error) {
	if cfg.InDim <= 0 {
		return nil, fmt.Errorf("tstp: in_dim must be positive, got %d", cfg.InDim)
	}
	return &TSTP{inDim: cfg.InDim}, nil
}

func (p *TSTP) OutDim() int { return 2 * p.inDim }

func (p *TSTP) Parameters() []Parameter { return nil }

func (p *TSTP) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	x, err := checkInput(x, p.inDim)
	if err != nil {
		return nil, fmt.Errorf("tstp: %w", err)
	}
	b, c, t := x.Dim(0), x.Dim(1), x.Dim(2)
	mean, std := timeStats(x.Data, b, c, t, statsEps)
	out := make([]float32, b*2*c)
	for i := 0; i < b; i++ {
		copy(out[i*2*c:], mean[i*c:(i+1)*c])
		copy(out[i*2*c+c:], std[i*c:(i+1)*c])
	}
	return &tensor.Tensor{Data: out, Shape: []int{b, 2 * c}}, nil
}
