package pool

import (
	"fmt"

	"github.com/crimson-sun/timbre/internal/tensor"
)

func init() {
	Register("MQMHASTP", func(cfg Config) (Pooler, error) { return NewMQMHASTP(cfg) })
}

// MQMHASTP is multi-query multi-head attentive statistics pooling:
// query_num independently parameterized MHASTP poolers all run over the
// same, unpartitioned input and their outputs are concatenated in
// instantiation order. No parameters are shared between queries.
type MQMHASTP struct {
	inDim    int
	queryNum int
	queries  []*MHASTP
}

// NewMQMHASTP creates an MQMHASTP pooler. Defaults differ from a standalone
// MHASTP: query_num 2, head_num 8, d_s d_model, layer_num 2,
// bottleneck_dim 64.
func NewMQMHASTP(cfg Config) (*MQMHASTP, error) {
	if cfg.InDim <= 0 {
		return nil, fmt.Errorf("mqmhastp: in_dim must be positive, got %d", cfg.InDim)
	}
	queryNum := orDefault(cfg.QueryNum, 2)

	child := cfg
	child.HeadNum = orDefault(cfg.HeadNum, 8)
	child.LayerNum = orDefault(cfg.LayerNum, 2)
	child.DS = orDefault(cfg.DS, 2)
	child.BottleneckDim = orDefault(cfg.BottleneckDim, 64)

	queries := make([]*MHASTP, queryNum)
	for q := range queries {
		m, err := newMHASTP(child, fmt.Sprintf("n_query.%d.", q))
		if err != nil {
			return nil, fmt.Errorf("mqmhastp: %w", err)
		}
		queries[q] = m
	}
	return &MQMHASTP{inDim: cfg.InDim, queryNum: queryNum, queries: queries}, nil
}

func (p *MQMHASTP) OutDim() int { return 2 * p.inDim * p.queryNum }

func (p *MQMHASTP) Parameters() []Parameter {
	var params []Parameter
	for _, q := range p.queries {
		params = append(params, q.Parameters()...)
	}
	return params
}

func (p *MQMHASTP) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	x, err := checkInput(x, p.inDim)
	if err != nil {
		return nil, fmt.Errorf("mqmhastp: %w", err)
	}
	b := x.Dim(0)

	width := 2 * p.inDim
	out := make([]float32, b*width*p.queryNum)
	for q, m := range p.queries {
		res, err := m.Forward(x)
		if err != nil {
			return nil, fmt.Errorf("mqmhastp: query %d: %w", q, err)
		}
		for i := 0; i < b; i++ {
			copy(out[i*width*p.queryNum+q*width:], res.Data[i*width:(i+1)*width])
		}
	}
	return &tensor.Tensor{Data: out, Shape: []int{b, width * p.queryNum}}, nil
}
