// Package pool implements the pooling layers that aggregate a
// variable-length (batch, channel, time) feature tensor into a fixed-size
// embedding per batch element: plain temporal statistics (TAP/TSDP/TSTP),
// attentive statistics (ASTP/ASP), their multi-head (MHASTP) and multi-query
// (MQMHASTP) extensions, and the precision-weighted posterior pooler (XI).
//
// Poolers are pure per call: all state is the trainable parameters fixed at
// construction, so a pooler is safe for concurrent Forward calls as long as
// no one is concurrently writing its parameters.
package pool

import (
	"fmt"
	"sort"

	"github.com/crimson-sun/timbre/internal/tensor"
)

// Pooler maps a (batch, channel, time) feature tensor to one embedding per
// batch element.
type Pooler interface {
	// Forward computes the pooled embeddings. The output is (batch, OutDim),
	// except XI with stddev enabled which keeps a trailing singleton time
	// axis: (batch, OutDim, 1).
	Forward(x *tensor.Tensor) (*tensor.Tensor, error)

	// OutDim returns the embedding dimensionality. It is a pure function of
	// configuration and is valid before the first Forward call.
	OutDim() int

	// Parameters returns the pooler's named trainable tensors. The returned
	// slices alias the pooler's live storage.
	Parameters() []Parameter
}

// Config holds construction-time settings for all pooler kinds. Field names
// mirror the keys used in model configs; decoding a JSON config into this
// struct silently drops unrecognized keys, so configs written for richer
// builds keep working.
type Config struct {
	InDim            int   `json:"in_dim"`
	BottleneckDim    int   `json:"bottleneck_dim"`
	GlobalContextAtt bool  `json:"global_context_att"`
	HeadNum          int   `json:"head_num"`
	LayerNum         int   `json:"layer_num"`
	QueryNum         int   `json:"query_num"`
	DS               int   `json:"d_s"`
	HiddenSize       int   `json:"hidden_size"`
	Stddev           bool  `json:"stddev"`
	TrainMean        *bool `json:"train_mean"`
	TrainPrec        *bool `json:"train_prec"`
}

// Constructor builds a Pooler from a Config.
type Constructor func(cfg Config) (Pooler, error)

var registry = map[string]Constructor{}

// Register adds a pooler constructor under the given kind name.
func Register(kind string, ctor Constructor) {
	registry[kind] = ctor
}

// New constructs a pooler by kind name ("TAP", "TSDP", "TSTP", "ASTP",
// "ASP", "MHASTP", "MQMHASTP", "XI").
func New(kind string, cfg Config) (Pooler, error) {
	ctor, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("pool: unknown pooler kind %q (have %v)", kind, Kinds())
	}
	return ctor(cfg)
}

// Kinds returns the registered pooler kind names in sorted order.
func Kinds() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// orDefault substitutes def when v is unset (zero).
func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// boolOr dereferences p, substituting def when the key was absent.
func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// checkInput normalizes a rank-4 input to rank 3 and validates the channel
// axis against the configured width.
func checkInput(x *tensor.Tensor, inDim int) (*tensor.Tensor, error) {
	x, err := x.MergeChannelFreq()
	if err != nil {
		return nil, err
	}
	if x.Dim(1) != inDim {
		return nil, fmt.Errorf("input has %d channels, pooler configured for %d", x.Dim(1), inDim)
	}
	return x, nil
}
