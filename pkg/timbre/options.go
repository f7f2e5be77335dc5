package timbre

import "encoding/json"

type options struct {
	pooler     string
	poolerJSON string
	featureDim int
	bottleneck int
	headNum    int
	queryNum   int
	globalCtx  bool
	modelPath  string
	weights    string
	threshold  float64
}

// Option configures a Timbre instance.
type Option func(*options)

// WithPooler selects the pooling layer kind: "TAP", "TSDP", "TSTP", "ASTP",
// "ASP", "MHASTP", "MQMHASTP", or "XI". Default: "ASTP".
func WithPooler(kind string) Option {
	return func(o *options) {
		o.pooler = kind
	}
}

// WithPoolerConfig applies raw JSON pooler settings (the same keys accepted
// in config files: "bottleneck_dim", "head_num", "d_s", ...). Unknown keys
// are ignored. Typed options applied after this override its values.
func WithPoolerConfig(raw string) Option {
	return func(o *options) {
		o.poolerJSON = raw
	}
}

// WithFeatureDim sets the number of feature channels per frame. Default: 80.
func WithFeatureDim(n int) Option {
	return func(o *options) {
		o.featureDim = n
	}
}

// WithBottleneckDim sets the attention bottleneck width for ASTP/ASP/MHASTP.
func WithBottleneckDim(n int) Option {
	return func(o *options) {
		o.bottleneck = n
	}
}

// WithHeadNum sets the attention head count for MHASTP.
func WithHeadNum(n int) Option {
	return func(o *options) {
		o.headNum = n
	}
}

// WithQueryNum sets the query count for MQMHASTP.
func WithQueryNum(n int) Option {
	return func(o *options) {
		o.queryNum = n
	}
}

// WithGlobalContext enables global context attention for ASTP: each frame's
// attention score also sees the utterance mean and stddev.
func WithGlobalContext() Option {
	return func(o *options) {
		o.globalCtx = true
	}
}

// WithEncoderModel sets an ONNX acoustic encoder run ahead of pooling.
// Without it, input frames are pooled as-is.
func WithEncoderModel(path string) Option {
	return func(o *options) {
		o.modelPath = path
	}
}

// WithWeights loads pooler parameters from a safetensors file.
// Without it, parameters are freshly initialized.
func WithWeights(path string) Option {
	return func(o *options) {
		o.weights = path
	}
}

// WithThreshold sets the minimum cosine similarity for speaker
// identification. Below this threshold, Identify reports Unknown.
// Default: 0.5.
func WithThreshold(t float64) Option {
	return func(o *options) {
		o.threshold = t
	}
}

func defaultOptions() options {
	return options{
		pooler:     "ASTP",
		featureDim: 80,
		threshold:  0.5,
	}
}

// poolerConfigJSON merges the raw JSON settings (if any) with the typed
// options into one JSON document for the pooler constructor.
func poolerConfigJSON(o options) ([]byte, error) {
	m := map[string]any{}
	if o.poolerJSON != "" {
		if err := json.Unmarshal([]byte(o.poolerJSON), &m); err != nil {
			return nil, err
		}
	}
	m["in_dim"] = o.featureDim
	if o.bottleneck > 0 {
		m["bottleneck_dim"] = o.bottleneck
	}
	if o.headNum > 0 {
		m["head_num"] = o.headNum
	}
	if o.queryNum > 0 {
		m["query_num"] = o.queryNum
	}
	if o.globalCtx {
		m["global_context_att"] = true
	}
	return json.Marshal(m)
}
