package predictor

import (
	"fmt"

	"github.com/openfluke/loom/nn"

	"itsch/internal/series"
)

const modelName = "channel-scorer"

// Config shapes the recurrent scorer. SeqLen is the decimated past-window
// length the network consumes; Channels is both input width per timestep
// and output width.
type Config struct {
	Layers       int
	Neurons      int
	SeqLen       int
	Channels     int
	LearningRate float64
}

func DefaultConfig() Config {
	return Config{Layers: 2, Neurons: 50, SeqLen: 50, Channels: 16, LearningRate: 1e-4}
}

func (c Config) validate() error {
	if c.Layers < 1 {
		return fmt.Errorf("need at least one recurrent layer, got %d", c.Layers)
	}
	if c.Neurons <= 0 {
		return fmt.Errorf("neuron count must be positive, got %d", c.Neurons)
	}
	if c.SeqLen <= 0 || c.Channels <= 0 {
		return fmt.Errorf("sequence length and channels must be positive: %d/%d", c.SeqLen, c.Channels)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive, got %v", c.LearningRate)
	}
	return nil
}

// Network scores normalized past windows with an LSTM front end, hidden
// tanh layers, and a sigmoid output per channel. It satisfies the trainer's
// scorer contract: Score for the forward pass, Update for the backward.
type Network struct {
	cfg Config
	net *nn.Network
}

func New(cfg Config) (*Network, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	totalLayers := cfg.Layers + 1
	net := nn.NewNetwork(cfg.SeqLen*cfg.Channels, 1, 1, totalLayers)
	net.BatchSize = 1
	net.SetLayer(0, 0, 0, nn.InitLSTMLayer(cfg.SeqLen, cfg.Channels, 1, cfg.Neurons))
	for i := 1; i < cfg.Layers; i++ {
		net.SetLayer(0, 0, i, nn.InitDenseLayer(cfg.Neurons, cfg.Neurons, nn.ActivationTanh))
	}
	net.SetLayer(0, 0, totalLayers-1, nn.InitDenseLayer(cfg.Neurons, cfg.Channels, nn.ActivationSigmoid))
	return &Network{cfg: cfg, net: net}, nil
}

func (n *Network) checkShape(past series.Series) error {
	if past.Timesteps() != n.cfg.SeqLen {
		return fmt.Errorf("past window has %d timesteps, network expects %d", past.Timesteps(), n.cfg.SeqLen)
	}
	if past.Channels() != n.cfg.Channels {
		return fmt.Errorf("past window has %d channels, network expects %d", past.Channels(), n.cfg.Channels)
	}
	return nil
}

func (n *Network) rowInput(past series.Series, row int) []float32 {
	input := make([]float32, n.cfg.SeqLen*n.cfg.Channels)
	for t := 0; t < n.cfg.SeqLen; t++ {
		for c := 0; c < n.cfg.Channels; c++ {
			input[t*n.cfg.Channels+c] = float32(past.At(t, row, c))
		}
	}
	return input
}

// Score runs one forward pass per batch row and returns the per-channel
// scores in [0, 1].
func (n *Network) Score(past series.Series) ([][]float64, error) {
	if err := n.checkShape(past); err != nil {
		return nil, err
	}
	scores := make([][]float64, past.Sequences())
	for r := 0; r < past.Sequences(); r++ {
		output, _ := n.net.ForwardCPU(n.rowInput(past, r))
		if len(output) != n.cfg.Channels {
			return nil, fmt.Errorf("forward pass row %d returned %d outputs, want %d", r, len(output), n.cfg.Channels)
		}
		scores[r] = make([]float64, n.cfg.Channels)
		for c, v := range output {
			scores[r][c] = float64(v)
		}
	}
	return scores, nil
}

// Update backpropagates the per-row output gradients and applies one SGD
// step. It must see the batch that produced the gradients: each row is
// re-forwarded so the backward pass has the matching activations.
func (n *Network) Update(past series.Series, grad [][]float64) error {
	if err := n.checkShape(past); err != nil {
		return err
	}
	if len(grad) != past.Sequences() {
		return fmt.Errorf("gradient has %d rows, batch has %d", len(grad), past.Sequences())
	}
	for r := 0; r < past.Sequences(); r++ {
		if len(grad[r]) != n.cfg.Channels {
			return fmt.Errorf("gradient row %d has %d channels, want %d", r, len(grad[r]), n.cfg.Channels)
		}
		n.net.ForwardCPU(n.rowInput(past, r))
		out := make([]float32, n.cfg.Channels)
		for c, v := range grad[r] {
			out[c] = float32(v)
		}
		n.net.BackwardCPU(out)
	}
	n.net.ApplyGradients(float32(n.cfg.LearningRate))
	return nil
}

// Snapshot serializes the network to a JSON payload suitable for the
// persistence layer.
func (n *Network) Snapshot() (string, error) {
	payload, err := n.net.SaveModelToString(modelName)
	if err != nil {
		return "", fmt.Errorf("serialize network: %w", err)
	}
	return payload, nil
}

// Restore rebuilds a network from a Snapshot payload. The config must
// match the one the snapshot was trained with.
func Restore(cfg Config, payload string) (*Network, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	net, err := nn.LoadModelFromString(payload, modelName)
	if err != nil {
		return nil, fmt.Errorf("deserialize network: %w", err)
	}
	net.BatchSize = 1
	return &Network{cfg: cfg, net: net}, nil
}
