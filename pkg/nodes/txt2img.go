package nodes

import (
	"fmt"

	"github.com/ravi-parthasarathy/comfygraph/pkg/graph"
)

// ImageNodeID is the id under which TextToImage inserts its image output node.
const ImageNodeID = "IMAGE"

// TextToImage parameterizes the basic checkpoint → sampler → decode graph.
type TextToImage struct {
	Checkpoint string
	Positive   string
	Negative   string
	Width      int
	Height     int
	Seed       int64
	Steps      int
	CFG        float64
	Sampler    string
	Scheduler  string
}

// withDefaults fills zero fields with the server's widget defaults.
func (p TextToImage) withDefaults() TextToImage {
	if p.Width == 0 {
		p.Width = 512
	}
	if p.Height == 0 {
		p.Height = 512
	}
	if p.Steps == 0 {
		p.Steps = 20
	}
	if p.CFG == 0 {
		p.CFG = 8
	}
	if p.Sampler == "" {
		p.Sampler = "euler"
	}
	if p.Scheduler == "" {
		p.Scheduler = "normal"
	}
	return p
}

// Build assembles the graph. The image arrives over the event channel from
// the SaveImageWebsocket node inserted as ImageNodeID.
func (p TextToImage) Build() (*graph.Graph, error) {
	if p.Checkpoint == "" {
		return nil, fmt.Errorf("text to image: checkpoint is required")
	}
	p = p.withDefaults()

	g := graph.New()
	ckpt := NewCheckpointLoaderSimple()
	pos := NewCLIPTextEncode()
	neg := NewCLIPTextEncode()
	latent := NewEmptyLatentImage()
	sampler := NewKSampler()
	decode := NewVAEDecode()
	save := NewSaveImageWebsocket()

	for _, n := range []graph.Noder{ckpt, pos, neg, latent} {
		if _, err := g.AddNode(n); err != nil {
			return nil, err
		}
	}
	if err := g.AddNodeWithID(sampler, "KSAMPLER"); err != nil {
		return nil, err
	}
	if err := g.AddNodeWithID(decode, "VAE DECODE"); err != nil {
		return nil, err
	}
	if err := g.AddNodeWithID(save, ImageNodeID); err != nil {
		return nil, err
	}

	// Every node is inserted, so Output cannot fail past this point.
	model, _ := ckpt.Model()
	clip, _ := ckpt.CLIP()
	vae, _ := ckpt.VAE()
	posCond, _ := pos.Conditioning()
	negCond, _ := neg.Conditioning()
	empty, _ := latent.Latent()
	sampled, _ := sampler.Latent()
	image, _ := decode.Image()

	ckpt.CheckpointName().Set(p.Checkpoint)

	pos.Text().Set(p.Positive)
	pos.CLIP().ConnectTo(clip)
	neg.Text().Set(p.Negative)
	neg.CLIP().ConnectTo(clip)

	latent.Width().Set(p.Width)
	latent.Height().Set(p.Height)
	latent.BatchSize().Set(1)

	sampler.SetInputs(map[string]any{
		"seed":         p.Seed,
		"steps":        p.Steps,
		"cfg":          p.CFG,
		"sampler_name": p.Sampler,
		"scheduler":    p.Scheduler,
		"denoise":      1,
	})
	sampler.Model().ConnectTo(model)
	sampler.Positive().ConnectTo(posCond)
	sampler.Negative().ConnectTo(negCond)
	sampler.LatentImage().ConnectTo(empty)

	decode.Samples().ConnectTo(sampled)
	decode.VAE().ConnectTo(vae)
	save.Images().ConnectTo(image)

	return g, nil
}
